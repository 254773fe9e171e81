package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stlalpha/v3toss/internal/tosser"
)

// cmdToss implements 'v3toss toss': toss the inbound directories, or the
// files named on the command line. With an in-memory store the tossed mail
// is spooled for every link before exit, since a later run starts empty.
func cmdToss(args []string) error {
	fs := flag.NewFlagSet("toss", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	secure := fs.Bool("secure", false, "Treat named files as received in a protected session")
	quiet := fs.Bool("q", false, "Quiet mode")
	fs.Parse(args)

	ctx := context.Background()
	d, err := loadDeps(ctx, *configDir, nil)
	if err != nil {
		return err
	}
	defer d.Close()

	var total *tosser.Result
	if fs.NArg() > 0 {
		total, err = tossFiles(ctx, d.tosser, fs.Args(), *secure)
	} else {
		total, err = tossInbound(ctx, d)
	}
	if !*quiet && total != nil {
		printResult(total)
	}
	if err != nil {
		return err
	}

	d.tosser.Wait()
	if d.volatile() {
		n, err := spoolAll(ctx, d)
		if !*quiet {
			fmt.Println(bullet(fmt.Sprintf("In-memory store: %d file(s) spooled before exit", n)))
		}
		return err
	}
	return nil
}

// spoolAll flushes every link into the outbound.
func spoolAll(ctx context.Context, d *deps) (int, error) {
	links, err := selectLinks(ctx, d.store, nil)
	if err != nil {
		return 0, err
	}
	return d.spool.FlushAll(ctx, links, d.cfg.Poll.MaxConcurrentPolls)
}

// tossInbound tosses the secure inbound then the public inbound.
func tossInbound(ctx context.Context, d *deps) (*tosser.Result, error) {
	total, err := d.tosser.TossDir(ctx, d.cfg.SecureInboundPath, true)
	if err != nil {
		return total, err
	}
	res, err := d.tosser.TossDir(ctx, d.cfg.InboundPath, false)
	total.Merge(res)
	return total, err
}

func tossFiles(ctx context.Context, t *tosser.Tosser, paths []string, secure bool) (*tosser.Result, error) {
	var total *tosser.Result
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return total, err
		}
		res, err := t.Toss(ctx, tosser.Inbound{Name: filepath.Base(path), Data: data, Secure: secure})
		if total == nil {
			total = res
		} else {
			total.Merge(res)
		}
		if err != nil {
			return total, fmt.Errorf("%s: %w", path, err)
		}
	}
	return total, nil
}

func printResult(res *tosser.Result) {
	fmt.Println(bullet(fmt.Sprintf("Toss complete: %d packet(s), %s tossed, %s rejected",
		res.Packets,
		styles.good.Render(fmt.Sprint(res.TotalTossed())),
		styles.bad.Render(fmt.Sprint(res.TotalRejected())))))
	for _, key := range sortedKeys(res.Tossed, res.Rejected) {
		fmt.Printf("  %s %d tossed, %d rejected\n",
			styles.label.Render(fmt.Sprintf("%-24s", key)), res.Tossed[key], res.Rejected[key])
	}
	if len(res.Files) > 0 {
		fmt.Printf("  %s %s\n", styles.label.Render(fmt.Sprintf("%-24s", "files")), strings.Join(res.Files, ", "))
	}
	if len(res.Polled) > 0 {
		fmt.Printf("  %s %s\n", styles.label.Render(fmt.Sprintf("%-24s", "polled")), strings.Join(res.Polled, ", "))
	}
}

// sortedKeys returns the union of the keys of ms in order.
func sortedKeys(ms ...map[string]int) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, m := range ms {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
