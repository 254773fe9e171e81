package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/stlalpha/v3toss/internal/store"
)

// cmdPack implements 'v3toss pack': spool pending mail for every link, or
// for the links named on the command line.
func cmdPack(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	quiet := fs.Bool("q", false, "Quiet mode")
	fs.Parse(args)

	ctx := context.Background()
	d, err := loadDeps(ctx, *configDir, nil)
	if err != nil {
		return err
	}
	defer d.Close()

	if d.volatile() {
		log.Printf("WARN: In-memory store holds no mail from earlier runs; use the postgres driver to pack separately from toss")
	}

	links, err := selectLinks(ctx, d.store, fs.Args())
	if err != nil {
		return err
	}

	n, err := d.spool.FlushAll(ctx, links, d.cfg.Poll.MaxConcurrentPolls)
	if !*quiet {
		fmt.Println(bullet(fmt.Sprintf("Pack complete: %d link(s), %d file(s) spooled", len(links), n)))
	}
	return err
}

// selectLinks returns the links with the given addresses, or all links.
func selectLinks(ctx context.Context, s store.Store, addrs []string) ([]store.Link, error) {
	if len(addrs) == 0 {
		return s.Links(ctx, store.All().Order("address", false))
	}
	links := make([]store.Link, 0, len(addrs))
	for _, a := range addrs {
		l, err := store.FindLink(ctx, s, a)
		if err != nil {
			return nil, fmt.Errorf("link %s: %w", a, err)
		}
		links = append(links, *l)
	}
	return links, nil
}
