package main

import (
	"flag"
	"fmt"

	"github.com/stlalpha/v3toss/internal/config"
	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/nodelist"
)

// cmdNodelist implements 'v3toss nodelist': parse the nodelist and look up
// the addresses given on the command line.
func cmdNodelist(args []string) error {
	fs := flag.NewFlagSet("nodelist", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	file := fs.String("file", "", "Nodelist file (default: nodelist_path from toss.json)")
	fs.Parse(args)

	path := *file
	if path == "" {
		cfg, err := config.LoadTossConfig(*configDir)
		if err != nil {
			return err
		}
		path = cfg.NodelistPath
	}
	if path == "" {
		return fmt.Errorf("no nodelist configured (use --file)")
	}

	nl, err := nodelist.LoadFile(path)
	if err != nil {
		return err
	}
	fmt.Println(bullet(fmt.Sprintf("%s: %d system(s)", path, nl.Len())))

	for _, arg := range fs.Args() {
		addr, err := ftn.ParseAddress(arg)
		if err != nil {
			fmt.Printf("  %s %s\n", styles.label.Render(fmt.Sprintf("%-16s", arg)), styles.bad.Render(err.Error()))
			continue
		}
		e, ok := nl.Lookup(addr)
		if !ok {
			fmt.Printf("  %s %s\n", styles.label.Render(fmt.Sprintf("%-16s", addr)), styles.bad.Render("not listed"))
			continue
		}
		status := styles.good.Render(e.Status.String())
		if !e.Status.Reachable() {
			status = styles.bad.Render(e.Status.String())
		}
		fmt.Printf("  %s %-6s %s, %s (%s)\n",
			styles.label.Render(fmt.Sprintf("%-16s", addr)), status, e.Name, e.Location, e.Sysop)
	}
	return nil
}
