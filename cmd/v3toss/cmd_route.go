package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/stlalpha/v3toss/internal/ftn"
)

// cmdRoute implements 'v3toss route': show which link netmail to each
// address on the command line would leave through.
func cmdRoute(args []string) error {
	fs := flag.NewFlagSet("route", flag.ExitOnError)
	configDir := fs.String("config", "configs", "Config directory")
	toName := fs.String("to", "Sysop", "Recipient name")
	fromName := fs.String("from", "Sysop", "Sender name")
	subject := fs.String("subject", "", "Subject")
	fs.Parse(args)

	if fs.NArg() == 0 {
		return fmt.Errorf("no destination address given")
	}

	ctx := context.Background()
	d, err := loadDeps(ctx, *configDir, nil)
	if err != nil {
		return err
	}
	defer d.Close()

	router := d.tosser.Router()
	for _, arg := range fs.Args() {
		label := styles.label.Render(fmt.Sprintf("%-16s", arg))
		to, err := ftn.ParseAddress(arg)
		if err != nil {
			fmt.Printf("  %s %s\n", label, styles.bad.Render(err.Error()))
			continue
		}
		msg := &ftn.Message{
			FromAddr: d.tosser.Address(),
			ToAddr:   to,
			FromName: *fromName,
			ToName:   *toName,
			Subject:  *subject,
		}
		link, err := router.Resolve(ctx, msg)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", to, err)
		}
		if link == nil {
			fmt.Printf("  %s %s\n", label, styles.bad.Render("no route"))
			continue
		}
		fmt.Printf("  %s via %s\n", label, styles.good.Render(link.Address))
	}
	return nil
}
