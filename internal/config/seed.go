package config

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/store"
)

// Seed loads the links, subscriptions, routes and rewrites of c into s.
// Existing links and subscriptions are kept; routes and rewrites are only
// seeded into a store that has none, so restarts do not duplicate them.
func (c TossConfig) Seed(ctx context.Context, s store.Store) error {
	links := make(map[string]int64, len(c.Links))
	for _, lc := range c.Links {
		addr, err := ftn.ParseAddress(lc.Address)
		if err != nil {
			return fmt.Errorf("link %q: %w", lc.Address, err)
		}
		canonical := addr.String()
		link := store.Link{
			Address:  canonical,
			Name:     lc.Name,
			Password: lc.Password,
			Host:     lc.Host,
			Port:     lc.Port,
			Flavour:  lc.Flavour,
		}
		err = s.CreateLink(ctx, &link)
		if store.IsDuplicate(err) {
			existing, ferr := store.FindLink(ctx, s, canonical)
			if ferr != nil {
				return fmt.Errorf("link %s: %w", canonical, ferr)
			}
			link, err = *existing, nil
		}
		if err != nil {
			return fmt.Errorf("link %s: %w", canonical, err)
		}
		links[canonical] = link.ID

		for _, tag := range lc.Areas {
			if err := subscribe(ctx, s, link.ID, strings.ToUpper(tag)); err != nil {
				return fmt.Errorf("link %s area %s: %w", canonical, tag, err)
			}
		}
	}

	existingRoutes, err := s.Routes(ctx, store.All().Take(1))
	if err != nil {
		return err
	}
	if len(existingRoutes) == 0 {
		for i, rc := range c.Routes {
			via, err := ftn.ParseAddress(rc.Via)
			if err != nil {
				return fmt.Errorf("routes[%d]: via: %w", i, err)
			}
			linkID, ok := links[via.String()]
			if !ok {
				return fmt.Errorf("routes[%d]: via %q is not a configured link", i, rc.Via)
			}
			r := store.Route{
				Priority: rc.Priority,
				FromAddr: orAny(rc.FromAddr),
				ToAddr:   orAny(rc.ToAddr),
				FromName: orAny(rc.FromName),
				ToName:   orAny(rc.ToName),
				Subject:  orAny(rc.Subject),
				LinkID:   linkID,
			}
			if err := s.CreateRoute(ctx, &r); err != nil {
				return fmt.Errorf("routes[%d]: %w", i, err)
			}
		}
	}

	existingRewrites, err := s.Rewrites(ctx, store.All().Take(1))
	if err != nil {
		return err
	}
	if len(existingRewrites) == 0 {
		for i, rc := range c.Rewrites {
			r := store.Rewrite{
				Type:         store.RewriteType(strings.ToUpper(rc.Type)),
				Priority:     rc.Priority,
				Last:         rc.Last,
				OrigFromAddr: orAny(rc.Match.FromAddr),
				OrigToAddr:   orAny(rc.Match.ToAddr),
				OrigFromName: orAny(rc.Match.FromName),
				OrigToName:   orAny(rc.Match.ToName),
				OrigSubject:  orAny(rc.Match.Subject),
				NewFromAddr:  orAny(rc.Set.FromAddr),
				NewToAddr:    orAny(rc.Set.ToAddr),
				NewFromName:  orAny(rc.Set.FromName),
				NewToName:    orAny(rc.Set.ToName),
				NewSubject:   orAny(rc.Set.Subject),
			}
			if err := s.CreateRewrite(ctx, &r); err != nil {
				return fmt.Errorf("rewrites[%d]: %w", i, err)
			}
		}
	}

	log.Printf("INFO: Seeded %d link(s) from configuration", len(links))
	return nil
}

func orAny(s string) string {
	if s == "" {
		return store.MaskAny
	}
	return s
}

func subscribe(ctx context.Context, s store.Store, linkID int64, tag string) error {
	area, err := store.FindArea(ctx, s, tag)
	if store.IsNotFound(err) {
		area = &store.Area{Name: tag}
		err = s.CreateArea(ctx, area)
		if store.IsDuplicate(err) {
			area, err = store.FindArea(ctx, s, tag)
		}
	}
	if err != nil {
		return err
	}
	err = s.CreateSubscription(ctx, &store.Subscription{LinkID: linkID, AreaID: area.ID})
	if err != nil && !store.IsDuplicate(err) {
		return err
	}
	return nil
}
