package tosser

import (
	"context"
	"fmt"
	"log"

	"github.com/stlalpha/v3toss/internal/ftn"
	"github.com/stlalpha/v3toss/internal/logging"
	"github.com/stlalpha/v3toss/internal/store"
)

// Router picks the link a netmail message leaves through.
type Router struct {
	store store.Store
	masks *maskCache
}

// NewRouter returns a router reading links and routes from s.
func NewRouter(s store.Store) *Router {
	return &Router{store: s, masks: &maskCache{}}
}

// Resolve returns the outbound link for msg, or nil when nothing routes it.
// A direct link to the destination wins, then a direct link to the boss of a
// point destination, then the first matching route rule by ascending priority.
func (r *Router) Resolve(ctx context.Context, msg *ftn.Message) (*store.Link, error) {
	link, err := store.FindLink(ctx, r.store, msg.ToAddr.String())
	if err == nil {
		return link, nil
	}
	if !store.IsNotFound(err) {
		return nil, fmt.Errorf("lookup link %s: %w", msg.ToAddr, err)
	}

	if msg.ToAddr.IsPoint() {
		link, err = store.FindLink(ctx, r.store, msg.ToAddr.Boss().String())
		if err == nil {
			return link, nil
		}
		if !store.IsNotFound(err) {
			return nil, fmt.Errorf("lookup link %s: %w", msg.ToAddr.Boss(), err)
		}
	}

	routes, err := r.store.Routes(ctx, store.All().Order("priority", false))
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}
	for _, route := range routes {
		if !r.masks.match(routeMasks(route), msg) {
			continue
		}
		link, err := store.LinkByID(ctx, r.store, route.LinkID)
		if err != nil {
			if store.IsNotFound(err) {
				log.Printf("WARN: Route #%d points to missing link #%d", route.ID, route.LinkID)
				continue
			}
			return nil, err
		}
		logging.Debug("Route #%d matched %s -> %s via %s", route.ID, msg.FromAddr, msg.ToAddr, link.Address)
		return link, nil
	}
	return nil, nil
}
