// Package dedup suppresses duplicate echomail by (area, MSGID).
//
// Every Gate makes Admit a single conditional insert: of any number of
// concurrent Admit calls for the same pair, exactly one reports true.
package dedup

import (
	"context"

	"github.com/stlalpha/v3toss/internal/store"
)

// Gate records which (area, msgid) pairs were accepted.
type Gate interface {
	// Seen reports whether the pair was already admitted.
	Seen(ctx context.Context, area store.Area, msgid string) (bool, error)
	// Admit records the pair and reports whether this call created it.
	Admit(ctx context.Context, area store.Area, msgid string) (bool, error)
	// Forget removes the pair, undoing an Admit whose message could not
	// be persisted.
	Forget(ctx context.Context, area store.Area, msgid string) error
}

// StoreGate keeps dedup records in the message store.
type StoreGate struct {
	store store.Store
}

// NewStoreGate returns a gate backed by s.
func NewStoreGate(s store.Store) *StoreGate {
	return &StoreGate{store: s}
}

func (g *StoreGate) Seen(ctx context.Context, area store.Area, msgid string) (bool, error) {
	return g.store.HasDupe(ctx, area.ID, msgid)
}

func (g *StoreGate) Admit(ctx context.Context, area store.Area, msgid string) (bool, error) {
	return g.store.InsertDupe(ctx, area.ID, msgid)
}

func (g *StoreGate) Forget(ctx context.Context, area store.Area, msgid string) error {
	return g.store.DeleteDupe(ctx, area.ID, msgid)
}
