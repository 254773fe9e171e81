// Package store defines the persistence contract used by the tosser.
//
// Implementations must make InsertDupe and MarkRead atomic conditional
// inserts and must never lower a subscription mark in AdvanceSubscription.
// No other transaction semantics are assumed.
package store

import "context"

// Store is the persistence context shared by tosser components. It is
// created once at startup and closed at shutdown.
type Store interface {
	Links(ctx context.Context, q Query) ([]Link, error)
	Routes(ctx context.Context, q Query) ([]Route, error)
	Rewrites(ctx context.Context, q Query) ([]Rewrite, error)
	Areas(ctx context.Context, q Query) ([]Area, error)
	Subscriptions(ctx context.Context, q Query) ([]Subscription, error)
	Echomails(ctx context.Context, q Query) ([]Echomail, error)
	Netmails(ctx context.Context, q Query) ([]Netmail, error)

	// Create methods assign the new ID to the argument.
	CreateLink(ctx context.Context, l *Link) error
	CreateRoute(ctx context.Context, r *Route) error
	CreateRewrite(ctx context.Context, r *Rewrite) error
	// CreateArea returns ErrDuplicate when the name is taken.
	CreateArea(ctx context.Context, a *Area) error
	// CreateSubscription returns ErrDuplicate when the pair exists.
	CreateSubscription(ctx context.Context, s *Subscription) error
	CreateEchomail(ctx context.Context, e *Echomail) error
	CreateNetmail(ctx context.Context, n *Netmail) error

	// AdvanceSubscription raises the mark to last. A lower value is ignored.
	AdvanceSubscription(ctx context.Context, linkID, areaID, last int64) error
	// DeleteNetmail returns ErrNotFound when the row is already gone.
	DeleteNetmail(ctx context.Context, id int64) error

	// InsertDupe records (areaID, msgid) and reports whether it was new.
	InsertDupe(ctx context.Context, areaID int64, msgid string) (bool, error)
	HasDupe(ctx context.Context, areaID int64, msgid string) (bool, error)
	DeleteDupe(ctx context.Context, areaID int64, msgid string) error

	// MarkRead records that the echomail was offered to the link and reports
	// whether the marker is new.
	MarkRead(ctx context.Context, linkID, echomailID int64) (bool, error)
	IsRead(ctx context.Context, linkID, echomailID int64) (bool, error)

	Close() error
}

// FindLink returns the link registered for address.
func FindLink(ctx context.Context, s Store, address string) (*Link, error) {
	links, err := s.Links(ctx, Where(Eq("address", address)).Take(1))
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, ErrNotFound
	}
	return &links[0], nil
}

// LinkByID returns the link with the given id.
func LinkByID(ctx context.Context, s Store, id int64) (*Link, error) {
	links, err := s.Links(ctx, Where(Eq("id", id)).Take(1))
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, ErrNotFound
	}
	return &links[0], nil
}

// FindArea returns the area with the given name.
func FindArea(ctx context.Context, s Store, name string) (*Area, error) {
	areas, err := s.Areas(ctx, Where(Eq("name", name)).Take(1))
	if err != nil {
		return nil, err
	}
	if len(areas) == 0 {
		return nil, ErrNotFound
	}
	return &areas[0], nil
}

// FindSubscription returns the subscription of link to area.
func FindSubscription(ctx context.Context, s Store, linkID, areaID int64) (*Subscription, error) {
	subs, err := s.Subscriptions(ctx, Where(Eq("link_id", linkID), Eq("area_id", areaID)).Take(1))
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ErrNotFound
	}
	return &subs[0], nil
}
