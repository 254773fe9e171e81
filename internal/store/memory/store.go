// Package memory provides an in-process implementation of store.Store.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/stlalpha/v3toss/internal/store"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

type dupeKey struct {
	areaID int64
	msgid  string
}

type readKey struct {
	linkID, echomailID int64
}

// Store keeps every table in memory behind a single lock, which makes the
// conditional inserts atomic.
type Store struct {
	mu     sync.RWMutex
	closed bool
	nextID int64

	links     []store.Link
	routes    []store.Route
	rewrites  []store.Rewrite
	areas     []store.Area
	subs      []store.Subscription
	echomails []store.Echomail
	netmails  []store.Netmail
	dupes     map[dupeKey]struct{}
	reads     map[readKey]struct{}
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		dupes: make(map[dupeKey]struct{}),
		reads: make(map[readKey]struct{}),
	}
}

// selectRows evaluates q over rows and returns matching copies.
func selectRows[T store.Record](rows []T, q store.Query) ([]T, error) {
	var zero T
	if err := q.Validate(zero); err != nil {
		return nil, err
	}

	var out []T
	for _, r := range rows {
		ok, err := store.Match(r, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}

	if q.OrderBy != "" {
		slices.SortStableFunc(out, func(a, b T) int {
			av, _ := a.FieldValue(q.OrderBy)
			bv, _ := b.FieldValue(q.OrderBy)
			c, _ := store.Compare(av, bv)
			if q.Desc {
				return -c
			}
			return c
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) read() (func(), error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, store.ErrClosed
	}
	return s.mu.RUnlock, nil
}

func (s *Store) write() (func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, store.ErrClosed
	}
	return s.mu.Unlock, nil
}

func (s *Store) newID() int64 {
	s.nextID++
	return s.nextID
}

// =============================================================================
// Queries
// =============================================================================

func (s *Store) Links(_ context.Context, q store.Query) ([]store.Link, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return selectRows(s.links, q)
}

func (s *Store) Routes(_ context.Context, q store.Query) ([]store.Route, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return selectRows(s.routes, q)
}

func (s *Store) Rewrites(_ context.Context, q store.Query) ([]store.Rewrite, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return selectRows(s.rewrites, q)
}

func (s *Store) Areas(_ context.Context, q store.Query) ([]store.Area, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return selectRows(s.areas, q)
}

func (s *Store) Subscriptions(_ context.Context, q store.Query) ([]store.Subscription, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return selectRows(s.subs, q)
}

func (s *Store) Echomails(_ context.Context, q store.Query) ([]store.Echomail, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return selectRows(s.echomails, q)
}

func (s *Store) Netmails(_ context.Context, q store.Query) ([]store.Netmail, error) {
	unlock, err := s.read()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return selectRows(s.netmails, q)
}

// =============================================================================
// Create
// =============================================================================

func (s *Store) CreateLink(_ context.Context, l *store.Link) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	for _, existing := range s.links {
		if existing.Address == l.Address {
			return store.ErrDuplicate
		}
	}
	l.ID = s.newID()
	s.links = append(s.links, *l)
	return nil
}

func (s *Store) CreateRoute(_ context.Context, r *store.Route) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	r.ID = s.newID()
	s.routes = append(s.routes, *r)
	return nil
}

func (s *Store) CreateRewrite(_ context.Context, r *store.Rewrite) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	r.ID = s.newID()
	s.rewrites = append(s.rewrites, *r)
	return nil
}

func (s *Store) CreateArea(_ context.Context, a *store.Area) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	for _, existing := range s.areas {
		if existing.Name == a.Name {
			return store.ErrDuplicate
		}
	}
	a.ID = s.newID()
	s.areas = append(s.areas, *a)
	return nil
}

func (s *Store) CreateSubscription(_ context.Context, sub *store.Subscription) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	for _, existing := range s.subs {
		if existing.LinkID == sub.LinkID && existing.AreaID == sub.AreaID {
			return store.ErrDuplicate
		}
	}
	s.subs = append(s.subs, *sub)
	return nil
}

func (s *Store) CreateEchomail(_ context.Context, e *store.Echomail) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	e.ID = s.newID()
	s.echomails = append(s.echomails, *e)
	return nil
}

func (s *Store) CreateNetmail(_ context.Context, n *store.Netmail) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	n.ID = s.newID()
	s.netmails = append(s.netmails, *n)
	return nil
}

// =============================================================================
// Updates
// =============================================================================

func (s *Store) AdvanceSubscription(_ context.Context, linkID, areaID, last int64) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	for i := range s.subs {
		if s.subs[i].LinkID == linkID && s.subs[i].AreaID == areaID {
			if last > s.subs[i].Last {
				s.subs[i].Last = last
			}
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Store) DeleteNetmail(_ context.Context, id int64) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	i := slices.IndexFunc(s.netmails, func(n store.Netmail) bool { return n.ID == id })
	if i < 0 {
		return store.ErrNotFound
	}
	s.netmails = slices.Delete(s.netmails, i, i+1)
	return nil
}

func (s *Store) InsertDupe(_ context.Context, areaID int64, msgid string) (bool, error) {
	unlock, err := s.write()
	if err != nil {
		return false, err
	}
	defer unlock()
	k := dupeKey{areaID, msgid}
	if _, ok := s.dupes[k]; ok {
		return false, nil
	}
	s.dupes[k] = struct{}{}
	return true, nil
}

func (s *Store) HasDupe(_ context.Context, areaID int64, msgid string) (bool, error) {
	unlock, err := s.read()
	if err != nil {
		return false, err
	}
	defer unlock()
	_, ok := s.dupes[dupeKey{areaID, msgid}]
	return ok, nil
}

func (s *Store) DeleteDupe(_ context.Context, areaID int64, msgid string) error {
	unlock, err := s.write()
	if err != nil {
		return err
	}
	defer unlock()
	delete(s.dupes, dupeKey{areaID, msgid})
	return nil
}

func (s *Store) MarkRead(_ context.Context, linkID, echomailID int64) (bool, error) {
	unlock, err := s.write()
	if err != nil {
		return false, err
	}
	defer unlock()
	k := readKey{linkID, echomailID}
	if _, ok := s.reads[k]; ok {
		return false, nil
	}
	s.reads[k] = struct{}{}
	return true, nil
}

func (s *Store) IsRead(_ context.Context, linkID, echomailID int64) (bool, error) {
	unlock, err := s.read()
	if err != nil {
		return false, err
	}
	defer unlock()
	_, ok := s.reads[readKey{linkID, echomailID}]
	return ok, nil
}

// Close releases the tables. Later calls fail with store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// DupeCount returns the number of dedup records. Used by tests and stats.
func (s *Store) DupeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dupes)
}

// ReadCount returns the number of read-markers.
func (s *Store) ReadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reads)
}
