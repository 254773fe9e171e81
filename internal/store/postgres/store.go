// Package postgres provides a PostgreSQL implementation of store.Store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/stlalpha/v3toss/internal/store"
)

// Compile-time check
var _ store.Store = (*Store)(nil)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Store implements store.Store using PostgreSQL.
type Store struct {
	db   *sqlx.DB
	opts *options
}

// Open connects to the database at dsn and ensures the schema.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	s, err := New(ctx, db, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool.
func New(ctx context.Context, db *sqlx.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, opts: newOptions(opts...)}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if s.opts.migrate {
		if err := s.ensureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	log.Printf("INFO: Connected to PostgreSQL store")
	return s, nil
}

// ensureSchema creates the required tables and indexes.
func (s *Store) ensureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// buildSelect renders q against table. Field names were validated against
// the entity so they can be quoted into the statement.
func buildSelect(table string, zero store.Record, q store.Query) (string, []any, error) {
	if err := q.Validate(zero); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT * FROM %s", table)

	args := make([]any, 0, len(q.Filters))
	for i, f := range q.Filters {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, f.Value)
		fmt.Fprintf(&sb, "%s %s $%d", pq.QuoteIdentifier(f.Field), f.Op, len(args))
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&sb, " ORDER BY %s", pq.QuoteIdentifier(q.OrderBy))
		if q.Desc {
			sb.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	return sb.String(), args, nil
}

func selectRows[T store.Record](ctx context.Context, s *Store, table string, q store.Query) ([]T, error) {
	var zero T
	query, args, err := buildSelect(table, zero, q)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var out []T
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) Links(ctx context.Context, q store.Query) ([]store.Link, error) {
	return selectRows[store.Link](ctx, s, "links", q)
}

func (s *Store) Routes(ctx context.Context, q store.Query) ([]store.Route, error) {
	return selectRows[store.Route](ctx, s, "routes", q)
}

func (s *Store) Rewrites(ctx context.Context, q store.Query) ([]store.Rewrite, error) {
	return selectRows[store.Rewrite](ctx, s, "rewrites", q)
}

func (s *Store) Areas(ctx context.Context, q store.Query) ([]store.Area, error) {
	return selectRows[store.Area](ctx, s, "echoareas", q)
}

func (s *Store) Subscriptions(ctx context.Context, q store.Query) ([]store.Subscription, error) {
	return selectRows[store.Subscription](ctx, s, "subscriptions", q)
}

func (s *Store) Echomails(ctx context.Context, q store.Query) ([]store.Echomail, error) {
	return selectRows[store.Echomail](ctx, s, "echomail", q)
}

func (s *Store) Netmails(ctx context.Context, q store.Query) ([]store.Netmail, error) {
	return selectRows[store.Netmail](ctx, s, "netmail", q)
}

// insertReturningID runs a named INSERT ... RETURNING id.
func (s *Store) insertReturningID(ctx context.Context, query string, arg any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	rows, err := sqlx.NamedQueryContext(ctx, s.db, query, arg)
	if err != nil {
		return 0, mapError(err)
	}
	defer rows.Close()

	var id int64
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return 0, err
		}
	}
	return id, mapError(rows.Err())
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	return res.RowsAffected()
}

func (s *Store) CreateLink(ctx context.Context, l *store.Link) error {
	id, err := s.insertReturningID(ctx, `
		INSERT INTO links (address, name, password, host, port, flavour)
		VALUES (:address, :name, :password, :host, :port, :flavour)
		RETURNING id`, l)
	if err != nil {
		return fmt.Errorf("create link: %w", err)
	}
	l.ID = id
	return nil
}

func (s *Store) CreateRoute(ctx context.Context, r *store.Route) error {
	id, err := s.insertReturningID(ctx, `
		INSERT INTO routes (priority, from_addr, to_addr, from_name, to_name, subject, link_id)
		VALUES (:priority, :from_addr, :to_addr, :from_name, :to_name, :subject, :link_id)
		RETURNING id`, r)
	if err != nil {
		return fmt.Errorf("create route: %w", err)
	}
	r.ID = id
	return nil
}

func (s *Store) CreateRewrite(ctx context.Context, r *store.Rewrite) error {
	id, err := s.insertReturningID(ctx, `
		INSERT INTO rewrites ("type", priority, "last",
			orig_from_addr, orig_to_addr, orig_from_name, orig_to_name, orig_subject,
			new_from_addr, new_to_addr, new_from_name, new_to_name, new_subject)
		VALUES (:type, :priority, :last,
			:orig_from_addr, :orig_to_addr, :orig_from_name, :orig_to_name, :orig_subject,
			:new_from_addr, :new_to_addr, :new_from_name, :new_to_name, :new_subject)
		RETURNING id`, r)
	if err != nil {
		return fmt.Errorf("create rewrite: %w", err)
	}
	r.ID = id
	return nil
}

func (s *Store) CreateArea(ctx context.Context, a *store.Area) error {
	id, err := s.insertReturningID(ctx, `
		INSERT INTO echoareas (name, description)
		VALUES (:name, :description)
		RETURNING id`, a)
	if err != nil {
		return fmt.Errorf("create area %s: %w", a.Name, err)
	}
	a.ID = id
	return nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub *store.Subscription) error {
	_, err := s.exec(ctx, `INSERT INTO subscriptions (link_id, area_id, "last") VALUES ($1, $2, $3)`,
		sub.LinkID, sub.AreaID, sub.Last)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (s *Store) CreateEchomail(ctx context.Context, e *store.Echomail) error {
	id, err := s.insertReturningID(ctx, `
		INSERT INTO echomail (area_id, from_addr, from_name, to_name, subject, "date", msgid, "text", seenby, "path")
		VALUES (:area_id, :from_addr, :from_name, :to_name, :subject, :date, :msgid, :text, :seenby, :path)
		RETURNING id`, e)
	if err != nil {
		return fmt.Errorf("create echomail: %w", err)
	}
	e.ID = id
	return nil
}

func (s *Store) CreateNetmail(ctx context.Context, n *store.Netmail) error {
	id, err := s.insertReturningID(ctx, `
		INSERT INTO netmail (route_via, from_addr, to_addr, from_name, to_name, subject, "date", "text")
		VALUES (:route_via, :from_addr, :to_addr, :from_name, :to_name, :subject, :date, :text)
		RETURNING id`, n)
	if err != nil {
		return fmt.Errorf("create netmail: %w", err)
	}
	n.ID = id
	return nil
}

func (s *Store) AdvanceSubscription(ctx context.Context, linkID, areaID, last int64) error {
	n, err := s.exec(ctx, `
		UPDATE subscriptions SET "last" = GREATEST("last", $3)
		WHERE link_id = $1 AND area_id = $2`, linkID, areaID, last)
	if err != nil {
		return fmt.Errorf("advance subscription: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteNetmail(ctx context.Context, id int64) error {
	n, err := s.exec(ctx, `DELETE FROM netmail WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete netmail %d: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InsertDupe(ctx context.Context, areaID int64, msgid string) (bool, error) {
	n, err := s.exec(ctx, `
		INSERT INTO dupes (area_id, msgid) VALUES ($1, $2)
		ON CONFLICT (area_id, msgid) DO NOTHING`, areaID, msgid)
	if err != nil {
		return false, fmt.Errorf("insert dupe: %w", err)
	}
	return n == 1, nil
}

func (s *Store) HasDupe(ctx context.Context, areaID int64, msgid string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM dupes WHERE area_id = $1 AND msgid = $2)`, areaID, msgid)
}

func (s *Store) DeleteDupe(ctx context.Context, areaID int64, msgid string) error {
	if _, err := s.exec(ctx, `DELETE FROM dupes WHERE area_id = $1 AND msgid = $2`, areaID, msgid); err != nil {
		return fmt.Errorf("delete dupe: %w", err)
	}
	return nil
}

func (s *Store) MarkRead(ctx context.Context, linkID, echomailID int64) (bool, error) {
	n, err := s.exec(ctx, `
		INSERT INTO readsigns (link_id, echomail_id) VALUES ($1, $2)
		ON CONFLICT (link_id, echomail_id) DO NOTHING`, linkID, echomailID)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	return n == 1, nil
}

func (s *Store) IsRead(ctx context.Context, linkID, echomailID int64) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM readsigns WHERE link_id = $1 AND echomail_id = $2)`, linkID, echomailID)
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var ok bool
	if err := s.db.GetContext(ctx, &ok, query, args...); err != nil {
		return false, err
	}
	return ok, nil
}

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrDuplicate, pqErr.Constraint)
	}
	return err
}
