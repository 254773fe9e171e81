package postgres

import (
	"errors"
	"reflect"
	"testing"

	"github.com/lib/pq"

	"github.com/stlalpha/v3toss/internal/store"
)

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		zero     store.Record
		q        store.Query
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "all",
			table:    "links",
			zero:     store.Link{},
			q:        store.All(),
			wantSQL:  `SELECT * FROM links`,
			wantArgs: []any{},
		},
		{
			name:     "and chain with order and limit",
			table:    "echomail",
			zero:     store.Echomail{},
			q:        store.Where(store.Eq("area_id", int64(3)), store.Gt("id", int64(10))).Order("id", false).Take(50),
			wantSQL:  `SELECT * FROM echomail WHERE "area_id" = $1 AND "id" > $2 ORDER BY "id" LIMIT 50`,
			wantArgs: []any{int64(3), int64(10)},
		},
		{
			name:     "descending",
			table:    "routes",
			zero:     store.Route{},
			q:        store.Where(store.Lte("priority", 5)).Order("priority", true),
			wantSQL:  `SELECT * FROM routes WHERE "priority" <= $1 ORDER BY "priority" DESC`,
			wantArgs: []any{5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := buildSelect(tt.table, tt.zero, tt.q)
			if err != nil {
				t.Fatalf("buildSelect: %v", err)
			}
			if sql != tt.wantSQL {
				t.Errorf("sql:\ngot:  %s\nwant: %s", sql, tt.wantSQL)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args: got %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestBuildSelectRejectsUnknownField(t *testing.T) {
	_, _, err := buildSelect("links", store.Link{}, store.Where(store.Eq("address; DROP TABLE links", "x")))
	if !errors.Is(err, store.ErrFilterInvalid) {
		t.Errorf("got %v, want ErrFilterInvalid", err)
	}
}

func TestMapError(t *testing.T) {
	err := mapError(&pq.Error{Code: uniqueViolation, Constraint: "echoareas_name_key"})
	if !store.IsDuplicate(err) {
		t.Errorf("unique violation: got %v, want ErrDuplicate", err)
	}
	other := errors.New("boom")
	if got := mapError(other); got != other {
		t.Errorf("other errors pass through: got %v", got)
	}
	if mapError(nil) != nil {
		t.Error("nil should stay nil")
	}
}
