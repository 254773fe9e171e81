package store

import (
	"errors"
	"testing"
	"time"
)

func TestMatch(t *testing.T) {
	e := Echomail{ID: 42, AreaID: 3, MsgID: "1:2/3 abc", Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tests := []struct {
		filters []Filter
		want    bool
	}{
		{[]Filter{Eq("area_id", 3)}, true},
		{[]Filter{Eq("area_id", int64(3)), Gt("id", 41)}, true},
		{[]Filter{Eq("area_id", 3), Gt("id", 42)}, false},
		{[]Filter{Gte("id", 42), Lte("id", 42)}, true},
		{[]Filter{Lt("date", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))}, true},
		{[]Filter{Ne("msgid", "1:2/3 abc")}, false},
		{nil, true},
	}
	for i, tt := range tests {
		got, err := Match(e, tt.filters)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if got != tt.want {
			t.Errorf("case %d: got %v, want %v", i, got, tt.want)
		}
	}
}

func TestMatchTypeMismatch(t *testing.T) {
	_, err := Match(Area{Name: "X"}, []Filter{Eq("name", 5)})
	if !errors.Is(err, ErrFilterInvalid) {
		t.Errorf("got %v, want ErrFilterInvalid", err)
	}
}

func TestValidate(t *testing.T) {
	if err := Where(Eq("last", true)).Validate(Rewrite{}); err != nil {
		t.Errorf("bool field: %v", err)
	}
	if err := All().Order("bogus", false).Validate(Link{}); !errors.Is(err, ErrFilterInvalid) {
		t.Errorf("bad order field: got %v", err)
	}
	if err := All().Take(-1).Validate(Link{}); !errors.Is(err, ErrFilterInvalid) {
		t.Errorf("negative limit: got %v", err)
	}
}

func TestOpString(t *testing.T) {
	if OpGte.String() != ">=" || OpNe.String() != "!=" {
		t.Errorf("unexpected symbols: %s %s", OpGte, OpNe)
	}
}
