package store

import (
	"cmp"
	"fmt"
	"time"
)

// Op is a comparison operator in a Filter.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
)

var opSymbols = [...]string{"=", "!=", ">", ">=", "<", "<="}

// String returns the SQL symbol for the operator.
func (o Op) String() string {
	if o < 0 || int(o) >= len(opSymbols) {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return opSymbols[o]
}

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	return o >= 0 && int(o) < len(opSymbols)
}

// Filter is one typed comparison "field op value". Field is the storage
// column name.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Filter  { return Filter{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Filter  { return Filter{Field: field, Op: OpNe, Value: v} }
func Gt(field string, v any) Filter  { return Filter{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Filter { return Filter{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Filter  { return Filter{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Filter { return Filter{Field: field, Op: OpLte, Value: v} }

// Query is an AND-chain of filters with optional ordering and limit.
// The zero Query selects every row in storage order.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Where starts a query from the given filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// All selects every row.
func All() Query {
	return Query{}
}

// Order returns a copy of q sorted by field.
func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

// Take returns a copy of q limited to n rows.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

// Record is implemented by every entity so that queries can be validated
// and evaluated without reflection.
type Record interface {
	FieldValue(field string) (any, bool)
}

// Validate checks q against the columns of the entity r.
func (q Query) Validate(r Record) error {
	for _, f := range q.Filters {
		if !f.Op.Valid() {
			return fmt.Errorf("%w: unsupported operator %v", ErrFilterInvalid, f.Op)
		}
		zero, ok := r.FieldValue(f.Field)
		if !ok {
			return fmt.Errorf("%w: unsupported field %q", ErrFilterInvalid, f.Field)
		}
		if _, err := Compare(zero, f.Value); err != nil {
			return fmt.Errorf("field %q: %w", f.Field, err)
		}
	}
	if q.OrderBy != "" {
		if _, ok := r.FieldValue(q.OrderBy); !ok {
			return fmt.Errorf("%w: unsupported order field %q", ErrFilterInvalid, q.OrderBy)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrFilterInvalid)
	}
	return nil
}

// Match reports whether r satisfies every filter.
func Match(r Record, filters []Filter) (bool, error) {
	for _, f := range filters {
		v, ok := r.FieldValue(f.Field)
		if !ok {
			return false, fmt.Errorf("%w: unsupported field %q", ErrFilterInvalid, f.Field)
		}
		c, err := Compare(v, f.Value)
		if err != nil {
			return false, err
		}
		var hit bool
		switch f.Op {
		case OpEq:
			hit = c == 0
		case OpNe:
			hit = c != 0
		case OpGt:
			hit = c > 0
		case OpGte:
			hit = c >= 0
		case OpLt:
			hit = c < 0
		case OpLte:
			hit = c <= 0
		default:
			return false, fmt.Errorf("%w: unsupported operator %v", ErrFilterInvalid, f.Op)
		}
		if !hit {
			return false, nil
		}
	}
	return true, nil
}

// Compare orders two field values. Integer kinds compare with each other;
// strings, bools and times compare only with their own kind.
func Compare(a, b any) (int, error) {
	if ai, ok := toInt64(a); ok {
		if bi, ok := toInt64(b); ok {
			return cmp.Compare(ai, bi), nil
		}
		return 0, fmt.Errorf("%w: cannot compare %T with %T", ErrFilterInvalid, a, b)
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv), nil
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, nil
			case !av:
				return -1, nil
			}
			return 1, nil
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv), nil
		}
	}
	return 0, fmt.Errorf("%w: cannot compare %T with %T", ErrFilterInvalid, a, b)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}
