package engine

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"amdash/internal/models"
)

// FilterKind selects how a Filter constrains a field.
type FilterKind uint8

const (
	Scalar FilterKind = iota
	Range
	MultiSelect
	Search
)

// SearchKey is the FilterState key of the free-text filter.
const SearchKey = "q"

// allSentinel is the scalar value the UI sends for "no constraint".
const allSentinel = "all"

// Filter is one entry of a FilterState. Only the members of its Kind are
// read.
type Filter struct {
	Field string
	Kind  FilterKind

	Value    string   // Scalar
	Min, Max *float64 // Range
	Values   []string // MultiSelect
	Query    string   // Search
	Fields   []string // Search; empty means every searchable field
}

func Equals(field, value string) Filter {
	return Filter{Field: field, Kind: Scalar, Value: value}
}

func Between(field string, lo, hi *float64) Filter {
	return Filter{Field: field, Kind: Range, Min: lo, Max: hi}
}

func OneOf(field string, values ...string) Filter {
	return Filter{Field: field, Kind: MultiSelect, Values: values}
}

func SearchText(query string, fields ...string) Filter {
	return Filter{Kind: Search, Query: query, Fields: fields}
}

// Key is the FilterState slot the filter occupies.
func (f Filter) Key() string {
	if f.Kind == Search {
		return SearchKey
	}
	return f.Field
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	switch f.Kind {
	case Scalar:
		v := strings.TrimSpace(f.Value)
		return v == "" || strings.EqualFold(v, allSentinel)
	case Range:
		return f.Min == nil && f.Max == nil
	case MultiSelect:
		for _, v := range f.Values {
			if strings.TrimSpace(v) != "" {
				return false
			}
		}
		return true
	case Search:
		return strings.TrimSpace(f.Query) == ""
	}
	return true
}

func (f Filter) fingerprint() string {
	var b strings.Builder
	b.WriteString(f.Key())
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(int(f.Kind)))
	b.WriteByte('|')
	switch f.Kind {
	case Scalar:
		b.WriteString(strings.ToLower(strings.TrimSpace(f.Value)))
	case Range:
		b.WriteString(boundText(f.Min))
		b.WriteByte('~')
		b.WriteString(boundText(f.Max))
	case MultiSelect:
		vals := normalizedSet(f.Values)
		b.WriteString(strings.Join(slices.Sorted(maps.Keys(vals)), ","))
	case Search:
		b.WriteString(strings.ToLower(strings.TrimSpace(f.Query)))
		b.WriteByte('@')
		b.WriteString(strings.Join(f.Fields, ","))
	}
	return b.String()
}

func boundText(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'g', -1, 64)
}

// FilterState maps filter keys to filters. It is a value: With and Without
// return modified copies and never touch the receiver.
type FilterState struct {
	m map[string]Filter
}

func NewFilterState(filters ...Filter) FilterState {
	var s FilterState
	for _, f := range filters {
		s = s.With(f)
	}
	return s
}

// With sets f under its key. A zero filter clears the key instead.
func (s FilterState) With(f Filter) FilterState {
	if f.IsZero() {
		return s.Without(f.Key())
	}
	m := make(map[string]Filter, len(s.m)+1)
	maps.Copy(m, s.m)
	if f.Kind == MultiSelect {
		f.Values = slices.Clone(f.Values)
	}
	if f.Kind == Search {
		f.Fields = slices.Clone(f.Fields)
	}
	m[f.Key()] = f
	return FilterState{m: m}
}

func (s FilterState) Without(key string) FilterState {
	if _, ok := s.m[key]; !ok {
		return s
	}
	m := make(map[string]Filter, len(s.m))
	for k, f := range s.m {
		if k != key {
			m[k] = f
		}
	}
	return FilterState{m: m}
}

func (s FilterState) Get(key string) (Filter, bool) {
	f, ok := s.m[key]
	return f, ok
}

func (s FilterState) Len() int { return len(s.m) }

func (s FilterState) Keys() []string {
	return slices.Sorted(maps.Keys(s.m))
}

// Filters returns the active filters ordered by key.
func (s FilterState) Filters() []Filter {
	out := make([]Filter, 0, len(s.m))
	for _, k := range s.Keys() {
		out = append(out, s.m[k])
	}
	return out
}

// Fingerprint is a canonical text form; equal states share it.
func (s FilterState) Fingerprint() string {
	parts := make([]string, 0, len(s.m))
	for _, f := range s.Filters() {
		parts = append(parts, f.fingerprint())
	}
	return strings.Join(parts, ";")
}

func (s FilterState) Equal(o FilterState) bool {
	return s.Fingerprint() == o.Fingerprint()
}

// Predicate reports whether a record passes one filter. Predicates have no
// side effects, so any evaluation order gives the same result.
type Predicate func(models.Record) bool

func matchAll(models.Record) bool { return true }

// CompileFilter turns f into a predicate checked against the schema.
func CompileFilter(schema *Schema, f Filter) (Predicate, error) {
	if f.IsZero() {
		return matchAll, nil
	}
	if f.Kind == Search {
		return compileSearch(schema, f)
	}
	acc, err := schema.Accessor(f.Field)
	if err != nil {
		return nil, err
	}
	switch f.Kind {
	case Scalar:
		want := strings.TrimSpace(f.Value)
		if acc.Field().Kind == Numeric {
			n, ok := ParseNumber(want)
			if !ok {
				return nil, fmt.Errorf("filter %s: %q is not a number", f.Field, f.Value)
			}
			return func(r models.Record) bool {
				got, ok := acc.Get(r).Num()
				return ok && got == n
			}, nil
		}
		want = acc.Field().Canonical(want)
		return func(r models.Record) bool {
			return acc.Get(r).Any(func(s string) bool {
				return strings.EqualFold(strings.TrimSpace(s), want)
			})
		}, nil
	case Range:
		if acc.Field().Kind != Numeric {
			return nil, fmt.Errorf("filter %s: range needs a numeric field", f.Field)
		}
		lo, hi := f.Min, f.Max
		return func(r models.Record) bool {
			n, ok := acc.Get(r).Num()
			if !ok {
				return false
			}
			if lo != nil && n < *lo {
				return false
			}
			if hi != nil && n > *hi {
				return false
			}
			return true
		}, nil
	case MultiSelect:
		if acc.Field().Kind == Numeric {
			nums, err := numberSet(f)
			if err != nil {
				return nil, err
			}
			return func(r models.Record) bool {
				n, ok := acc.Get(r).Num()
				if !ok {
					return false
				}
				_, hit := nums[n]
				return hit
			}, nil
		}
		vals := make([]string, len(f.Values))
		for i, v := range f.Values {
			vals[i] = acc.Field().Canonical(v)
		}
		set := normalizedSet(vals)
		return func(r models.Record) bool {
			return acc.Get(r).Any(func(s string) bool {
				_, ok := set[strings.ToLower(strings.TrimSpace(s))]
				return ok
			})
		}, nil
	}
	return nil, fmt.Errorf("filter %s: unsupported kind %d", f.Field, f.Kind)
}

func compileSearch(schema *Schema, f Filter) (Predicate, error) {
	keys := f.Fields
	if len(keys) == 0 {
		keys = schema.SearchFields()
	}
	accs := make([]Accessor, 0, len(keys))
	for _, k := range keys {
		acc, err := schema.Accessor(k)
		if err != nil {
			return nil, err
		}
		accs = append(accs, acc)
	}
	needle := strings.ToLower(strings.TrimSpace(f.Query))
	return func(r models.Record) bool {
		for _, acc := range accs {
			if acc.Get(r).Any(func(s string) bool {
				return strings.Contains(strings.ToLower(s), needle)
			}) {
				return true
			}
		}
		return false
	}, nil
}

// CompileFilters compiles every active filter of s.
func CompileFilters(schema *Schema, s FilterState) ([]Predicate, error) {
	preds := make([]Predicate, 0, s.Len())
	for _, f := range s.Filters() {
		p, err := CompileFilter(schema, f)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// Select returns the records that satisfy every predicate, in input order.
// The result never shares a backing array with records.
func Select(records []models.Record, preds ...Predicate) []models.Record {
	out := make([]models.Record, 0, len(records))
next:
	for _, r := range records {
		for _, p := range preds {
			if !p(r) {
				continue next
			}
		}
		out = append(out, r)
	}
	return out
}

func normalizedSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func numberSet(f Filter) (map[float64]struct{}, error) {
	set := make(map[float64]struct{}, len(f.Values))
	for _, v := range f.Values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		n, ok := ParseNumber(v)
		if !ok {
			return nil, fmt.Errorf("filter %s: %q is not a number", f.Field, v)
		}
		set[n] = struct{}{}
	}
	return set, nil
}
