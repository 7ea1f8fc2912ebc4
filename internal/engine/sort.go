package engine

import (
	"fmt"
	"slices"
	"strings"

	"amdash/internal/models"
)

type Direction uint8

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Asc, nil
	case "desc", "descending":
		return Desc, nil
	}
	return Asc, fmt.Errorf("invalid sort direction %q", s)
}

type SortKey struct {
	Field string
	Dir   Direction
}

// SortState is one primary key plus an optional tie-break chain applied in
// order. The zero SortState keeps input order.
type SortState struct {
	Key  SortKey
	Then []SortKey
}

func SortBy(field string, dir Direction, then ...SortKey) SortState {
	return SortState{Key: SortKey{Field: field, Dir: dir}, Then: slices.Clone(then)}
}

func (s SortState) IsZero() bool { return s.Key.Field == "" }

func (s SortState) Keys() []SortKey {
	if s.IsZero() {
		return nil
	}
	return append([]SortKey{s.Key}, s.Then...)
}

// Toggle makes field the primary key: the same field flips direction, a new
// field starts ascending. The tie-break chain is kept.
func (s SortState) Toggle(field string) SortState {
	next := SortState{Key: SortKey{Field: field, Dir: Asc}, Then: slices.Clone(s.Then)}
	if s.Key.Field == field && s.Key.Dir == Asc {
		next.Key.Dir = Desc
	}
	return next
}

func (s SortState) Fingerprint() string {
	parts := make([]string, 0, len(s.Then)+1)
	for _, k := range s.Keys() {
		parts = append(parts, k.Field+":"+k.Dir.String())
	}
	return strings.Join(parts, ",")
}

func (s SortState) Equal(o SortState) bool { return s.Fingerprint() == o.Fingerprint() }

// Comparator orders two records; 0 means tied.
type Comparator func(a, b models.Record) int

type compiledKey struct {
	acc  Accessor
	desc bool
}

// CompileSort builds the comparator for s. Null values always sort after
// non-null ones, whatever the direction. A zero s yields a nil comparator.
func CompileSort(schema *Schema, s SortState) (Comparator, error) {
	if s.IsZero() {
		return nil, nil
	}
	keys := make([]compiledKey, 0, len(s.Then)+1)
	for _, k := range s.Keys() {
		acc, err := schema.Accessor(k.Field)
		if err != nil {
			return nil, err
		}
		keys = append(keys, compiledKey{acc: acc, desc: k.Dir == Desc})
	}
	return func(a, b models.Record) int {
		for _, k := range keys {
			av, bv := k.acc.Get(a), k.acc.Get(b)
			switch {
			case av.IsNull() && bv.IsNull():
				continue
			case av.IsNull():
				return 1
			case bv.IsNull():
				return -1
			}
			c := k.acc.Compare(av, bv)
			if k.desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}, nil
}

// SortRecords returns a sorted copy. Ties keep their input order.
func SortRecords(records []models.Record, cmp Comparator) []models.Record {
	out := slices.Clone(records)
	if out == nil {
		out = []models.Record{}
	}
	if cmp != nil {
		slices.SortStableFunc(out, cmp)
	}
	return out
}
