package engine

import "amdash/internal/models"

// Query is a compiled filter/sort pass over a record set.
type Query struct {
	preds []Predicate
	cmp   Comparator
}

// NewQuery validates every filter and sort key against the schema. Once
// built, Apply cannot fail.
func NewQuery(schema *Schema, filters FilterState, sort SortState) (*Query, error) {
	preds, err := CompileFilters(schema, filters)
	if err != nil {
		return nil, err
	}
	cmp, err := CompileSort(schema, sort)
	if err != nil {
		return nil, err
	}
	return &Query{preds: preds, cmp: cmp}, nil
}

// Apply filters then sorts. The input slice is left untouched.
func (q *Query) Apply(records []models.Record) []models.Record {
	selected := Select(records, q.preds...)
	if q.cmp != nil {
		return SortRecords(selected, q.cmp)
	}
	return selected
}

func Apply(schema *Schema, records []models.Record, filters FilterState, sort SortState) ([]models.Record, error) {
	q, err := NewQuery(schema, filters, sort)
	if err != nil {
		return nil, err
	}
	return q.Apply(records), nil
}
