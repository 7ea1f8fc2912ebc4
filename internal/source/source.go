// Package source fetches dataset record sets from the configured backend.
package source

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"amdash/internal/catalog"
	"amdash/internal/engine"
	"amdash/internal/models"
)

// Source is the fetch adapter contract. An empty result is an empty
// RecordSet, never an error; failures are always *FetchError.
type Source interface {
	Fetch(ctx context.Context, q Query) (*models.RecordSet, error)
	Backend() string
}

type Query struct {
	Dataset catalog.Dataset
	Coarse  CoarseFilter
	// Limit caps the row count; 0 means catalog.MaxRows.
	Limit int
}

func (q Query) limit() int {
	if q.Limit <= 0 || q.Limit > catalog.MaxRows {
		return catalog.MaxRows
	}
	return q.Limit
}

// NumRange bounds a numeric column; nil bounds are open.
type NumRange struct {
	Min *float64
	Max *float64
}

// CoarseFilter holds the filters cheap enough to push to the data source:
// membership on categorical columns and a few numeric ranges. Free-text
// search is never part of it.
type CoarseFilter struct {
	In     map[string][]string
	Ranges map[string]NumRange
}

func (c CoarseFilter) IsZero() bool {
	for _, vs := range c.In {
		if len(vs) > 0 {
			return false
		}
	}
	for _, r := range c.Ranges {
		if r.Min != nil || r.Max != nil {
			return false
		}
	}
	return true
}

// Key is a canonical text form, used for logging and change detection.
func (c CoarseFilter) Key() string {
	return c.AsFilters().Fingerprint()
}

func (c CoarseFilter) Equal(o CoarseFilter) bool { return c.Key() == o.Key() }

// Validate checks every key against the dataset's pushable fields and
// every numeric membership value for parseability.
func (c CoarseFilter) Validate(ds catalog.Dataset) error {
	for _, k := range slices.Sorted(maps.Keys(c.In)) {
		f, ok := ds.Schema.Field(k)
		if !ok || !f.Coarse {
			return fmt.Errorf("%s cannot be filtered at the source of %s", k, ds.Name)
		}
		if f.Kind != engine.Numeric {
			continue
		}
		for _, v := range c.In[k] {
			if _, ok := engine.ParseNumber(v); !ok {
				return fmt.Errorf("%s: %q is not a number", k, v)
			}
		}
	}
	for _, k := range slices.Sorted(maps.Keys(c.Ranges)) {
		f, ok := ds.Schema.Field(k)
		if !ok || !f.Coarse || f.Kind != engine.Numeric {
			return fmt.Errorf("%s is not a pushable numeric range of %s", k, ds.Name)
		}
	}
	return nil
}

// AsFilters expresses the coarse filter as engine filters, for backends
// that filter in memory and for facet computation.
func (c CoarseFilter) AsFilters() engine.FilterState {
	var fs engine.FilterState
	for _, k := range slices.Sorted(maps.Keys(c.In)) {
		fs = fs.With(engine.OneOf(k, c.In[k]...))
	}
	for _, k := range slices.Sorted(maps.Keys(c.Ranges)) {
		r := c.Ranges[k]
		fs = fs.With(engine.Between(k, r.Min, r.Max))
	}
	return fs
}

// FetchError is the only error a Source returns.
type FetchError struct {
	Dataset string
	Backend string
	// Status is the upstream HTTP status, 0 when not applicable.
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch %s from %s", e.Dataset, e.Backend)
	if e.Status != 0 {
		b.WriteString(": status ")
		b.WriteString(strconv.Itoa(e.Status))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// Canceled reports whether the fetch was abandoned by its caller.
func (e *FetchError) Canceled() bool {
	return errors.Is(e.Err, context.Canceled)
}

// Message is the text shown next to the retry control.
func (e *FetchError) Message() string {
	switch {
	case e.Canceled():
		return "The request was cancelled."
	case errors.Is(e.Err, context.DeadlineExceeded):
		return fmt.Sprintf("Loading %s timed out. Please retry.", e.Dataset)
	case e.Status >= 500:
		return fmt.Sprintf("The data service is unavailable (%d). Please retry.", e.Status)
	case e.Status != 0:
		return fmt.Sprintf("The data service rejected the request (%d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("Could not load %s: %v", e.Dataset, e.Err)
}

func fetchErr(q Query, backend string, status int, err error) *FetchError {
	return &FetchError{Dataset: q.Dataset.Name, Backend: backend, Status: status, Err: err}
}

// filterInMemory applies the coarse filter, default order and limit the way
// a relational backend would.
func filterInMemory(q Query, records []models.Record) ([]models.Record, error) {
	if err := q.Coarse.Validate(q.Dataset); err != nil {
		return nil, err
	}
	primary := engine.SortState{Key: q.Dataset.DefaultSort.Key}
	out, err := engine.Apply(q.Dataset.Schema, records, q.Coarse.AsFilters(), primary)
	if err != nil {
		return nil, err
	}
	if n := q.limit(); len(out) > n {
		out = out[:n]
	}
	return out, nil
}
