// Package view holds the state of one dataset view: what was fetched, which
// filters, sort and page are applied, and what should be shown.
package view

import (
	"errors"

	"amdash/internal/catalog"
	"amdash/internal/engine"
	"amdash/internal/models"
	"amdash/internal/source"
)

type Status uint8

const (
	Idle Status = iota
	Loading
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "idle"
}

// State is a value; Reduce returns a new State and never mutates its input.
// Records is shared between states and must be treated as read-only.
type State struct {
	Dataset catalog.Dataset
	Coarse  source.CoarseFilter
	Filters engine.FilterState
	Sort    engine.SortState

	Page     int
	PageSize int

	Status    Status
	Err       string
	Retryable bool

	Records []models.Record
	// Version changes whenever Records is replaced.
	Version uint64
	// Seq is the fetch whose result the state is waiting for or showing.
	Seq uint64
}

func Initial(ds catalog.Dataset) State {
	return State{
		Dataset:  ds,
		Sort:     ds.DefaultSort,
		Page:     1,
		PageSize: engine.DefaultPageSize,
	}
}

// Event is a state transition.
type Event interface {
	apply(State) State
}

func Reduce(s State, e Event) State {
	if e == nil {
		return s
	}
	return e.apply(s)
}

// SetCoarse records that a fetch with sequence Seq was issued for Coarse.
type SetCoarse struct {
	Coarse source.CoarseFilter
	Seq    uint64
}

func (e SetCoarse) apply(s State) State {
	s.Coarse = e.Coarse
	s.Seq = e.Seq
	s.Status = Loading
	s.Err = ""
	s.Retryable = false
	return s
}

type FetchSucceeded struct {
	Seq     uint64
	Records *models.RecordSet
}

func (e FetchSucceeded) apply(s State) State {
	if e.Seq != s.Seq {
		return s
	}
	s.Records = []models.Record{}
	if e.Records != nil && e.Records.Records != nil {
		s.Records = e.Records.Records
	}
	s.Version++
	s.Status = Ready
	s.Err = ""
	s.Retryable = false
	return s
}

type FetchFailed struct {
	Seq uint64
	Err error
}

func (e FetchFailed) apply(s State) State {
	if e.Seq != s.Seq {
		return s
	}
	s.Status = Failed
	s.Retryable = true
	var fe *source.FetchError
	switch {
	case errors.As(e.Err, &fe):
		s.Err = fe.Message()
	case e.Err != nil:
		s.Err = e.Err.Error()
	default:
		s.Err = "unknown error"
	}
	return s
}

// SetFilter installs or replaces the filter in its slot; a zero filter
// clears the slot.
type SetFilter struct{ Filter engine.Filter }

func (e SetFilter) apply(s State) State {
	s.Filters = s.Filters.With(e.Filter)
	return s
}

type ClearFilter struct{ Key string }

func (e ClearFilter) apply(s State) State {
	s.Filters = s.Filters.Without(e.Key)
	return s
}

type ClearFilters struct{}

func (ClearFilters) apply(s State) State {
	s.Filters = engine.FilterState{}
	return s
}

type SetSort struct{ Sort engine.SortState }

func (e SetSort) apply(s State) State {
	s.Sort = e.Sort
	return s
}

// ToggleSort makes Field the primary key, flipping its direction when it
// already is.
type ToggleSort struct{ Field string }

func (e ToggleSort) apply(s State) State {
	s.Sort = s.Sort.Toggle(e.Field)
	return s
}

// SetPage stores the requested page; Derive clamps it to the result.
type SetPage struct{ Page int }

func (e SetPage) apply(s State) State {
	s.Page = max(e.Page, 1)
	return s
}

type SetPageSize struct{ Size int }

func (e SetPageSize) apply(s State) State {
	if e.Size <= 0 {
		e.Size = engine.DefaultPageSize
	}
	s.PageSize = e.Size
	s.Page = 1
	return s
}
