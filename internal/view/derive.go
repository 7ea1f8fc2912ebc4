package view

import (
	"amdash/internal/engine"
	"amdash/internal/models"
)

// Presentation is what the table area shows for a State.
type Presentation string

const (
	ShowLoading   Presentation = "loading"
	ShowFailed    Presentation = "failed"
	ShowNoData    Presentation = "no_data"
	ShowNoMatches Presentation = "no_matches"
	ShowReady     Presentation = "ready"
)

type View struct {
	Show Presentation
	// Message and Retryable are set for ShowFailed.
	Message   string
	Retryable bool

	// Rows is the full filtered and sorted result, Page its visible slice.
	Rows   []models.Record
	Page   []models.Record
	Window engine.PageWindow
	// SourceTotal counts the records before fine filters.
	SourceTotal int
}

// Derive computes the view of s from scratch.
func Derive(s State) (View, error) {
	var d Deriver
	return d.Derive(s)
}

// Deriver memoises the filtered and sorted rows of the last State it saw.
// They are recomputed only when the records version, filters or sort
// change; paging reuses them. A Deriver is not safe for concurrent use.
type Deriver struct {
	valid   bool
	dataset string
	version uint64
	filters string
	sort    string
	rows    []models.Record

	// Computes counts recomputations.
	Computes int
}

func (d *Deriver) Derive(s State) (View, error) {
	v := View{SourceTotal: len(s.Records)}
	switch s.Status {
	case Idle, Loading:
		v.Show = ShowLoading
		v.Window = engine.NewPageWindow(0, 1, s.PageSize)
		return v, nil
	case Failed:
		v.Show = ShowFailed
		v.Message = s.Err
		v.Retryable = s.Retryable
		v.Window = engine.NewPageWindow(0, 1, s.PageSize)
		return v, nil
	}

	rows, err := d.rowsFor(s)
	if err != nil {
		return View{}, err
	}
	v.Rows = rows
	v.Page, v.Window = engine.Paginate(rows, s.Page, s.PageSize)
	switch {
	case len(s.Records) == 0:
		v.Show = ShowNoData
	case len(rows) == 0:
		v.Show = ShowNoMatches
	default:
		v.Show = ShowReady
	}
	return v, nil
}

func (d *Deriver) rowsFor(s State) ([]models.Record, error) {
	filters, sort := s.Filters.Fingerprint(), s.Sort.Fingerprint()
	if d.valid && d.dataset == s.Dataset.Name && d.version == s.Version && d.filters == filters && d.sort == sort {
		return d.rows, nil
	}
	rows, err := engine.Apply(s.Dataset.Schema, s.Records, s.Filters, s.Sort)
	if err != nil {
		d.valid = false
		return nil, err
	}
	d.valid = true
	d.dataset = s.Dataset.Name
	d.version = s.Version
	d.filters = filters
	d.sort = sort
	d.rows = rows
	d.Computes++
	return rows, nil
}
