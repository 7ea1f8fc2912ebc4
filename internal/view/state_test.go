package view

import (
	"errors"
	"testing"

	"amdash/internal/engine"
	"amdash/internal/source"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReduce_FetchLifecycle(t *testing.T) {
	ds := companies(t)
	s := Initial(ds)
	assert.Equal(t, Idle, s.Status)
	assert.Equal(t, 1, s.Page)
	assert.Equal(t, engine.DefaultPageSize, s.PageSize)
	assert.True(t, s.Sort.Equal(ds.DefaultSort))

	coarse := source.CoarseFilter{In: map[string][]string{"segment": {"Metal"}}}
	s = Reduce(s, SetCoarse{Coarse: coarse, Seq: 7})
	assert.Equal(t, Loading, s.Status)
	assert.Equal(t, uint64(7), s.Seq)
	assert.True(t, s.Coarse.Equal(coarse))

	s = Reduce(s, FetchSucceeded{Seq: 7, Records: sample(ds)})
	assert.Equal(t, Ready, s.Status)
	assert.Len(t, s.Records, 4)
	assert.Equal(t, uint64(1), s.Version)
}

func TestReduce_IgnoresStaleResults(t *testing.T) {
	ds := companies(t)
	s := Reduce(Initial(ds), SetCoarse{Seq: 1})
	s = Reduce(s, SetCoarse{Seq: 2})

	older := Reduce(s, FetchSucceeded{Seq: 1, Records: sample(ds)})
	assert.Equal(t, s, older)

	older = Reduce(s, FetchFailed{Seq: 1, Err: errors.New("late")})
	assert.Equal(t, s, older)

	s = Reduce(s, FetchSucceeded{Seq: 2, Records: recordSet(ds)})
	assert.Equal(t, Ready, s.Status)
	assert.Empty(t, s.Records)
	assert.NotNil(t, s.Records)
}

func TestReduce_FetchFailed(t *testing.T) {
	ds := companies(t)
	s := Reduce(Initial(ds), SetCoarse{Seq: 3})
	s = Reduce(s, FetchFailed{Seq: 3, Err: &source.FetchError{Dataset: "companies", Status: 503, Err: errors.New("down")}})

	assert.Equal(t, Failed, s.Status)
	assert.True(t, s.Retryable)
	assert.Contains(t, s.Err, "unavailable (503)")

	s = Reduce(s, SetCoarse{Seq: 4})
	assert.Equal(t, Loading, s.Status)
	assert.Empty(t, s.Err)
	assert.False(t, s.Retryable)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	ds := companies(t)
	before := ready(ds, sample(ds))
	snapshot := before

	after := Reduce(before, SetFilter{Filter: engine.Equals("segment", "Metal")})
	after = Reduce(after, ToggleSort{Field: "printer_count"})
	after = Reduce(after, SetPage{Page: 3})

	assert.Equal(t, snapshot, before)
	assert.Equal(t, 1, after.Filters.Len())
	assert.Equal(t, 0, before.Filters.Len())
	assert.Equal(t, "printer_count:asc", after.Sort.Fingerprint())
}

func TestReduce_FilterAndPageEvents(t *testing.T) {
	ds := companies(t)
	s := ready(ds, sample(ds))

	s = Reduce(s, SetFilter{Filter: engine.Equals("segment", "Metal")})
	s = Reduce(s, SetFilter{Filter: engine.SearchText("e")})
	require.Equal(t, 2, s.Filters.Len())

	s = Reduce(s, ClearFilter{Key: "segment"})
	assert.Equal(t, []string{engine.SearchKey}, s.Filters.Keys())

	s = Reduce(s, SetFilter{Filter: engine.Equals("segment", "all")})
	assert.Equal(t, 1, s.Filters.Len(), "the all sentinel clears its slot")

	s = Reduce(s, ClearFilters{})
	assert.Equal(t, 0, s.Filters.Len())

	s = Reduce(s, SetPage{Page: 4})
	assert.Equal(t, 4, s.Page)
	s = Reduce(s, SetPage{Page: -2})
	assert.Equal(t, 1, s.Page)

	s = Reduce(s, SetPage{Page: 4})
	s = Reduce(s, SetPageSize{Size: 50})
	assert.Equal(t, 50, s.PageSize)
	assert.Equal(t, 1, s.Page)

	s = Reduce(s, SetSort{Sort: engine.SortBy("name", engine.Desc)})
	s = Reduce(s, ToggleSort{Field: "name"})
	assert.Equal(t, "name:asc", s.Sort.Fingerprint())
	s = Reduce(s, ToggleSort{Field: "name"})
	assert.Equal(t, "name:desc", s.Sort.Fingerprint())

	assert.Equal(t, s, Reduce(s, nil))
}
