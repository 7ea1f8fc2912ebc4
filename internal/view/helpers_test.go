package view

import (
	"testing"

	"amdash/internal/catalog"
	"amdash/internal/models"

	"github.com/stretchr/testify/require"
)

func companies(t *testing.T) catalog.Dataset {
	t.Helper()
	ds, ok := catalog.Lookup("companies")
	require.True(t, ok)
	return ds
}

func recordSet(ds catalog.Dataset, rows ...map[string]any) *models.RecordSet {
	rs := &models.RecordSet{Dataset: ds.Name, Records: []models.Record{}}
	for _, r := range rows {
		rs.Records = append(rs.Records, ds.Schema.Coerce(r))
	}
	return rs
}

func sample(ds catalog.Dataset) *models.RecordSet {
	return recordSet(ds,
		map[string]any{"name": "Stratasys", "country": "US", "segment": "Polymer", "printer_count": 250},
		map[string]any{"name": "EOS", "country": "Germany", "segment": "Metal", "printer_count": 40},
		map[string]any{"name": "Formlabs", "country": "US", "segment": "Polymer", "printer_count": 1000},
		map[string]any{"name": "Nikon SLM", "country": "Germany", "segment": "Metal"},
	)
}

func names(records []models.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Get("name").Text()
	}
	return out
}

// ready returns a state that has loaded rs as fetch 1.
func ready(ds catalog.Dataset, rs *models.RecordSet) State {
	s := Reduce(Initial(ds), SetCoarse{Seq: 1})
	return Reduce(s, FetchSucceeded{Seq: 1, Records: rs})
}
