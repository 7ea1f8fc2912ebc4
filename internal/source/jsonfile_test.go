package source

import (
	"context"
	"testing"

	"github.com/ohler55/ojg/jp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const companiesJSON = `{"data": [
	{"id": "c1", "name": "Stratasys", "country": "USA", "technologies": ["FDM", "PolyJet"], "printer_count": 250},
	{"id": "c2", "name": "EOS", "country": "Germany", "technologies": "LPBF; SLS", "printer_count": "40", "extra": true},
	{"id": "c3", "name": "Formlabs", "country": null, "printer_count": "n/a"}
]}`

func TestDecodeJSON(t *testing.T) {
	ds := companies(t)
	records, err := DecodeJSON([]byte(companiesJSON), jp.MustParseString("$.data[*]"), ds.Schema)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "United States", records[0].Get("country").Text())
	assert.Equal(t, []string{"FDM", "PolyJet"}, records[0].Get("technologies").Items())
	assert.Equal(t, []string{"LPBF", "SLS"}, records[1].Get("technologies").Items())
	n, ok := records[1].Get("printer_count").Num()
	require.True(t, ok)
	assert.Equal(t, 40.0, n)
	_, declared := records[1]["extra"]
	assert.False(t, declared)
	assert.True(t, records[2].Get("country").IsNull())
	assert.True(t, records[2].Get("printer_count").IsNull())
}

func TestDecodeJSON_RejectsNonObjects(t *testing.T) {
	_, err := DecodeJSON([]byte(`[1, 2]`), jp.MustParseString(DefaultRecordsPath), companies(t).Schema)
	assert.ErrorContains(t, err, "not an object")
}

func TestJSONFiles_Fetch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "companies.json", companiesJSON)

	src, err := NewJSONFiles(dir, "$.data[*]", zaptest.NewLogger(t))
	require.NoError(t, err)
	rs, err := src.Fetch(context.Background(), Query{
		Dataset: companies(t),
		Coarse:  CoarseFilter{Ranges: map[string]NumRange{"printer_count": {Max: ptr(100)}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"EOS"}, field(rs.Records, "name"))

	_, err = NewJSONFiles(dir, "$[", zaptest.NewLogger(t))
	assert.Error(t, err)
}
