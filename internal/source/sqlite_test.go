package source

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openSeeded(t *testing.T) *SQLite {
	t.Helper()
	log := zaptest.NewLogger(t)
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "amdash.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ds := companies(t)
	records, err := DecodeCSV(strings.NewReader(companiesCSV), ds.Schema)
	require.NoError(t, err)
	require.NoError(t, db.Import(context.Background(), ds, records))
	return db
}

func TestSQLite_Fetch(t *testing.T) {
	db := openSeeded(t)
	ds := companies(t)

	rs, err := db.Fetch(context.Background(), Query{Dataset: ds})
	require.NoError(t, err)
	assert.Equal(t, []string{"Desktop Metal", "EOS", "Formlabs", "Nikon SLM", "Stratasys"}, field(rs.Records, "name"))
	assert.Equal(t, []string{"FDM", "PolyJet"}, rs.Records[4].Get("technologies").Items())
	assert.True(t, rs.Records[0].Get("printer_count").IsNull())

	rs, err = db.Fetch(context.Background(), Query{
		Dataset: ds,
		Coarse:  CoarseFilter{In: map[string][]string{"country": {"UNITED STATES"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Desktop Metal", "Formlabs", "Stratasys"}, field(rs.Records, "name"))

	// Imported rows hold the normalised country, so aliases match too.
	rs, err = db.Fetch(context.Background(), Query{
		Dataset: ds,
		Coarse:  CoarseFilter{In: map[string][]string{"country": {"usa"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Desktop Metal", "Formlabs", "Stratasys"}, field(rs.Records, "name"))

	rs, err = db.Fetch(context.Background(), Query{
		Dataset: ds,
		Coarse: CoarseFilter{
			In:     map[string][]string{"segment": {"metal"}},
			Ranges: map[string]NumRange{"printer_count": {Min: ptr(45), Max: ptr(60)}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Nikon SLM"}, field(rs.Records, "name"))

	rs, err = db.Fetch(context.Background(), Query{Dataset: ds, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Desktop Metal"}, field(rs.Records, "name"))
}

func TestSQLite_FetchMissingTable(t *testing.T) {
	db := openSeeded(t)
	ds := companies(t)
	ds.Table = "nope"

	_, err := db.Fetch(context.Background(), Query{Dataset: ds})
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "sqlite", fe.Backend)
}

func TestBuildSelect(t *testing.T) {
	q := Query{
		Dataset: companies(t),
		Coarse: CoarseFilter{
			In:     map[string][]string{"segment": {"Metal", " Polymer "}, "printer_count": {"40"}},
			Ranges: map[string]NumRange{"printer_count": {Min: ptr(10), Max: ptr(500)}},
		},
		Limit: 50,
	}
	sql, args, err := buildSelect(q)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "companies" WHERE "printer_count" IN (?) AND "segment" COLLATE NOCASE IN (?, ?)`+
		` AND "printer_count" >= ? AND "printer_count" <= ?`+
		` ORDER BY "name" COLLATE NOCASE ASC NULLS LAST LIMIT 50`, sql)
	assert.Equal(t, []any{40.0, "Metal", "Polymer", 10.0, 500.0}, args)

	q.Coarse = CoarseFilter{In: map[string][]string{"printer_count": {"many"}}}
	_, _, err = buildSelect(q)
	assert.Error(t, err)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
