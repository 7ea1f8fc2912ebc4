package source

import (
	"os"
	"path/filepath"
	"testing"

	"amdash/internal/catalog"
	"amdash/internal/models"

	"github.com/stretchr/testify/require"
)

const companiesCSV = "\ufeffID,Name,Country,Segment,Company Type,Technologies,Printer Count,Count Type\n" +
	"c1,Stratasys,USA,Polymer,Public,\"FDM; PolyJet\",250,exact\n" +
	"c2,EOS,Germany,Metal,Private,\"LPBF; SLS\",40,min\n" +
	"c3,Formlabs,united states,Polymer,Private,SLA,1000,estimate\n" +
	",,,,,,,\n" +
	"c4,Desktop Metal,US,Metal,Public,Binder Jetting,,\n" +
	"c5,Nikon SLM,Germany,Metal,Public,LPBF,50\n"

func companies(t *testing.T) catalog.Dataset {
	t.Helper()
	ds, ok := catalog.Lookup("companies")
	require.True(t, ok)
	return ds
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func field(records []models.Record, key string) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Get(key).Text()
	}
	return out
}

func ptr(f float64) *float64 { return &f }
