package engine

import "amdash/internal/models"

var testSchema = MustSchema("companies",
	Field{Key: "name", Label: "Company", Kind: Text, Searchable: true},
	Field{Key: "country", Label: "Country", Kind: Text, Coarse: true},
	Field{Key: "segment", Label: "Segment", Kind: Text},
	Field{Key: "technologies", Label: "Technologies", Kind: Tags, Searchable: true},
	Field{Key: "printers", Label: "Printers", Kind: Numeric},
	Field{Key: "revenue", Label: "Revenue", Kind: Numeric},
)

// rec builds a record from key/value pairs through the test schema.
func rec(kv ...any) models.Record {
	raw := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		raw[kv[i].(string)] = kv[i+1]
	}
	return testSchema.Coerce(raw)
}

func names(records []models.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Get("name").Text()
	}
	return out
}

func ptr(f float64) *float64 { return &f }

func fixture() []models.Record {
	return []models.Record{
		rec("name", "Stratasys", "country", "US", "segment", "Polymer", "technologies", "FDM; PolyJet", "printers", 250.0, "revenue", 120.5),
		rec("name", "EOS", "country", "DE", "segment", "Metal", "technologies", "LPBF; SLS", "printers", 40.0),
		rec("name", "Formlabs", "country", "US", "segment", "Polymer", "technologies", "SLA", "printers", 1000.0, "revenue", 80.0),
		rec("name", "Desktop Metal", "country", "US", "segment", "Metal", "technologies", []any{"Binder Jetting"}),
		rec("name", "Nikon SLM", "country", "DE", "segment", "Metal", "technologies", "LPBF", "printers", 50.0, "revenue", 30.25),
		rec("name", "Prodways", "segment", "Polymer", "printers", "5"),
	}
}
