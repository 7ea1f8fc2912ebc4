// Package catalog declares the datasets the dashboard serves.
package catalog

import (
	"slices"

	"amdash/internal/engine"
)

// MaxRows bounds every fetch.
const MaxRows = 10000

type Dataset struct {
	Name   string
	Title  string
	Table  string
	Schema *engine.Schema

	// Dimensions are offered as filter options alongside every listing.
	Dimensions  []string
	DefaultSort engine.SortState
	// RegionField feeds the map explorer; empty disables it.
	RegionField string
}

// CoarseFields are the fields that may be pushed down to the data source.
func (d Dataset) CoarseFields() []engine.Field {
	var out []engine.Field
	for _, f := range d.Schema.Fields() {
		if f.Coarse {
			out = append(out, f)
		}
	}
	return out
}

func (d Dataset) IsCoarse(key string) bool {
	f, ok := d.Schema.Field(key)
	return ok && f.Coarse
}

var country = engine.Field{Key: "country", Label: "Country", Kind: engine.Text, Coarse: true, Normalize: engine.NormalizeCountry}

func countType() engine.Field {
	return engine.Field{Key: "count_type", Label: "Count Type", Kind: engine.Text, Normalize: engine.NormalizeCountTypeText}
}

var datasets = []Dataset{
	{
		Name:  "companies",
		Title: "3D Printer Manufacturers",
		Table: "companies",
		Schema: engine.MustSchema("companies",
			engine.Field{Key: "id", Label: "ID", Kind: engine.Text},
			engine.Field{Key: "name", Label: "Company", Kind: engine.Text, Searchable: true},
			country,
			engine.Field{Key: "region", Label: "Region", Kind: engine.Text, Coarse: true},
			engine.Field{Key: "segment", Label: "Segment", Kind: engine.Text, Coarse: true},
			engine.Field{Key: "company_type", Label: "Company Type", Kind: engine.Text, Coarse: true},
			engine.Field{Key: "technologies", Label: "Technologies", Kind: engine.Tags, Searchable: true},
			engine.Field{Key: "materials", Label: "Materials", Kind: engine.Tags, Searchable: true},
			engine.Field{Key: "printer_count", Label: "Printers", Kind: engine.Numeric, Coarse: true},
			countType(),
			engine.Field{Key: "founded_year", Label: "Founded", Kind: engine.Numeric},
			engine.Field{Key: "website", Label: "Website", Kind: engine.Text},
			engine.Field{Key: "latitude", Label: "Latitude", Kind: engine.Numeric},
			engine.Field{Key: "longitude", Label: "Longitude", Kind: engine.Numeric},
		),
		Dimensions:  []string{"country", "segment", "company_type", "technologies", "materials"},
		DefaultSort: engine.SortBy("name", engine.Asc),
		RegionField: "country",
	},
	{
		Name:  "service-providers",
		Title: "Print Service Providers",
		Table: "service_providers",
		Schema: engine.MustSchema("service-providers",
			engine.Field{Key: "id", Label: "ID", Kind: engine.Text},
			engine.Field{Key: "company_name", Label: "Company", Kind: engine.Text, Searchable: true},
			country,
			engine.Field{Key: "city", Label: "City", Kind: engine.Text, Searchable: true},
			engine.Field{Key: "technologies", Label: "Technologies", Kind: engine.Tags, Searchable: true},
			engine.Field{Key: "materials", Label: "Materials", Kind: engine.Tags, Searchable: true},
			engine.Field{Key: "printer_count", Label: "Printers", Kind: engine.Numeric, Coarse: true},
			countType(),
			engine.Field{Key: "latitude", Label: "Latitude", Kind: engine.Numeric},
			engine.Field{Key: "longitude", Label: "Longitude", Kind: engine.Numeric},
		),
		Dimensions: []string{"country", "technologies", "materials"},
		DefaultSort: engine.SortBy("printer_count", engine.Desc,
			engine.SortKey{Field: "company_name", Dir: engine.Asc}),
		RegionField: "country",
	},
	{
		Name:  "market-revenue",
		Title: "Market Revenue",
		Table: "market_revenue",
		Schema: engine.MustSchema("market-revenue",
			engine.Field{Key: "id", Label: "ID", Kind: engine.Text},
			engine.Field{Key: "year", Label: "Year", Kind: engine.Numeric, Coarse: true},
			engine.Field{Key: "segment", Label: "Segment", Kind: engine.Text, Coarse: true, Searchable: true},
			engine.Field{Key: "region", Label: "Region", Kind: engine.Text, Coarse: true, Searchable: true},
			engine.Field{Key: "revenue_usd_m", Label: "Revenue (USD M)", Kind: engine.Numeric},
			engine.Field{Key: "growth_pct", Label: "Growth (%)", Kind: engine.Numeric},
		),
		Dimensions: []string{"year", "segment", "region"},
		DefaultSort: engine.SortBy("year", engine.Desc,
			engine.SortKey{Field: "revenue_usd_m", Dir: engine.Desc}),
	},
	{
		Name:  "deals",
		Title: "Mergers & Acquisitions",
		Table: "deals",
		Schema: engine.MustSchema("deals",
			engine.Field{Key: "id", Label: "ID", Kind: engine.Text},
			engine.Field{Key: "deal_date", Label: "Date", Kind: engine.Text},
			engine.Field{Key: "year", Label: "Year", Kind: engine.Numeric, Coarse: true},
			engine.Field{Key: "acquirer", Label: "Acquirer", Kind: engine.Text, Searchable: true},
			engine.Field{Key: "target", Label: "Target", Kind: engine.Text, Searchable: true},
			country,
			engine.Field{Key: "deal_type", Label: "Deal Type", Kind: engine.Text, Coarse: true},
			engine.Field{Key: "value_usd_m", Label: "Value (USD M)", Kind: engine.Numeric},
		),
		Dimensions:  []string{"year", "country", "deal_type"},
		DefaultSort: engine.SortBy("deal_date", engine.Desc),
		RegionField: "country",
	},
	{
		Name:  "funding",
		Title: "Funding Rounds",
		Table: "funding",
		Schema: engine.MustSchema("funding",
			engine.Field{Key: "id", Label: "ID", Kind: engine.Text},
			engine.Field{Key: "company", Label: "Company", Kind: engine.Text, Searchable: true},
			country,
			engine.Field{Key: "round", Label: "Round", Kind: engine.Text, Coarse: true},
			engine.Field{Key: "year", Label: "Year", Kind: engine.Numeric, Coarse: true},
			engine.Field{Key: "amount_usd_m", Label: "Amount (USD M)", Kind: engine.Numeric},
			engine.Field{Key: "investors", Label: "Investors", Kind: engine.Tags, Searchable: true},
		),
		Dimensions:  []string{"country", "round", "year"},
		DefaultSort: engine.SortBy("amount_usd_m", engine.Desc),
		RegionField: "country",
	},
	{
		Name:  "pricing",
		Title: "Part Pricing",
		Table: "pricing",
		Schema: engine.MustSchema("pricing",
			engine.Field{Key: "id", Label: "ID", Kind: engine.Text},
			engine.Field{Key: "provider", Label: "Provider", Kind: engine.Text, Searchable: true},
			country,
			engine.Field{Key: "process", Label: "Process", Kind: engine.Text, Coarse: true, Searchable: true},
			engine.Field{Key: "material", Label: "Material", Kind: engine.Text, Coarse: true, Searchable: true},
			engine.Field{Key: "part_volume_cm3", Label: "Part Volume (cm3)", Kind: engine.Numeric},
			engine.Field{Key: "quantity", Label: "Quantity", Kind: engine.Numeric},
			engine.Field{Key: "price_usd", Label: "Price (USD)", Kind: engine.Numeric},
			engine.Field{Key: "lead_time_days", Label: "Lead Time (days)", Kind: engine.Numeric},
		),
		Dimensions:  []string{"country", "process", "material"},
		DefaultSort: engine.SortBy("price_usd", engine.Asc),
		RegionField: "country",
	},
}

func All() []Dataset { return slices.Clone(datasets) }

func Lookup(name string) (Dataset, bool) {
	for _, d := range datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

func Names() []string {
	out := make([]string, len(datasets))
	for i, d := range datasets {
		out[i] = d.Name
	}
	return out
}
