package engine

import "strings"

var countryAliases = map[string]string{
	"us":                         "United States",
	"u.s.":                       "United States",
	"usa":                        "United States",
	"u.s.a.":                     "United States",
	"united states":              "United States",
	"united states of america":   "United States",
	"uk":                         "United Kingdom",
	"u.k.":                       "United Kingdom",
	"great britain":              "United Kingdom",
	"england":                    "United Kingdom",
	"prc":                        "China",
	"people's republic of china": "China",
	"south korea":                "South Korea",
	"korea, republic of":         "South Korea",
	"republic of korea":          "South Korea",
	"the netherlands":            "Netherlands",
	"holland":                    "Netherlands",
	"czech republic":             "Czechia",
	"uae":                        "United Arab Emirates",
	"russian federation":         "Russia",
}

// NormalizeCountry maps common spellings onto the names used by the map
// layer's GeoJSON. Unknown names are only trimmed.
func NormalizeCountry(s string) string {
	s = strings.TrimSpace(s)
	if canon, ok := countryAliases[strings.ToLower(s)]; ok {
		return canon
	}
	return s
}
