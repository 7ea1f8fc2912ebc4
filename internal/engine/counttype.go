package engine

import "strings"

// CountType says how reliable a reported machine count is.
type CountType string

const (
	CountExact     CountType = "Exact"
	CountMinimum   CountType = "Minimum"
	CountRange     CountType = "Range"
	CountEstimated CountType = "Estimated"
	CountUnknown   CountType = "Unknown"
)

// NormalizeCountType maps the spellings found in the source sheets onto one
// CountType. Blank or unrecognised input yields CountUnknown and ok=false;
// it is never guessed to be an estimate.
func NormalizeCountType(raw string) (CountType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "actual", "exact":
		return CountExact, true
	case "minimum", "min":
		return CountMinimum, true
	case "range":
		return CountRange, true
	case "estimated", "estimate", "est":
		return CountEstimated, true
	}
	return CountUnknown, false
}

// NormalizeCountTypeText is NormalizeCountType as a Field normaliser.
func NormalizeCountTypeText(raw string) string {
	ct, _ := NormalizeCountType(raw)
	return string(ct)
}
