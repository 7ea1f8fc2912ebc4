package engine

import (
	"slices"
	"strings"

	"amdash/internal/models"
)

// AvailableOptions lists the distinct non-blank values of dimension in
// records, case-insensitively ordered. Tag fields contribute every element.
func AvailableOptions(schema *Schema, records []models.Record, dimension string) ([]string, error) {
	acc, err := schema.Accessor(dimension)
	if err != nil {
		return nil, err
	}
	return distinct(acc, records), nil
}

func distinct(acc Accessor, records []models.Record) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range records {
		acc.Get(r).Any(func(s string) bool {
			s = strings.TrimSpace(s)
			if s == "" {
				return false
			}
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				out = append(out, s)
			}
			return false
		})
	}
	slices.SortFunc(out, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return out
}

// Facets computes the options of every dimension over the records that pass
// all filters except the dimension's own, so narrowing one dimension never
// hides its siblings.
func Facets(schema *Schema, records []models.Record, filters FilterState, dimensions []string) (map[string][]string, error) {
	out := make(map[string][]string, len(dimensions))
	for _, dim := range dimensions {
		acc, err := schema.Accessor(dim)
		if err != nil {
			return nil, err
		}
		preds, err := CompileFilters(schema, filters.Without(dim))
		if err != nil {
			return nil, err
		}
		out[dim] = distinct(acc, Select(records, preds...))
	}
	return out, nil
}
