package engine

import (
	"fmt"
	"slices"

	"amdash/internal/models"

	"github.com/shopspring/decimal"
)

// Summary describes one numeric field. Min, Max, Mean and Median are only
// meaningful when Count > 0.
type Summary struct {
	Count   int
	Missing int
	Sum     float64
	Min     float64
	Max     float64
	Mean    float64
	Median  float64
}

func Summarize(schema *Schema, records []models.Record, field string) (Summary, error) {
	acc, err := schema.Accessor(field)
	if err != nil {
		return Summary{}, err
	}
	if acc.Field().Kind != Numeric {
		return Summary{}, fmt.Errorf("field %s is not numeric", field)
	}
	var s Summary
	vals := make([]float64, 0, len(records))
	sum := decimal.Zero
	for _, r := range records {
		n, ok := acc.Get(r).Num()
		if !ok {
			s.Missing++
			continue
		}
		vals = append(vals, n)
		sum = sum.Add(decimal.NewFromFloat(n))
	}
	s.Count = len(vals)
	s.Sum = sum.InexactFloat64()
	if s.Count == 0 {
		return s, nil
	}
	slices.Sort(vals)
	s.Min, s.Max = vals[0], vals[len(vals)-1]
	s.Mean = sum.Div(decimal.NewFromInt(int64(s.Count))).InexactFloat64()
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		s.Median = vals[mid]
	} else {
		s.Median = (vals[mid-1] + vals[mid]) / 2
	}
	return s, nil
}
