package engine

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"amdash/internal/models"

	"github.com/shopspring/decimal"
)

// UnknownKey is the bucket for records whose group field is missing or blank.
const UnknownKey = "Unknown"

// Bucket is one group of an aggregation. Percentage is rounded to one
// decimal; Share keeps the exact value.
type Bucket struct {
	Key        string
	Count      int
	Sum        float64
	HasSum     bool
	Percentage float64

	share float64
	first int
}

// Share is the unrounded percentage of the bucket.
func (b Bucket) Share() float64 { return b.share }

type Buckets []Bucket

// Grouping is a compiled group-by over one key field with an optional
// numeric value field to sum.
type Grouping struct {
	key   Accessor
	value *Accessor
}

func NewGrouping(schema *Schema, keyField, valueField string) (*Grouping, error) {
	key, err := schema.Accessor(keyField)
	if err != nil {
		return nil, err
	}
	g := &Grouping{key: key}
	if valueField != "" {
		v, err := schema.Accessor(valueField)
		if err != nil {
			return nil, err
		}
		if v.Field().Kind != Numeric {
			return nil, fmt.Errorf("value field %s is not numeric", valueField)
		}
		g.value = &v
	}
	return g, nil
}

// GroupBy is NewGrouping followed by Apply.
func GroupBy(schema *Schema, records []models.Record, keyField, valueField string) (Buckets, error) {
	g, err := NewGrouping(schema, keyField, valueField)
	if err != nil {
		return nil, err
	}
	return g.Apply(records), nil
}

// Apply groups records and orders the buckets by count (or sum, when a value
// field is set) descending, ties in first-seen order. Tag fields count each
// element once, so percentages are shares of all occurrences.
func (g *Grouping) Apply(records []models.Record) Buckets {
	type acc struct {
		count int
		sum   decimal.Decimal
		first int
	}
	index := make(map[string]int)
	var order []string
	var accs []*acc
	total := 0

	add := func(key string, val decimal.Decimal) {
		i, ok := index[key]
		if !ok {
			i = len(accs)
			index[key] = i
			order = append(order, key)
			accs = append(accs, &acc{first: i})
		}
		accs[i].count++
		accs[i].sum = accs[i].sum.Add(val)
		total++
	}

	for _, r := range records {
		val := decimal.Zero
		if g.value != nil {
			if n, ok := g.value.Get(r).Num(); ok {
				val = decimal.NewFromFloat(n)
			}
		}
		for _, k := range groupKeys(g.key, r) {
			add(k, val)
		}
	}

	out := make(Buckets, len(accs))
	for i, a := range accs {
		b := Bucket{Key: order[i], Count: a.count, first: a.first}
		if g.value != nil {
			b.Sum = a.sum.InexactFloat64()
			b.HasSum = true
		}
		if total > 0 {
			b.share = float64(a.count) * 100 / float64(total)
		}
		out[i] = b
	}
	roundShares(out)

	bySum := g.value != nil
	slices.SortStableFunc(out, func(a, b Bucket) int {
		if bySum && a.Sum != b.Sum {
			if a.Sum > b.Sum {
				return -1
			}
			return 1
		}
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return a.first - b.first
	})
	return out
}

func groupKeys(acc Accessor, r models.Record) []string {
	v := acc.Get(r)
	if v.Kind() == models.KindList {
		var keys []string
		for _, it := range v.Items() {
			if it = strings.TrimSpace(it); it != "" {
				keys = append(keys, it)
			}
		}
		if len(keys) == 0 {
			return []string{UnknownKey}
		}
		return keys
	}
	k := strings.TrimSpace(v.Text())
	if k == "" {
		return []string{UnknownKey}
	}
	return []string{k}
}

// roundShares rounds to tenths with the largest-remainder method so the
// rounded percentages add up to exactly 100.0.
func roundShares(bs Buckets) {
	if len(bs) == 0 {
		return
	}
	tenths := make([]int, len(bs))
	rest := make([]int, len(bs))
	assigned := 0
	for i, b := range bs {
		exact := b.share * 10
		tenths[i] = int(math.Floor(exact + 1e-9))
		assigned += tenths[i]
		rest[i] = i
	}
	remaining := 1000 - assigned
	slices.SortStableFunc(rest, func(a, b int) int {
		ra := bs[a].share*10 - float64(tenths[a])
		rb := bs[b].share*10 - float64(tenths[b])
		switch {
		case ra > rb:
			return -1
		case ra < rb:
			return 1
		}
		return 0
	})
	for i := 0; i < remaining && i < len(rest); i++ {
		tenths[rest[i]]++
	}
	for i := range bs {
		bs[i].Percentage = float64(tenths[i]) / 10
	}
}

// Top keeps the first n buckets. Percentages stay relative to the full
// grouping. n <= 0 keeps everything.
func (bs Buckets) Top(n int) Buckets {
	if n <= 0 || n >= len(bs) {
		return slices.Clone(bs)
	}
	return slices.Clone(bs[:n])
}

// Total is the number of counted occurrences.
func (bs Buckets) Total() int {
	n := 0
	for _, b := range bs {
		n += b.Count
	}
	return n
}

// Concentration is the HHI-style index: the sum of squared percentage shares
// (0 to 10000). Shares are taken from counts.
func (bs Buckets) Concentration() float64 {
	var hhi float64
	for _, b := range bs {
		hhi += b.share * b.share
	}
	return hhi
}

// ValueConcentration is Concentration computed over summed values instead
// of counts. It is 0 when the grouping had no value field.
func (bs Buckets) ValueConcentration() float64 {
	total := decimal.Zero
	for _, b := range bs {
		if !b.HasSum {
			return 0
		}
		total = total.Add(decimal.NewFromFloat(b.Sum))
	}
	if total.IsZero() {
		return 0
	}
	var hhi float64
	for _, b := range bs {
		share := decimal.NewFromFloat(b.Sum).Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
		hhi += share * share
	}
	return hhi
}
