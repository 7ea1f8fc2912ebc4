package engine

import "slices"

const (
	DefaultClasses = 5
	maxClasses     = 9
)

type Region struct {
	Key        string
	Count      int
	Percentage float64
	Class      int
}

// Choropleth assigns every region to one of Classes shading classes.
// Breaks[i] is the inclusive upper count of class i.
type Choropleth struct {
	Classes int
	Breaks  []float64
	Regions []Region
}

// Classify buckets regions into quantile classes by count. The Unknown
// bucket has no geometry and is left out.
func Classify(bs Buckets, classes int) Choropleth {
	if classes <= 0 {
		classes = DefaultClasses
	}
	classes = min(classes, maxClasses)

	regions := make([]Region, 0, len(bs))
	counts := make([]int, 0, len(bs))
	for _, b := range bs {
		if b.Key == UnknownKey {
			continue
		}
		regions = append(regions, Region{Key: b.Key, Count: b.Count, Percentage: b.Percentage})
		counts = append(counts, b.Count)
	}
	c := Choropleth{Classes: classes, Breaks: []float64{}, Regions: regions}
	if len(counts) == 0 {
		return c
	}
	slices.Sort(counts)
	n := len(counts)
	for i := 1; i < classes; i++ {
		idx := (n*i+classes-1)/classes - 1
		idx = min(max(idx, 0), n-1)
		c.Breaks = append(c.Breaks, float64(counts[idx]))
	}
	c.Breaks = append(c.Breaks, float64(counts[n-1]))
	for i := range c.Regions {
		c.Regions[i].Class = classOf(float64(c.Regions[i].Count), c.Breaks)
	}
	return c
}

func classOf(v float64, breaks []float64) int {
	for i, b := range breaks {
		if v <= b {
			return i
		}
	}
	return len(breaks) - 1
}
