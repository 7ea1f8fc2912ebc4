package models

import "time"

// Record is one flat row of a dataset. A missing key reads as null.
// Records are never modified after they are fetched.
type Record map[string]Value

func (r Record) Get(key string) Value { return r[key] }

// RecordSet is everything one fetch returned for a coarse filter.
type RecordSet struct {
	Dataset   string
	Records   []Record
	FetchedAt time.Time
}

func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// --- API payloads ---

type DatasetInfo struct {
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Records    int       `json:"records"`
	LoadedAt   time.Time `json:"loaded_at,omitzero"`
	Error      string    `json:"error,omitempty"`
	Dimensions []string  `json:"dimensions"`
}

type PageInfo struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
	Start      int `json:"start"`
	End        int `json:"end"`
}

type FilterOptions struct {
	Available map[string][]string `json:"available"`
}

// ListResponse is the body of GET /api/:dataset. Stale is set when the
// rows come from the last good snapshot because the latest refresh failed;
// Error then carries that failure.
type ListResponse struct {
	Data      []Record      `json:"data"`
	Total     int           `json:"total"`
	Source    int           `json:"source_total"`
	Status    string        `json:"status"`
	Stale     bool          `json:"stale,omitempty"`
	Error     string        `json:"error,omitempty"`
	Retryable bool          `json:"retryable,omitempty"`
	Page      PageInfo      `json:"page"`
	Filters   FilterOptions `json:"filters"`
}

type BucketRow struct {
	Key        string   `json:"key"`
	Count      int      `json:"count"`
	Sum        *float64 `json:"sum,omitempty"`
	Percentage float64  `json:"percentage"`
}

type AggregateResponse struct {
	Dataset       string      `json:"dataset"`
	By            string      `json:"by"`
	Value         string      `json:"value,omitempty"`
	Total         int         `json:"total"`
	Groups        int         `json:"groups"`
	Concentration float64     `json:"concentration"`
	Buckets       []BucketRow `json:"buckets"`
}

type StatsResponse struct {
	Dataset string   `json:"dataset"`
	Field   string   `json:"field"`
	Count   int      `json:"count"`
	Missing int      `json:"missing"`
	Sum     float64  `json:"sum"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Mean    *float64 `json:"mean,omitempty"`
	Median  *float64 `json:"median,omitempty"`
}

type MapRegion struct {
	Region     string  `json:"region"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	Class      int     `json:"class"`
}

type MapResponse struct {
	Dataset string      `json:"dataset"`
	By      string      `json:"by"`
	Classes int         `json:"classes"`
	Breaks  []float64   `json:"breaks"`
	Regions []MapRegion `json:"regions"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}
