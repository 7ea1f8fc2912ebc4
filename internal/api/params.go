package api

import (
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"amdash/internal/catalog"
	"amdash/internal/engine"
	"amdash/internal/source"

	"github.com/labstack/echo/v4"
)

const maxPageSize = 500

// reserved query parameters are never read as field filters.
var reserved = map[string]bool{
	engine.SearchKey: true,
	"sort":           true,
	"dir":            true,
	"then":           true,
	"page":           true,
	"page_size":      true,
	"limit":          true,
	"offset":         true,
	"by":             true,
	"value":          true,
	"top":            true,
	"field":          true,
	"classes":        true,
	"format":         true,
	"_":              true,
}

func badRequest(format string, args ...any) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// splitValues flattens repeated and comma-joined values, dropping blanks
// and the "all" sentinel.
func splitValues(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, v := range strings.Split(r, ",") {
			v = strings.TrimSpace(v)
			if v == "" || strings.EqualFold(v, "all") {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}

// ParseFilters splits the query into the part a data source can apply and
// the part evaluated in memory. Membership and ranges on coarse fields go
// to the first, everything else to the second.
func ParseFilters(ds catalog.Dataset, q url.Values) (source.CoarseFilter, engine.FilterState, error) {
	coarse := source.CoarseFilter{In: map[string][]string{}, Ranges: map[string]source.NumRange{}}
	var fine engine.FilterState
	ranges := map[string]source.NumRange{}

	for _, key := range slices.Sorted(maps.Keys(q)) {
		if reserved[key] {
			continue
		}
		if name, bound, ok := rangeParam(key); ok {
			f, known := ds.Schema.Field(name)
			if !known {
				return coarse, fine, badRequest("unknown field %q", name)
			}
			if f.Kind != engine.Numeric {
				return coarse, fine, badRequest("%s is not numeric", name)
			}
			raw := strings.TrimSpace(q.Get(key))
			if raw == "" {
				continue
			}
			n, parsed := engine.ParseNumber(raw)
			if !parsed {
				return coarse, fine, badRequest("%s: %q is not a number", key, raw)
			}
			r := ranges[name]
			if bound == "min" {
				r.Min = &n
			} else {
				r.Max = &n
			}
			ranges[name] = r
			continue
		}

		f, known := ds.Schema.Field(key)
		if !known {
			return coarse, fine, badRequest("unknown field %q", key)
		}
		vals := splitValues(q[key])
		switch {
		case len(vals) == 0:
		case f.Coarse:
			coarse.In[key] = vals
		case len(vals) == 1:
			fine = fine.With(engine.Equals(key, vals[0]))
		default:
			fine = fine.With(engine.OneOf(key, vals...))
		}
	}

	for _, name := range slices.Sorted(maps.Keys(ranges)) {
		r := ranges[name]
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return coarse, fine, badRequest("min_%s is greater than max_%s", name, name)
		}
		if ds.IsCoarse(name) {
			coarse.Ranges[name] = r
		} else {
			fine = fine.With(engine.Between(name, r.Min, r.Max))
		}
	}
	if s := strings.TrimSpace(q.Get(engine.SearchKey)); s != "" {
		fine = fine.With(engine.SearchText(s))
	}
	if err := coarse.Validate(ds); err != nil {
		return coarse, fine, badRequest("%v", err)
	}
	return coarse, fine, nil
}

func rangeParam(key string) (field, bound string, ok bool) {
	for _, b := range []string{"min", "max"} {
		if name, found := strings.CutPrefix(key, b+"_"); found && name != "" {
			return name, b, true
		}
	}
	return "", "", false
}

// combine expresses the coarse part as engine filters and merges it with
// the fine part, for evaluation over a full snapshot.
func combine(coarse source.CoarseFilter, fine engine.FilterState) engine.FilterState {
	out := fine
	for _, f := range coarse.AsFilters().Filters() {
		out = out.With(f)
	}
	return out
}

// ParseSort reads sort, dir and then ("field:dir,field:dir"). Without a
// sort parameter the dataset's default order is used.
func ParseSort(ds catalog.Dataset, q url.Values) (engine.SortState, error) {
	field := strings.TrimSpace(q.Get("sort"))
	then := strings.TrimSpace(q.Get("then"))
	if field == "" && then == "" && q.Get("dir") == "" {
		return ds.DefaultSort, nil
	}
	if field == "" {
		field = ds.DefaultSort.Key.Field
	}
	dir, err := engine.ParseDirection(q.Get("dir"))
	if err != nil {
		return engine.SortState{}, badRequest("%v", err)
	}
	if _, ok := ds.Schema.Field(field); !ok {
		return engine.SortState{}, badRequest("unknown sort field %q", field)
	}
	var keys []engine.SortKey
	for _, part := range splitValues([]string{then}) {
		name, d, _ := strings.Cut(part, ":")
		if _, ok := ds.Schema.Field(name); !ok {
			return engine.SortState{}, badRequest("unknown sort field %q", name)
		}
		kd, err := engine.ParseDirection(d)
		if err != nil {
			return engine.SortState{}, badRequest("%v", err)
		}
		keys = append(keys, engine.SortKey{Field: name, Dir: kd})
	}
	return engine.SortBy(field, dir, keys...), nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s: %q is not an integer", key, raw)
	}
	return n, nil
}

// parsePage reads page/page_size, falling back to limit/offset.
func parsePage(q url.Values) (page, size int, err error) {
	if size, err = intParam(q, "page_size", 0); err != nil {
		return 0, 0, err
	}
	if page, err = intParam(q, "page", 0); err != nil {
		return 0, 0, err
	}
	if page == 0 && size == 0 && (q.Has("limit") || q.Has("offset")) {
		limit, err := intParam(q, "limit", engine.DefaultPageSize)
		if err != nil {
			return 0, 0, err
		}
		offset, err := intParam(q, "offset", 0)
		if err != nil {
			return 0, 0, err
		}
		size = max(limit, 1)
		page = max(offset, 0)/size + 1
	}
	if size <= 0 {
		size = engine.DefaultPageSize
	}
	return max(page, 1), min(size, maxPageSize), nil
}
