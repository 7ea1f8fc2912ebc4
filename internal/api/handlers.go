package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"amdash/internal/catalog"
	"amdash/internal/engine"
	"amdash/internal/export"
	"amdash/internal/models"
	"amdash/internal/source"
	"amdash/internal/view"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Handler serves every catalog dataset from an in-memory snapshot. Until a
// dataset's first fetch completes its endpoints answer 503.
type Handler struct {
	log  *zap.Logger
	ctls map[string]*source.Controller

	mu    sync.RWMutex
	snaps map[string]*snapshot
}

func NewHandler(src source.Source, log *zap.Logger) *Handler {
	h := &Handler{
		log:   log,
		ctls:  make(map[string]*source.Controller),
		snaps: make(map[string]*snapshot),
	}
	for _, ds := range catalog.All() {
		h.snaps[ds.Name] = &snapshot{}
		h.ctls[ds.Name] = source.NewController(src, h.onResult)
	}
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	api := e.Group("/api")
	api.GET("/datasets", h.GetDatasets)
	api.GET("/:dataset", h.GetRecords)
	api.GET("/:dataset/aggregate", h.GetAggregate)
	api.GET("/:dataset/stats", h.GetStats)
	api.GET("/:dataset/map", h.GetMap)
	api.GET("/:dataset/export", h.GetExport)
	api.POST("/:dataset/refresh", h.PostRefresh)
}

// --- HANDLERS ---
func lookupDataset(c echo.Context) (catalog.Dataset, error) {
	name := c.Param("dataset")
	ds, ok := catalog.Lookup(name)
	if !ok {
		return ds, echo.NewHTTPError(http.StatusNotFound, "unknown dataset "+name)
	}
	return ds, nil
}

// filtered returns the snapshot rows of the requested dataset that pass
// the query's filters, in the query's order.
func (h *Handler) filtered(c echo.Context) (catalog.Dataset, []models.Record, error) {
	ds, err := lookupDataset(c)
	if err != nil {
		return ds, nil, err
	}
	q := c.QueryParams()
	coarse, fine, err := ParseFilters(ds, q)
	if err != nil {
		return ds, nil, err
	}
	sort, err := ParseSort(ds, q)
	if err != nil {
		return ds, nil, err
	}
	records, stale, err := h.records(ds)
	if err != nil {
		return ds, nil, err
	}
	markStale(c, stale)
	rows, err := engine.Apply(ds.Schema, records, combine(coarse, fine), sort)
	if err != nil {
		return ds, nil, badRequest("%v", err)
	}
	return ds, rows, nil
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (h *Handler) GetDatasets(c echo.Context) error {
	all := catalog.All()
	out := make([]models.DatasetInfo, len(all))
	for i, ds := range all {
		out[i] = h.info(ds)
	}
	return c.JSON(http.StatusOK, out)
}

// GetRecords returns one page of the filtered, sorted dataset together with
// the filter options still available.
func (h *Handler) GetRecords(c echo.Context) error {
	ds, err := lookupDataset(c)
	if err != nil {
		return err
	}
	q := c.QueryParams()
	coarse, fine, err := ParseFilters(ds, q)
	if err != nil {
		return err
	}
	sort, err := ParseSort(ds, q)
	if err != nil {
		return err
	}
	page, size, err := parsePage(q)
	if err != nil {
		return err
	}
	records, stale, err := h.records(ds)
	if err != nil {
		return err
	}
	markStale(c, stale)

	filters := combine(coarse, fine)
	v, err := view.Derive(view.State{
		Dataset:  ds,
		Filters:  filters,
		Sort:     sort,
		Page:     page,
		PageSize: size,
		Status:   view.Ready,
		Records:  records,
	})
	if err != nil {
		return badRequest("%v", err)
	}
	available, err := engine.Facets(ds.Schema, records, filters, ds.Dimensions)
	if err != nil {
		return err
	}

	w := v.Window
	resp := models.ListResponse{
		Data:   v.Page,
		Total:  w.Total,
		Source: v.SourceTotal,
		Status: string(v.Show),
		Page: models.PageInfo{
			Page:       w.PageIndex,
			PageSize:   w.PageSize,
			Total:      w.Total,
			TotalPages: w.TotalPages,
			Start:      w.Start,
			End:        w.End,
		},
		Filters: models.FilterOptions{Available: available},
	}
	if stale != nil {
		resp.Stale = true
		resp.Error = failureMessage(stale)
		resp.Retryable = true
	}
	return c.JSON(http.StatusOK, resp)
}

// GetAggregate groups the filtered rows by one field, optionally summing a
// numeric field per group.
func (h *Handler) GetAggregate(c echo.Context) error {
	by := strings.TrimSpace(c.QueryParam("by"))
	if by == "" {
		return badRequest("by is required")
	}
	value := strings.TrimSpace(c.QueryParam("value"))
	top, err := intParam(c.QueryParams(), "top", 0)
	if err != nil {
		return err
	}
	ds, rows, err := h.filtered(c)
	if err != nil {
		return err
	}
	bs, err := engine.GroupBy(ds.Schema, rows, by, value)
	if err != nil {
		return badRequest("%v", err)
	}

	concentration := bs.Concentration()
	if value != "" {
		concentration = bs.ValueConcentration()
	}
	kept := bs.Top(top)
	out := make([]models.BucketRow, len(kept))
	for i, b := range kept {
		out[i] = models.BucketRow{Key: b.Key, Count: b.Count, Percentage: b.Percentage}
		if b.HasSum {
			sum := b.Sum
			out[i].Sum = &sum
		}
	}
	return c.JSON(http.StatusOK, models.AggregateResponse{
		Dataset:       ds.Name,
		By:            by,
		Value:         value,
		Total:         bs.Total(),
		Groups:        len(bs),
		Concentration: concentration,
		Buckets:       out,
	})
}

func (h *Handler) GetStats(c echo.Context) error {
	field := strings.TrimSpace(c.QueryParam("field"))
	if field == "" {
		return badRequest("field is required")
	}
	ds, rows, err := h.filtered(c)
	if err != nil {
		return err
	}
	s, err := engine.Summarize(ds.Schema, rows, field)
	if err != nil {
		return badRequest("%v", err)
	}
	resp := models.StatsResponse{Dataset: ds.Name, Field: field, Count: s.Count, Missing: s.Missing, Sum: s.Sum}
	if s.Count > 0 {
		resp.Min, resp.Max, resp.Mean, resp.Median = &s.Min, &s.Max, &s.Mean, &s.Median
	}
	return c.JSON(http.StatusOK, resp)
}

// GetMap shades regions by record count for the choropleth layer.
func (h *Handler) GetMap(c echo.Context) error {
	classes, err := intParam(c.QueryParams(), "classes", engine.DefaultClasses)
	if err != nil {
		return err
	}
	ds, rows, err := h.filtered(c)
	if err != nil {
		return err
	}
	by := strings.TrimSpace(c.QueryParam("by"))
	if by == "" {
		by = ds.RegionField
	}
	if by == "" {
		return badRequest("%s has no region field", ds.Name)
	}
	bs, err := engine.GroupBy(ds.Schema, rows, by, "")
	if err != nil {
		return badRequest("%v", err)
	}

	ch := engine.Classify(bs, classes)
	regions := make([]models.MapRegion, len(ch.Regions))
	for i, r := range ch.Regions {
		regions[i] = models.MapRegion{Region: r.Key, Count: r.Count, Percentage: r.Percentage, Class: r.Class}
	}
	return c.JSON(http.StatusOK, models.MapResponse{
		Dataset: ds.Name,
		By:      by,
		Classes: ch.Classes,
		Breaks:  ch.Breaks,
		Regions: regions,
	})
}

// GetExport streams every filtered row, not just one page.
func (h *Handler) GetExport(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return badRequest("%v", err)
	}
	ds, rows, err := h.filtered(c)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, format.ContentType())
	res.Header().Set(echo.HeaderContentDisposition,
		`attachment; filename="`+export.Filename(ds.Name, format, time.Now())+`"`)
	res.WriteHeader(http.StatusOK)
	if err := export.Write(res, format, ds.Title, export.DefaultColumns(ds.Schema), rows); err != nil {
		h.log.Error("export failed", zap.String("dataset", ds.Name), zap.Error(err))
	}
	return nil
}

func (h *Handler) PostRefresh(c echo.Context) error {
	ds, err := lookupDataset(c)
	if err != nil {
		return err
	}
	seq := h.Refresh(ds.Name)
	if seq == 0 {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "shutting down")
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"dataset": ds.Name,
		"seq":     seq,
	})
}
