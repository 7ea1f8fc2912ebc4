package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"amdash/internal/catalog"
	"amdash/internal/metrics"
	"amdash/internal/models"
	"amdash/internal/source"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// snapshot is the full record set of one dataset. It is replaced wholesale,
// never modified.
type snapshot struct {
	records  []models.Record
	loadedAt time.Time
	loaded   bool
	seq      uint64
	err      error
}

// Dataset status values. A stale dataset still serves its last good
// snapshot but its latest refresh failed.
const (
	StatusLoading = "loading"
	StatusReady   = "ready"
	StatusStale   = "stale"
	StatusFailed  = "failed"
)

// Headers set on every response served from a stale snapshot.
const (
	HeaderStale       = "X-Data-Stale"
	HeaderStaleReason = "X-Data-Stale-Reason"
)

func (s *snapshot) status() string {
	switch {
	case s.loaded && s.err != nil:
		return StatusStale
	case s.loaded:
		return StatusReady
	case s.err != nil:
		return StatusFailed
	}
	return StatusLoading
}

// failureMessage is the text shown next to the retry control.
func failureMessage(err error) string {
	var fe *source.FetchError
	if errors.As(err, &fe) {
		return fe.Message()
	}
	return err.Error()
}

func (h *Handler) onResult(r source.Result) {
	name := r.Query.Dataset.Name
	h.mu.Lock()
	defer h.mu.Unlock()
	snap := h.snaps[name]
	if snap == nil || r.Seq <= snap.seq {
		return
	}
	snap.seq = r.Seq
	if r.Err != nil {
		snap.err = r.Err
		return
	}
	h.install(snap, name, r.Records)
}

func (h *Handler) install(snap *snapshot, name string, rs *models.RecordSet) {
	snap.records = []models.Record{}
	snap.loadedAt = time.Now()
	if rs != nil {
		if rs.Records != nil {
			snap.records = rs.Records
		}
		if !rs.FetchedAt.IsZero() {
			snap.loadedAt = rs.FetchedAt
		}
	}
	snap.loaded = true
	snap.err = nil
	metrics.SnapshotSize(name, len(snap.records))
	h.log.Info("snapshot loaded", zap.String("dataset", name), zap.Int("records", len(snap.records)))
}

// SetData installs rs as the snapshot of its dataset directly.
func (h *Handler) SetData(rs *models.RecordSet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if snap := h.snaps[rs.Dataset]; snap != nil {
		h.install(snap, rs.Dataset, rs)
	}
}

// Preload fetches every dataset concurrently and blocks until all have
// answered. Each result is installed as it arrives; the first failure is
// returned after the rest finish.
func (h *Handler) Preload(ctx context.Context) error {
	var g errgroup.Group
	for _, ds := range catalog.All() {
		ctl := h.ctls[ds.Name]
		g.Go(func() error {
			r, _ := ctl.Do(ctx, source.Query{Dataset: ds})
			return r.Err
		})
	}
	return g.Wait()
}

// Refresh starts a background refetch of one dataset and returns its
// sequence number; 0 means the handler is closed.
func (h *Handler) Refresh(name string) uint64 {
	ds, ok := catalog.Lookup(name)
	if !ok {
		return 0
	}
	return h.ctls[name].Request(source.Query{Dataset: ds})
}

func (h *Handler) RefreshAll() {
	for _, name := range catalog.Names() {
		h.Refresh(name)
	}
}

// Close cancels in-flight fetches.
func (h *Handler) Close() {
	for _, ctl := range h.ctls {
		ctl.Close()
	}
}

// records returns the snapshot of ds, or the error to answer with while it
// is unavailable. stale is the failure of the latest refresh when the rows
// are the last good snapshot.
func (h *Handler) records(ds catalog.Dataset) (rows []models.Record, stale, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snap := h.snaps[ds.Name]
	switch {
	case snap.loaded:
		return snap.records, snap.err, nil
	case snap.err != nil:
		var fe *source.FetchError
		if errors.As(snap.err, &fe) {
			return nil, nil, fe
		}
		return nil, nil, echo.NewHTTPError(http.StatusBadGateway, snap.err.Error())
	}
	return nil, nil, echo.NewHTTPError(http.StatusServiceUnavailable, ds.Title+" is still loading")
}

// markStale flags a response built from a snapshot whose refresh failed.
func markStale(c echo.Context, stale error) {
	if stale == nil {
		return
	}
	hdr := c.Response().Header()
	hdr.Set(HeaderStale, "true")
	hdr.Set(HeaderStaleReason, failureMessage(stale))
}

func (h *Handler) info(ds catalog.Dataset) models.DatasetInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	snap := h.snaps[ds.Name]
	info := models.DatasetInfo{
		Name:       ds.Name,
		Title:      ds.Title,
		Status:     snap.status(),
		Records:    len(snap.records),
		LoadedAt:   snap.loadedAt,
		Dimensions: ds.Dimensions,
	}
	if snap.err != nil {
		info.Error = failureMessage(snap.err)
	}
	return info
}
