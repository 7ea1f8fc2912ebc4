package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"amdash/internal/config"
	"amdash/internal/metrics"
	"amdash/internal/models"

	"go.uber.org/zap"
)

// Open builds the Source selected by cfg, wrapped with Instrument.
func Open(cfg config.SourceConfig, log *zap.Logger) (*Instrumented, error) {
	var (
		src Source
		err error
	)
	switch cfg.Kind {
	case config.SourceCSV:
		src = NewCSVFiles(cfg.DataDir, log)
	case config.SourceJSON:
		src, err = NewJSONFiles(cfg.DataDir, cfg.JSONPath, log)
	case config.SourceSQLite:
		src, err = OpenSQLite(cfg.SQLite, log)
	case config.SourcePostgREST:
		src, err = NewPostgREST(cfg.URL, cfg.APIKey, &http.Client{Timeout: cfg.Timeout}, log)
	default:
		err = fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(src, cfg.Timeout, log), nil
}

// Instrumented records metrics for each fetch and bounds it by a timeout.
type Instrumented struct {
	src     Source
	timeout time.Duration
	log     *zap.Logger
}

func Instrument(src Source, timeout time.Duration, log *zap.Logger) *Instrumented {
	return &Instrumented{src: src, timeout: timeout, log: log}
}

func (s *Instrumented) Backend() string { return s.src.Backend() }

// Unwrap returns the wrapped Source.
func (s *Instrumented) Unwrap() Source { return s.src }

func (s *Instrumented) Fetch(ctx context.Context, q Query) (*models.RecordSet, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	rs, err := s.src.Fetch(ctx, q)
	took := time.Since(start)

	outcome := metrics.OutcomeOK
	switch {
	case err != nil:
		outcome = metrics.OutcomeError
		var fe *FetchError
		if errors.As(err, &fe) && fe.Canceled() {
			s.log.Debug("fetch cancelled", zap.String("dataset", q.Dataset.Name))
		} else {
			s.log.Warn("fetch failed",
				zap.String("dataset", q.Dataset.Name),
				zap.String("backend", s.Backend()),
				zap.Duration("took", took),
				zap.Error(err))
		}
	case rs.Len() == 0:
		outcome = metrics.OutcomeEmpty
	}
	metrics.ObserveFetch(q.Dataset.Name, s.Backend(), outcome, took)
	if err == nil {
		s.log.Debug("fetch done",
			zap.String("dataset", q.Dataset.Name),
			zap.String("coarse", q.Coarse.Key()),
			zap.Int("rows", rs.Len()),
			zap.Duration("took", took))
	}
	return rs, err
}

// Close releases the wrapped source when it holds resources.
func (s *Instrumented) Close() error {
	if c, ok := s.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
