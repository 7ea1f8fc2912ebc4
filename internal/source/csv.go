package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"amdash/internal/config"
	"amdash/internal/engine"
	"amdash/internal/models"

	"go.uber.org/zap"
)

// CSVFiles serves every dataset from <dir>/<table>.csv. Files are re-read
// on each fetch so edits show up on the next refresh.
type CSVFiles struct {
	dir string
	log *zap.Logger
}

func NewCSVFiles(dir string, log *zap.Logger) *CSVFiles {
	return &CSVFiles{dir: dir, log: log}
}

func (s *CSVFiles) Backend() string { return config.SourceCSV }

func (s *CSVFiles) Fetch(ctx context.Context, q Query) (*models.RecordSet, error) {
	start := time.Now()
	path := filepath.Join(s.dir, q.Dataset.Table+".csv")

	records, err := ReadCSV(path, q.Dataset.Schema)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	out, err := filterInMemory(q, records)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}

	s.log.Debug("csv loaded",
		zap.String("path", path),
		zap.Int("rows", len(records)),
		zap.Int("matched", len(out)),
		zap.Duration("took", time.Since(start)))
	return &models.RecordSet{Dataset: q.Dataset.Name, Records: out, FetchedAt: time.Now()}, nil
}

func ReadCSV(path string, schema *engine.Schema) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeCSV(f, schema)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeCSV reads a header row followed by data rows. Header names are
// matched to schema keys case-insensitively with spaces read as
// underscores. Empty cells are null; short rows leave their tail null.
func DecodeCSV(r io.Reader, schema *engine.Schema) ([]models.Record, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	content = bytes.TrimPrefix(content, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(content))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []models.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = headerKey(h)
	}

	records := []models.Record{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if isBlankRow(row) {
			continue
		}
		raw := make(map[string]any, len(keys))
		for i, cell := range row {
			if i >= len(keys) {
				break
			}
			if strings.TrimSpace(cell) == "" {
				raw[keys[i]] = nil
				continue
			}
			raw[keys[i]] = cell
		}
		records = append(records, schema.Coerce(raw))
	}
	return records, nil
}

func headerKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.ReplaceAll(h, " ", "_")
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
