package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"amdash/internal/config"
	"amdash/internal/engine"
	"amdash/internal/models"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"go.uber.org/zap"
)

// DefaultRecordsPath selects every element of a top-level array.
const DefaultRecordsPath = "$[*]"

// JSONFiles serves every dataset from <dir>/<table>.json. The records are
// located inside each document with a JSONPath expression, so exports
// wrapped as {"data": [...]} work with "$.data[*]".
type JSONFiles struct {
	dir  string
	path jp.Expr
	log  *zap.Logger
}

func NewJSONFiles(dir, recordsPath string, log *zap.Logger) (*JSONFiles, error) {
	if recordsPath == "" {
		recordsPath = DefaultRecordsPath
	}
	expr, err := jp.ParseString(recordsPath)
	if err != nil {
		return nil, fmt.Errorf("json records path %q: %w", recordsPath, err)
	}
	return &JSONFiles{dir: dir, path: expr, log: log}, nil
}

func (s *JSONFiles) Backend() string { return config.SourceJSON }

func (s *JSONFiles) Fetch(ctx context.Context, q Query) (*models.RecordSet, error) {
	path := filepath.Join(s.dir, q.Dataset.Table+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	records, err := DecodeJSON(data, s.path, q.Dataset.Schema)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, fmt.Errorf("%s: %w", path, err))
	}
	if err := ctx.Err(); err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	out, err := filterInMemory(q, records)
	if err != nil {
		return nil, fetchErr(q, s.Backend(), 0, err)
	}
	s.log.Debug("json loaded", zap.String("path", path), zap.Int("rows", len(records)), zap.Int("matched", len(out)))
	return &models.RecordSet{Dataset: q.Dataset.Name, Records: out, FetchedAt: time.Now()}, nil
}

// DecodeJSON parses data and coerces every object matched by expr.
func DecodeJSON(data []byte, expr jp.Expr, schema *engine.Schema) ([]models.Record, error) {
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, err
	}
	return decodeRecords(expr.Get(doc), schema)
}

func decodeRecords(items []any, schema *engine.Schema) ([]models.Record, error) {
	records := make([]models.Record, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record %d is %T, not an object", i, it)
		}
		records = append(records, schema.Coerce(obj))
	}
	return records, nil
}
