// Package export writes filtered dataset rows as CSV or XLSX files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"amdash/internal/engine"
	"amdash/internal/models"

	"github.com/xuri/excelize/v2"
)

type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", CSV:
		return CSV, nil
	case XLSX:
		return XLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename is <dataset>-<yyyy-mm-dd>.<format>.
func Filename(dataset string, f Format, at time.Time) string {
	return fmt.Sprintf("%s-%s.%s", dataset, at.Format(time.DateOnly), f)
}

// Column is one exported column. Map, when set, transforms the raw value.
type Column struct {
	Key    string
	Header string
	Map    func(models.Value) models.Value
}

func (c Column) value(r models.Record) models.Value {
	v := r.Get(c.Key)
	if c.Map != nil {
		v = c.Map(v)
	}
	return v
}

// DefaultColumns exports every schema field under its label.
func DefaultColumns(schema *engine.Schema) []Column {
	fields := schema.Fields()
	cols := make([]Column, len(fields))
	for i, f := range fields {
		cols[i] = Column{Key: f.Key, Header: f.Label}
	}
	return cols
}

// Write dispatches on f.
func Write(w io.Writer, f Format, sheet string, cols []Column, records []models.Record) error {
	switch f {
	case CSV:
		return WriteCSV(w, cols, records)
	case XLSX:
		return WriteXLSX(w, sheet, cols, records)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// WriteCSV writes a header row of column headers followed by one row per
// record. List values are joined with "; " and nulls are empty.
func WriteCSV(w io.Writer, cols []Column, records []models.Record) error {
	cw := csv.NewWriter(w)
	row := make([]string, len(cols))
	for i, c := range cols {
		row[i] = c.Header
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	for _, r := range records {
		for i, c := range cols {
			row[i] = c.value(r).Text()
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

const maxSheetName = 31

// WriteXLSX writes one worksheet with a bold header row. Numbers are stored
// as numeric cells so spreadsheet formulas work on them.
func WriteXLSX(w io.Writer, sheet string, cols []Column, records []models.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	name := sheetName(sheet)
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return err
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = excelize.Cell{StyleID: bold, Value: c.Header}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for n, r := range records {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = cellValue(c.value(r))
		}
		cell, err := excelize.CoordinatesToCellName(1, n+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

func cellValue(v models.Value) any {
	switch v.Kind() {
	case models.KindNull:
		return nil
	case models.KindNumber:
		n, _ := v.Num()
		return n
	default:
		return v.Text()
	}
}

func sheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`:\/?*[]`, r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return "Export"
	}
	if r := []rune(s); len(r) > maxSheetName {
		s = string(r[:maxSheetName])
	}
	return s
}
