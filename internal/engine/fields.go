package engine

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"amdash/internal/models"
)

// ErrUnknownField is returned whenever a filter, sort or grouping names a
// field the dataset does not declare.
var ErrUnknownField = errors.New("unknown field")

// FieldKind is the declared type of a dataset field.
type FieldKind uint8

const (
	Text FieldKind = iota
	Numeric
	Tags
)

func (k FieldKind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Tags:
		return "tags"
	default:
		return "text"
	}
}

// Field describes one column of a dataset.
type Field struct {
	Key   string
	Label string
	Kind  FieldKind

	// Searchable fields take part in free-text search.
	Searchable bool
	// Coarse fields may be pushed down to the data source as filters.
	Coarse bool
	// Normalize is applied to every text value (or tag) when records are
	// coerced into the schema.
	Normalize func(string) string
}

// Canonical returns a filter value in the form Coerce stores it, so that
// "US" and "United States" select the same rows of a country field.
func (f Field) Canonical(s string) string {
	s = strings.TrimSpace(s)
	if f.Normalize == nil || f.Kind == Numeric || s == "" {
		return s
	}
	return f.Normalize(s)
}

// Schema is the typed field registry of a dataset.
type Schema struct {
	name   string
	fields []Field
	index  map[string]int
}

func NewSchema(name string, fields ...Field) (*Schema, error) {
	s := &Schema{name: name, index: make(map[string]int, len(fields))}
	for _, f := range fields {
		if f.Key == "" {
			return nil, fmt.Errorf("schema %s: field with empty key", name)
		}
		if _, dup := s.index[f.Key]; dup {
			return nil, fmt.Errorf("schema %s: duplicate field %q", name, f.Key)
		}
		if f.Label == "" {
			f.Label = f.Key
		}
		s.index[f.Key] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustSchema is NewSchema for package-level dataset declarations.
func MustSchema(name string, fields ...Field) *Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string { return s.name }

func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

func (s *Schema) Field(key string) (Field, bool) {
	i, ok := s.index[key]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

func (s *Schema) Keys() []string {
	keys := make([]string, len(s.fields))
	for i, f := range s.fields {
		keys[i] = f.Key
	}
	return keys
}

func (s *Schema) SearchFields() []string {
	var keys []string
	for _, f := range s.fields {
		if f.Searchable {
			keys = append(keys, f.Key)
		}
	}
	return keys
}

func (s *Schema) Accessor(key string) (Accessor, error) {
	f, ok := s.Field(key)
	if !ok {
		return Accessor{}, fmt.Errorf("%w %q in dataset %s", ErrUnknownField, key, s.name)
	}
	return Accessor{field: f}, nil
}

// Coerce builds a Record from loosely typed source values. Columns the
// schema does not declare are dropped; values that cannot be read as the
// declared kind become null.
func (s *Schema) Coerce(raw map[string]any) models.Record {
	rec := make(models.Record, len(s.fields))
	for _, f := range s.fields {
		x, ok := raw[f.Key]
		if !ok {
			continue
		}
		rec[f.Key] = coerceValue(f, models.FromAny(x))
	}
	return rec
}

// Accessor is a typed getter/comparator pair for one field.
type Accessor struct {
	field Field
}

func (a Accessor) Field() Field { return a.field }
func (a Accessor) Key() string  { return a.field.Key }

// Get reads the field from r in its declared kind; mismatched values are
// converted or read as null.
func (a Accessor) Get(r models.Record) models.Value {
	return coerceValue(a.field, r.Get(a.field.Key))
}

// Compare orders two non-null values of this field.
func (a Accessor) Compare(x, y models.Value) int {
	if a.field.Kind == Numeric {
		xn, _ := x.Num()
		yn, _ := y.Num()
		switch {
		case xn < yn:
			return -1
		case xn > yn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(strings.ToLower(x.Text()), strings.ToLower(y.Text()))
}

func coerceValue(f Field, v models.Value) models.Value {
	switch f.Kind {
	case Numeric:
		switch v.Kind() {
		case models.KindNumber:
			return v
		case models.KindString:
			if n, ok := ParseNumber(v.Text()); ok {
				return models.Number(n)
			}
		}
		return models.Null()
	case Tags:
		switch v.Kind() {
		case models.KindNull:
			return v
		case models.KindList:
			return models.List(cleanTags(f, v.Items())...)
		default:
			return models.List(cleanTags(f, SplitTags(v.Text()))...)
		}
	default:
		switch v.Kind() {
		case models.KindNull:
			return v
		case models.KindString:
			if f.Normalize == nil {
				return v
			}
			return models.String(f.Normalize(v.Text()))
		default:
			return models.String(v.Text())
		}
	}
}

func cleanTags(f Field, items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if f.Normalize != nil {
			it = f.Normalize(it)
		}
		out = append(out, it)
	}
	return out
}

// SplitTags splits a list cell. Semicolons win; commas are used only when
// no semicolon is present.
func SplitTags(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	sep := ";"
	if !strings.Contains(s, ";") {
		sep = ","
	}
	return strings.Split(s, sep)
}

// ParseNumber reads numbers the way they appear in the source sheets:
// thousands separators, currency and percent signs are ignored.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.NewReplacer(",", "", "$", "", "%", "", " ", "").Replace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
