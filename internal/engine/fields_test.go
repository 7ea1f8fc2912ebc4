package engine

import (
	"testing"

	"amdash/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema_RejectsDuplicates(t *testing.T) {
	_, err := NewSchema("x", Field{Key: "a"}, Field{Key: "a"})
	assert.Error(t, err)

	_, err = NewSchema("x", Field{Key: ""})
	assert.Error(t, err)

	s, err := NewSchema("x", Field{Key: "a"})
	require.NoError(t, err)
	f, ok := s.Field("a")
	require.True(t, ok)
	assert.Equal(t, "a", f.Label)
}

func TestSchema_Coerce(t *testing.T) {
	schema := MustSchema("t",
		Field{Key: "country", Kind: Text, Normalize: NormalizeCountry},
		Field{Key: "count_type", Kind: Text, Normalize: NormalizeCountTypeText},
		Field{Key: "printers", Kind: Numeric},
		Field{Key: "materials", Kind: Tags},
		Field{Key: "note", Kind: Text},
	)
	r := schema.Coerce(map[string]any{
		"country":    "USA",
		"count_type": "min",
		"printers":   "$1,250",
		"materials":  "PA12; ; Ti6Al4V",
		"note":       "",
		"extra":      "dropped",
	})

	assert.Equal(t, models.String("United States"), r.Get("country"))
	assert.Equal(t, models.String("Minimum"), r.Get("count_type"))
	assert.Equal(t, models.Number(1250), r.Get("printers"))
	assert.Equal(t, []string{"PA12", "Ti6Al4V"}, r.Get("materials").Items())
	assert.Equal(t, models.String(""), r.Get("note"), "empty string is not null")
	_, hasExtra := r["extra"]
	assert.False(t, hasExtra)

	bad := schema.Coerce(map[string]any{"printers": "many", "materials": nil})
	assert.True(t, bad.Get("printers").IsNull())
	assert.True(t, bad.Get("materials").IsNull())
	assert.True(t, bad.Get("country").IsNull())
}

func TestAccessor_ReadsMismatchedKinds(t *testing.T) {
	acc, err := testSchema.Accessor("printers")
	require.NoError(t, err)
	got, ok := acc.Get(models.Record{"printers": models.String("42")}).Num()
	require.True(t, ok)
	assert.Equal(t, 42.0, got)

	tags, err := testSchema.Accessor("technologies")
	require.NoError(t, err)
	assert.Equal(t, []string{"FDM", "SLA"}, tags.Get(models.Record{"technologies": models.String("FDM, SLA")}).Items())
}

func TestParseNumber(t *testing.T) {
	for in, want := range map[string]float64{"12": 12, " 3.5 ": 3.5, "1,000": 1000, "$2.5": 2.5, "40%": 40} {
		got, ok := ParseNumber(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "abc", "NaN", "Inf"} {
		_, ok := ParseNumber(in)
		assert.False(t, ok, in)
	}
}
