package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableOptions(t *testing.T) {
	got, err := AvailableOptions(testSchema, fixture(), "technologies")
	require.NoError(t, err)
	assert.Equal(t, []string{"Binder Jetting", "FDM", "LPBF", "PolyJet", "SLA", "SLS"}, got)

	got, err = AvailableOptions(testSchema, fixture(), "country")
	require.NoError(t, err)
	assert.Equal(t, []string{"DE", "US"}, got)

	got, err = AvailableOptions(testSchema, nil, "country")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = AvailableOptions(testSchema, nil, "colour")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestFacets_IgnoreOwnDimension(t *testing.T) {
	filters := NewFilterState(Equals("country", "DE"), OneOf("segment", "Metal"))
	got, err := Facets(testSchema, fixture(), filters, []string{"country", "segment", "technologies"})
	require.NoError(t, err)

	// Country options come from every Metal company, not just German ones
	assert.Equal(t, []string{"DE", "US"}, got["country"])
	// Segment options come from every German company
	assert.Equal(t, []string{"Metal"}, got["segment"])
	assert.Equal(t, []string{"LPBF", "SLS"}, got["technologies"])
}
