package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	s, err := Summarize(testSchema, fixture(), "printers")
	require.NoError(t, err)

	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 1, s.Missing)
	assert.Equal(t, 1345.0, s.Sum)
	assert.Equal(t, 5.0, s.Min)
	assert.Equal(t, 1000.0, s.Max)
	assert.Equal(t, 269.0, s.Mean)
	assert.Equal(t, 50.0, s.Median)

	even, err := Summarize(testSchema, fixture()[:2], "printers")
	require.NoError(t, err)
	assert.Equal(t, 145.0, even.Median)
}

func TestSummarize_Errors(t *testing.T) {
	_, err := Summarize(testSchema, fixture(), "name")
	assert.Error(t, err)

	empty, err := Summarize(testSchema, nil, "revenue")
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
}
