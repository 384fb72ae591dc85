package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylog/internal/core"
)

func TestNormalize(t *testing.T) {
	entries, err := Normalize([]RawRow{
		{ID: "1", FirstName: " Ada ", LastName: "Lovelace"},
		{ID: "7.0", FirstName: "Grace", LastName: "Hopper"},
		{ID: "7.5", FirstName: "Half", LastName: "Id"},
		{ID: "0", FirstName: "Zero", LastName: "Id"},
		{ID: "-2", FirstName: "Neg", LastName: "Id"},
		{ID: "x", FirstName: "Bad", LastName: "Id"},
		{ID: "9", FirstName: "  ", LastName: "Blank"},
	})
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{ID: 1, FirstName: "Ada", LastName: "Lovelace"},
		{ID: 7, FirstName: "Grace", LastName: "Hopper"},
	}, entries)
}

func TestNormalizeNoValidRows(t *testing.T) {
	_, err := Normalize([]RawRow{{ID: "abc", FirstName: "A", LastName: "B"}})
	assert.ErrorIs(t, err, core.ErrNoValidMembers)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = Normalize(nil)
	assert.ErrorIs(t, err, core.ErrNoValidMembers)
}
