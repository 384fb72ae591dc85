package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2025, 3, 9), d)
	assert.Equal(t, "2025-03-09", d.String())

	for _, bad := range []string{"", "2025-02-30", "03/09/2025", "2025-13-01", "yesterday"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, "input %q", bad)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("credit")
	require.NoError(t, err)
	assert.Equal(t, Credit, k)

	k, err = ParseKind(" Charge ")
	require.NoError(t, err)
	assert.Equal(t, Charge, k)

	_, err = ParseKind("refund")
	assert.ErrorIs(t, err, ErrInvalidKind)
	_, err = ParseKind("")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestKindSign(t *testing.T) {
	assert.Equal(t, int64(500), Credit.Sign(500))
	assert.Equal(t, int64(-500), Charge.Sign(500))
}

func TestParseMemberID(t *testing.T) {
	id, err := ParseMemberID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"0", "-3", "x", ""} {
		_, err := ParseMemberID(bad)
		assert.ErrorIs(t, err, ErrInvalidMemberID, "input %q", bad)
	}
}

func TestValidateDescription(t *testing.T) {
	assert.NoError(t, ValidateDescription(""))
	assert.NoError(t, ValidateDescription(strings.Repeat("é", MaxDescriptionLength)))
	assert.ErrorIs(t, ValidateDescription(strings.Repeat("a", MaxDescriptionLength+1)), ErrDescriptionTooLong)
}

func TestDisplayName(t *testing.T) {
	m := Member{ID: 7, FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "007 – Ada Lovelace", m.DisplayName(PadLength(120)))
	assert.Equal(t, "7 – Ada Lovelace", m.DisplayName(PadLength(0)))
}

func TestStorageFailure(t *testing.T) {
	assert.NoError(t, StorageFailure("op", nil))
	cause := assert.AnError
	err := StorageFailure("insert", cause)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
}
