package contacts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidEmail(t *testing.T) {
	valid := []string{
		"alice@x.com",
		"first.last@example.co.uk",
		"under_score-dash@sub.domain.io",
		"  padded@example.com  ",
		"UPPER@EXAMPLE.COM",
		"josé@x.com",
		"ñandú@correo.es",
		"user@müller.de",
		"用户@例子.中国",
	}
	for _, s := range valid {
		assert.Truef(t, ValidEmail(s), "expected %q to be accepted", s)
	}

	invalid := []string{
		"",
		"plainaddress",
		"@example.com",
		"user@",
		"user@domain",
		"user@domain.",
		"user name@example.com",
		"user+tag@example.com",
		"user@exa mple.com",
		"josé@x.c-m",
		"jo\tsé@x.com",
	}
	for _, s := range invalid {
		assert.Falsef(t, ValidEmail(s), "expected %q to be rejected", s)
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@x.com", NormalizeEmail("  ALICE@X.COM \n"))
	assert.Equal(t, "josé@x.com", NormalizeEmail("JOSÉ@X.COM"))
}

func TestNewRecordTrimsAndNormalizes(t *testing.T) {
	now := time.Date(2024, 1, 1, 9, 0, 0, 500, time.FixedZone("EST", -5*3600))

	rec, err := NewRecord("  Alice  ", " Alice@X.com ", " 555-1111 ", now)
	require.NoError(t, err)

	assert.Equal(t, "Alice", rec.Name)
	assert.Equal(t, "alice@x.com", rec.Email)
	assert.Equal(t, "555-1111", rec.Phone)
	assert.Equal(t, time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC), rec.SubmittedAt)
}

func TestNewRecordValidation(t *testing.T) {
	now := time.Now()
	_, err := NewRecord(" ", "a@b.co", "1", now)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewRecord("A", "not-an-email", "1", now)
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = NewRecord("A", "a@b.co", "   ", now)
	assert.ErrorIs(t, err, ErrInvalidPhone)
}

func TestTimestampRoundTrip(t *testing.T) {
	ts, err := ParseTimestamp("2024-01-01 09:00:00")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, ts.Location())
	assert.Equal(t, "2024-01-01 09:00:00", FormatTimestamp(ts))

	_, err = ParseTimestamp("01/01/2024 09:00")
	assert.Error(t, err)
}
