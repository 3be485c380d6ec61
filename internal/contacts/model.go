package contacts

import (
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the on-disk format of the Timestamp column. Values are UTC.
const TimestampLayout = "2006-01-02 15:04:05"

// Word characters include every Unicode letter and number, so addresses such
// as josé@x.com are accepted. RE2's \w is ASCII only.
var emailPattern = regexp.MustCompile(`^[\p{L}\p{N}_.-]+@[\p{L}\p{N}_.-]+\.[\p{L}\p{N}_]+$`)

// Record is one row of the shared queue file.
type Record struct {
	Name        string
	Email       string
	Phone       string
	SubmittedAt time.Time
}

// NewRecord trims every field, normalizes the email and stamps the record in UTC.
func NewRecord(name, email, phone string, now time.Time) (Record, error) {
	rec := Record{
		Name:        strings.TrimSpace(name),
		Email:       NormalizeEmail(email),
		Phone:       strings.TrimSpace(phone),
		SubmittedAt: now.UTC().Truncate(time.Second),
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Validate checks the record invariants.
func (r Record) Validate() error {
	if r.Name == "" {
		return ErrInvalidName
	}
	if !ValidEmail(r.Email) {
		return ErrInvalidEmail
	}
	if r.Phone == "" {
		return ErrInvalidPhone
	}
	return nil
}

// ValidEmail reports whether s (after trimming) looks like local@domain.tld.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// NormalizeEmail lower-cases and trims an address; the result is the dedup key.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// FormatTimestamp renders t in the queue file layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a queue file timestamp as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, strings.TrimSpace(s), time.UTC)
}
