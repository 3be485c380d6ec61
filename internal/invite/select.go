package invite

import (
	"time"

	"github.com/sudn2014/telegram-bot-teams/internal/contacts"
)

// DefaultWindow is how far back a submission may be and still be invited.
const DefaultWindow = 24 * time.Hour

// Target is one address to add, with the name submitted alongside it.
type Target struct {
	Email string
	Name  string
}

// Select returns the unique addresses submitted within [now-window, now],
// in file order. The first occurrence of an address wins. Comparison is in
// UTC so the result does not depend on the host time zone.
func Select(records []contacts.Record, now time.Time, window time.Duration) []Target {
	if window <= 0 {
		window = DefaultWindow
	}
	now = now.UTC()
	cutoff := now.Add(-window)

	seen := make(map[string]struct{}, len(records))
	var targets []Target
	for _, rec := range records {
		at := rec.SubmittedAt.UTC()
		if at.Before(cutoff) || at.After(now) {
			continue
		}
		email := contacts.NormalizeEmail(rec.Email)
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		targets = append(targets, Target{Email: email, Name: rec.Name})
	}
	return targets
}
