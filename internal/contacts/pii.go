package contacts

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

var (
	piiEmailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	piiPhoneRe = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// HashPhone returns a short stable fingerprint of a phone number so log lines
// can be correlated without storing the number.
func HashPhone(phone string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(phone)))
	return fmt.Sprintf("%x", h[:8])
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
func ScrubPII(text string) string {
	text = piiEmailRe.ReplaceAllString(text, "[EMAIL]")
	return piiPhoneRe.ReplaceAllString(text, "[PHONE]")
}
