package mailparse

import (
	"net/mail"
	"regexp"
	"strings"
)

var angleRe = regexp.MustCompile(`^(.*)<([^<>]+)>\s*$`)

// SplitAddress extracts a display name and email address from a raw From
// header. A bare address yields an empty name; callers fall back to the
// local part where a name is required. Empty input yields ("", "").
func SplitAddress(raw string) (name, email string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if a, err := mail.ParseAddress(raw); err == nil {
		return strings.TrimSpace(a.Name), strings.TrimSpace(a.Address)
	}
	// net/mail rejects unquoted punctuation in display names that
	// providers emit anyway, so fall back to a loose angle-bracket match.
	if m := angleRe.FindStringSubmatch(raw); m != nil {
		return strings.Trim(strings.TrimSpace(m[1]), `"`), strings.TrimSpace(m[2])
	}
	return "", raw
}

// LocalPart returns the text before the @ of an email address.
func LocalPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

// DisplayName returns name, or the address local part when name is empty.
func DisplayName(name, email string) string {
	if name != "" {
		return name
	}
	return LocalPart(email)
}

// SplitName breaks a full name into first and last on whitespace. The last
// name is the remaining tokens joined by single spaces.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
