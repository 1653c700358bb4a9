package http

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input validation constants
const (
	MaxSlugLength    = 64
	MaxSubjectLength = 512
	MaxContentLength = 50000
	MinPhoneDigits   = 10
	MaxPhoneDigits   = 15
)

var (
	slugRe     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailRe    = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	nonDigitRe = regexp.MustCompile(`\D`)
)

// ValidSlug checks if a username is safe (alphanumeric + underscore + hyphen)
func ValidSlug(s string) bool {
	if s == "" || len(s) > MaxSlugLength {
		return false
	}
	return slugRe.MatchString(s)
}

// ValidEmail checks basic email address shape
func ValidEmail(s string) bool {
	return len(s) <= 254 && emailRe.MatchString(s)
}

// ExtractPhoneNumber strips a gateway JID down to its digits.
// "905551112233@s.whatsapp.net" and "905551112233@c.us" both yield
// "905551112233"; a bare number passes through.
func ExtractPhoneNumber(jid string) string {
	if at := strings.Index(jid, "@"); at >= 0 {
		jid = jid[:at]
	}
	return nonDigitRe.ReplaceAllString(jid, "")
}

// ValidPhoneNumber reports whether a digit string looks like a real
// subscriber number. Gateway broadcast and service identities fall outside
// the 10-15 digit range.
func ValidPhoneNumber(digits string) bool {
	if len(digits) < MinPhoneDigits || len(digits) > MaxPhoneDigits {
		return false
	}
	return nonDigitRe.FindStringIndex(digits) == nil
}

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// TruncateString safely truncates a string to max length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// ValidateLength checks if string is within bounds
func ValidateLength(s string, min, max int) bool {
	l := len(s)
	return l >= min && l <= max
}
