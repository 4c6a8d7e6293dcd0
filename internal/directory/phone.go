package directory

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// IsValidPhoneNumber reports whether number looks like a dialable E.164-style
// number, ignoring spaces, dashes, and parentheses.
func IsValidPhoneNumber(number string) bool {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, number)
	return phonePattern.MatchString(stripped)
}

// CleanPhoneNumber normalizes a raw phone number for directory lookups:
// every character except digits and '+' is removed, and a leading '+' is
// added when missing. An empty input stays empty.
func CleanPhoneNumber(number string) string {
	if number == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' || r == '+' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return ""
	}
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	return cleaned
}

// phoneSuffixLen is how many trailing digits two numbers must share to be
// considered the same line. Country-code and trunk prefixes vary between
// telephony providers and directory imports.
const phoneSuffixLen = 10

// PhoneSuffix returns the last 10 digits of the cleaned number, or all of
// them when shorter.
func PhoneSuffix(number string) string {
	digits := strings.TrimPrefix(CleanPhoneNumber(number), "+")
	if len(digits) <= phoneSuffixLen {
		return digits
	}
	return digits[len(digits)-phoneSuffixLen:]
}

// SamePhoneNumber reports whether a and b refer to the same line: equal after
// normalization, or either containing the other's 10-digit suffix.
func SamePhoneNumber(a, b string) bool {
	ca := CleanPhoneNumber(a)
	cb := CleanPhoneNumber(b)
	if ca == "" || cb == "" {
		return false
	}
	if ca == cb {
		return true
	}
	da := strings.TrimPrefix(ca, "+")
	db := strings.TrimPrefix(cb, "+")
	return strings.Contains(da, PhoneSuffix(cb)) || strings.Contains(db, PhoneSuffix(ca))
}
