package messaging

import (
	"regexp"
	"strings"
	"unicode"
)

// DefaultCountryPrefix replaces the trunk "0" of local numbers.
const DefaultCountryPrefix = "+84"

var phoneDigitsRe = regexp.MustCompile(`\d+`)

// NormalizeLocalPhone strips every whitespace rune and rewrites a leading
// trunk "0" to prefix. Numbers already carrying a country code pass through.
func NormalizeLocalPhone(raw, prefix string) string {
	if prefix == "" {
		prefix = DefaultCountryPrefix
	}
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	if strings.HasPrefix(compact, "0") {
		return prefix + compact[1:]
	}
	return compact
}

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	return "+" + digits
}

func sanitizePhone(value string) string {
	if value == "" {
		return ""
	}
	return strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
}

// MaskPhone keeps only the last four digits for logs.
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) <= 4 {
		return "****"
	}
	return "***" + phone[len(phone)-4:]
}
