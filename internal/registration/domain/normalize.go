package domain

import (
	"strings"
	"unicode"
)

const (
	NationalIDDigits = 12
	TaxIDLength      = 10
	PhoneDigits      = 10
)

// Digits keeps only ASCII digits from s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatNationalID keeps the first 12 digits of s and groups them in fours with hyphens:
// "123456789012" -> "1234-5678-9012", "12345" -> "1234-5".
func FormatNationalID(s string) string {
	d := Digits(s)
	if len(d) > NationalIDDigits {
		d = d[:NationalIDDigits]
	}
	var groups []string
	for len(d) > 4 {
		groups = append(groups, d[:4])
		d = d[4:]
	}
	if d != "" {
		groups = append(groups, d)
	}
	return strings.Join(groups, "-")
}

// FormatTaxID upper-cases s and truncates it to 10 characters.
func FormatTaxID(s string) string {
	r := []rune(strings.ToUpper(s))
	if len(r) > TaxIDLength {
		r = r[:TaxIDLength]
	}
	return string(r)
}

// FormatPhone keeps the first 10 digits of s.
func FormatPhone(s string) string {
	d := Digits(s)
	if len(d) > PhoneDigits {
		d = d[:PhoneDigits]
	}
	return d
}

// blank reports whether s is empty after trimming whitespace.
func blank(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) }) < 0
}
