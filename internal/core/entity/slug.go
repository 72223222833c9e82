package entity

import (
	"strings"
	"unicode"
)

// Slugify turns a normalized name into a stable URL-safe slug
// "acme corp" is normalized before slugging, so Slugify sees "acme" -> "acme"
// Non-alphanumeric runs collapse into a single hyphen
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// CitySlug builds the canonical city slug scoped by state to keep
// "springfield il" and "springfield mo" distinct
func CitySlug(city, stateCode string) string {
	c := Slugify(city)
	st := strings.ToLower(strings.TrimSpace(stateCode))
	if c == "" {
		return ""
	}
	if st == "" {
		return c
	}
	return c + "-" + st
}
