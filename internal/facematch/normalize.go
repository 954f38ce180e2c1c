package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// SampleFileName builds the dataset file name for a student's face sample,
// e.g. ("Jiří Novák", "1a2b3c4d") -> "Jiri_Novak_1a2b3c4d.jpg".
func SampleFileName(name, attendanceID string) string {
	name = RemoveDiacritics(strings.TrimSpace(name))

	var b strings.Builder
	underscore := false
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-'):
			b.WriteRune(r)
			underscore = false
		case !underscore && b.Len() > 0:
			b.WriteByte('_')
			underscore = true
		}
	}
	base := strings.TrimSuffix(b.String(), "_")
	if base == "" {
		base = "student"
	}
	return base + "_" + attendanceID + ".jpg"
}
