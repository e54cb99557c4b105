package shared

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims, collapses inner whitespace and composes the string to
// NFC so visually identical names compare equal.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// NormalizeCode returns an upper-cased, NFC composed code without spaces.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(norm.NFC.String(s)), ""))
}
