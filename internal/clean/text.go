package clean

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// normalizeText returns s in Unicode NFC with leading and trailing space
// removed. Comment text arrives as plain text, so angle brackets are content.
func normalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
