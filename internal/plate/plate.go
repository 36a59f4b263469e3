// Package plate canonicalizes licence plate text read by the OCR sidecar so
// that frame-to-frame comparisons are not defeated by presentation noise.
package plate

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var upper = cases.Upper(language.Und)

// Normalize returns the canonical form of raw plate text: compatibility
// normalized, full-width digits folded to ASCII, upper-cased, with spaces,
// dashes, dots and other separators removed. Letters and digits of any script
// are kept so region words read by the OCR model survive. An input without
// any letter or digit normalizes to "".
func Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	folded := width.Fold.String(norm.NFKC.String(raw))
	folded = upper.String(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Equal reports whether two raw readings name the same plate.
func Equal(a, b string) bool {
	na := Normalize(a)
	return na != "" && na == Normalize(b)
}
