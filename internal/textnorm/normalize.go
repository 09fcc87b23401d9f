// Package textnorm normalises human-language text for approximate
// comparison: diacritics are stripped, punctuation removed, whitespace
// collapsed, and everything lowercased. It is the comparison basis for both
// the card-usage detector and the mock answer-equivalence check.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, drops combining marks, and recomposes.
// "árbol" → "arbol", "señor" → "senor".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// letterVariants maps language-specific letters whose unaccented base form
// is not recovered by canonical decomposition alone.
var letterVariants = strings.NewReplacer(
	"ł", "l", "Ł", "L",
	"ø", "o", "Ø", "O",
	"đ", "d", "Đ", "D",
	"ß", "ss",
)

// punctuation is the fixed set of characters removed during normalisation.
const punctuation = ".,;:!?¡¿\"'()[]{}«»—–-"

// Normalize returns a canonical lowercase form of s suitable for substring
// and fuzzy comparison. It is deterministic and idempotent:
// Normalize(Normalize(s)) == Normalize(s) for all s. Empty input yields
// empty output.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = letterVariants.Replace(s)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(punctuation, r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
