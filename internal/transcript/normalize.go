// Package transcript canonicalizes reference words and recognized phrases for comparison.
package transcript

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	harakaFirst = '\u064B' // fathatan
	harakaLast  = '\u0652' // sukun
	tatweel     = '\u0640'
)

// punctuation is the fixed strip set applied to both reference text and transcripts.
const punctuation = ".,/#!$%^&*;:{}=-_`~()؟?،؛"

// Normalize returns the phonetic skeleton of text: alef, ta marbuta and alef
// maksura variants folded, harakat, tatweel and punctuation removed, trimmed
// and lower-cased. Arabic letters outside the fold set keep their hamza or
// other Arabic marks; accents on non-Arabic letters are dropped.
// Lower-casing runs first so case mapping cannot reintroduce combining marks.
func Normalize(text string) string {
	chain := transform.Chain(
		norm.NFD,
		runes.Remove(runes.Predicate(isHaraka)),
		runes.Remove(runes.Predicate(isForeignMark)),
		runes.Remove(runes.Predicate(isStripped)),
	)
	lowered := strings.ToLower(text)
	decomposed, _, err := transform.String(chain, lowered)
	if err != nil {
		return strings.TrimSpace(fallbackNormalize(lowered))
	}
	out := norm.NFC.String(dropAlefMarks(decomposed))
	return strings.TrimSpace(strings.Map(foldLetter, out))
}

// Strict strips harakat and punctuation but keeps letter variants distinct.
func Strict(text string) string {
	chain := transform.Chain(
		runes.Remove(runes.Predicate(isHaraka)),
		runes.Remove(runes.Predicate(isStripped)),
	)
	out, _, err := transform.String(chain, text)
	if err != nil {
		out = strings.Map(func(r rune) rune {
			if isHaraka(r) || isStripped(r) {
				return -1
			}
			return r
		}, text)
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Tokens splits already-normalized text into whitespace-separated words.
func Tokens(text string) []string {
	return strings.Fields(text)
}

// HasDiacritics reports whether text still carries a haraka or an accent that
// Normalize would remove.
func HasDiacritics(text string) bool {
	for _, r := range norm.NFD.String(text) {
		if isHaraka(r) || isForeignMark(r) {
			return true
		}
	}
	return false
}

func foldLetter(r rune) rune {
	switch r {
	case 'أ', 'إ', 'آ':
		return 'ا'
	case 'ة':
		return 'ه'
	case 'ى':
		return 'ي'
	default:
		return r
	}
}

// dropAlefMarks removes hamza and madda marks attached to a bare alef in
// decomposed text, so every alef seat folds to one letter.
func dropAlefMarks(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	afterAlef := false
	for _, r := range text {
		if afterAlef && r >= '\u0653' && r <= '\u0655' {
			continue
		}
		afterAlef = r == 'ا'
		b.WriteRune(r)
	}
	return b.String()
}

func isHaraka(r rune) bool {
	return r >= harakaFirst && r <= harakaLast
}

// isForeignMark matches combining marks outside the Arabic blocks. Hamza above
// and below, madda and superscript alef are Arabic and stay.
func isForeignMark(r rune) bool {
	return unicode.Is(unicode.Mn, r) && !isArabicBlock(r)
}

func isArabicBlock(r rune) bool {
	return (r >= 0x0600 && r <= 0x06FF) || (r >= 0x0750 && r <= 0x077F) || (r >= 0x08A0 && r <= 0x08FF)
}

func isStripped(r rune) bool {
	return r == tatweel || strings.ContainsRune(punctuation, r)
}

// fallbackNormalize covers transformer failures on malformed UTF-8 input.
func fallbackNormalize(text string) string {
	return strings.Map(func(r rune) rune {
		if isHaraka(r) || isStripped(r) || isForeignMark(r) {
			return -1
		}
		return foldLetter(r)
	}, text)
}
