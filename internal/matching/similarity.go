package matching

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	minWordRunes      = 3
	minFuzzyWordRunes = 4
	fuzzyWordCutoff   = 0.7
	fuzzyWordCredit   = 0.5
)

// Similarity scores how much of a is found in b, in [0, 1].
//
// Each word of a (longer than two runes) earns full credit when it is a substring of a word of b
// or contains one, and half credit when it is within edit similarity 0.7 of one. The total is
// divided by the larger word count. Callers pass the source-side string first.
func Similarity(a, b string) float64 {
	aw, bw := words(a), words(b)
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}

	var full, partial float64
	for _, w := range aw {
		if containsEither(w, bw) {
			full++
			continue
		}

		if runeLen(w) < minFuzzyWordRunes {
			continue
		}
		for _, o := range bw {
			if runeLen(o) >= minFuzzyWordRunes && EditSimilarity(w, o) >= fuzzyWordCutoff {
				partial += fuzzyWordCredit
				break
			}
		}
	}

	return (full + partial) / float64(max(len(aw), len(bw)))
}

// EditSimilarity is 1 - levenshtein(a, b) / max(len(a), len(b)), measured in runes.
func EditSimilarity(a, b string) float64 {
	longest := max(runeLen(a), runeLen(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func containsEither(w string, others []string) bool {
	for _, o := range others {
		if strings.Contains(o, w) || strings.Contains(w, o) {
			return true
		}
	}
	return false
}

// words returns the normalized words of s that are long enough to carry meaning.
func words(s string) []string {
	fields := strings.Fields(normalizeText(s))
	out := fields[:0]
	for _, f := range fields {
		if runeLen(f) >= minWordRunes {
			out = append(out, f)
		}
	}
	return out
}

// normalizeText lowercases, folds Latin diacritics and turns everything that is not part of a
// word into a single space.
func normalizeText(s string) string {
	if folded, _, err := transform.String(foldDiacritics(), s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// foldDiacritics returns a fresh transformer; transformers carry state and cannot be shared.
func foldDiacritics() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isCombiningDiacritic)), norm.NFC)
}

// Only the generic combining block is dropped so vowel signs of Indic scripts survive.
func isCombiningDiacritic(r rune) bool {
	return r >= 0x0300 && r <= 0x036F
}
