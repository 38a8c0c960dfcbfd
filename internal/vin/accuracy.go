package vin

import (
	"strings"
	"unicode/utf8"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// Accuracy compares a recognised value against a known reference.
type Accuracy struct {
	Expected           string  `json:"expected"`
	Actual             string  `json:"actual"`
	ExactMatch         bool    `json:"exact_match"`
	CharacterErrorRate float64 `json:"character_error_rate"`
	WordErrorRate      float64 `json:"word_error_rate"`
}

func normalizeForComparison(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// Compare scores actual against expected. Both sides are upper-cased and
// whitespace-collapsed first. An empty reference scores 0 against an empty
// candidate and 1 otherwise.
func Compare(expected, actual string) Accuracy {
	ref := normalizeForComparison(expected)
	hyp := normalizeForComparison(actual)

	a := Accuracy{Expected: ref, Actual: hyp, ExactMatch: ref == hyp}
	if ref == "" {
		if hyp != "" {
			a.CharacterErrorRate, a.WordErrorRate = 1, 1
		}
		return a
	}

	a.CharacterErrorRate = float64(levenshtein.Distance(ref, hyp)) / float64(utf8.RuneCountInString(ref))
	a.WordErrorRate, _ = wer.WER(strings.Fields(ref), strings.Fields(hyp))
	return a
}
