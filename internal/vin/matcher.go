// Package vin locates vehicle identification numbers in OCR transcriptions.
package vin

import "regexp"

// Length of a VIN.
const Length = 17

// vinPattern matches a 17-character token starting with the "NA" world
// manufacturer prefix used on Iranian-built vehicles. The letters I, O and Q
// are accepted because OCR routinely confuses them with digits.
var vinPattern = regexp.MustCompile(`\bNA[A-Z0-9]{15}\b`)

// Match is the result of a VIN search.
type Match struct {
	Found bool   `json:"found"`
	Value string `json:"value,omitempty"`
}

// Find returns the leftmost VIN in text.
func Find(text string) Match {
	if v := vinPattern.FindString(text); v != "" {
		return Match{Found: true, Value: v}
	}
	return Match{}
}

// FindAll returns every non-overlapping VIN in text, in order.
func FindAll(text string) []string {
	return vinPattern.FindAllString(text, -1)
}
