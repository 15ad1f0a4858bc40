package analysis

import (
	"sort"
	"strings"
)

// Alphabet is the set of letters a learner can pick.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// templates holds the reference densities of the letters that have one. Each
// vector covers the full grid; the upper four rows carry the letter shape and the
// lower rows are empty.
var templates = map[string]FeatureVector{
	"A": padTemplate(0, 0.2, 0.2, 0, 0, 0.8, 0.8, 0,
		0.2, 0.8, 0.8, 0.2, 0.8, 0.5, 0.5, 0.8,
		0.8, 0.2, 0.2, 0.8, 0.8, 0, 0, 0.8,
		0.5, 0, 0, 0.5, 0, 0, 0, 0),
	"B": padTemplate(0.8, 0.8, 0.8, 0, 0.8, 0, 0, 0.8,
		0.8, 0.8, 0.8, 0, 0.8, 0, 0, 0.8,
		0.8, 0, 0, 0.8, 0.8, 0.8, 0.8, 0,
		0, 0, 0, 0, 0, 0, 0, 0),
	"C": padTemplate(0, 0.8, 0.8, 0, 0.8, 0, 0, 0,
		0.8, 0, 0, 0, 0.8, 0, 0, 0,
		0.8, 0, 0, 0, 0, 0.8, 0.8, 0,
		0, 0, 0, 0, 0, 0, 0, 0),
}

// UnsupportedTemplate is scored against for letters without a reference vector.
// Every unsupported letter gets the same form score for a given capture, so
// results carry Supported=false to keep them apart from real comparisons.
var UnsupportedTemplate = uniformVector(UnsupportedDensity)

// Template returns the reference vector for letter (case-insensitive) and whether
// the letter has a real template. Unsupported letters yield UnsupportedTemplate.
// The returned vector must not be modified.
func Template(letter string) (FeatureVector, bool) {
	if t, ok := templates[strings.ToUpper(letter)]; ok {
		return t, true
	}
	return UnsupportedTemplate, false
}

// Supported reports whether letter has a real template.
func Supported(letter string) bool {
	_, ok := templates[strings.ToUpper(letter)]
	return ok
}

// SupportedLetters lists the letters with templates, sorted.
func SupportedLetters() []string {
	letters := make([]string, 0, len(templates))
	for l := range templates {
		letters = append(letters, l)
	}
	sort.Strings(letters)
	return letters
}

// NormalizeLetter upper-cases a single-letter string and reports whether it is in
// Alphabet.
func NormalizeLetter(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 1 || !strings.Contains(Alphabet, s) {
		return s, false
	}
	return s, true
}

func padTemplate(values ...float64) FeatureVector {
	v := make(FeatureVector, FeatureCount)
	copy(v, values)
	return v
}

func uniformVector(value float64) FeatureVector {
	v := make(FeatureVector, FeatureCount)
	for i := range v {
		v[i] = value
	}
	return v
}
