package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Similarity compares two feature vectors with a Gaussian kernel over their mean
// squared error: exp(-10 * MSE), clamped to [0, 1]. Vectors of different (or zero)
// length have similarity 0.
func Similarity(a, b FeatureVector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	dist := floats.Distance(a, b, 2)
	mse := dist * dist / float64(len(a))
	return math.Max(0, math.Min(1, math.Exp(-mse*SimilarityFalloff)))
}

// FormScore rates the captured features against the template of letter, unrounded
// in [0, 100]. supported is false when the placeholder template was used.
func FormScore(features FeatureVector, letter string) (score float64, supported bool) {
	template, supported := Template(letter)
	return Similarity(features, template) * 100, supported
}
