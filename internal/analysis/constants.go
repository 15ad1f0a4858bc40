// Package analysis scores a captured handwriting sample against a letter template.
package analysis

// Pipeline constants
const (
	// Luminance threshold: avg(R,G,B) below this is ink.
	BinaryThreshold = 128

	// Feature grid is GridSize x GridSize cells.
	GridSize     = 8
	FeatureCount = GridSize * GridSize

	// Baseline is expected at this fraction of the image height; deviations up to
	// MaxDeviationRatio of the height still earn points.
	ExpectedBaselineRatio = 0.8
	MaxDeviationRatio     = 0.2

	// Gaussian kernel width for template similarity: exp(-SimilarityFalloff * MSE).
	SimilarityFalloff = 10.0

	// Overall = 0.4 * alignment + 0.6 * form, kept as tenths for integer math.
	AlignmentWeightTenths = 4
	FormWeightTenths      = 6

	// Placeholder density for letters without a template.
	UnsupportedDensity = 0.5
)
