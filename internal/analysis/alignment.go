package analysis

import "math"

// BottomEdge returns the lowest row of a binarized buffer that contains ink.
// found is false for a buffer without any ink.
func BottomEdge(buf *PixelBuffer) (row int, found bool) {
	for y := buf.Height - 1; y >= 0 && !found; y-- {
		for x := 0; x < buf.Width; x++ {
			if buf.isInk(x, y) {
				row, found = y, true
				break
			}
		}
	}
	return row, found
}

// AlignmentScore rates how close the bottom of the writing sits to the expected
// baseline (80% of the height). The result is unrounded, in [0, 100].
//
// A capture without ink is measured as if its bottom edge were row 0, which lands
// far from the baseline and scores near zero.
func AlignmentScore(buf *PixelBuffer) float64 {
	if buf.Empty() {
		return 0
	}
	edge, _ := BottomEdge(buf)

	height := float64(buf.Height)
	expected := height * ExpectedBaselineRatio
	maxDeviation := height * MaxDeviationRatio
	deviation := math.Abs(float64(edge) - expected)

	return math.Max(0, 100-(deviation/maxDeviation)*100)
}
