package analysis

import "math"

// FeatureVector is the per-cell ink density of the GridSize x GridSize grid,
// row-major, each value in [0, 1].
type FeatureVector []float64

// ExtractFeatures measures the fraction of ink pixels in each grid cell of a
// binarized buffer.
//
// Cell edges are floor(i * size/GridSize), so cells differ by at most one pixel
// when the size is not a multiple of GridSize. Cells that contain no pixels
// (images smaller than the grid) report 0.
func ExtractFeatures(buf *PixelBuffer) FeatureVector {
	features := make(FeatureVector, 0, FeatureCount)
	cellWidth := float64(buf.Width) / GridSize
	cellHeight := float64(buf.Height) / GridSize

	for gy := 0; gy < GridSize; gy++ {
		y0, y1 := cellSpan(gy, cellHeight, buf.Height)
		for gx := 0; gx < GridSize; gx++ {
			x0, x1 := cellSpan(gx, cellWidth, buf.Width)

			ink, total := 0, 0
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					if buf.isInk(x, y) {
						ink++
					}
					total++
				}
			}

			if total > 0 {
				features = append(features, float64(ink)/float64(total))
			} else {
				features = append(features, 0)
			}
		}
	}
	return features
}

// cellSpan returns the half-open pixel range of grid cell i, clipped to limit.
func cellSpan(i int, cell float64, limit int) (int, int) {
	start := int(math.Floor(float64(i) * cell))
	end := int(math.Floor(float64(i+1) * cell))
	return min(start, limit), min(end, limit)
}
