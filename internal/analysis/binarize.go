package analysis

// Binarize forces every pixel of buf to pure black or pure white and returns it.
//
// Ownership of buf passes to Binarize: the colors are overwritten in place and the
// same buffer is handed back. Callers that still need the original pixels must pass
// a copy (NewPixelBuffer always produces one). Alpha is left untouched.
func Binarize(buf *PixelBuffer) *PixelBuffer {
	pix := buf.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		// avg < 128 compared on the sum, so fractional averages like 127.67 count as ink.
		var v uint8 = 255
		if int(pix[i])+int(pix[i+1])+int(pix[i+2]) < BinaryThreshold*3 {
			v = 0
		}
		pix[i], pix[i+1], pix[i+2] = v, v, v
	}
	return buf
}
