package analysis

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/draw"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"strings"

	_ "golang.org/x/image/bmp"  // BMP decoder
	_ "golang.org/x/image/tiff" // TIFF decoder
	_ "golang.org/x/image/webp" // WebP decoder

	apperrors "github.com/GriffinCanCode/handwriting-tutor/platform/internal/errors"
)

// PixelBuffer is a flat RGBA buffer, Width*Height*4 bytes, row-major.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewPixelBuffer draws img into a freshly allocated buffer. The result is owned by
// the caller and shares nothing with img, so every analysis starts from a clean
// surface.
func NewPixelBuffer(img image.Image) *PixelBuffer {
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return &PixelBuffer{Width: b.Dx(), Height: b.Dy(), Pix: rgba.Pix}
}

// Image wraps the buffer as an *image.RGBA without copying.
func (p *PixelBuffer) Image() *image.RGBA {
	return &image.RGBA{Pix: p.Pix, Stride: p.Width * 4, Rect: image.Rect(0, 0, p.Width, p.Height)}
}

// Empty reports whether the buffer has no pixels.
func (p *PixelBuffer) Empty() bool {
	return p.Width <= 0 || p.Height <= 0
}

// isInk reports whether the pixel at (x, y) of a binarized buffer is black.
func (p *PixelBuffer) isInk(x, y int) bool {
	return p.Pix[(y*p.Width+x)*4] == 0
}

// Decode decodes raw image bytes or a data URI ("data:image/png;base64,...").
// Failures are IMAGE_DECODE_FAILED errors; an image without pixels is IMAGE_EMPTY.
func Decode(data []byte) (image.Image, string, error) {
	return DecodeLimited(data, 0)
}

// DecodeLimited is Decode with a cap on the declared image area. The header is read
// first, so an oversized image is rejected with IMAGE_TOO_LARGE before any pixel
// memory is allocated. maxPixels <= 0 disables the cap.
func DecodeLimited(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", apperrors.New(apperrors.ImageEmpty, "no image data")
	}

	raw, err := decodeDataURI(data)
	if err != nil {
		return nil, "", err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.ImageDecodeFailed, "cannot decode image")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, apperrors.New(apperrors.ImageEmpty, "image has no pixels").WithMetadata("format", format)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, format, tooManyPixels(cfg.Width, cfg.Height).WithMetadata("format", format)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.ImageDecodeFailed, "cannot decode image")
	}
	if img.Bounds().Empty() {
		return nil, format, apperrors.New(apperrors.ImageEmpty, "image has no pixels").WithMetadata("format", format)
	}
	return img, format, nil
}

func tooManyPixels(w, h int) *apperrors.AppError {
	return apperrors.Newf(apperrors.ImageTooLarge, "image is %dx%d pixels", w, h)
}

// decodeDataURI strips a base64 data URI header; other input passes through.
func decodeDataURI(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("data:")) {
		return data, nil
	}
	header, payload, ok := strings.Cut(string(data), ",")
	if !ok {
		return nil, apperrors.New(apperrors.ImageDecodeFailed, "malformed data URI")
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, apperrors.New(apperrors.ImageDecodeFailed, "data URI is not base64 encoded").
			WithMetadata("header", header)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ImageDecodeFailed, "invalid base64 payload")
	}
	return raw, nil
}
