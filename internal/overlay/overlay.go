// Package overlay draws score feedback on top of a captured frame.
package overlay

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/analysis"
	apperrors "github.com/GriffinCanCode/handwriting-tutor/platform/internal/errors"
)

// Overlay styling
const (
	WashAlpha   = 0.3
	FontSize    = 24
	TextLeft    = 20
	TextTop     = 40
	LineSpacing = 30
	JPEGQuality = 90
)

// Wash colors per grade.
var (
	ColorGood = color.RGBA{0x4c, 0xaf, 0x50, 0xff}
	ColorFair = color.RGBA{0xff, 0x98, 0x00, 0xff}
	ColorPoor = color.RGBA{0xf4, 0x43, 0x36, 0xff}
)

// WashColor returns the wash color for a score.
func WashColor(score analysis.LetterScore) color.RGBA {
	switch score.Grade() {
	case analysis.GradeGood:
		return ColorGood
	case analysis.GradeFair:
		return ColorFair
	default:
		return ColorPoor
	}
}

// Lines returns the text drawn on the overlay, top to bottom.
func Lines(score analysis.LetterScore) []string {
	return []string{
		fmt.Sprintf("Score: %d%%", score.Overall),
		fmt.Sprintf("Alignment: %d%%", score.Alignment),
		fmt.Sprintf("Form: %d%%", score.Form),
	}
}

// Renderer draws feedback overlays. It is safe for concurrent use.
type Renderer struct {
	mu   sync.Mutex // font.Face is not safe for concurrent use
	face font.Face
}

// NewRenderer loads the Go Regular face used for the score text.
func NewRenderer() (*Renderer, error) {
	face, err := loadFace(FontSize)
	if err != nil {
		return nil, err
	}
	return &Renderer{face: face}, nil
}

func loadFace(size float64) (font.Face, error) {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "cannot parse overlay font")
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "cannot create overlay face")
	}
	return face, nil
}

// Render returns a copy of img with a translucent wash in the grade color and
// the score lines in white. img is not modified.
func (r *Renderer) Render(img image.Image, score analysis.LetterScore) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	mask := image.NewUniform(color.Alpha{A: uint8(WashAlpha*255 + 0.5)})
	draw.DrawMask(dst, dst.Bounds(), image.NewUniform(WashColor(score)), image.Point{}, mask, image.Point{}, draw.Over)

	r.mu.Lock()
	defer r.mu.Unlock()
	d := &font.Drawer{Dst: dst, Src: image.White, Face: r.face}
	for i, line := range Lines(score) {
		d.Dot = fixed.P(TextLeft, TextTop+i*LineSpacing)
		d.DrawString(line)
	}
	return dst
}

// Encode serializes img as png or jpeg.
func Encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality})
	case "png", "":
		err = png.Encode(&buf, img)
	default:
		return nil, apperrors.Newf(apperrors.ImageEncodeFailed, "unsupported overlay format %q", format)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ImageEncodeFailed, "cannot encode overlay")
	}
	return buf.Bytes(), nil
}

// DataURI encodes img as a base64 data URI.
func DataURI(img image.Image, format string) (string, error) {
	data, err := Encode(img, format)
	if err != nil {
		return "", err
	}
	mime := "image/png"
	if format == "jpeg" || format == "jpg" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
