// Package glyph renders letters from the Go Regular font: practice guides shown to
// the learner and synthetic "traced" captures used for demos and tests.
package glyph

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/analysis"
	apperrors "github.com/GriffinCanCode/handwriting-tutor/platform/internal/errors"
)

// Layout, as fractions of the image height.
const (
	BaselineRatio = analysis.ExpectedBaselineRatio
	EmRatio       = 0.6
	DashLength    = 5
	GuideMargin   = 0.1
)

var (
	guideInk      = color.RGBA{0x00, 0x7b, 0xff, 0xff}
	guideBaseline = color.RGBA{0xcc, 0xcc, 0xcc, 0xff}
)

// Renderer draws single letters. Faces are cached per pixel size.
type Renderer struct {
	font *opentype.Font

	mu    sync.Mutex
	faces map[int]font.Face
}

// NewRenderer parses the embedded Go Regular font.
func NewRenderer() (*Renderer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Internal, "cannot parse glyph font")
	}
	return &Renderer{font: f, faces: make(map[int]font.Face)}, nil
}

// Sample returns a white w x h page with letter written in black, its bottom on
// the expected baseline. Invalid letters produce a blank page.
func (r *Renderer) Sample(letter string, w, h int) *image.RGBA {
	img := page(w, h)
	r.drawLetter(img, letter, image.Black, w, h)
	return img
}

// Guide returns the practice guide for letter: a dashed gray baseline and the
// letter in blue sitting on it.
func (r *Renderer) Guide(letter string, size int) *image.RGBA {
	img := page(size, size)

	y := int(float64(size) * BaselineRatio)
	left, right := int(float64(size)*GuideMargin), int(float64(size)*(1-GuideMargin))
	for x := left; x < right; x++ {
		if (x-left)/DashLength%2 == 0 {
			img.SetRGBA(x, y, guideBaseline)
		}
	}

	r.drawLetter(img, letter, image.NewUniform(guideInk), size, size)
	return img
}

func (r *Renderer) drawLetter(dst draw.Image, letter string, src image.Image, w, h int) {
	l, ok := analysis.NormalizeLetter(letter)
	if !ok || w <= 0 || h <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	face, err := r.face(int(float64(h) * EmRatio))
	if err != nil {
		return
	}
	ch := rune(l[0])
	bounds, _, ok := face.GlyphBounds(ch)
	if !ok {
		return
	}

	width := bounds.Max.X - bounds.Min.X
	d := &font.Drawer{Dst: dst, Src: src, Face: face}
	d.Dot = fixed.Point26_6{
		X: (fixed.I(w)-width)/2 - bounds.Min.X,
		Y: fixed.I(int(float64(h) * BaselineRatio)),
	}
	d.DrawString(l)
}

// face must be called with r.mu held.
func (r *Renderer) face(px int) (font.Face, error) {
	if px < 1 {
		px = 1
	}
	if f, ok := r.faces[px]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(r.font, &opentype.FaceOptions{Size: float64(px), DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	r.faces[px] = f
	return f, nil
}

func page(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}
