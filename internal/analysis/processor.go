package analysis

import (
	"context"
	"image"
	"strings"

	apperrors "github.com/GriffinCanCode/handwriting-tutor/platform/internal/errors"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/trace"
)

// Result is the outcome of analyzing one capture.
type Result struct {
	Score     LetterScore
	Letter    string
	Supported bool // false when the letter has no template
	Format    string
	Width     int
	Height    int
	Features  FeatureVector
}

// Processor runs the scoring pipeline. It holds no per-call state and is safe for
// concurrent use.
type Processor struct {
	maxPixels int
}

// NewProcessor creates a processor. maxPixels bounds the decoded image area;
// zero or less disables the check.
func NewProcessor(maxPixels int) *Processor {
	return &Processor{maxPixels: maxPixels}
}

// Analyze decodes data (raw bytes or a data URI) and scores it against letter.
func (p *Processor) Analyze(ctx context.Context, data []byte, letter string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.From(err)
	}

	img, format, err := p.Decode(data)
	if err != nil {
		trace.Logger(ctx).Warn("capture decode failed", "bytes", len(data), "error", err)
		return nil, err
	}

	res, err := p.AnalyzeImage(ctx, img, letter)
	if err != nil {
		return nil, err
	}
	res.Format = format
	return res, nil
}

// Decode decodes data, rejecting images larger than the processor's pixel cap
// before they are allocated.
func (p *Processor) Decode(data []byte) (image.Image, string, error) {
	return DecodeLimited(data, p.maxPixels)
}

// AnalyzeImage scores an already decoded image. img is never modified.
func (p *Processor) AnalyzeImage(ctx context.Context, img image.Image, letter string) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, "analyze_capture")
	defer span.End()
	span.SetAttr("letter", letter)

	if err := ctx.Err(); err != nil {
		return nil, apperrors.From(err)
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, apperrors.New(apperrors.ImageEmpty, "image has no pixels")
	}
	if p.maxPixels > 0 && b.Dx()*b.Dy() > p.maxPixels {
		return nil, tooManyPixels(b.Dx(), b.Dy())
	}

	buf := Binarize(NewPixelBuffer(img))
	alignment := AlignmentScore(buf)
	features := ExtractFeatures(buf)
	form, supported := FormScore(features, letter)

	res := &Result{
		Score:     NewLetterScore(alignment, form),
		Letter:    strings.ToUpper(letter),
		Supported: supported,
		Width:     buf.Width,
		Height:    buf.Height,
		Features:  features,
	}

	span.SetAttr("overall", res.Score.Overall)
	trace.Logger(ctx).Debug("capture analyzed",
		"letter", res.Letter,
		"supported", supported,
		"alignment", res.Score.Alignment,
		"form", res.Score.Form,
		"overall", res.Score.Overall,
		"width", res.Width,
		"height", res.Height,
	)
	return res, nil
}
