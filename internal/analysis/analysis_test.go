package analysis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"runtime"
	"testing"

	apperrors "github.com/GriffinCanCode/handwriting-tutor/platform/internal/errors"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode error: %v", err)
	}
	return buf.Bytes()
}

func TestBinarize(t *testing.T) {
	tests := []struct {
		name string
		in   color.RGBA
		want uint8
	}{
		{"black", color.RGBA{0, 0, 0, 255}, 0},
		{"white", color.RGBA{255, 255, 255, 255}, 255},
		{"just below threshold", color.RGBA{127, 128, 128, 255}, 0},
		{"at threshold", color.RGBA{128, 128, 128, 255}, 255},
		{"saturated red", color.RGBA{255, 0, 0, 255}, 0},
		{"yellow", color.RGBA{255, 255, 0, 255}, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &PixelBuffer{Width: 1, Height: 1, Pix: []uint8{tt.in.R, tt.in.G, tt.in.B, 77}}
			out := Binarize(buf)

			if out != buf {
				t.Error("Binarize should return the buffer it was given")
			}
			for i := 0; i < 3; i++ {
				if out.Pix[i] != tt.want {
					t.Errorf("channel %d = %d, want %d", i, out.Pix[i], tt.want)
				}
			}
			if out.Pix[3] != 77 {
				t.Errorf("alpha = %d, want 77 (untouched)", out.Pix[3])
			}
		})
	}
}

func TestNewPixelBufferCopies(t *testing.T) {
	src := solidImage(4, 4, color.RGBA{200, 10, 10, 255})
	buf := Binarize(NewPixelBuffer(src))

	if buf.Pix[0] != 0 {
		t.Fatalf("binarized pixel = %d, want 0", buf.Pix[0])
	}
	if got := src.RGBAAt(0, 0); got.R != 200 {
		t.Errorf("source image modified: R = %d, want 200", got.R)
	}
}

func TestNewPixelBufferOffsetBounds(t *testing.T) {
	src := solidImage(20, 20, color.White).SubImage(image.Rect(5, 5, 15, 12))
	buf := NewPixelBuffer(src)

	if buf.Width != 10 || buf.Height != 7 {
		t.Errorf("size = %dx%d, want 10x7", buf.Width, buf.Height)
	}
	if len(buf.Pix) != 10*7*4 {
		t.Errorf("len(Pix) = %d, want %d", len(buf.Pix), 10*7*4)
	}
}

func TestBottomEdge(t *testing.T) {
	img := solidImage(10, 10, color.White)
	buf := Binarize(NewPixelBuffer(img))
	if _, found := BottomEdge(buf); found {
		t.Error("blank image should have no bottom edge")
	}

	img.Set(3, 0, color.Black)
	buf = Binarize(NewPixelBuffer(img))
	row, found := BottomEdge(buf)
	if !found || row != 0 {
		t.Errorf("BottomEdge = (%d, %v), want (0, true)", row, found)
	}

	img.Set(7, 6, color.Black)
	buf = Binarize(NewPixelBuffer(img))
	row, found = BottomEdge(buf)
	if !found || row != 6 {
		t.Errorf("BottomEdge = (%d, %v), want (6, true)", row, found)
	}
}

func TestAlignmentScore(t *testing.T) {
	tests := []struct {
		name   string
		height int
		inkRow int // -1 for no ink
		want   float64
	}{
		{"blank capture", 100, -1, 0},
		{"all black reaches last row", 100, 99, 5},
		{"on baseline", 100, 80, 100},
		{"half tolerance above", 100, 70, 50},
		{"far above", 100, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := solidImage(50, tt.height, color.White)
			if tt.inkRow >= 0 {
				draw.Draw(img, image.Rect(0, 0, 50, tt.inkRow+1), image.Black, image.Point{}, draw.Src)
			}
			got := AlignmentScore(Binarize(NewPixelBuffer(img)))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AlignmentScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAlignmentScoreEmptyBuffer(t *testing.T) {
	if got := AlignmentScore(&PixelBuffer{}); got != 0 {
		t.Errorf("AlignmentScore(empty) = %v, want 0", got)
	}
}

func TestExtractFeaturesShape(t *testing.T) {
	sizes := [][2]int{{8, 8}, {9, 13}, {100, 100}, {37, 101}, {640, 480}}

	for _, s := range sizes {
		img := solidImage(s[0], s[1], color.White)
		for x := 0; x < s[0]; x += 3 {
			for y := 0; y < s[1]; y += 2 {
				img.Set(x, y, color.Black)
			}
		}
		f := ExtractFeatures(Binarize(NewPixelBuffer(img)))
		if len(f) != FeatureCount {
			t.Fatalf("%dx%d: len = %d, want %d", s[0], s[1], len(f), FeatureCount)
		}
		for i, v := range f {
			if v < 0 || v > 1 {
				t.Errorf("%dx%d: feature[%d] = %v out of [0,1]", s[0], s[1], i, v)
			}
		}
	}
}

func TestExtractFeaturesTopHalf(t *testing.T) {
	img := solidImage(80, 80, color.White)
	draw.Draw(img, image.Rect(0, 0, 80, 40), image.Black, image.Point{}, draw.Src)

	f := ExtractFeatures(Binarize(NewPixelBuffer(img)))
	for i, v := range f {
		want := 0.0
		if i < FeatureCount/2 {
			want = 1
		}
		if v != want {
			t.Errorf("feature[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestExtractFeaturesTinyImage(t *testing.T) {
	// 4x4 leaves half the cells without pixels.
	img := solidImage(4, 4, color.Black)
	f := ExtractFeatures(Binarize(NewPixelBuffer(img)))

	if len(f) != FeatureCount {
		t.Fatalf("len = %d, want %d", len(f), FeatureCount)
	}
	zero, one := 0, 0
	for _, v := range f {
		switch v {
		case 0:
			zero++
		case 1:
			one++
		default:
			t.Errorf("unexpected density %v", v)
		}
	}
	if one != 16 || zero != 48 {
		t.Errorf("ones = %d, zeros = %d, want 16 and 48", one, zero)
	}
}

func TestCellSpanTruncation(t *testing.T) {
	// 100 / 8 = 12.5: edges at 0, 12, 25, 37, 50, 62, 75, 87, 100.
	want := []int{0, 12, 25, 37, 50, 62, 75, 87, 100}
	for i := 0; i < GridSize; i++ {
		start, end := cellSpan(i, 12.5, 100)
		if start != want[i] || end != want[i+1] {
			t.Errorf("cellSpan(%d) = [%d,%d), want [%d,%d)", i, start, end, want[i], want[i+1])
		}
	}
}

func TestTemplates(t *testing.T) {
	for _, l := range []string{"A", "B", "C", "a", "b", "c"} {
		v, ok := Template(l)
		if !ok {
			t.Errorf("Template(%q) should be supported", l)
		}
		if len(v) != FeatureCount {
			t.Errorf("Template(%q) len = %d, want %d", l, len(v), FeatureCount)
		}
		for i, x := range v {
			if x < 0 || x > 1 {
				t.Errorf("Template(%q)[%d] = %v out of range", l, i, x)
			}
		}
	}

	for _, l := range []string{"Z", "q", "", "AB"} {
		v, ok := Template(l)
		if ok {
			t.Errorf("Template(%q) should be unsupported", l)
		}
		if len(v) != FeatureCount {
			t.Fatalf("placeholder len = %d, want %d", len(v), FeatureCount)
		}
		for _, x := range v {
			if x != UnsupportedDensity {
				t.Fatalf("placeholder value = %v, want %v", x, UnsupportedDensity)
			}
		}
	}

	got := SupportedLetters()
	if len(got) != 3 || got[0] != "A" || got[1] != "B" || got[2] != "C" {
		t.Errorf("SupportedLetters() = %v, want [A B C]", got)
	}
}

func TestNormalizeLetter(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"a", "A", true},
		{" Z ", "Z", true},
		{"", "", false},
		{"ab", "AB", false},
		{"7", "7", false},
		{"é", "É", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeLetter(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeLetter(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSimilarity(t *testing.T) {
	a, _ := Template("A")
	b, _ := Template("B")
	zero := make(FeatureVector, FeatureCount)

	if got := Similarity(a, a); got != 1 {
		t.Errorf("Similarity(a, a) = %v, want 1", got)
	}
	if Similarity(a, b) != Similarity(b, a) {
		t.Error("Similarity should be symmetric")
	}
	if Similarity(a, zero) != Similarity(zero, a) {
		t.Error("Similarity should be symmetric")
	}
	if got := Similarity(a, a[:32]); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
	if got := Similarity(nil, nil); got != 0 {
		t.Errorf("empty vectors = %v, want 0", got)
	}

	// Maximal difference: MSE 1, exp(-10).
	ones := uniformVector(1)
	if got := Similarity(zero, ones); math.Abs(got-math.Exp(-10)) > 1e-12 {
		t.Errorf("Similarity(0, 1) = %v, want %v", got, math.Exp(-10))
	}
}

func TestFormScoreUnsupportedLettersAgree(t *testing.T) {
	features := ExtractFeatures(Binarize(NewPixelBuffer(solidImage(64, 64, color.White))))

	z, okZ := FormScore(features, "Z")
	q, okQ := FormScore(features, "q")
	if okZ || okQ {
		t.Error("Z and Q should be unsupported")
	}
	if z != q {
		t.Errorf("unsupported letters differ: Z=%v Q=%v", z, q)
	}
	// All-zero features against the 0.5 placeholder: exp(-2.5).
	if want := math.Exp(-2.5) * 100; math.Abs(z-want) > 1e-9 {
		t.Errorf("FormScore(Z) = %v, want %v", z, want)
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		alignment, form, want int
	}{
		{50, 50, 50},
		{100, 0, 40},
		{0, 100, 60},
		{100, 100, 100},
		{0, 0, 0},
		{1, 0, 0},
		{2, 0, 1},
		{0, 1, 1},
		{33, 67, 53},
		{5, 0, 2},
	}
	for _, tt := range tests {
		if got := Overall(tt.alignment, tt.form); got != tt.want {
			t.Errorf("Overall(%d, %d) = %d, want %d", tt.alignment, tt.form, got, tt.want)
		}
	}

	for a := 0; a <= 100; a += 7 {
		for f := 0; f <= 100; f += 3 {
			want := int(math.Round(0.4*float64(a) + 0.6*float64(f)))
			if got := Overall(a, f); got != want {
				t.Errorf("Overall(%d, %d) = %d, want %d", a, f, got, want)
			}
		}
	}
}

func TestNewLetterScore(t *testing.T) {
	s := NewLetterScore(49.6, 30.308)
	if s.Alignment != 50 || s.Form != 30 {
		t.Errorf("rounded = (%d, %d), want (50, 30)", s.Alignment, s.Form)
	}
	if s.Overall != Overall(50, 30) {
		t.Errorf("Overall = %d, want %d", s.Overall, Overall(50, 30))
	}

	clamped := NewLetterScore(-3, 140)
	if clamped.Alignment != 0 || clamped.Form != 100 {
		t.Errorf("clamped = %+v, want alignment 0, form 100", clamped)
	}
}

func TestGrade(t *testing.T) {
	tests := []struct {
		overall  int
		want     Grade
		feedback string
	}{
		{100, GradeGood, PassingFeedback},
		{70, GradeGood, PassingFeedback},
		{69, GradeFair, KeepGoingFeedback},
		{50, GradeFair, KeepGoingFeedback},
		{49, GradePoor, KeepGoingFeedback},
		{0, GradePoor, KeepGoingFeedback},
	}
	for _, tt := range tests {
		s := LetterScore{Overall: tt.overall}
		if got := s.Grade(); got != tt.want {
			t.Errorf("Grade(%d) = %v, want %v", tt.overall, got, tt.want)
		}
		if got := s.Feedback(); got != tt.feedback {
			t.Errorf("Feedback(%d) = %q, want %q", tt.overall, got, tt.feedback)
		}
		if s.Passing() != (tt.overall >= GoodThreshold) {
			t.Errorf("Passing(%d) = %v", tt.overall, s.Passing())
		}
	}
}

func TestAnalyzeBlankCapture(t *testing.T) {
	p := NewProcessor(0)
	data := encodePNG(t, solidImage(100, 100, color.White))

	res, err := p.Analyze(context.Background(), data, "A")
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}

	// Template A against all-zero features: exp(-10 * 7.64/64) ~ 0.3031.
	want := LetterScore{Alignment: 0, Form: 30, Overall: 18}
	if res.Score != want {
		t.Errorf("Score = %+v, want %+v", res.Score, want)
	}
	if !res.Supported || res.Letter != "A" || res.Format != "png" {
		t.Errorf("result = %+v", res)
	}
	for i, v := range res.Features {
		if v != 0 {
			t.Fatalf("feature[%d] = %v, want 0", i, v)
		}
	}
}

func TestAnalyzeBlackCapture(t *testing.T) {
	p := NewProcessor(0)
	data := encodePNG(t, solidImage(100, 100, color.Black))

	res, err := p.Analyze(context.Background(), data, "a")
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	want := LetterScore{Alignment: 5, Form: 0, Overall: 2}
	if res.Score != want {
		t.Errorf("Score = %+v, want %+v", res.Score, want)
	}
}

func TestAnalyzeUnsupportedLetter(t *testing.T) {
	p := NewProcessor(0)
	data := encodePNG(t, solidImage(100, 100, color.White))

	res, err := p.Analyze(context.Background(), data, "Z")
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if res.Supported {
		t.Error("Z should be flagged unsupported")
	}
	if res.Score.Form != 8 {
		t.Errorf("Form = %d, want 8", res.Score.Form)
	}
}

func TestAnalyzeDataURI(t *testing.T) {
	p := NewProcessor(0)
	raw := encodePNG(t, solidImage(16, 16, color.White))
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	res, err := p.Analyze(context.Background(), []byte(uri), "B")
	if err != nil {
		t.Fatalf("Analyze error: %v", err)
	}
	if res.Width != 16 || res.Height != 16 {
		t.Errorf("size = %dx%d, want 16x16", res.Width, res.Height)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	p := NewProcessor(100)

	tests := []struct {
		name string
		data []byte
		code apperrors.Code
	}{
		{"empty", nil, apperrors.ImageEmpty},
		{"garbage", []byte("definitely not an image"), apperrors.ImageDecodeFailed},
		{"uri without comma", []byte("data:image/png;base64"), apperrors.ImageDecodeFailed},
		{"uri not base64", []byte("data:image/png,abc"), apperrors.ImageDecodeFailed},
		{"uri bad payload", []byte("data:image/png;base64,!!!"), apperrors.ImageDecodeFailed},
		{"too large", encodePNG(t, solidImage(20, 20, color.White)), apperrors.ImageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Analyze(context.Background(), tt.data, "A")
			if !apperrors.IsCode(err, tt.code) {
				t.Errorf("error = %v, want code %v", err, tt.code)
			}
		})
	}
}

// pngHeader returns a PNG holding only an IHDR chunk for a w×h grayscale image. The
// header decodes; the pixel data never would.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 4+13)
	copy(chunk, "IHDR")
	binary.BigEndian.PutUint32(chunk[4:], w)
	binary.BigEndian.PutUint32(chunk[8:], h)
	chunk[12] = 8 // bit depth, color type 0 (gray)

	var word [4]byte
	binary.BigEndian.PutUint32(word[:], 13)
	buf.Write(word[:])
	buf.Write(chunk)
	binary.BigEndian.PutUint32(word[:], crc32.ChecksumIEEE(chunk))
	buf.Write(word[:])
	return buf.Bytes()
}

func TestDecodeLimitedRejectsBeforeAllocating(t *testing.T) {
	data := pngHeader(30000, 30000)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, format, err := DecodeLimited(data, 4096*4096)
	runtime.ReadMemStats(&after)

	if !apperrors.IsCode(err, apperrors.ImageTooLarge) {
		t.Fatalf("DecodeLimited() error = %v, want IMAGE_TOO_LARGE", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if grew := after.TotalAlloc - before.TotalAlloc; grew > 16<<20 {
		t.Errorf("allocated %d bytes while rejecting a %d byte upload", grew, len(data))
	}
}

func TestDecodeLimited(t *testing.T) {
	small := encodePNG(t, solidImage(20, 10, color.White))

	tests := []struct {
		name      string
		data      []byte
		maxPixels int
		code      apperrors.Code
	}{
		{"under cap", small, 200, apperrors.Unknown},
		{"no cap", small, 0, apperrors.Unknown},
		{"over cap", small, 199, apperrors.ImageTooLarge},
		{"declared size over cap", pngHeader(5000, 5000), 1000, apperrors.ImageTooLarge},
		{"header without pixels", pngHeader(4, 4), 1000, apperrors.ImageDecodeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, _, err := DecodeLimited(tt.data, tt.maxPixels)
			if tt.code == apperrors.Unknown {
				if err != nil {
					t.Fatalf("DecodeLimited() error = %v", err)
				}
				if img.Bounds().Dx() != 20 {
					t.Errorf("width = %d, want 20", img.Bounds().Dx())
				}
				return
			}
			if !apperrors.IsCode(err, tt.code) {
				t.Errorf("DecodeLimited() error = %v, want code %v", err, tt.code)
			}
		})
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProcessor(0).Analyze(ctx, encodePNG(t, solidImage(8, 8, color.White)), "A")
	if !apperrors.IsCode(err, apperrors.Cancelled) {
		t.Errorf("error = %v, want CANCELLED", err)
	}
}

func TestAnalyzeImageDoesNotMutateSource(t *testing.T) {
	src := solidImage(10, 10, color.RGBA{90, 90, 90, 255})

	if _, err := NewProcessor(0).AnalyzeImage(context.Background(), src, "C"); err != nil {
		t.Fatalf("AnalyzeImage error: %v", err)
	}
	if got := src.RGBAAt(5, 5); got.R != 90 {
		t.Errorf("source pixel R = %d, want 90", got.R)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	img := solidImage(120, 90, color.White)
	draw.Draw(img, image.Rect(30, 20, 90, 72), image.Black, image.Point{}, draw.Src)
	p := NewProcessor(0)

	first, err := p.AnalyzeImage(context.Background(), img, "A")
	if err != nil {
		t.Fatalf("AnalyzeImage error: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, _ := p.AnalyzeImage(context.Background(), img, "A")
		if again.Score != first.Score {
			t.Fatalf("run %d: Score = %+v, want %+v", i, again.Score, first.Score)
		}
	}
}
