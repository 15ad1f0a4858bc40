// tutorctl scores handwriting images from the command line, locally or against a
// running tutor server, and renders letter samples and guides.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/analysis"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/config"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/glyph"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/overlay"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/rpc"
)

const usage = `usage: tutorctl <command> [flags]

commands:
  score   [-letter A] [-addr host:port] [-overlay out.png] image
  letters [-addr host:port]
  sample  [-letter A] [-size 200] out.png
  guide   [-letter A] [-size 200] out.png
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg := config.Load()
	logger, err := cfg.NewLogger(stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	slog.SetDefault(logger)

	var cmdErr error
	switch args[0] {
	case "score":
		cmdErr = runScore(ctx, cfg, args[1:], stdout)
	case "letters":
		cmdErr = runLetters(ctx, args[1:], stdout)
	case "sample", "guide":
		cmdErr = runRender(args[0], args[1:])
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}

	if cmdErr != nil {
		fmt.Fprintln(stderr, "error:", cmdErr)
		return 1
	}
	return 0
}

type scoreOutput struct {
	Letter    string `json:"letter"`
	Alignment int    `json:"alignment"`
	Form      int    `json:"form"`
	Overall   int    `json:"overall"`
	Grade     string `json:"grade"`
	Feedback  string `json:"feedback"`
	Supported bool   `json:"supported"`
}

func runScore(ctx context.Context, cfg *config.Config, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	letter := fs.String("letter", "A", "target letter")
	addr := fs.String("addr", "", "score remotely against this gRPC address")
	overlayPath := fs.String("overlay", "", "write the feedback overlay to this PNG file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("score needs exactly one image path")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	var out scoreOutput
	var overlayURI string
	if *addr != "" {
		out, overlayURI, err = scoreRemote(ctx, *addr, *letter, data, *overlayPath != "")
	} else {
		out, overlayURI, err = scoreLocal(ctx, cfg, *letter, data, *overlayPath != "")
	}
	if err != nil {
		return err
	}

	if *overlayPath != "" {
		if err := writeDataURI(*overlayPath, overlayURI); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func scoreLocal(ctx context.Context, cfg *config.Config, letter string, data []byte, withOverlay bool) (scoreOutput, string, error) {
	norm, ok := analysis.NormalizeLetter(letter)
	if !ok {
		return scoreOutput{}, "", fmt.Errorf("invalid letter %q", letter)
	}

	p := analysis.NewProcessor(cfg.MaxImagePixels)
	img, _, err := p.Decode(data)
	if err != nil {
		return scoreOutput{}, "", err
	}
	res, err := p.AnalyzeImage(ctx, img, norm)
	if err != nil {
		return scoreOutput{}, "", err
	}

	out := scoreOutput{
		Letter:    res.Letter,
		Alignment: res.Score.Alignment,
		Form:      res.Score.Form,
		Overall:   res.Score.Overall,
		Grade:     res.Score.Grade().String(),
		Feedback:  res.Score.Feedback(),
		Supported: res.Supported,
	}
	if !withOverlay {
		return out, "", nil
	}

	r, err := overlay.NewRenderer()
	if err != nil {
		return out, "", err
	}
	uri, err := overlay.DataURI(r.Render(img, res.Score), "png")
	return out, uri, err
}

func scoreRemote(ctx context.Context, addr, letter string, data []byte, withOverlay bool) (scoreOutput, string, error) {
	c, err := rpc.Dial(addr)
	if err != nil {
		return scoreOutput{}, "", err
	}
	defer func() { _ = c.Close() }()

	resp, err := c.Score(ctx, &rpc.ScoreRequest{SessionID: "tutorctl", Letter: letter, Image: data, Overlay: withOverlay})
	if err != nil {
		return scoreOutput{}, "", err
	}
	return scoreOutput{
		Letter:    resp.Letter,
		Alignment: int(resp.Alignment),
		Form:      int(resp.Form),
		Overall:   int(resp.Overall),
		Grade:     resp.Grade,
		Feedback:  resp.Feedback,
		Supported: resp.Supported,
	}, resp.Overlay, nil
}

func runLetters(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("letters", flag.ContinueOnError)
	addr := fs.String("addr", "", "ask this gRPC address instead of the local templates")
	if err := fs.Parse(args); err != nil {
		return err
	}

	supported := analysis.SupportedLetters()
	if *addr != "" {
		c, err := rpc.Dial(*addr)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()
		resp, err := c.Letters(ctx)
		if err != nil {
			return err
		}
		supported = resp.Supported
	}

	for _, l := range strings.Split(analysis.Alphabet, "") {
		mark := " "
		for _, s := range supported {
			if s == l {
				mark = "*"
				break
			}
		}
		fmt.Fprintf(stdout, "%s %s\n", l, mark)
	}
	return nil
}

func runRender(kind string, args []string) error {
	fs := flag.NewFlagSet(kind, flag.ContinueOnError)
	letter := fs.String("letter", "A", "letter to draw")
	size := fs.Int("size", 200, "image width and height in pixels")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%s needs exactly one output path", kind)
	}
	norm, ok := analysis.NormalizeLetter(*letter)
	if !ok {
		return fmt.Errorf("invalid letter %q", *letter)
	}
	if *size <= 0 {
		return fmt.Errorf("size must be positive")
	}

	r, err := glyph.NewRenderer()
	if err != nil {
		return err
	}

	var img image.Image
	if kind == "guide" {
		img = r.Guide(norm, *size)
	} else {
		img = r.Sample(norm, *size, *size)
	}
	data, err := overlay.Encode(img, "png")
	if err != nil {
		return err
	}
	return os.WriteFile(fs.Arg(0), data, 0o644)
}

// writeDataURI stores an overlay data URI as PNG, whatever encoding it arrived in.
func writeDataURI(path, uri string) error {
	img, _, err := analysis.Decode([]byte(uri))
	if err != nil {
		return err
	}
	data, err := overlay.Encode(img, "png")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
