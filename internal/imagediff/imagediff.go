// Package imagediff compares PNG screenshots pixel by pixel.
//
// Both images are normalized to RGBA before comparison, so a paletted PNG
// and a true-colour PNG of the same picture compare equal. The diff image
// paints differing pixels red over a faded greyscale copy of the base
// image, which keeps the page layout readable around the changes.
package imagediff

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// ErrDimensionMismatch is returned when the two images differ in size.
var ErrDimensionMismatch = errors.New("image dimensions differ")

// Result counts differing pixels.
type Result struct {
	Differences int `json:"differences"`
	Total       int `json:"total"`
}

// Percentage returns Differences/Total*100, or 0 for an empty image.
func (r Result) Percentage() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Differences) / float64(r.Total) * 100
}

var diffColor = color.RGBA{R: 255, A: 255}

// Differ compares PNG files on disk.
type Differ struct {
	// Tolerance is the largest per-channel delta still treated as equal.
	// Zero means exact comparison.
	Tolerance uint8
}

// New creates a Differ with the given per-channel tolerance.
func New(tolerance uint8) *Differ {
	return &Differ{Tolerance: tolerance}
}

// Diff compares basePath with testPath and writes a diff PNG to diffPath.
// The diff is written whenever both images could be decoded and have the
// same dimensions, whatever the number of differences.
func (d *Differ) Diff(ctx context.Context, basePath, testPath, diffPath string) (Result, error) {
	base, err := readPNG(basePath)
	if err != nil {
		return Result{}, err
	}
	test, err := readPNG(testPath)
	if err != nil {
		return Result{}, err
	}

	res, diff, err := d.Compare(ctx, base, test)
	if err != nil {
		return Result{}, err
	}

	if err := writePNG(diffPath, diff); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Compare diffs two decoded images and returns the counts and diff image.
func (d *Differ) Compare(ctx context.Context, base, test image.Image) (Result, *image.RGBA, error) {
	bb, tb := base.Bounds(), test.Bounds()
	if bb.Dx() != tb.Dx() || bb.Dy() != tb.Dy() {
		return Result{}, nil, fmt.Errorf("%w: base %dx%d, test %dx%d",
			ErrDimensionMismatch, bb.Dx(), bb.Dy(), tb.Dx(), tb.Dy())
	}

	a := toRGBA(base)
	b := toRGBA(test)
	out := image.NewRGBA(a.Bounds())

	res := Result{Total: a.Bounds().Dx() * a.Bounds().Dy()}

	for y := 0; y < a.Bounds().Dy(); y++ {
		if err := ctx.Err(); err != nil {
			return Result{}, nil, err
		}
		for x := 0; x < a.Bounds().Dx(); x++ {
			pa := a.RGBAAt(x, y)
			pb := b.RGBAAt(x, y)
			if d.equal(pa, pb) {
				out.SetRGBA(x, y, faded(pa))
				continue
			}
			res.Differences++
			out.SetRGBA(x, y, diffColor)
		}
	}

	return res, out, nil
}

func (d *Differ) equal(a, b color.RGBA) bool {
	return delta(a.R, b.R) <= d.Tolerance &&
		delta(a.G, b.G) <= d.Tolerance &&
		delta(a.B, b.B) <= d.Tolerance &&
		delta(a.A, b.A) <= d.Tolerance
}

func delta(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// faded returns a light grey version of c.
func faded(c color.RGBA) color.RGBA {
	lum := (299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B)) / 1000
	g := uint8(255 - (255-lum)/4)
	return color.RGBA{R: g, G: g, B: g, A: 255}
}

// toRGBA copies img into an RGBA image anchored at the origin.
func toRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func readPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
