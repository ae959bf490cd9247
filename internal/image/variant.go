// Package image provides content fingerprinting, responsive variant
// generation, and a durable build cache for the Gallium gallery generator.
package image

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/webp"
	_ "golang.org/x/image/webp"
)

// Variant describes a single generated image file.
type Variant struct {
	Filename string // just the filename, e.g. "dunes-1280w.jpg"
	Width    int    // actual pixel width after resize
	Height   int    // actual pixel height after resize
}

// DecodeError indicates that source bytes could not be interpreted as an
// image. It is recoverable at the pipeline layer.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding image %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError indicates that a resized variant could not be written in the
// target format. It is recoverable at the pipeline layer.
type EncodeError struct {
	Path string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encoding %s: %v", e.Path, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Generator produces resized, re-encoded variants of a decoded source image.
// Generation is a pure single-attempt transform; it performs no caching and
// no retries.
type Generator struct {
	Quality int
	Format  string // "jpeg" or "webp"
}

// Decode interprets data as an image, honouring EXIF orientation. A failure
// is reported as a *DecodeError; name is only used for the error message.
func Decode(name string, data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Name: name, Err: err}
	}
	return img, nil
}

// Generate resizes src to targetWidth preserving aspect ratio, encodes it at
// the generator's quality setting, and writes it to outDir. The returned
// Variant reports the actual output dimensions, which may differ from the
// request by rounding. Callers must ensure targetWidth does not exceed the
// source width; Generate never checks for upscaling.
func (g *Generator) Generate(src image.Image, stem string, targetWidth int, outDir string) (Variant, error) {
	resized := imaging.Resize(src, targetWidth, 0, imaging.Lanczos)
	bounds := resized.Bounds()

	filename := fmt.Sprintf("%s-%dw.%s", stem, targetWidth, g.extension())
	outPath := filepath.Join(outDir, filename)
	if err := g.encode(resized, outPath); err != nil {
		return Variant{}, err
	}

	return Variant{
		Filename: filename,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// encode writes img to outPath in the generator's format.
func (g *Generator) encode(img image.Image, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return &EncodeError{Path: outPath, Err: err}
	}
	f, err := os.Create(outPath)
	if err != nil {
		return &EncodeError{Path: outPath, Err: err}
	}
	defer f.Close()

	switch g.Format {
	case "webp":
		if err := webp.Encode(f, img, webp.Options{Quality: g.Quality}); err != nil {
			return &EncodeError{Path: outPath, Err: err}
		}
	default: // jpeg
		if err := jpeg.Encode(f, img, &jpeg.Options{Quality: g.Quality}); err != nil {
			return &EncodeError{Path: outPath, Err: err}
		}
	}
	if err := f.Close(); err != nil {
		return &EncodeError{Path: outPath, Err: err}
	}
	return nil
}

// extension returns the output file extension (without dot) for the
// generator's format.
func (g *Generator) extension() string {
	if g.Format == "webp" {
		return "webp"
	}
	return "jpg"
}

// ProbeDimensions reads only the image header from data and returns the
// pixel dimensions. It is much cheaper than a full decode and is the last
// resort for files the codec rejects as full images.
func ProbeDimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// IsSupported reports whether the file at path has an image extension the
// pipeline knows how to read.
func IsSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

// Stem returns the filename without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
