package parser

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"golang.org/x/image/draw"
)

const (
	// DefaultPreviewDPI is the render resolution for page previews.
	DefaultPreviewDPI = 150

	// DefaultPreviewScale is applied as size*scale/2, so the default keeps
	// the rendered size.
	DefaultPreviewScale = 2
)

// PreviewOptions controls page preview rendering.
type PreviewOptions struct {
	DPI   float64
	Scale int
}

// DefaultPreviewOptions returns 150 DPI at scale 2.
func DefaultPreviewOptions() PreviewOptions {
	return PreviewOptions{DPI: DefaultPreviewDPI, Scale: DefaultPreviewScale}
}

// Preview is one rendered page.
type Preview struct {
	Page  int
	Image image.Image
}

// RenderPreviews rasterizes the given 1-based pages of the PDF in data, in
// the order given. A fresh MuPDF document is opened for every call.
func RenderPreviews(data []byte, pages []int, opts PreviewOptions) ([]Preview, error) {
	if opts.DPI <= 0 {
		opts.DPI = DefaultPreviewDPI
	}
	if opts.Scale <= 0 {
		opts.Scale = DefaultPreviewScale
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	defer doc.Close()

	total := doc.NumPage()
	previews := make([]Preview, 0, len(pages))
	for _, n := range pages {
		if n < 1 || n > total {
			return nil, pageRangeError(n, total)
		}
		img, err := doc.ImageDPI(n-1, opts.DPI)
		if err != nil {
			return nil, fmt.Errorf("rendering page %d: %w", n, err)
		}
		previews = append(previews, Preview{Page: n, Image: scaleImage(img, opts.Scale)})
	}
	return previews, nil
}

// ScaledSize returns (w*scale/2, h*scale/2) with integer division.
func ScaledSize(w, h, scale int) (int, int) {
	return w * scale / 2, h * scale / 2
}

func scaleImage(img image.Image, scale int) image.Image {
	b := img.Bounds()
	w, h := ScaledSize(b.Dx(), b.Dy(), scale)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	w, h = max(w, 1), max(h, 1)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// EncodePNG encodes a preview image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding preview: %w", err)
	}
	return buf.Bytes(), nil
}
