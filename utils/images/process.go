// Package images implements raster and vector processing for embedded book
// images and covers.
package images

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// TransformOptions control per-image processing of extracted document images.
type TransformOptions struct {
	RemovePNGTransparency bool
	ScaleFactor           float64
	JPEGQuality           int
	RasterizeSVG          bool
}

// Transform processes one extracted image and returns its output name and
// bytes. Unknown or unprocessable formats pass through unchanged, the name
// changes only when an SVG is rasterized.
func Transform(filename string, data []byte, opts TransformOptions) (string, []byte, error) {
	if IsSVG(filename, data) {
		if !opts.RasterizeSVG {
			return filename, data, nil
		}
		img, err := RasterizeSVGToImage(data, 0, 0)
		if err != nil {
			return "", nil, fmt.Errorf("unable to rasterize '%s': %w", filename, err)
		}
		img = Scale(img, opts.ScaleFactor)
		out, err := EncodePNG(img)
		if err != nil {
			return "", nil, err
		}
		return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".png", out, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// not a raster format we know, keep the bytes as they are
		return filename, data, nil
	}

	changed := false
	if opts.ScaleFactor > 0 && opts.ScaleFactor != 1.0 {
		img = Scale(img, opts.ScaleFactor)
		changed = true
	}

	switch format {
	case "png":
		if opts.RemovePNGTransparency && hasTransparency(img) {
			img = Flatten(img)
			changed = true
		}
		if !changed {
			return filename, data, nil
		}
		out, err := EncodePNG(img)
		if err != nil {
			return "", nil, err
		}
		return filename, out, nil
	case "jpeg":
		if !changed {
			return filename, data, nil
		}
		out, err := EncodeJPEG(img, opts.JPEGQuality)
		if err != nil {
			return "", nil, err
		}
		return filename, out, nil
	default:
		// gif, bmp, tiff and friends are carried through untouched unless
		// scaled, in which case they become PNG
		if !changed {
			return filename, data, nil
		}
		out, err := EncodePNG(img)
		if err != nil {
			return "", nil, err
		}
		return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".png", out, nil
	}
}

// ResizeCover sizes a cover image to the configured box. With stretch false
// the aspect ratio is preserved and the image fits inside the box, with
// stretch true the image takes the box dimensions exactly.
func ResizeCover(img image.Image, width, height int, stretch bool) image.Image {
	if width <= 0 || height <= 0 {
		return img
	}
	if stretch {
		return imaging.Resize(img, width, height, imaging.Lanczos)
	}
	b := img.Bounds()
	scale := math.Min(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
	w := max(int(math.Round(float64(b.Dx())*scale)), 1)
	h := max(int(math.Round(float64(b.Dy())*scale)), 1)
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// Scale resizes an image by factor, keeping the aspect ratio. Factors of
// zero or one are identity.
func Scale(img image.Image, factor float64) image.Image {
	if factor <= 0 || factor == 1.0 {
		return img
	}
	b := img.Bounds()
	w := max(int(math.Round(float64(b.Dx())*factor)), 1)
	return imaging.Resize(img, w, 0, imaging.Lanczos)
}

// Flatten composites the image over a white background, dropping alpha.
func Flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// EncodePNG serializes an image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IsSVG reports whether the payload looks like an SVG document.
func IsSVG(filename string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(filename), ".svg") {
		return true
	}
	if t, err := filetype.Match(data); err == nil && t.Extension == "svg" {
		return true
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(head, []byte("<svg"))
}

func hasTransparency(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}
