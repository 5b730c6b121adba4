package images

import (
	"image"
	"image/color"
)

// IsGrayscale reports whether every pixel of the image has equal color
// channels. Native gray formats short-circuit, everything else is scanned.
func IsGrayscale(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if px.R != px.G || px.R != px.B {
				return false
			}
		}
	}
	return true
}
