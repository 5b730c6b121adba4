package images

import (
	"bytes"
	"image"
	"image/jpeg"
)

// EncodeJPEG encodes img with the given quality. A grayscale image is stored
// as single-channel JPEG which is noticeably smaller.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if IsGrayscale(img) {
		img = toGray(img)
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toGray(img image.Image) image.Image {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return img
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}
