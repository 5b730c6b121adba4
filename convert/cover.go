package convert

import (
	"bytes"
	"fmt"
	"image"
	"os"

	"go.uber.org/zap"

	"d2e/config"
	"d2e/convert/epub"
	"d2e/state"
	"d2e/utils/images"
)

// prepareCover produces the cover image and its pixel dimensions. A configured
// image path wins, otherwise the built-in generated cover is used. Vector
// covers are rasterized to the configured box.
func prepareCover(env *state.LocalEnv, cfg *config.DocumentConfig, log *zap.Logger) (*epub.ImageFile, [2]int, error) {
	data := env.DefaultCover
	name := "default cover"
	if cfg.Images.Cover.ImagePath != "" {
		var err error
		data, err = os.ReadFile(cfg.Images.Cover.ImagePath)
		if err != nil {
			return nil, [2]int{}, fmt.Errorf("unable to read cover image from %q: %w", cfg.Images.Cover.ImagePath, err)
		}
		name = cfg.Images.Cover.ImagePath
	}
	if len(data) == 0 {
		return nil, [2]int{}, nil
	}

	var (
		img image.Image
		err error
	)
	if images.IsSVG(name, data) {
		img, err = images.RasterizeSVGToImage(data, cfg.Images.Cover.Width, cfg.Images.Cover.Height)
		if err != nil {
			return nil, [2]int{}, fmt.Errorf("unable to rasterize cover %q: %w", name, err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, [2]int{}, fmt.Errorf("unable to decode cover %q: %w", name, err)
		}
	}

	switch cfg.Images.Cover.Resize {
	case config.ImageResizeModeKeepAR:
		img = images.ResizeCover(img, cfg.Images.Cover.Width, cfg.Images.Cover.Height, false)
	case config.ImageResizeModeStretch:
		img = images.ResizeCover(img, cfg.Images.Cover.Width, cfg.Images.Cover.Height, true)
	}

	out, err := images.EncodeJPEG(img, cfg.Images.JPEGQuality)
	if err != nil {
		return nil, [2]int{}, fmt.Errorf("unable to encode cover: %w", err)
	}

	b := img.Bounds()
	log.Debug("Cover prepared", zap.String("source", name), zap.Int("width", b.Dx()), zap.Int("height", b.Dy()))
	return &epub.ImageFile{Name: "cover.jpg", Data: out}, [2]int{b.Dx(), b.Dy()}, nil
}
