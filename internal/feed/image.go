package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"

	"github.com/photonicat/infoviewer/internal/mjpeg"
)

// Image shows a picture file, reloaded every interval so that a replaced
// file is picked up.
type Image struct {
	path     string
	interval time.Duration
	maxSize  image.Point
	sink     PixelSink
	logger   *slog.Logger
}

// NewImage returns a feed showing the PNG, JPEG, GIF or SVG file at path.
// A non-zero maxSize scales larger pictures down to fit, keeping the aspect
// ratio.
func NewImage(path string, interval time.Duration, maxSize image.Point, sink PixelSink, logger *slog.Logger) *Image {
	return &Image{
		path:     path,
		interval: interval,
		maxSize:  maxSize,
		sink:     sink,
		logger:   withKind(logger, KindImage).With("path", path),
	}
}

func (f *Image) Run(ctx context.Context) error {
	for {
		if err := f.show(); err != nil {
			f.logger.Warn("cannot show image", "err", err)
		}
		if !sleep(ctx, f.interval) {
			return nil
		}
	}
}

func (f *Image) show() error {
	img, err := LoadImage(f.path)
	if err != nil {
		return err
	}
	img = fit(img, f.maxSize)
	w, h, err := f.sink.SetPixels(img)
	if err != nil {
		return err
	}
	f.logger.Debug("updated", "width", w, "height", h)
	return nil
}

// LoadImage decodes a PNG, JPEG, GIF or SVG file by its extension.
func LoadImage(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var img image.Image
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		img, err = png.Decode(bytes.NewReader(data))
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(bytes.NewReader(data))
	case ".gif":
		img, err = gif.Decode(bytes.NewReader(data))
	case ".svg":
		return rasterizeSVG(data)
	default:
		return nil, fmt.Errorf("unsupported image format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return mjpeg.ToRGBA(img), nil
}

func rasterizeSVG(data []byte) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	w, h := int(icon.ViewBox.W), int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		return nil, errors.New("svg has an empty view box")
	}
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1.0)
	return rgba, nil
}

// fit scales img down so it fits into limit. Zero dimensions of limit are
// not limited.
func fit(img *image.RGBA, limit image.Point) *image.RGBA {
	sz := img.Bounds().Size()
	scale := 1.0
	if limit.X > 0 && sz.X > limit.X {
		scale = float64(limit.X) / float64(sz.X)
	}
	if limit.Y > 0 && sz.Y > limit.Y {
		scale = min(scale, float64(limit.Y)/float64(sz.Y))
	}
	if scale == 1.0 {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(1, int(float64(sz.X)*scale)), max(1, int(float64(sz.Y)*scale))))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}
