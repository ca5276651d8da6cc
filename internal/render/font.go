package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// FaceFont is a Font backed by an x/image font.Face.
type FaceFont struct {
	mu     sync.Mutex
	face   font.Face
	ascent int
	height int
}

// NewFaceFont wraps face.
func NewFaceFont(face font.Face) *FaceFont {
	m := face.Metrics()
	return &FaceFont{
		face:   face,
		ascent: m.Ascent.Round(),
		height: m.Ascent.Round() + m.Descent.Round(),
	}
}

// LoadFont opens a TrueType/OpenType file at the given point size.
func LoadFont(path string, size float64) (*FaceFont, error) {
	fontBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading font file: %w", err)
	}
	ttfFont, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("error parsing font %s: %w", path, err)
	}
	face, err := opentype.NewFace(ttfFont, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("font %s: %w", path, err)
	}
	return NewFaceFont(face), nil
}

// Height is the line height: ascent plus descent.
func (f *FaceFont) Height() int { return f.height }

// Measure reports the advance width of text and the line height.
func (f *FaceFont) Measure(text string) (int, int, error) {
	if f.face == nil {
		return 0, 0, errors.New("render: font has no face")
	}
	f.mu.Lock()
	w := font.MeasureString(f.face, text).Ceil()
	f.mu.Unlock()
	return w, f.height, nil
}

// Rasterize draws text in fg onto a transparent image exactly as wide as the
// text and one line high.
func (f *FaceFont) Rasterize(text string, fg color.Color) (*image.RGBA, error) {
	if f.face == nil {
		return nil, errors.New("render: font has no face")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	w := font.MeasureString(f.face, text).Ceil()
	if w <= 0 || f.height <= 0 {
		return nil, fmt.Errorf("render: %q has no extent", text)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, f.height))
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: f.face,
		Dot:  fixed.P(0, f.ascent),
	}
	d.DrawString(text)
	return img, nil
}
