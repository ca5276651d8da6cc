package render

import (
	"errors"
	"image"
	"image/color"
	"sync/atomic"

	"golang.org/x/image/draw"
)

// Bitmap is the drawable of the software backend.
type Bitmap struct {
	img      *image.RGBA
	released atomic.Bool
}

// Size implements Drawable.
func (b *Bitmap) Size() image.Point { return b.img.Bounds().Size() }

// Released reports whether Destroy was called on b.
func (b *Bitmap) Released() bool { return b.released.Load() }

// Soft composites drawables onto an in-memory RGBA surface. Upload and Destroy
// may be called from any goroutine; Draw, Clear and Surface belong to the
// compositor goroutine.
type Soft struct {
	surface *image.RGBA
	bg      color.RGBA

	uploads  atomic.Int64
	destroys atomic.Int64
}

// NewSoft allocates a w by h surface cleared to opaque black.
func NewSoft(w, h int) *Soft {
	s := &Soft{
		surface: image.NewRGBA(image.Rect(0, 0, w, h)),
		bg:      color.RGBA{0, 0, 0, 255},
	}
	s.Clear()
	return s
}

// Upload implements Backend. The image is kept, not copied.
func (s *Soft) Upload(img *image.RGBA) (Drawable, error) {
	if img == nil {
		return nil, errors.New("render: nil image")
	}
	s.uploads.Add(1)
	return &Bitmap{img: img}, nil
}

// Draw implements Backend.
func (s *Soft) Draw(d Drawable, src, dst image.Rectangle) {
	b, ok := d.(*Bitmap)
	if !ok || b.Released() {
		return
	}
	src = src.Intersect(b.img.Bounds())
	dst.Max = dst.Min.Add(src.Size())
	draw.Draw(s.surface, dst, b.img, src.Min, draw.Over)
}

// Destroy implements Backend.
func (s *Soft) Destroy(d Drawable) {
	b, ok := d.(*Bitmap)
	if !ok {
		return
	}
	if b.released.CompareAndSwap(false, true) {
		s.destroys.Add(1)
	}
}

// Clear fills the surface with the background color.
func (s *Soft) Clear() {
	draw.Draw(s.surface, s.surface.Bounds(), image.NewUniform(s.bg), image.Point{}, draw.Src)
}

// Surface returns the composited image.
func (s *Soft) Surface() *image.RGBA { return s.surface }

// Uploads reports how many drawables were created.
func (s *Soft) Uploads() int64 { return s.uploads.Load() }

// Live reports how many drawables are not yet destroyed.
func (s *Soft) Live() int64 { return s.uploads.Load() - s.destroys.Load() }
