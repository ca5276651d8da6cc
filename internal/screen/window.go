//go:build cgo

package screen

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/photonicat/infoviewer/internal/render"
)

// texture is a drawable held by the GPU.
type texture struct {
	img      *ebiten.Image
	size     image.Point
	released atomic.Bool
}

func (t *texture) Size() image.Point { return t.size }

// gpu is the window backend. Draw only works inside the game's Draw
// callback, where target is the screen.
type gpu struct {
	target *ebiten.Image
}

// NewGPU returns the backend used in window mode.
func NewGPU() (render.Backend, error) { return &gpu{}, nil }

func (g *gpu) Upload(img *image.RGBA) (render.Drawable, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("screen: empty image")
	}
	return &texture{img: ebiten.NewImageFromImage(img), size: img.Bounds().Size()}, nil
}

func (g *gpu) Draw(d render.Drawable, src, dst image.Rectangle) {
	t, ok := d.(*texture)
	if !ok || g.target == nil || t.released.Load() {
		return
	}
	sub, ok := t.img.SubImage(src).(*ebiten.Image)
	if !ok {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(dst.Min.X), float64(dst.Min.Y))
	g.target.DrawImage(sub, op)
}

func (g *gpu) Destroy(d render.Drawable) {
	t, ok := d.(*texture)
	if !ok {
		return
	}
	if t.released.CompareAndSwap(false, true) {
		t.img.Deallocate()
	}
}

// WindowOptions configures the desktop window.
type WindowOptions struct {
	Title string
	Scale int
	FPS   int
}

// RunWindow shows s in a window until ctx is done or the window is closed.
// s must have been created on a backend from NewGPU. It blocks and has to
// be called from the main goroutine.
func RunWindow(ctx context.Context, s *Screen, opts WindowOptions) error {
	g, ok := s.backend.(*gpu)
	if !ok {
		return errors.New("screen: window mode needs the GPU backend")
	}
	scale := max(opts.Scale, 1)
	fps := opts.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	ebiten.SetWindowTitle(opts.Title)
	ebiten.SetWindowSize(s.grid.Width*scale, s.grid.Height*scale)
	ebiten.SetTPS(fps)

	err := ebiten.RunGame(&game{ctx: ctx, screen: s, gpu: g})
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

type game struct {
	ctx    context.Context
	screen *Screen
	gpu    *gpu
}

func (w *game) Update() error {
	if w.ctx.Err() != nil {
		return ebiten.Termination
	}
	return nil
}

func (w *game) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)
	w.gpu.target = screen
	w.screen.Compose()
	w.gpu.target = nil
}

func (w *game) Layout(int, int) (int, int) {
	return w.screen.grid.Width, w.screen.grid.Height
}
