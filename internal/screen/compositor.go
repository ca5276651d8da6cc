package screen

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/photonicat/infoviewer/internal/render"
)

// DefaultFPS is the compositor tick rate.
const DefaultFPS = 100

// Screen composites the background and every slot onto a backend. Compose
// must only be called from one goroutine at a time.
type Screen struct {
	grid    Grid
	slots   []*Slot
	backend render.Backend
	bg      render.Drawable
	frames  atomic.Int64
}

// New checks the slots against grid and uploads the background.
func New(grid Grid, slots []*Slot, backend render.Backend, bg *image.RGBA) (*Screen, error) {
	if xs, ys := grid.Steps(); xs <= 0 || ys <= 0 {
		return nil, fmt.Errorf("screen %dx%d cannot hold a %dx%d grid", grid.Width, grid.Height, grid.Columns, grid.Rows)
	}
	seen := make(map[string]bool, len(slots))
	for _, s := range slots {
		if err := s.Validate(grid); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate slot name %q", s.Name)
		}
		seen[s.Name] = true
	}
	s := &Screen{grid: grid, slots: slots, backend: backend}
	if bg != nil {
		d, err := backend.Upload(bg)
		if err != nil {
			return nil, fmt.Errorf("upload background: %w", err)
		}
		s.bg = d
	}
	return s, nil
}

// Grid returns the screen's grid.
func (s *Screen) Grid() Grid { return s.grid }

// Slots returns the slots in drawing order.
func (s *Screen) Slots() []*Slot { return s.slots }

// Slot looks a slot up by name.
func (s *Screen) Slot(name string) (*Slot, bool) {
	for _, sl := range s.slots {
		if sl.Name == name {
			return sl, true
		}
	}
	return nil, false
}

// Frames reports how many frames were composed.
func (s *Screen) Frames() int64 { return s.frames.Load() }

// Compose draws one frame.
func (s *Screen) Compose() {
	if s.bg != nil {
		r := image.Rectangle{Max: s.bg.Size()}
		s.backend.Draw(s.bg, r, r)
	}
	for _, sl := range s.slots {
		sl.Put(s.grid)
	}
	s.frames.Add(1)
}

// Close releases the background and every slot's drawables.
func (s *Screen) Close() {
	if s.bg != nil {
		s.backend.Destroy(s.bg)
		s.bg = nil
	}
	for _, sl := range s.slots {
		sl.Presenter.Cache().Close()
	}
}

// Headless composes frames onto a software surface at a fixed rate and keeps
// a copy of the latest one.
type Headless struct {
	screen   *Screen
	soft     *render.Soft
	interval time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	frame *image.RGBA
}

// NewHeadless drives screen, which must draw onto soft, at fps frames per
// second.
func NewHeadless(screen *Screen, soft *render.Soft, fps int, logger *slog.Logger) *Headless {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Headless{
		screen:   screen,
		soft:     soft,
		interval: time.Second / time.Duration(fps),
		logger:   logger,
	}
}

// Tick composes one frame and publishes it.
func (h *Headless) Tick() {
	h.soft.Clear()
	h.screen.Compose()

	surf := h.soft.Surface()
	h.mu.Lock()
	if h.frame == nil || h.frame.Bounds() != surf.Bounds() {
		h.frame = image.NewRGBA(surf.Bounds())
	}
	copy(h.frame.Pix, surf.Pix)
	h.mu.Unlock()
}

// Run ticks until ctx is done.
func (h *Headless) Run(ctx context.Context) error {
	t := time.NewTicker(h.interval)
	defer t.Stop()
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			frames := h.screen.Frames()
			h.logger.Info("compositor stopped", "frames", frames,
				"fps", float64(frames)/time.Since(start).Seconds())
			return nil
		case <-t.C:
			h.Tick()
		}
	}
}

// Snapshot returns a copy of the latest frame, or nil before the first one.
func (h *Headless) Snapshot() *image.RGBA {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.frame == nil {
		return nil
	}
	out := image.NewRGBA(h.frame.Bounds())
	copy(out.Pix, h.frame.Pix)
	return out
}
