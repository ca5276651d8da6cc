package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/photonicat/infoviewer/internal/format"
)

// clearCheckInterval is how often the idle-clear loop looks at the cache.
const clearCheckInterval = 500 * time.Millisecond

// Options configures a Cache.
type Options struct {
	// MaxWidth splits lines wider than this many pixels; 0 disables it.
	MaxWidth   int
	Foreground color.RGBA
	// Formatter is applied to every line passed to SetText; nil keeps it.
	Formatter format.Formatter
	// ClearAfter empties the cache when nothing was stored for this long;
	// 0 disables it.
	ClearAfter time.Duration
	Logger     *slog.Logger
}

// parts is one complete render. It is never modified after it has been
// stored in a Cache.
type parts struct {
	items []Drawable
	w, h  int
}

func (p parts) release(b Backend) {
	for _, d := range p.items {
		b.Destroy(d)
	}
}

// Cache is the render cache of one slot.
type Cache struct {
	font    Font
	backend Backend
	opts    Options
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	cur       parts
	text      string
	textValid bool
	updated   time.Time
}

// NewCache returns an empty cache rendering with font onto backend.
func NewCache(font Font, backend Backend, opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		font:    font,
		backend: backend,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// SetText renders lines, one or more drawables per line, and stores the
// result. When the formatted text equals what is already shown nothing is
// rendered and the current dimensions are returned.
func (c *Cache) SetText(lines []string) (int, int, error) {
	var key strings.Builder
	var logical []string
	for _, l := range lines {
		t := format.Apply(c.opts.Formatter, l)
		key.WriteString(t)
		logical = append(logical, strings.Split(t, "\n")...)
	}
	text := key.String()

	c.mu.Lock()
	if c.textValid && c.text == text {
		c.updated = c.now()
		w, h := c.cur.w, c.cur.h
		c.mu.Unlock()
		return w, h, nil
	}
	c.mu.Unlock()

	next, err := c.renderLines(logical)
	if err != nil {
		return 0, 0, err
	}
	w, h := c.swap(next, text, true)
	return w, h, nil
}

// SetPixels stores img as the only drawable of the cache.
func (c *Cache) SetPixels(img *image.RGBA) (int, int, error) {
	d, err := c.backend.Upload(img)
	if err != nil {
		return 0, 0, fmt.Errorf("upload image: %w", err)
	}
	sz := d.Size()
	w, h := c.swap(parts{items: []Drawable{d}, w: sz.X, h: sz.Y}, "", false)
	return w, h, nil
}

// renderLines rasterizes every logical line. A line wider than MaxWidth is cut
// into ceil(width/MaxWidth) pieces of equal rune count. Any failure releases
// what was already uploaded and aborts the pass.
func (c *Cache) renderLines(lines []string) (next parts, err error) {
	defer func() {
		if err != nil {
			next.release(c.backend)
			next = parts{}
		}
	}()

	for _, line := range lines {
		if line == "" {
			continue
		}
		tw, _, err := c.font.Measure(line)
		if err != nil {
			return next, fmt.Errorf("measure %q: %w", line, err)
		}
		if tw <= 0 {
			// Only zero-advance glyphs; nothing to draw.
			continue
		}
		pieces := 1
		if c.opts.MaxWidth > 0 && tw > c.opts.MaxWidth {
			pieces = (tw + c.opts.MaxWidth - 1) / c.opts.MaxWidth
		}
		runes := []rune(line)
		per := (len(runes) + pieces - 1) / pieces

		for i := 0; i < pieces && len(runes) > 0; i++ {
			n := min(per, len(runes))
			seg := string(runes[:n])
			runes = runes[n:]
			if pieces > 1 {
				sw, _, err := c.font.Measure(seg)
				if err != nil {
					return next, fmt.Errorf("measure %q: %w", seg, err)
				}
				if sw <= 0 {
					continue
				}
			}

			img, err := c.font.Rasterize(seg, c.opts.Foreground)
			if err != nil {
				return next, fmt.Errorf("rasterize %q: %w", seg, err)
			}
			d, err := c.backend.Upload(img)
			if err != nil {
				return next, fmt.Errorf("upload %q: %w", seg, err)
			}
			sz := d.Size()
			next.items = append(next.items, d)
			next.w += sz.X
			next.h = max(next.h, sz.Y)
		}
	}
	return next, nil
}

// swap installs next and releases the previous render outside the lock.
func (c *Cache) swap(next parts, text string, textValid bool) (int, int) {
	c.mu.Lock()
	old := c.cur
	c.cur = next
	c.text = text
	c.textValid = textValid
	c.updated = c.now()
	c.mu.Unlock()

	old.release(c.backend)
	return next.w, next.h
}

// Run empties the cache once nothing has been stored for ClearAfter. It
// returns when ctx is done, or at once when idle clearing is disabled.
func (c *Cache) Run(ctx context.Context) error {
	if c.opts.ClearAfter <= 0 {
		return nil
	}
	ticker := time.NewTicker(clearCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if c.clearIfStale() {
				c.logger.Debug("render: cleared idle slot")
			}
		}
	}
}

func (c *Cache) clearIfStale() bool {
	c.mu.Lock()
	if c.updated.IsZero() || c.now().Sub(c.updated) < c.opts.ClearAfter {
		c.mu.Unlock()
		return false
	}
	old := c.cur
	c.cur = parts{}
	c.textValid = false
	c.updated = time.Time{}
	c.mu.Unlock()

	old.release(c.backend)
	return true
}

// Size reports the current aggregate width and height.
func (c *Cache) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur.w, c.cur.h
}

// Stats describes the current contents of a cache.
type Stats struct {
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	Parts   int       `json:"parts"`
	Updated time.Time `json:"updated"`
}

// Snapshot returns Stats for the current render.
func (c *Cache) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Width: c.cur.w, Height: c.cur.h, Parts: len(c.cur.items), Updated: c.updated}
}

// Close releases the stored drawables. The cache stays usable.
func (c *Cache) Close() {
	c.mu.Lock()
	old := c.cur
	c.cur = parts{}
	c.textValid = false
	c.mu.Unlock()
	old.release(c.backend)
}

// blit draws the src part of d at dst, clipped to clip. Callers hold c.mu.
func (c *Cache) blit(d Drawable, src, dst, clip image.Rectangle) {
	vis := dst.Intersect(clip)
	if vis.Empty() {
		return
	}
	src.Min = src.Min.Add(vis.Min.Sub(dst.Min))
	src.Max = src.Min.Add(vis.Size())
	c.backend.Draw(d, src, vis)
}
