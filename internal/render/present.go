package render

import (
	"context"
	"image"
	"time"
)

// scrollTick is the interval between scroll offset steps.
const scrollTick = 10 * time.Millisecond

// Presenter puts a cache on screen. A slot uses exactly one of the two Put
// methods; calling the other one panics.
type Presenter interface {
	Cache() *Cache
	PutStatic(r image.Rectangle, centerH, centerV bool)
	PutScroller(at image.Point, putW, putH int)
	// Run drives the presenter's background work until ctx is done.
	Run(ctx context.Context) error
}

// StaticBlock stacks the drawables of its cache top to bottom.
type StaticBlock struct {
	cache *Cache
}

// NewStaticBlock returns a StaticBlock over c.
func NewStaticBlock(c *Cache) *StaticBlock { return &StaticBlock{cache: c} }

// Cache implements Presenter.
func (s *StaticBlock) Cache() *Cache { return s.cache }

// Run implements Presenter; a static block has nothing to animate.
func (s *StaticBlock) Run(ctx context.Context) error { return nil }

// PutScroller implements Presenter.
func (s *StaticBlock) PutScroller(image.Point, int, int) {
	panic("render: PutScroller called on a static block")
}

// PutStatic draws the drawables one below the other from the top-left of r,
// stopping once r is filled. centerH centers the block on the widest
// drawable; centerV moves it down by a quarter of the tallest one.
func (s *StaticBlock) PutStatic(r image.Rectangle, centerH, centerV bool) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	var widest, tallest int
	for _, d := range c.cur.items {
		sz := d.Size()
		widest = max(widest, sz.X)
		tallest = max(tallest, sz.Y)
	}

	x := r.Min.X
	if centerH {
		x += r.Dx()/2 - widest/2
	}
	y := r.Min.Y
	if centerV {
		y += tallest / 4
	}
	left := r.Dy()
	for _, d := range c.cur.items {
		sz := d.Size()
		c.blit(d, image.Rect(0, 0, sz.X, sz.Y), image.Rect(x, y, x+sz.X, y+sz.Y), r)
		y += sz.Y
		left -= sz.Y
		if left <= 0 {
			break
		}
	}
}

// Scroller loops the drawables of its cache horizontally, one after the
// other, moving left by speed pixels per tick.
type Scroller struct {
	cache   *Cache
	speed   int
	centerV bool

	offset int // guarded by cache.mu
}

// NewScroller returns a Scroller over c.
func NewScroller(c *Cache, speed int, centerV bool) *Scroller {
	if speed <= 0 {
		speed = 1
	}
	return &Scroller{cache: c, speed: speed, centerV: centerV}
}

// Cache implements Presenter.
func (s *Scroller) Cache() *Cache { return s.cache }

// PutStatic implements Presenter.
func (s *Scroller) PutStatic(image.Rectangle, bool, bool) {
	panic("render: PutStatic called on a scroller")
}

// Offset reports the current scroll position in pixels.
func (s *Scroller) Offset() int {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()
	return s.offset
}

// Tick advances the scroll position by one step, wrapping at the total
// content width.
func (s *Scroller) Tick() {
	c := s.cache
	c.mu.Lock()
	if c.cur.w > 0 {
		s.offset = (s.offset + s.speed) % c.cur.w
	}
	c.mu.Unlock()
}

// Run ticks the scroller until ctx is done.
func (s *Scroller) Run(ctx context.Context) error {
	ticker := time.NewTicker(scrollTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// PutScroller fills putW pixels starting at at with consecutive slices of the
// drawables, starting from the scroll offset and wrapping around to the first
// drawable as often as needed.
func (s *Scroller) PutScroller(at image.Point, putW, putH int) {
	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cur.items) == 0 || c.cur.w <= 0 {
		return
	}
	region := image.Rect(at.X, at.Y, at.X+putW, at.Y+putH)
	off := s.offset % c.cur.w
	x := at.X
	left := putW
	for left > 0 {
		for _, d := range c.cur.items {
			sz := d.Size()
			if sz.X <= off {
				off -= sz.X
				continue
			}
			w := min(sz.X-off, left)
			y := at.Y
			if s.centerV {
				y += putH/2 - sz.Y/2
			}
			c.blit(d, image.Rect(off, 0, off+w, sz.Y), image.Rect(x, y, x+w, y+sz.Y), region)
			off = 0
			x += w
			left -= w
			if left <= 0 {
				break
			}
		}
	}
}
