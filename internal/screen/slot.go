// Package screen lays slots out on a character-cell grid and composites them
// onto a backend, either headless or in a window.
package screen

import (
	"fmt"
	"image"

	"github.com/photonicat/infoviewer/internal/render"
)

// Grid divides a Width by Height pixel screen into Columns by Rows cells.
type Grid struct {
	Width, Height int
	Columns, Rows int
}

// Steps returns the cell size in pixels.
func (g Grid) Steps() (int, int) {
	if g.Columns <= 0 || g.Rows <= 0 {
		return 0, 0
	}
	return g.Width / g.Columns, g.Height / g.Rows
}

// Cells returns the pixel rectangle covered by w by h cells starting at
// cell (x, y).
func (g Grid) Cells(x, y, w, h int) image.Rectangle {
	xs, ys := g.Steps()
	return image.Rect(x*xs, y*ys, (x+w)*xs, (y+h)*ys)
}

// Region returns the drawable area of a box of cells: the cells minus a
// one pixel border on every side.
func (g Grid) Region(x, y, w, h int) image.Rectangle {
	return g.Cells(x, y, w, h).Inset(1)
}

// Slot is one box on screen showing one cache through one presenter.
type Slot struct {
	Name string
	// Feed names the kind of feed writing into the slot.
	Feed string

	X, Y, W, H int

	CenterH, CenterV bool
	Presenter        render.Presenter
}

// Validate checks that the slot lies inside g.
func (s *Slot) Validate(g Grid) error {
	if s.W <= 0 || s.H <= 0 {
		return fmt.Errorf("slot %q: empty size %dx%d", s.Name, s.W, s.H)
	}
	if s.X < 0 || s.Y < 0 || s.X+s.W > g.Columns || s.Y+s.H > g.Rows {
		return fmt.Errorf("slot %q: cells %d,%d %dx%d outside the %dx%d grid", s.Name, s.X, s.Y, s.W, s.H, g.Columns, g.Rows)
	}
	return nil
}

// Region is the slot's drawable area on g.
func (s *Slot) Region(g Grid) image.Rectangle { return g.Region(s.X, s.Y, s.W, s.H) }

// Put draws the slot's current content.
func (s *Slot) Put(g Grid) {
	r := s.Region(g)
	switch p := s.Presenter.(type) {
	case *render.Scroller:
		p.PutScroller(r.Min, r.Dx(), r.Dy())
	default:
		p.PutStatic(r, s.CenterH, s.CenterV)
	}
}

// Stats reports the slot's cache contents.
func (s *Slot) Stats() render.Stats { return s.Presenter.Cache().Snapshot() }
