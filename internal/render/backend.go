// Package render holds the per-slot render cache and the two ways of putting
// it on screen: a static block and a horizontal scroller.
//
// Feeds write to a Cache from their own goroutines; the compositor reads it
// once per frame. Writers do all measuring, rasterizing and uploading before
// taking the cache lock, swap the new parts in, and release the old parts
// after unlocking, so a reader never waits for more than a pointer swap.
package render

import (
	"image"
	"image/color"
)

// Drawable is a rasterized object owned by a Backend.
type Drawable interface {
	Size() image.Point
}

// Backend is the graphics side of the display: it turns pixels into
// drawables, composites them onto its current target and frees them.
type Backend interface {
	Upload(img *image.RGBA) (Drawable, error)
	Draw(d Drawable, src, dst image.Rectangle)
	Destroy(d Drawable)
}

// Font measures and rasterizes text. Implementations serialize their own
// access to the underlying face.
type Font interface {
	Measure(text string) (w, h int, err error)
	Rasterize(text string, fg color.Color) (*image.RGBA, error)
}
