package screen

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/llgcode/draw2d/draw2dimg"
)

// BackgroundOptions controls what is drawn behind the slots.
type BackgroundOptions struct {
	Fill color.RGBA
	// GridLines draws the cell grid in GridColor.
	GridLines bool
	GridColor color.RGBA
	// Borders outlines every slot in BorderColor with rounded corners.
	Borders     bool
	BorderColor color.RGBA
	Radius      float64
}

// DefaultBackground is a black screen with slot borders.
var DefaultBackground = BackgroundOptions{
	Fill:        color.RGBA{0, 0, 0, 255},
	GridColor:   color.RGBA{255, 255, 255, 255},
	Borders:     true,
	BorderColor: color.RGBA{98, 116, 130, 255},
	Radius:      4,
}

// Background paints the static parts of the screen once.
func Background(g Grid, slots []*Slot, opts BackgroundOptions) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(opts.Fill), image.Point{}, draw.Src)

	gc := draw2dimg.NewGraphicContext(img)
	gc.SetLineWidth(1)

	if opts.GridLines {
		xs, ys := g.Steps()
		gc.SetStrokeColor(opts.GridColor)
		for cy := 0; cy < g.Rows; cy++ {
			y := float64(cy*ys) + 0.5
			gc.MoveTo(0, y)
			gc.LineTo(float64(g.Width), y)
		}
		for cx := 0; cx < g.Columns; cx++ {
			x := float64(cx*xs) + 0.5
			gc.MoveTo(x, 0)
			gc.LineTo(x, float64(g.Height))
		}
		gc.Stroke()
	}

	if opts.Borders {
		gc.SetStrokeColor(opts.BorderColor)
		for _, s := range slots {
			c := g.Cells(s.X, s.Y, s.W, s.H)
			r := min(opts.Radius, float64(min(c.Dx(), c.Dy()))/2)
			roundedRect(gc, float64(c.Min.X)+0.5, float64(c.Min.Y)+0.5, float64(c.Dx()-1), float64(c.Dy()-1), r)
			gc.Stroke()
		}
	}
	return img
}

// roundedRect traces a rectangle with corners of radius r; draw2d angles
// are in radians.
func roundedRect(gc *draw2dimg.GraphicContext, x, y, w, h, r float64) {
	gc.MoveTo(x+r, y)
	gc.LineTo(x+w-r, y)
	gc.ArcTo(x+w-r, y+r, r, r, -math.Pi/2, math.Pi/2)
	gc.LineTo(x+w, y+h-r)
	gc.ArcTo(x+w-r, y+h-r, r, r, 0, math.Pi/2)
	gc.LineTo(x+r, y+h)
	gc.ArcTo(x+r, y+h-r, r, r, math.Pi/2, math.Pi/2)
	gc.LineTo(x, y+r)
	gc.ArcTo(x+r, y+r, r, r, math.Pi, math.Pi/2)
	gc.Close()
}
