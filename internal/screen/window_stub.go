//go:build !cgo

package screen

import (
	"context"
	"errors"

	"github.com/photonicat/infoviewer/internal/render"
)

var errNoWindow = errors.New("window mode requires cgo (build/run with CGO_ENABLED=1)")

// WindowOptions configures the desktop window.
type WindowOptions struct {
	Title string
	Scale int
	FPS   int
}

// NewGPU fails without cgo; use headless mode instead.
func NewGPU() (render.Backend, error) { return nil, errNoWindow }

// RunWindow fails without cgo.
func RunWindow(context.Context, *Screen, WindowOptions) error { return errNoWindow }
