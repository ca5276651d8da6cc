// Package web serves a preview of the display and accepts pushed text.
package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strconv"
	"strings"
	"time"

	svg "github.com/ajstarks/svgo"
	"github.com/gofiber/fiber/v2"

	"github.com/photonicat/infoviewer/internal/render"
	"github.com/photonicat/infoviewer/internal/screen"
)

// FrameSource provides the latest composited frame, nil if there is none.
type FrameSource interface {
	Snapshot() *image.RGBA
}

// Pusher accepts lines for a push slot.
type Pusher interface {
	Send(lines []string)
}

// Server is the preview and push HTTP server.
type Server struct {
	app     *fiber.App
	screen  *screen.Screen
	frames  FrameSource
	pushers map[string]Pusher
	logger  *slog.Logger
}

// New builds the server. frames may be nil when no frames are kept.
func New(s *screen.Screen, frames FrameSource, pushers map[string]Pusher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "infoviewer",
			DisableStartupMessage: true,
		}),
		screen:  s,
		frames:  frames,
		pushers: pushers,
		logger:  logger.With("component", "web"),
	}
	srv.app.Get("/", srv.index)
	srv.app.Get("/frame", srv.serveFrame)
	srv.app.Get("/layout.svg", srv.serveLayout)
	srv.app.Get("/slots", srv.listSlots)
	srv.app.Post("/slots/:name", srv.pushSlot)
	return srv
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Run listens on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting web server", "addr", addr)
		errc <- s.app.Listen(addr)
	}()
	select {
	case err := <-errc:
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(sctx); err != nil {
			return fmt.Errorf("web server shutdown: %w", err)
		}
		return nil
	}
}

const indexPage = `<!doctype html>
<html><head><title>infoviewer</title></head>
<body style="background:#222;color:#ddd;font-family:sans-serif">
<img id="frame" src="/frame" alt="frame"><br>
<img src="/layout.svg" alt="layout">
<script>setInterval(function(){document.getElementById("frame").src="/frame?"+Date.now()},1000)</script>
</body></html>`

func (s *Server) index(c *fiber.Ctx) error {
	c.Type("html")
	return c.SendString(indexPage)
}

func (s *Server) serveFrame(c *fiber.Ctx) error {
	var frame *image.RGBA
	if s.frames != nil {
		frame = s.frames.Snapshot()
	}
	if frame == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("No frame available")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to encode image")
	}
	c.Set("Content-Type", "image/png")
	c.Set("Content-Length", strconv.Itoa(buf.Len()))
	return c.Send(buf.Bytes())
}

func (s *Server) serveLayout(c *fiber.Ctx) error {
	g := s.screen.Grid()
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(g.Width, g.Height)
	canvas.Rect(0, 0, g.Width, g.Height, "fill:black")
	for _, sl := range s.screen.Slots() {
		r := g.Cells(sl.X, sl.Y, sl.W, sl.H)
		canvas.Roundrect(r.Min.X, r.Min.Y, r.Dx(), r.Dy(), 4, 4, "fill:#1d2a33;stroke:#627482")
		canvas.Text(r.Min.X+4, r.Min.Y+14, sl.Name+" ("+sl.Feed+")", "fill:#ffe500;font-size:12px;font-family:monospace")
	}
	canvas.End()
	c.Set("Content-Type", "image/svg+xml")
	return c.Send(buf.Bytes())
}

// SlotInfo is one entry of the /slots listing.
type SlotInfo struct {
	Name   string          `json:"name"`
	Feed   string          `json:"feed"`
	Cells  [4]int          `json:"cells"`
	Region image.Rectangle `json:"region"`
	render.Stats
}

func (s *Server) listSlots(c *fiber.Ctx) error {
	g := s.screen.Grid()
	out := make([]SlotInfo, 0, len(s.screen.Slots()))
	for _, sl := range s.screen.Slots() {
		out = append(out, SlotInfo{
			Name:   sl.Name,
			Feed:   sl.Feed,
			Cells:  [4]int{sl.X, sl.Y, sl.W, sl.H},
			Region: sl.Region(g),
			Stats:  sl.Stats(),
		})
	}
	return c.JSON(out)
}

type pushBody struct {
	Lines []string `json:"lines" form:"lines"`
	Text  string   `json:"text" form:"text"`
}

func (s *Server) pushSlot(c *fiber.Ctx) error {
	name := c.Params("name")
	p, ok := s.pushers[name]
	if !ok {
		if _, exists := s.screen.Slot(name); exists {
			return c.Status(fiber.StatusConflict).SendString("Slot does not accept pushed text")
		}
		return c.Status(fiber.StatusNotFound).SendString("No such slot")
	}

	lines, err := parsePush(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(err.Error())
	}
	p.Send(lines)
	s.logger.Debug("pushed", "slot", name, "lines", len(lines))
	return c.SendString("Data updated")
}

// parsePush accepts {"lines": [...]}, {"text": "..."} or a plain text body.
func parsePush(c *fiber.Ctx) ([]string, error) {
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMETextPlain) {
		return strings.Split(strings.TrimSuffix(string(c.Body()), "\n"), "\n"), nil
	}
	var body pushBody
	if err := c.BodyParser(&body); err != nil {
		return nil, errors.New("invalid body")
	}
	switch {
	case len(body.Lines) > 0:
		return body.Lines, nil
	case body.Text != "":
		return strings.Split(body.Text, "\n"), nil
	}
	return nil, errors.New("nothing to show")
}
