// Command infoviewer shows a grid of live text, image and video slots on a
// window or a headless surface.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/photonicat/infoviewer/internal/config"
	"github.com/photonicat/infoviewer/internal/input"
	"github.com/photonicat/infoviewer/internal/render"
	"github.com/photonicat/infoviewer/internal/screen"
	"github.com/photonicat/infoviewer/internal/web"
)

func main() {
	cfg, err := config.ParseProcess(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to parse settings: %v", err)
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	layout, err := config.LoadLayout(cfg.Layout)
	if err != nil {
		log.Fatalf("Failed to load layout: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, layout, logger); err != nil {
		logger.Error("infoviewer stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Process, layout *config.Layout, logger *slog.Logger) error {
	grid := screen.Grid{Width: layout.Width, Height: layout.Height, Columns: layout.Columns, Rows: layout.Rows}

	var (
		backend render.Backend
		soft    *render.Soft
	)
	if cfg.Mode == config.ModeWindow {
		gpu, err := screen.NewGPU()
		if err != nil {
			log.Fatalf("Failed to create window backend: %v", err)
		}
		backend = gpu
	} else {
		soft = render.NewSoft(grid.Width, grid.Height)
		backend = soft
	}

	faces := make(fonts)
	var (
		slots   []*screen.Slot
		parts   []*built
		pushers = make(map[string]web.Pusher)
	)
	for _, sc := range layout.Slots {
		b, err := buildSlot(sc, grid, backend, faces, logger)
		if err != nil {
			log.Fatalf("Failed to set up slot %q: %v", sc.Name, err)
		}
		slots = append(slots, b.slot)
		parts = append(parts, b)
		if b.push != nil {
			pushers[sc.Name] = b.push
		}
	}

	bgOpts := screen.DefaultBackground
	bgOpts.GridLines = layout.GridLines
	bgOpts.Borders = layout.ShowBorders()
	s, err := screen.New(grid, slots, backend, screen.Background(grid, slots, bgOpts))
	if err != nil {
		log.Fatalf("Failed to create screen: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	for _, b := range parts {
		g.Go(func() error { return b.feed.Run(gctx) })
		g.Go(func() error { return b.cache.Run(gctx) })
		g.Go(func() error { return b.slot.Presenter.Run(gctx) })
	}

	var frames web.FrameSource
	if soft != nil {
		headless := screen.NewHeadless(s, soft, cfg.FPS, logger)
		frames = headless
		g.Go(func() error { return headless.Run(gctx) })
	}
	if cfg.Listen != "" {
		srv := web.New(s, frames, pushers, logger)
		g.Go(func() error { return srv.Run(gctx, cfg.Listen) })
	}
	if cfg.InputDevice != "" {
		q, err := input.NewQuitKey(cfg.InputDevice, cfg.QuitKey, logger)
		if err != nil {
			log.Fatalf("Failed to set up quit key: %v", err)
		}
		g.Go(func() error { return q.Run(gctx, cancel) })
	}

	logger.Info("infoviewer started", "mode", cfg.Mode, "slots", len(slots),
		"width", grid.Width, "height", grid.Height)

	if cfg.Mode == config.ModeWindow {
		err := screen.RunWindow(gctx, s, screen.WindowOptions{Title: "InfoViewer", Scale: cfg.Scale, FPS: cfg.FPS})
		cancel()
		if err != nil {
			return errors.Join(err, g.Wait())
		}
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("infoviewer exited", "frames", s.Frames())
	return err
}
