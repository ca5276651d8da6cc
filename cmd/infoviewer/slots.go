package main

import (
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/font/basicfont"

	"github.com/photonicat/infoviewer/internal/config"
	"github.com/photonicat/infoviewer/internal/feed"
	"github.com/photonicat/infoviewer/internal/format"
	"github.com/photonicat/infoviewer/internal/render"
	"github.com/photonicat/infoviewer/internal/screen"
)

// built is one configured slot with everything that runs behind it.
type built struct {
	slot  *screen.Slot
	cache *render.Cache
	feed  feed.Feed
	push  *feed.Push
}

// fonts shares faces between slots using the same file and size.
type fonts map[string]render.Font

func (f fonts) get(path string, size float64) (render.Font, error) {
	if path == "" {
		size = 0
	}
	key := fmt.Sprintf("%s@%g", path, size)
	if font, ok := f[key]; ok {
		return font, nil
	}
	var font render.Font
	if path == "" {
		font = render.NewFaceFont(basicfont.Face7x13)
	} else {
		ff, err := render.LoadFont(path, size)
		if err != nil {
			return nil, err
		}
		font = ff
	}
	f[key] = font
	return font, nil
}

func buildSlot(cfg config.Slot, grid screen.Grid, backend render.Backend, faces fonts, logger *slog.Logger) (*built, error) {
	logger = logger.With("slot", cfg.Name)

	font, err := faces.get(cfg.Font, cfg.FontSize)
	if err != nil {
		return nil, fmt.Errorf("font: %w", err)
	}
	fg, err := cfg.RGBA()
	if err != nil {
		return nil, err
	}
	formatter, err := format.New(format.Kind(cfg.Format.Type), cfg.Format.Template, logger)
	if err != nil {
		return nil, fmt.Errorf("formatter: %w", err)
	}
	cache := render.NewCache(font, backend, render.Options{
		MaxWidth:   cfg.MaxWidth,
		Foreground: fg,
		Formatter:  formatter,
		ClearAfter: cfg.ClearAfter.D(),
		Logger:     logger,
	})

	var presenter render.Presenter
	switch cfg.Present.Type {
	case config.PresentScroller:
		presenter = render.NewScroller(cache, cfg.Present.Speed, cfg.Present.CenterV)
	default:
		presenter = render.NewStaticBlock(cache)
	}

	b := &built{
		slot: &screen.Slot{
			Name:      cfg.Name,
			Feed:      cfg.Feed.Type,
			X:         cfg.X,
			Y:         cfg.Y,
			W:         cfg.W,
			H:         cfg.H,
			CenterH:   cfg.Present.CenterH,
			CenterV:   cfg.Present.CenterV,
			Presenter: presenter,
		},
		cache: cache,
	}

	f := cfg.Feed
	switch feed.Kind(f.Type) {
	case feed.KindStatic:
		b.feed = feed.NewStatic(f.Text, cache, logger)
	case feed.KindExec:
		b.feed = feed.NewExec(f.Command, f.Interval.D(), cache, logger)
	case feed.KindTail:
		b.feed = feed.NewTail(f.Command, cache, logger)
	case feed.KindMQTT:
		b.feed = feed.NewMQTT(f.Host, f.Port, f.Topics, cache, logger)
	case feed.KindVideo:
		b.feed = feed.NewVideo(f.URL, cache, logger, feed.WithVideoTimeout(f.Timeout.D()))
	case feed.KindPing:
		b.feed = feed.NewPing(f.Hosts, f.Interval.D(), feed.PingICMP, cache, logger)
	case feed.KindImage:
		region := grid.Region(cfg.X, cfg.Y, cfg.W, cfg.H)
		b.feed = feed.NewImage(f.Path, f.Interval.D(), image.Pt(region.Dx(), region.Dy()), cache, logger)
	case feed.KindPush:
		b.push = feed.NewPush(cache, logger)
		b.feed = b.push
	default:
		return nil, fmt.Errorf("unknown feed %q", f.Type)
	}
	return b, nil
}
