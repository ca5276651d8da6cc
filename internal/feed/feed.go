// Package feed contains the data sources of the display. Every feed runs on
// its own goroutine and writes into exactly one slot cache.
package feed

import (
	"context"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// Feed is an autonomous source of slot content.
type Feed interface {
	// Run produces content until ctx is done. Source failures are logged and
	// retried inside Run; it only returns once the feed is finished.
	Run(ctx context.Context) error
}

// TextSink receives text lines. render.Cache implements it.
type TextSink interface {
	SetText(lines []string) (int, int, error)
}

// PixelSink receives decoded images. render.Cache implements it.
type PixelSink interface {
	SetPixels(img *image.RGBA) (int, int, error)
}

// Kind names a feed variant in the layout file.
type Kind string

const (
	KindStatic Kind = "static"
	KindExec   Kind = "exec"
	KindTail   Kind = "tail"
	KindMQTT   Kind = "mqtt"
	KindVideo  Kind = "video"
	KindPing   Kind = "ping"
	KindImage  Kind = "image"
	KindPush   Kind = "push"
)

// sleep waits for d or until ctx is done and reports whether the caller
// should keep going.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func withKind(l *slog.Logger, k Kind) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("feed", string(k))
}

func pushText(logger *slog.Logger, sink TextSink, lines []string) {
	w, h, err := sink.SetText(lines)
	if err != nil {
		logger.Error("render failed", "err", err)
		return
	}
	logger.Debug("updated", "width", w, "height", h)
}

// Terminal size reported to commands. Their output is a pipe, so tools that
// ask the tty directly still see no terminal.
const termColumns, termLines = 80, 25

// shellCommand runs script through sh -c.
func shellCommand(ctx context.Context, script string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Env = append(os.Environ(),
		"COLUMNS="+strconv.Itoa(termColumns),
		"LINES="+strconv.Itoa(termLines))
	return cmd
}
