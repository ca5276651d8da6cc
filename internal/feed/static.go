package feed

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// StaticInterval is how often a static feed re-pushes its lines, so a slot
// emptied by idle clearing fills up again.
const StaticInterval = 500 * time.Millisecond

// Static shows a fixed text.
type Static struct {
	lines    []string
	sink     TextSink
	logger   *slog.Logger
	interval time.Duration
}

// NewStatic returns a feed that shows text, split at newlines.
func NewStatic(text string, sink TextSink, logger *slog.Logger) *Static {
	return &Static{
		lines:    strings.Split(text, "\n"),
		sink:     sink,
		logger:   withKind(logger, KindStatic),
		interval: StaticInterval,
	}
}

func (s *Static) Run(ctx context.Context) error {
	for {
		pushText(s.logger, s.sink, s.lines)
		if !sleep(ctx, s.interval) {
			return nil
		}
	}
}
