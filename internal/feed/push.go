package feed

import (
	"context"
	"log/slog"
)

// Push shows lines handed to it by Send, typically from the web server.
// Sends that arrive faster than they can be rendered are coalesced; only
// the newest text is kept.
type Push struct {
	sink   TextSink
	logger *slog.Logger
	in     chan []string
}

// NewPush returns an idle push feed.
func NewPush(sink TextSink, logger *slog.Logger) *Push {
	return &Push{
		sink:   sink,
		logger: withKind(logger, KindPush),
		in:     make(chan []string, 1),
	}
}

// Send queues lines for display, replacing lines still waiting. It never
// blocks.
func (p *Push) Send(lines []string) {
	for {
		select {
		case p.in <- lines:
			return
		default:
		}
		select {
		case <-p.in:
		default:
		}
	}
}

func (p *Push) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case lines := <-p.in:
			pushText(p.logger, p.sink, lines)
		}
	}
}
