package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-ping/ping"
)

const pingTimeout = 2 * time.Second

// Pinger measures the round trip time to host.
type Pinger func(host string) (time.Duration, error)

// Ping shows one latency line per host: "<host> <rtt> ms" or "<host> down".
type Ping struct {
	hosts    []string
	interval time.Duration
	sink     TextSink
	logger   *slog.Logger
	ping     Pinger
}

// NewPing returns a feed pinging hosts every interval. A nil pinger sends
// ICMP echo requests.
func NewPing(hosts []string, interval time.Duration, pinger Pinger, sink TextSink, logger *slog.Logger) *Ping {
	if pinger == nil {
		pinger = PingICMP
	}
	return &Ping{
		hosts:    hosts,
		interval: interval,
		sink:     sink,
		logger:   withKind(logger, KindPing),
		ping:     pinger,
	}
}

func (p *Ping) Run(ctx context.Context) error {
	for {
		lines := make([]string, 0, len(p.hosts))
		for _, h := range p.hosts {
			if ctx.Err() != nil {
				return nil
			}
			rtt, err := p.ping(h)
			if err != nil {
				p.logger.Debug("ping failed", "host", h, "err", err)
				lines = append(lines, h+" down")
				continue
			}
			lines = append(lines, fmt.Sprintf("%s %d ms", h, rtt.Milliseconds()))
		}
		pushText(p.logger, p.sink, lines)
		if !sleep(ctx, p.interval) {
			return nil
		}
	}
}

// PingICMP sends a single echo request to host and returns the round trip
// time.
func PingICMP(host string) (time.Duration, error) {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return 0, err
	}
	// Privileged mode uses raw ICMP sockets; without it go-ping falls back
	// to UDP.
	pinger.SetPrivileged(true)
	pinger.Count = 1
	pinger.Timeout = pingTimeout

	if err := pinger.Run(); err != nil {
		return 0, err
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("no reply from %s", host)
	}
	return stats.AvgRtt, nil
}
