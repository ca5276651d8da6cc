package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// MaxExecOutput bounds how much of a command's output is kept per run.
const MaxExecOutput = 64 << 10

// ErrNoOutput is reported when a polled command printed nothing.
var ErrNoOutput = errors.New("command produced no output")

// Exec runs a shell command every interval and shows its output.
type Exec struct {
	cmd      string
	interval time.Duration
	sink     TextSink
	logger   *slog.Logger
}

// NewExec returns a feed polling cmd, run through sh -c.
func NewExec(cmd string, interval time.Duration, sink TextSink, logger *slog.Logger) *Exec {
	return &Exec{
		cmd:      cmd,
		interval: interval,
		sink:     sink,
		logger:   withKind(logger, KindExec).With("cmd", cmd),
	}
}

func (e *Exec) Run(ctx context.Context) error {
	for {
		lines, err := e.poll(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			e.logger.Warn("command failed", "err", err)
		default:
			pushText(e.logger, e.sink, lines)
		}
		if !sleep(ctx, e.interval) {
			return nil
		}
	}
}

// poll runs the command once and returns its output split into lines.
func (e *Exec) poll(ctx context.Context) ([]string, error) {
	cmd := shellCommand(ctx, e.cmd)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	data, readErr := io.ReadAll(io.LimitReader(out, MaxExecOutput))
	// The output is complete or over the limit; the process is not needed
	// any longer either way.
	_ = cmd.Process.Kill()
	_ = cmd.Wait()

	if readErr != nil {
		return nil, fmt.Errorf("read: %w", readErr)
	}
	if len(data) == 0 {
		return nil, ErrNoOutput
	}
	return splitOutput(string(data)), nil
}

// splitOutput drops carriage returns and splits at newlines. A final
// newline does not produce an empty trailing line.
func splitOutput(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
