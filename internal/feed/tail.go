package feed

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
)

// Tail starts a long running command once and shows each line it prints.
// The feed ends when the command's output ends; it is not restarted.
type Tail struct {
	cmd    string
	sink   TextSink
	logger *slog.Logger
}

// NewTail returns a feed following the output of cmd, run through sh -c.
func NewTail(cmd string, sink TextSink, logger *slog.Logger) *Tail {
	return &Tail{
		cmd:    cmd,
		sink:   sink,
		logger: withKind(logger, KindTail).With("cmd", cmd),
	}
}

func (t *Tail) Run(ctx context.Context) error {
	cmd := shellCommand(ctx, t.cmd)
	out, err := cmd.StdoutPipe()
	if err != nil {
		t.logger.Error("cannot follow command", "err", fmt.Errorf("stdout pipe: %w", err))
		return nil
	}
	if err := cmd.Start(); err != nil {
		t.logger.Error("cannot follow command", "err", fmt.Errorf("start: %w", err))
		return nil
	}

	r := bufio.NewReader(out)
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if ctx.Err() == nil {
				t.logger.Info("command output ended", "err", err)
			}
			break
		}
		switch b {
		case '\r':
		case '\n':
			pushText(t.logger, t.sink, []string{string(line)})
			line = line[:0]
		default:
			line = append(line, b)
		}
	}

	_ = cmd.Process.Kill()
	_ = cmd.Wait()
	return nil
}
