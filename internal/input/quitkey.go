// Package input watches a Linux input device for the quit key.
package input

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

var keyNames = map[string]evdev.EvCode{
	"power": evdev.KEY_POWER,
	"esc":   evdev.KEY_ESC,
	"q":     evdev.KEY_Q,
	"enter": evdev.KEY_ENTER,
	"space": evdev.KEY_SPACE,
}

// KeyCode resolves a key name such as "power" or "esc".
func KeyCode(name string) (evdev.EvCode, error) {
	code, ok := keyNames[strings.TrimPrefix(strings.ToLower(name), "key_")]
	if !ok {
		return 0, fmt.Errorf("unknown key %q", name)
	}
	return code, nil
}

// QuitKey calls a function when a key is pressed on a named device.
type QuitKey struct {
	device string
	code   evdev.EvCode
	logger *slog.Logger
}

// NewQuitKey watches for key on the input device called device, for
// example "rk805 pwrkey".
func NewQuitKey(device, key string, logger *slog.Logger) (*QuitKey, error) {
	code, err := KeyCode(key)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuitKey{device: device, code: code, logger: logger.With("component", "input", "device", device)}, nil
}

// Run waits for the key and then calls quit. A missing or unreadable device
// only disables the key; Run returns nil in that case.
func (q *QuitKey) Run(ctx context.Context, quit func()) error {
	path, err := q.find()
	if err != nil {
		q.logger.Warn("quit key disabled", "err", err)
		return nil
	}
	dev, err := evdev.Open(path)
	if err != nil {
		q.logger.Warn("quit key disabled", "err", fmt.Errorf("open %s: %w", path, err))
		return nil
	}
	defer dev.Close()
	// ReadOne blocks; closing the device releases it.
	stop := context.AfterFunc(ctx, func() { dev.Close() })
	defer stop()

	if err := dev.Grab(); err != nil {
		q.logger.Warn("failed to grab device", "err", err)
	} else {
		defer dev.Ungrab()
	}
	q.logger.Info("watching quit key", "path", path, "key", q.code)

	for {
		ev, err := dev.ReadOne()
		if err != nil {
			if ctx.Err() == nil {
				q.logger.Warn("input read failed", "err", err)
			}
			return nil
		}
		if pressed(ev, q.code) {
			q.logger.Info("quit key pressed")
			quit()
			return nil
		}
	}
}

func (q *QuitKey) find() (string, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return "", fmt.Errorf("list devices: %w", err)
	}
	for _, p := range paths {
		if p.Name == q.device {
			return p.Path, nil
		}
	}
	return "", fmt.Errorf("no input device named %q", q.device)
}

func pressed(ev *evdev.InputEvent, code evdev.EvCode) bool {
	return ev != nil && ev.Type == evdev.EV_KEY && ev.Code == code && ev.Value == 1
}
