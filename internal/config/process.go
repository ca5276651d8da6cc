// Package config loads the process settings and the screen layout.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Display modes.
const (
	ModeHeadless = "headless"
	ModeWindow   = "window"
)

// Process holds the settings of one infoviewer process. Environment
// variables provide defaults that flags override.
type Process struct {
	Layout      string `env:"INFOVIEWER_LAYOUT" envDefault:"layout.json"`
	Mode        string `env:"INFOVIEWER_MODE" envDefault:"headless"`
	FPS         int    `env:"INFOVIEWER_FPS" envDefault:"100"`
	Scale       int    `env:"INFOVIEWER_SCALE" envDefault:"1"`
	Listen      string `env:"INFOVIEWER_LISTEN" envDefault:":8081"`
	InputDevice string `env:"INFOVIEWER_INPUT_DEVICE"`
	QuitKey     string `env:"INFOVIEWER_QUIT_KEY" envDefault:"power"`
	LogLevel    string `env:"INFOVIEWER_LOG_LEVEL" envDefault:"info"`
}

// ParseProcess reads the environment and then args.
func ParseProcess(fs *flag.FlagSet, args []string) (Process, error) {
	var cfg Process
	if err := env.Parse(&cfg); err != nil {
		return Process{}, fmt.Errorf("parse env: %w", err)
	}
	fs.StringVar(&cfg.Layout, "layout", cfg.Layout, "path of the layout file")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "display mode: headless or window")
	fs.IntVar(&cfg.FPS, "fps", cfg.FPS, "compositor frames per second")
	fs.IntVar(&cfg.Scale, "scale", cfg.Scale, "window scale factor")
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "web server address, empty to disable")
	fs.StringVar(&cfg.InputDevice, "input-device", cfg.InputDevice, "input device with the quit key, empty to disable")
	fs.StringVar(&cfg.QuitKey, "quit-key", cfg.QuitKey, "key that stops the process")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Process{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Process{}, err
	}
	return cfg, nil
}

// Validate checks the settings.
func (p Process) Validate() error {
	var errs []error
	if p.Mode != ModeHeadless && p.Mode != ModeWindow {
		errs = append(errs, fmt.Errorf("unknown mode %q", p.Mode))
	}
	if p.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", p.FPS))
	}
	if p.Scale <= 0 {
		errs = append(errs, fmt.Errorf("scale must be positive, got %d", p.Scale))
	}
	if _, err := p.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel.
func (p Process) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(p.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}
