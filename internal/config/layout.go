package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"strconv"
	"time"

	"github.com/photonicat/infoviewer/internal/feed"
	"github.com/photonicat/infoviewer/internal/format"
)

// Presenter kinds.
const (
	PresentStatic   = "static"
	PresentScroller = "scroller"
)

// DefaultFontSize is used when a slot has a font file but no size.
const DefaultFontSize = 16

// Duration is a time.Duration written in JSON either as a number of
// seconds or as a Go duration string such as "1m30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	secs, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("duration %s: want seconds or a duration string", b)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// Layout is the screen description read from the layout file.
type Layout struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	Columns int `json:"columns"`
	Rows    int `json:"rows"`
	// GridLines draws the cell grid behind the slots.
	GridLines bool `json:"grid_lines"`
	// Borders outlines every slot; on unless set to false.
	Borders *bool  `json:"borders,omitempty"`
	Slots   []Slot `json:"slots"`
}

// Slot configures one box on screen.
type Slot struct {
	Name string `json:"name"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	W    int    `json:"w"`
	H    int    `json:"h"`

	// Font is a TrueType/OpenType file; empty selects the built-in
	// 7x13 bitmap font.
	Font       string   `json:"font,omitempty"`
	FontSize   float64  `json:"font_size,omitempty"`
	Color      []int    `json:"color,omitempty"`
	MaxWidth   int      `json:"max_width,omitempty"`
	ClearAfter Duration `json:"clear_after,omitempty"`

	Present Present `json:"present"`
	Format  Format  `json:"format"`
	Feed    Feed    `json:"feed"`
}

// Present selects how a slot is drawn.
type Present struct {
	Type    string `json:"type"`
	CenterH bool   `json:"center_h,omitempty"`
	CenterV bool   `json:"center_v,omitempty"`
	// Speed is the scroll step in pixels per tick.
	Speed int `json:"speed,omitempty"`
}

// Format selects the template applied to feed text.
type Format struct {
	Type     string `json:"type,omitempty"`
	Template string `json:"template,omitempty"`
}

// Feed selects and parameterizes the data source of a slot. Which fields
// are used depends on Type.
type Feed struct {
	Type string `json:"type"`

	Text     string   `json:"text,omitempty"`
	Command  string   `json:"command,omitempty"`
	Interval Duration `json:"interval,omitempty"`

	Host   string   `json:"host,omitempty"`
	Port   int      `json:"port,omitempty"`
	Topics []string `json:"topics,omitempty"`

	URL     string   `json:"url,omitempty"`
	Timeout Duration `json:"timeout,omitempty"`

	Hosts []string `json:"hosts,omitempty"`
	Path  string   `json:"path,omitempty"`
}

// LoadLayout reads, completes and validates the layout file at path.
func LoadLayout(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	l.applyDefaults()
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return &l, nil
}

func (l *Layout) applyDefaults() {
	for i := range l.Slots {
		s := &l.Slots[i]
		if s.Present.Type == "" {
			s.Present.Type = PresentStatic
		}
		if s.Present.Type == PresentScroller && s.Present.Speed == 0 {
			s.Present.Speed = 1
		}
		if s.Font != "" && s.FontSize == 0 {
			s.FontSize = DefaultFontSize
		}
		if s.Color == nil {
			s.Color = []int{255, 255, 255}
		}
		switch feed.Kind(s.Feed.Type) {
		case feed.KindMQTT:
			if s.Feed.Port == 0 {
				s.Feed.Port = 1883
			}
		case feed.KindVideo:
			if s.Feed.Timeout == 0 {
				s.Feed.Timeout = Duration(feed.DefaultVideoTimeout)
			}
		}
	}
}

// ShowBorders reports whether slot borders are drawn.
func (l *Layout) ShowBorders() bool { return l.Borders == nil || *l.Borders }

// Validate reports every problem in the layout.
func (l *Layout) Validate() error {
	var errs []error
	if l.Width <= 0 || l.Height <= 0 {
		errs = append(errs, fmt.Errorf("screen size %dx%d", l.Width, l.Height))
	}
	if l.Columns <= 0 || l.Rows <= 0 {
		errs = append(errs, fmt.Errorf("grid %dx%d", l.Columns, l.Rows))
	}
	if len(l.Slots) == 0 {
		errs = append(errs, errors.New("no slots"))
	}
	names := make(map[string]bool)
	for _, s := range l.Slots {
		if s.Name == "" {
			errs = append(errs, errors.New("slot without a name"))
		} else if names[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate slot %q", s.Name))
		}
		names[s.Name] = true
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("slot %q: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks one slot.
func (s *Slot) Validate() error {
	var errs []error
	if s.Font != "" {
		if _, err := os.Stat(s.Font); err != nil {
			errs = append(errs, fmt.Errorf("font: %w", err))
		}
		if s.FontSize <= 0 {
			errs = append(errs, fmt.Errorf("font size %g", s.FontSize))
		}
	}
	if _, err := s.RGBA(); err != nil {
		errs = append(errs, err)
	}
	if s.MaxWidth < 0 {
		errs = append(errs, fmt.Errorf("max_width %d", s.MaxWidth))
	}
	if s.ClearAfter < 0 {
		errs = append(errs, fmt.Errorf("clear_after %s", s.ClearAfter.D()))
	}

	switch s.Present.Type {
	case PresentStatic:
	case PresentScroller:
		if s.Present.Speed <= 0 {
			errs = append(errs, fmt.Errorf("scroll speed %d", s.Present.Speed))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown presenter %q", s.Present.Type))
	}

	switch format.Kind(s.Format.Type) {
	case format.KindNone, format.KindEscape, format.KindJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown formatter %q", s.Format.Type))
	}

	if err := s.Feed.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RGBA converts the color triple.
func (s *Slot) RGBA() (color.RGBA, error) {
	if len(s.Color) != 3 {
		return color.RGBA{}, fmt.Errorf("color %v: want 3 components", s.Color)
	}
	for _, c := range s.Color {
		if c < 0 || c > 255 {
			return color.RGBA{}, fmt.Errorf("color %v: components must be 0..255", s.Color)
		}
	}
	return color.RGBA{uint8(s.Color[0]), uint8(s.Color[1]), uint8(s.Color[2]), 255}, nil
}

// Validate checks the parameters required by the feed type.
func (f *Feed) Validate() error {
	need := func(ok bool, what string) error {
		if ok {
			return nil
		}
		return fmt.Errorf("%s feed needs %s", f.Type, what)
	}
	switch feed.Kind(f.Type) {
	case feed.KindStatic:
		return nil
	case feed.KindExec:
		return errors.Join(need(f.Command != "", "a command"), need(f.Interval > 0, "a positive interval"))
	case feed.KindTail:
		return need(f.Command != "", "a command")
	case feed.KindMQTT:
		return errors.Join(need(f.Host != "", "a host"), need(len(f.Topics) > 0, "topics"),
			need(f.Port > 0 && f.Port < 65536, "a valid port"))
	case feed.KindVideo:
		return errors.Join(need(f.URL != "", "a url"), need(f.Timeout > 0, "a positive timeout"))
	case feed.KindPing:
		return errors.Join(need(len(f.Hosts) > 0, "hosts"), need(f.Interval > 0, "a positive interval"))
	case feed.KindImage:
		return errors.Join(need(f.Path != "", "a path"), need(f.Interval > 0, "a positive interval"))
	case feed.KindPush:
		return nil
	case "":
		return errors.New("feed type missing")
	}
	return fmt.Errorf("unknown feed %q", f.Type)
}
