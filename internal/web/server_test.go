package web

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"

	"golang.org/x/image/font/basicfont"

	"github.com/photonicat/infoviewer/internal/render"
	"github.com/photonicat/infoviewer/internal/screen"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubFrames struct{ img *image.RGBA }

func (s stubFrames) Snapshot() *image.RGBA { return s.img }

type recordingPusher struct {
	mu   sync.Mutex
	sent [][]string
}

func (p *recordingPusher) Send(lines []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, lines)
}

func newTestServer(t *testing.T, frames FrameSource) (*Server, *recordingPusher) {
	t.Helper()
	grid := screen.Grid{Width: 160, Height: 80, Columns: 8, Rows: 4}
	soft := render.NewSoft(grid.Width, grid.Height)
	cache := func() *render.Cache {
		return render.NewCache(render.NewFaceFont(basicfont.Face7x13), soft,
			render.Options{Foreground: color.RGBA{255, 255, 255, 255}, Logger: quiet})
	}
	clock := cache()
	if _, _, err := clock.SetText([]string{"12:00"}); err != nil {
		t.Fatal(err)
	}
	slots := []*screen.Slot{
		{Name: "clock", Feed: "exec", X: 0, Y: 0, W: 4, H: 1, Presenter: render.NewStaticBlock(clock)},
		{Name: "notes", Feed: "push", X: 0, Y: 2, W: 8, H: 2, Presenter: render.NewScroller(cache(), 1, false)},
	}
	s, err := screen.New(grid, slots, soft, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := &recordingPusher{}
	return New(s, frames, map[string]Pusher{"notes": p}, quiet), p
}

func TestFrame(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	tests := []struct {
		name       string
		frames     FrameSource
		wantStatus int
	}{
		{"no compositor", nil, http.StatusServiceUnavailable},
		{"no frame yet", stubFrames{}, http.StatusServiceUnavailable},
		{"frame", stubFrames{img: img}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.frames)
			resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/frame", nil))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d; want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
				t.Errorf("Content-Type = %q", ct)
			}
			got, err := png.Decode(resp.Body)
			if err != nil {
				t.Fatal(err)
			}
			if got.Bounds() != img.Bounds() {
				t.Errorf("bounds = %v; want %v", got.Bounds(), img.Bounds())
			}
		})
	}
}

func TestLayoutSVG(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/layout.svg", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"<svg", "clock (exec)", "notes (push)", "</svg>"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("layout.svg lacks %q", want)
		}
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestListSlots(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/slots", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got []struct {
		Name   string `json:"name"`
		Feed   string `json:"feed"`
		Cells  [4]int `json:"cells"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Parts  int    `json:"parts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d slots; want 2", len(got))
	}
	if got[0].Name != "clock" || got[0].Width != 35 || got[0].Height != 13 || got[0].Parts != 1 {
		t.Errorf("clock = %+v", got[0])
	}
	if got[1].Name != "notes" || got[1].Feed != "push" || got[1].Cells != [4]int{0, 2, 8, 2} || got[1].Width != 0 {
		t.Errorf("notes = %+v", got[1])
	}
}

func TestPushSlot(t *testing.T) {
	tests := []struct {
		name        string
		slot        string
		contentType string
		body        string
		wantStatus  int
		wantLines   []string
	}{
		{"json lines", "notes", "application/json", `{"lines":["a","b"]}`, http.StatusOK, []string{"a", "b"}},
		{"json text", "notes", "application/json", `{"text":"x\ny"}`, http.StatusOK, []string{"x", "y"}},
		{"plain text", "notes", "text/plain", "hello\nworld\n", http.StatusOK, []string{"hello", "world"}},
		{"empty json", "notes", "application/json", `{}`, http.StatusBadRequest, nil},
		{"bad json", "notes", "application/json", `{`, http.StatusBadRequest, nil},
		{"not a push slot", "clock", "text/plain", "x", http.StatusConflict, nil},
		{"unknown slot", "nope", "text/plain", "x", http.StatusNotFound, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, p := newTestServer(t, nil)
			req := httptest.NewRequest(http.MethodPost, "/slots/"+tt.slot, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			resp, err := srv.App().Test(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d; want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantLines == nil {
				if len(p.sent) != 0 {
					t.Errorf("sent %q on a failed request", p.sent)
				}
				return
			}
			if len(p.sent) != 1 || !reflect.DeepEqual(p.sent[0], tt.wantLines) {
				t.Errorf("sent %q; want [%q]", p.sent, tt.wantLines)
			}
		})
	}
}

func TestIndex(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
}
