package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/photonicat/infoviewer/internal/mjpeg"
)

func jpegFrame(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestVideoStreamsFrames(t *testing.T) {
	frame := jpegFrame(t, 4, 3)
	tests := []struct {
		name       string
		withLength bool
	}{
		{"content length", true},
		{"boundary only", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.UserAgent() != userAgent {
					t.Errorf("user agent %q", r.UserAgent())
				}
				w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
				for i := 0; i < 3; i++ {
					fmt.Fprint(w, "--frame\r\nContent-Type: image/jpeg\r\n")
					if tt.withLength {
						fmt.Fprintf(w, "Content-Length: %d\r\n", len(frame))
					}
					fmt.Fprint(w, "\r\n")
					w.Write(frame)
					fmt.Fprint(w, "\r\n")
				}
				// closing part so the boundary scan can frame the last image
				fmt.Fprint(w, "--frame\r\n\r\n")
			}))
			defer srv.Close()

			rec := &recorder{}
			v := NewVideo(srv.URL, rec, quiet)
			status, err := v.stream(context.Background())
			if status != http.StatusOK {
				t.Fatalf("status = %d (%v)", status, err)
			}
			imgs := rec.Images()
			if len(imgs) != 3 {
				t.Fatalf("got %d frames; want 3", len(imgs))
			}
			for _, sz := range imgs {
				if sz != image.Pt(4, 3) {
					t.Errorf("frame size %v; want 4x3", sz)
				}
			}
		})
	}
}

func TestVideoReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	rec := &recorder{}
	v := NewVideo(srv.URL, rec, quiet)
	status, err := v.stream(context.Background())
	if status != http.StatusNotFound || err != nil {
		t.Errorf("stream() = %d, %v; want 404, nil", status, err)
	}
	if n := len(rec.Images()); n != 0 {
		t.Errorf("got %d frames from an error page", n)
	}
}

func TestVideoAbortsSlowStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	v := NewVideo(srv.URL, &recorder{}, quiet, WithLowSpeedWindow(50*time.Millisecond))
	began := time.Now()
	_, err := v.stream(context.Background())
	if !errors.Is(err, errTooSlow) {
		t.Fatalf("stream() error = %v; want %v", err, errTooSlow)
	}
	if time.Since(began) > 3*time.Second {
		t.Errorf("abort took %s", time.Since(began))
	}
}

func TestVideoAbortsOversizedHeaders(t *testing.T) {
	frame := jpegFrame(t, 2, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=b")
		w.Header().Set("X-Padding", strings.Repeat("a", 600<<10))
		fmt.Fprintf(w, "--b\r\nContent-Length: %d\r\n\r\n", len(frame))
		w.Write(frame)
	}))
	defer srv.Close()

	rec := &recorder{}
	v := NewVideo(srv.URL, rec, quiet)
	status, err := v.stream(context.Background())
	if status != 0 {
		t.Errorf("status = %d; want none", status)
	}
	if !errors.Is(err, mjpeg.ErrHeaderTooLarge) {
		t.Errorf("stream() error = %v; want %v", err, mjpeg.ErrHeaderTooLarge)
	}
	if n := len(rec.Images()); n != 0 {
		t.Errorf("got %d frames past the header cap", n)
	}
}

func TestVideoRetriesAfterFailure(t *testing.T) {
	frame := jpegFrame(t, 2, 2)
	hits := make(chan struct{}, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case hits <- struct{}{}:
		default:
		}
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=b")
		fmt.Fprintf(w, "--b\r\nContent-Length: %d\r\n\r\n", len(frame))
		w.Write(frame)
	}))
	defer srv.Close()

	rec := &recorder{}
	stop := start(t, NewVideo(srv.URL, rec, quiet))
	waitUntil(t, "a frame from a second connection", func() bool { return len(rec.Images()) >= 2 })
	stop()
	if len(hits) < 2 {
		t.Errorf("got %d connections; want a reconnect", len(hits))
	}
}

func TestVideoDefaultWindow(t *testing.T) {
	v := NewVideo("http://example.invalid/", &recorder{}, quiet, WithVideoTimeout(3*time.Second))
	if want := 66 * time.Second; v.window != want {
		t.Errorf("window = %s; want %s", v.window, want)
	}
}
