package mjpeg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"testing"
)

type recordingSink struct {
	sizes []image.Point
}

func (s *recordingSink) SetPixels(img *image.RGBA) (int, int, error) {
	b := img.Bounds()
	s.sizes = append(s.sizes, image.Pt(b.Dx(), b.Dy()))
	return b.Dx(), b.Dy(), nil
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 16), uint8(y * 16), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// partsOf records the raw bytes of each framed part and reports a fixed size.
func partsOf(parts *[][]byte, w, h int) Decoder {
	return func(data []byte) (*image.RGBA, error) {
		*parts = append(*parts, append([]byte(nil), data...))
		return image.NewRGBA(image.Rect(0, 0, w, h)), nil
	}
}

func TestDemuxContentLength(t *testing.T) {
	sink := &recordingSink{}
	var parts [][]byte
	d := New(sink, WithDecoder(partsOf(&parts, 4, 3)), WithLogger(quiet))

	stream := "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 10\r\n\r\n0123456789"
	if _, err := d.Write([]byte(stream)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(sink.sizes) != 1 || sink.sizes[0] != image.Pt(4, 3) {
		t.Fatalf("frames = %v; want one 4x3 frame", sink.sizes)
	}
	if string(parts[0]) != "0123456789" {
		t.Errorf("part = %q", parts[0])
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d; want 0", d.Buffered())
	}
}

func TestDemuxRealJPEGByteByByte(t *testing.T) {
	frame := encodeJPEG(t, 16, 8)
	var stream bytes.Buffer
	for i := 0; i < 2; i++ {
		fmt.Fprintf(&stream, "--b\r\ncontent-type: image/jpeg\r\ncontent-length: %d\r\n\r\n", len(frame))
		stream.Write(frame)
		stream.WriteString("\r\n")
	}

	sink := &recordingSink{}
	d := New(sink, WithLogger(quiet))
	for _, c := range stream.Bytes() {
		if _, err := d.Write([]byte{c}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if len(sink.sizes) != 2 {
		t.Fatalf("got %d frames; want 2", len(sink.sizes))
	}
	for _, sz := range sink.sizes {
		if sz != image.Pt(16, 8) {
			t.Errorf("frame size = %v; want 16x8", sz)
		}
	}
	if d.Frames() != 2 || d.Skipped() != 0 {
		t.Errorf("Frames, Skipped = %d, %d", d.Frames(), d.Skipped())
	}
}

func TestDemuxLFOnlyHeader(t *testing.T) {
	sink := &recordingSink{}
	var parts [][]byte
	d := New(sink, WithDecoder(partsOf(&parts, 1, 1)), WithLogger(quiet))
	if _, err := d.Write([]byte("Content-Length: 3\n\nabc")); err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || string(parts[0]) != "abc" {
		t.Fatalf("parts = %q", parts)
	}
}

func TestDemuxBoundaryScan(t *testing.T) {
	frame := encodeJPEG(t, 8, 8)
	var stream bytes.Buffer
	for i := 0; i < 3; i++ {
		stream.WriteString("--myboundary\r\nContent-Type: image/jpeg\r\n\r\n")
		stream.Write(frame)
		stream.WriteString("\r\n")
	}
	// the part is only complete once the next part header has arrived
	stream.WriteString("--myboundary\r\nContent-Type: image/jpeg\r\n\r\n")

	sink := &recordingSink{}
	d := New(sink, WithLogger(quiet))
	d.SetBoundary("myboundary")

	data := stream.Bytes()
	for len(data) > 0 {
		n := min(7, len(data))
		if _, err := d.Write(data[:n]); err != nil {
			t.Fatalf("Write: %v", err)
		}
		data = data[n:]
	}
	if len(sink.sizes) != 3 {
		t.Fatalf("got %d frames; want 3", len(sink.sizes))
	}
	for _, sz := range sink.sizes {
		if sz != image.Pt(8, 8) {
			t.Errorf("frame size = %v", sz)
		}
	}
}

func TestDemuxBoundaryScanPartLength(t *testing.T) {
	sink := &recordingSink{}
	var parts [][]byte
	d := New(sink, WithDecoder(partsOf(&parts, 1, 1)), WithLogger(quiet))
	d.SetBoundary("xyz")

	if _, err := d.Write([]byte("--xyz\r\n\r\nPAYLOAD--xyz")); err != nil {
		t.Fatal(err)
	}
	if len(parts) != 0 {
		t.Fatalf("part emitted before the next header terminator: %q", parts)
	}
	if _, err := d.Write([]byte("\r\n\r\n")); err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || string(parts[0]) != "PAYLOAD--" {
		t.Fatalf("parts = %q; want [PAYLOAD--]", parts)
	}
}

func TestDemuxNoFraming(t *testing.T) {
	d := New(&recordingSink{}, WithLogger(quiet))
	_, err := d.Write([]byte("Content-Type: image/jpeg\r\n\r\nxxxx"))
	if !errors.Is(err, ErrNoFraming) {
		t.Fatalf("err = %v; want ErrNoFraming", err)
	}
}

func TestDemuxBufferCap(t *testing.T) {
	d := New(&recordingSink{}, WithLogger(quiet))
	chunk := bytes.Repeat([]byte{'x'}, 1<<20)
	var err error
	for i := 0; i < 40 && err == nil; i++ {
		_, err = d.Write(chunk)
	}
	if !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("err = %v; want ErrBufferOverflow", err)
	}
}

func TestDemuxDecodeFailureIsSkipped(t *testing.T) {
	frame := encodeJPEG(t, 4, 4)
	var stream bytes.Buffer
	stream.WriteString("Content-Length: 4\r\n\r\nnope")
	fmt.Fprintf(&stream, "\r\nContent-Length: %d\r\n\r\n", len(frame))
	stream.Write(frame)

	sink := &recordingSink{}
	d := New(sink, WithLogger(quiet))
	if _, err := d.Write(stream.Bytes()); err != nil {
		t.Fatal(err)
	}
	if d.Skipped() != 1 || d.Frames() != 1 {
		t.Errorf("Skipped, Frames = %d, %d; want 1, 1", d.Skipped(), d.Frames())
	}
	if d.Buffered() != 0 {
		t.Errorf("Buffered() = %d", d.Buffered())
	}
}

func TestDemuxIsWriter(t *testing.T) {
	sink := &recordingSink{}
	var parts [][]byte
	d := New(sink, WithDecoder(partsOf(&parts, 2, 2)), WithLogger(quiet))
	src := bytes.NewBufferString("Content-Length: 2\r\n\r\nabContent-Length: 2\r\n\r\ncd")
	if _, err := io.Copy(d, src); err != nil {
		t.Fatal(err)
	}
	if len(parts) != 2 {
		t.Fatalf("parts = %q", parts)
	}
}

func TestBoundaryFromContentType(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"multipart/x-mixed-replace; boundary=frame", "frame"},
		{`multipart/x-mixed-replace; boundary="--myboundary"`, "--myboundary"},
		{"multipart/x-mixed-replace;boundary=ipcamera", "ipcamera"},
		{`multipart/x-mixed-replace;boundary="broken`, "broken"},
		{"image/jpeg", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := BoundaryFromContentType(tt.in); got != tt.want {
			t.Errorf("BoundaryFromContentType(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
