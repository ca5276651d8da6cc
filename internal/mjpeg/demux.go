// Package mjpeg splits a multipart/x-mixed-replace HTTP body into JPEG
// frames.
//
// The Demuxer is fed the body through Write as bytes arrive and never blocks:
// when the bytes needed for the next step are not buffered yet it simply
// returns and waits for the next Write. Parts are framed by their
// Content-Length header, or, for cameras that omit it, by scanning ahead for
// the next occurrence of the boundary string.
package mjpeg

import (
	"bytes"
	"errors"
	"image"
	"log/slog"
	"strconv"
)

const (
	// MaxHeaderBytes caps the response headers of one connection.
	MaxHeaderBytes = 512 * 1024
	// MaxBufferBytes caps the bytes buffered while waiting for a frame.
	MaxBufferBytes = 32 * 1024 * 1024
)

var (
	ErrHeaderTooLarge = errors.New("mjpeg: headers too large")
	ErrBufferOverflow = errors.New("mjpeg: frame too big")
	ErrNoFraming      = errors.New("mjpeg: part has no Content-Length and stream has no boundary")
)

// Sink receives decoded frames.
type Sink interface {
	SetPixels(img *image.RGBA) (w, h int, err error)
}

// Decoder turns one compressed part into pixels.
type Decoder func(data []byte) (*image.RGBA, error)

type phase int

const (
	awaitHeader phase = iota
	haveLength
	boundaryScan
)

func (p phase) String() string {
	switch p {
	case awaitHeader:
		return "header"
	case haveLength:
		return "length"
	case boundaryScan:
		return "boundary"
	default:
		return "unknown"
	}
}

var (
	crlfcrlf = []byte("\r\n\r\n")
	lflf     = []byte("\n\n")
	clHeader = []byte("content-length:")
)

// Demuxer holds the parse state of one connection. Create a new one per
// connection attempt. It is not safe for concurrent use.
type Demuxer struct {
	sink     Sink
	decode   Decoder
	logger   *slog.Logger
	boundary []byte

	buf   []byte
	phase phase
	want  int

	frames  int
	skipped int
}

// Option configures a Demuxer.
type Option func(*Demuxer)

// WithDecoder replaces DecodeJPEG.
func WithDecoder(dec Decoder) Option {
	return func(d *Demuxer) { d.decode = dec }
}

// WithLogger sets the logger used for skipped frames.
func WithLogger(l *slog.Logger) Option {
	return func(d *Demuxer) { d.logger = l }
}

// New returns a Demuxer that hands every decoded frame to sink.
func New(sink Sink, opts ...Option) *Demuxer {
	d := &Demuxer{sink: sink, decode: DecodeJPEG, logger: slog.Default()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// SetBoundary records the multipart boundary found in the response headers.
func (d *Demuxer) SetBoundary(b string) {
	if b == "" {
		d.boundary = nil
		return
	}
	d.boundary = []byte(b)
}

// Boundary reports the boundary in use, if any.
func (d *Demuxer) Boundary() string { return string(d.boundary) }

// Buffered reports how many bytes are waiting to be framed.
func (d *Demuxer) Buffered() int { return len(d.buf) }

// Frames reports how many frames were decoded and delivered.
func (d *Demuxer) Frames() int { return d.frames }

// Skipped reports how many framed parts failed to decode.
func (d *Demuxer) Skipped() int { return d.skipped }

// Write appends body bytes and processes every complete part. A non-nil error
// means the connection must be dropped.
func (d *Demuxer) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	if len(d.buf) >= MaxBufferBytes {
		return 0, ErrBufferOverflow
	}
	if err := d.process(); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (d *Demuxer) process() error {
	for {
		switch d.phase {
		case awaitHeader:
			end, sep := bytes.Index(d.buf, crlfcrlf), len(crlfcrlf)
			if end < 0 {
				end, sep = bytes.Index(d.buf, lflf), len(lflf)
				if end < 0 {
					return nil
				}
			}
			if n, ok := contentLength(d.buf[:end]); ok {
				d.want = n
				d.phase = haveLength
			} else if d.boundary == nil {
				return ErrNoFraming
			} else {
				d.phase = boundaryScan
			}
			d.consume(end + sep)

		case haveLength:
			if len(d.buf) < d.want {
				return nil
			}
			d.emit(d.buf[:d.want])
			d.consume(d.want)
			d.want = 0
			d.phase = awaitHeader

		case boundaryScan:
			n := scanBoundary(d.buf, d.boundary)
			if n < 0 {
				return nil
			}
			d.want = n
			d.phase = haveLength
		}
	}
}

func (d *Demuxer) emit(part []byte) {
	img, err := d.decode(part)
	if err != nil {
		d.skipped++
		d.logger.Debug("mjpeg: skipping frame", "bytes", len(part), "err", err)
		return
	}
	if _, _, err := d.sink.SetPixels(img); err != nil {
		d.skipped++
		d.logger.Warn("mjpeg: frame not stored", "err", err)
		return
	}
	d.frames++
}

// consume drops n bytes from the front of the buffer, keeping its storage.
func (d *Demuxer) consume(n int) {
	left := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:left]
}

// contentLength finds a Content-Length field, case-insensitively, in a part
// header. A value that does not parse or is not positive counts as absent.
func contentLength(hdr []byte) (int, bool) {
	i := bytes.Index(bytes.ToLower(hdr), clHeader)
	if i < 0 {
		return 0, false
	}
	v := bytes.TrimLeft(hdr[i+len(clHeader):], " \t")
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(string(v[:end]))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// scanBoundary returns the offset of the first occurrence of boundary that is
// followed somewhere by a part header terminator. The offset is the length of
// the current part. A match at offset zero cannot frame anything and is
// ignored.
func scanBoundary(buf, boundary []byte) int {
	if len(buf) < 2 {
		return -1
	}
	i := bytes.Index(buf[1:], boundary)
	if i < 0 {
		return -1
	}
	i++
	if !bytes.Contains(buf[i:], crlfcrlf) {
		return -1
	}
	return i
}
