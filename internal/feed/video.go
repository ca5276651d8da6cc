package feed

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/photonicat/infoviewer/internal/mjpeg"
)

const (
	// DefaultVideoTimeout is the connect timeout of a video stream.
	DefaultVideoTimeout = 5 * time.Second
	videoRetryDelay     = 101 * time.Millisecond
	// A stream slower than lowSpeedLimit bytes per second over a whole
	// low speed window is dropped.
	lowSpeedLimit = 5
	userAgent     = "InfoViewer"
)

// Video shows an MJPEG stream fetched over HTTP.
type Video struct {
	url     string
	sink    PixelSink
	logger  *slog.Logger
	client  *http.Client
	timeout time.Duration
	window  time.Duration
	retry   time.Duration
	decoder mjpeg.Decoder
}

// VideoOption configures a Video feed.
type VideoOption func(*Video)

// WithVideoTimeout sets the connect timeout; the low speed window follows it.
func WithVideoTimeout(d time.Duration) VideoOption {
	return func(v *Video) { v.timeout = d }
}

// WithLowSpeedWindow overrides the low speed window.
func WithLowSpeedWindow(d time.Duration) VideoOption {
	return func(v *Video) { v.window = d }
}

// WithVideoDecoder replaces the JPEG decoder.
func WithVideoDecoder(dec mjpeg.Decoder) VideoOption {
	return func(v *Video) { v.decoder = dec }
}

// NewVideo returns a feed streaming url into sink. Certificates are not
// verified.
func NewVideo(url string, sink PixelSink, logger *slog.Logger, opts ...VideoOption) *Video {
	v := &Video{
		url:     url,
		sink:    sink,
		logger:  withKind(logger, KindVideo).With("url", url),
		timeout: DefaultVideoTimeout,
		retry:   videoRetryDelay,
		decoder: mjpeg.DecodeJPEG,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.window <= 0 {
		v.window = 60*time.Second + 2*v.timeout
	}

	dialer := &net.Dialer{
		Timeout: v.timeout,
		KeepAliveConfig: net.KeepAliveConfig{
			Enable:   true,
			Idle:     120 * time.Second,
			Interval: 60 * time.Second,
		},
	}
	v.client = &http.Client{
		Transport: &http.Transport{
			Proxy:                  http.ProxyFromEnvironment,
			DialContext:            dialer.DialContext,
			TLSClientConfig:        &tls.Config{InsecureSkipVerify: true},
			TLSHandshakeTimeout:    v.timeout,
			MaxResponseHeaderBytes: mjpeg.MaxHeaderBytes,
			DisableCompression:     true,
		},
	}
	return v
}

func (v *Video) Run(ctx context.Context) error {
	for {
		status, err := v.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		v.report(status, err)
		if !sleep(ctx, v.retry) {
			return nil
		}
	}
}

func (v *Video) report(status int, err error) {
	switch {
	case status == 0:
		v.logger.Warn("stream failed", "err", err)
	case status == http.StatusOK:
		v.logger.Info("stream ended", "err", err)
	case status == http.StatusUnauthorized:
		v.logger.Warn("HTTP: not authenticated")
	case status == http.StatusNotFound:
		v.logger.Warn("HTTP: URL not found")
	case status >= 500 && status <= 599:
		v.logger.Warn("HTTP: server error", "status", status)
	default:
		v.logger.Warn("HTTP error", "status", status, "err", err)
	}
}

// stream runs one connection and returns its HTTP status, 0 if none was
// received.
func (v *Video) stream(ctx context.Context) (int, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := v.client.Do(req)
	if err != nil {
		if strings.Contains(err.Error(), headersExceeded) {
			err = fmt.Errorf("%w: %w", mjpeg.ErrHeaderTooLarge, err)
		}
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil
	}

	demux := mjpeg.New(v.sink, mjpeg.WithDecoder(v.decoder), mjpeg.WithLogger(v.logger))
	demux.SetBoundary(mjpeg.BoundaryFromContentType(resp.Header.Get("Content-Type")))

	body := &countingReader{r: resp.Body}
	go v.watchSpeed(ctx, body, cancel)

	_, err = io.Copy(demux, body)
	if cause := context.Cause(ctx); cause != nil && cause != context.Canceled {
		err = cause
	}
	v.logger.Debug("connection closed", "frames", demux.Frames(), "skipped", demux.Skipped())
	return resp.StatusCode, err
}

// watchSpeed cancels the connection when fewer than lowSpeedLimit bytes per
// second arrived during one window.
func (v *Video) watchSpeed(ctx context.Context, body *countingReader, cancel context.CancelCauseFunc) {
	t := time.NewTicker(v.window)
	defer t.Stop()
	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n := body.n.Load()
			if float64(n-last) < lowSpeedLimit*v.window.Seconds() {
				cancel(fmt.Errorf("%w: %d bytes in %s", errTooSlow, n-last, v.window))
				return
			}
			last = n
		}
	}
}

// headersExceeded is how net/http reports a response over
// MaxResponseHeaderBytes; it has no error value for it.
const headersExceeded = "server response headers exceeded"

var errTooSlow = fmt.Errorf("stream below %d bytes/s", lowSpeedLimit)

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
