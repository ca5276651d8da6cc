package mjpeg

import (
	"mime"
	"strings"
)

// BoundaryFromContentType extracts the boundary parameter of a multipart
// Content-Type value. Cameras are sloppy here, so when the value does not parse
// as a media type everything after the first '=' is taken, minus quotes.
func BoundaryFromContentType(ct string) string {
	if _, params, err := mime.ParseMediaType(ct); err == nil {
		if b := params["boundary"]; b != "" {
			return b
		}
	}
	_, b, ok := strings.Cut(ct, "=")
	if !ok {
		return ""
	}
	b = strings.TrimPrefix(b, `"`)
	if q := strings.IndexByte(b, '"'); q >= 0 {
		b = b[:q]
	}
	return strings.TrimSpace(b)
}
