// Package format turns raw feed payloads into display strings.
//
// Two dialects exist. The escape dialect copies the template literally and
// substitutes $...$ commands that slice the payload (field:, regex:). The JSON
// dialect parses the payload as a record and substitutes {...} placeholders
// with field values (jsonstr:, jsonval:, jsondval:).
package format

import (
	"fmt"
	"log/slog"
)

// Formatter transforms one payload line. Implementations are immutable and
// safe for concurrent use.
type Formatter interface {
	Process(in string) string
}

// Kind names a formatter dialect in configuration.
type Kind string

const (
	KindNone   Kind = ""
	KindEscape Kind = "escape"
	KindJSON   Kind = "json"
)

// New builds the formatter for kind. KindNone yields a nil Formatter, which
// callers treat as the identity transform.
func New(kind Kind, template string, logger *slog.Logger) (Formatter, error) {
	switch kind {
	case KindNone:
		return nil, nil
	case KindEscape:
		return NewEscape(template, logger)
	case KindJSON:
		return NewJSON(template, logger), nil
	default:
		return nil, fmt.Errorf("unknown formatter %q", kind)
	}
}

// Apply runs f over in, treating a nil f as the identity.
func Apply(f Formatter, in string) string {
	if f == nil {
		return in
	}
	return f.Process(in)
}
