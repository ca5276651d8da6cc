package format

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// JSON is the {...} dialect. The payload must be a JSON document; each
// placeholder reads one top level field of it:
//
//	{jsonstr:<field>}           string value
//	{jsonval:<field>}           integer value
//	{jsondval:<digits>:<field>} real value with <digits> decimals
//
// A missing field or one of the wrong type renders as "?".
type JSON struct {
	tokens []jsonToken
	logger *slog.Logger
}

type jsonToken struct {
	literal string
	isCmd   bool
	verb    string
	field   string
	digits  int
}

// NewJSON compiles template.
func NewJSON(template string, logger *slog.Logger) *JSON {
	if logger == nil {
		logger = slog.Default()
	}
	j := &JSON{logger: logger}

	var lit strings.Builder
	for len(template) > 0 {
		start := strings.IndexByte(template, '{')
		if start < 0 {
			lit.WriteString(template)
			break
		}
		lit.WriteString(template[:start])
		template = template[start+1:]

		end := strings.IndexByte(template, '}')
		if end < 0 {
			// unterminated placeholder produces nothing
			break
		}
		raw := template[:end]
		template = template[end+1:]

		if lit.Len() > 0 {
			j.tokens = append(j.tokens, jsonToken{literal: lit.String()})
			lit.Reset()
		}
		j.tokens = append(j.tokens, compilePlaceholder(raw))
	}
	if lit.Len() > 0 {
		j.tokens = append(j.tokens, jsonToken{literal: lit.String()})
	}
	return j
}

func compilePlaceholder(raw string) jsonToken {
	t := jsonToken{isCmd: true}
	switch {
	case strings.HasPrefix(raw, "jsonstr:"):
		t.verb, t.field = "jsonstr", raw[len("jsonstr:"):]
	case strings.HasPrefix(raw, "jsonval:"):
		t.verb, t.field = "jsonval", raw[len("jsonval:"):]
	case strings.HasPrefix(raw, "jsondval:"):
		t.verb = "jsondval"
		digits, field, _ := strings.Cut(raw[len("jsondval:"):], ":")
		t.digits, _ = strconv.Atoi(digits)
		if t.digits < 0 {
			t.digits = 0
		}
		t.field = field
	default:
		t.verb = raw
	}
	return t
}

// Process implements Formatter.
func (j *JSON) Process(in string) string {
	if !gjson.Valid(in) {
		j.logger.Warn("format: json decoding failed", "payload", in)
		return ""
	}
	doc := gjson.Parse(in)

	var out strings.Builder
	for _, t := range j.tokens {
		if !t.isCmd {
			out.WriteString(t.literal)
			continue
		}
		switch t.verb {
		case "jsonstr", "jsonval", "jsondval":
			out.WriteString(lookup(doc, t))
		default:
			j.logger.Warn("format: placeholder not understood", "placeholder", t.verb)
		}
	}
	return out.String()
}

func lookup(doc gjson.Result, t jsonToken) string {
	if !doc.IsObject() {
		return "?"
	}
	v := doc.Get(gjson.Escape(t.field))
	switch t.verb {
	case "jsonstr":
		if v.Type == gjson.String {
			return v.Str
		}
	case "jsonval":
		if isInteger(v) {
			return strconv.FormatInt(v.Int(), 10)
		}
	case "jsondval":
		if v.Type == gjson.Number && !isInteger(v) {
			return strconv.FormatFloat(v.Num, 'f', t.digits, 64)
		}
	}
	return "?"
}

// isInteger follows the lexical form of the number: 30 is an integer, 30.0
// and 3e1 are reals.
func isInteger(v gjson.Result) bool {
	return v.Type == gjson.Number && !strings.ContainsAny(v.Raw, ".eE")
}
