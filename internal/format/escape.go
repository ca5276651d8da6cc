package format

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Escape is the $...$ dialect.
//
//	field:<in-sep>:<out-sep>:<idx,idx,...>
//	regex:<out-sep>:<pattern>
//
// Text outside the dollar signs is copied as is. An unterminated command runs
// to the end of the template.
type Escape struct {
	tokens []token
	logger *slog.Logger
}

type token struct {
	literal string
	cmd     command
}

type command interface {
	apply(in string) string
}

// NewEscape compiles template. An empty template passes payloads through
// unchanged.
func NewEscape(template string, logger *slog.Logger) (*Escape, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Escape{logger: logger}

	var lit strings.Builder
	for len(template) > 0 {
		start := strings.IndexByte(template, '$')
		if start < 0 {
			lit.WriteString(template)
			break
		}
		lit.WriteString(template[:start])
		template = template[start+1:]

		raw := template
		end := strings.IndexByte(template, '$')
		if end >= 0 {
			raw = template[:end]
			template = template[end+1:]
		} else {
			template = ""
		}

		cmd, err := compileCommand(raw, logger)
		if err != nil {
			return nil, err
		}
		if lit.Len() > 0 {
			e.tokens = append(e.tokens, token{literal: lit.String()})
			lit.Reset()
		}
		e.tokens = append(e.tokens, token{cmd: cmd})
	}
	if lit.Len() > 0 {
		e.tokens = append(e.tokens, token{literal: lit.String()})
	}
	return e, nil
}

// Process implements Formatter.
func (e *Escape) Process(in string) string {
	if len(e.tokens) == 0 {
		return in
	}
	var out strings.Builder
	for _, t := range e.tokens {
		if t.cmd == nil {
			out.WriteString(t.literal)
			continue
		}
		out.WriteString(t.cmd.apply(in))
	}
	return out.String()
}

func compileCommand(raw string, logger *slog.Logger) (command, error) {
	name, rest, _ := strings.Cut(raw, ":")
	switch name {
	case "field":
		parts := strings.SplitN(rest, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%q: want field:<in-sep>:<out-sep>:<indices>", raw)
		}
		var idx []int
		for _, f := range strings.Split(parts[2], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%q: bad field index %q", raw, f)
			}
			idx = append(idx, n)
		}
		return fieldCmd{inSep: parts[0], outSep: parts[1], idx: idx}, nil
	case "regex":
		parts := strings.SplitN(rest, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%q: want regex:<out-sep>:<pattern>", raw)
		}
		re, err := regexp.Compile(parts[1])
		if err != nil {
			return nil, fmt.Errorf("%q: %w", raw, err)
		}
		return regexCmd{outSep: parts[0], re: re}, nil
	default:
		return unknownCmd{name: name, logger: logger}, nil
	}
}

type fieldCmd struct {
	inSep, outSep string
	idx           []int
}

func (c fieldCmd) apply(in string) string {
	fields := strings.Split(in, c.inSep)
	var out strings.Builder
	for i, n := range c.idx {
		if i > 0 {
			out.WriteString(c.outSep)
		}
		if n < len(fields) {
			out.WriteString(fields[n])
		}
	}
	return out.String()
}

type regexCmd struct {
	outSep string
	re     *regexp.Regexp
}

// apply joins the whole match and every capture group.
func (c regexCmd) apply(in string) string {
	m := c.re.FindStringSubmatch(in)
	return strings.Join(m, c.outSep)
}

type unknownCmd struct {
	name   string
	logger *slog.Logger
}

func (c unknownCmd) apply(string) string {
	c.logger.Warn("format: unknown escape", "escape", c.name)
	return ""
}
