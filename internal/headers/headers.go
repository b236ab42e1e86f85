package headers

import (
	"errors"
	"strings"
)

var (
	ErrNoColon   = errors.New("malformed header: no colon")
	ErrEmptyName = errors.New("malformed header: empty name")
)

type field struct {
	name  string // as first set, used when writing
	value string
}

// Headers is a case-insensitive header set. Each name holds a single
// value; setting a name again overwrites the value but keeps its
// original position, so iteration follows first-insertion order.
type Headers struct {
	fields map[string]*field
	order  []string
}

func NewHeaders() *Headers {
	return &Headers{
		fields: make(map[string]*field),
	}
}

// Get returns the value for a header
func (h *Headers) Get(key string) (string, bool) {
	f, ok := h.fields[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	return f.value, true
}

// Set stores value under key, replacing any earlier value
func (h *Headers) Set(key, value string) {
	lower := strings.ToLower(key)
	if f, ok := h.fields[lower]; ok {
		f.value = value
		return
	}
	h.fields[lower] = &field{name: key, value: value}
	h.order = append(h.order, lower)
}

// Len returns the number of distinct header names
func (h *Headers) Len() int {
	return len(h.order)
}

// Each calls fn for every header in insertion order
func (h *Headers) Each(fn func(name, value string)) {
	for _, k := range h.order {
		f := h.fields[k]
		fn(f.name, f.value)
	}
}

// ParseLine parses a single "Name: value" line (without line terminator).
// The line is split at the first colon, both halves are trimmed and the
// name is lower-cased.
func ParseLine(line string) (string, string, error) {
	colonIdx := strings.IndexByte(line, ':')
	if colonIdx == -1 {
		return "", "", ErrNoColon
	}

	name := strings.ToLower(strings.TrimSpace(line[:colonIdx]))
	if name == "" {
		return "", "", ErrEmptyName
	}
	value := strings.TrimSpace(line[colonIdx+1:])

	return name, value, nil
}

// AddLine parses line and stores the result; later duplicates win
func (h *Headers) AddLine(line string) error {
	name, value, err := ParseLine(line)
	if err != nil {
		return err
	}
	h.Set(name, value)
	return nil
}
