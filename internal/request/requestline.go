package request

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedRequest   = errors.New("malformed request")
	ErrUnsupportedVersion = errors.New("unsupported HTTP version")

	// ErrEmptyRequest is a malformed request with no request line at all
	ErrEmptyRequest = fmt.Errorf("%w: empty request line", ErrMalformedRequest)
)

// SupportedVersion is the only protocol version accepted
const SupportedVersion = "HTTP/1.1"

// Method is the request method token. Unknown tokens are kept verbatim.
type Method string

const (
	MethodGet    Method = "GET"
	MethodHead   Method = "HEAD"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
)

// IsSupported reports whether the server implements m
func (m Method) IsSupported() bool {
	switch m {
	case MethodGet, MethodHead, MethodPut, MethodDelete:
		return true
	default:
		return false
	}
}

// parseRequestLine parses: METHOD TARGET VERSION
// The line is split on single spaces. Trailing empty tokens are dropped,
// so trailing spaces are accepted, but leading or doubled spaces leave an
// empty token and fail the three-token check.
func parseRequestLine(line string) (Method, string, string, error) {
	if line == "" {
		return "", "", "", ErrEmptyRequest
	}

	parts := strings.Split(line, " ")
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) != 3 {
		return "", "", "", ErrMalformedRequest
	}

	method := Method(parts[0])
	target := parts[1]
	version := parts[2]

	if version != SupportedVersion {
		return "", "", "", ErrUnsupportedVersion
	}

	return method, target, version, nil
}
