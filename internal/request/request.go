package request

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Brownie44l1/originserver/internal/headers"
)

// ErrConnRead wraps transport failures while reading the request head.
// No response is sent for these; the connection is dropped.
var ErrConnRead = errors.New("connection read failed")

// Request is a parsed request head plus a reader positioned at the body
type Request struct {
	Method  Method
	Target  string
	Version string
	Headers *headers.Headers

	// Body yields at most ContentLength bytes from the connection,
	// starting after the blank line. Only PUT consumes it.
	Body *Body
}

// Body reads the declared request body and tracks how much of it is left
type Body struct {
	r         io.Reader
	remaining int64
}

func (b *Body) Read(p []byte) (int, error) {
	if b.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.r.Read(p)
	b.remaining -= int64(n)
	return n, err
}

// Remaining returns the declared body bytes not yet read
func (b *Body) Remaining() int64 {
	return b.remaining
}

// Parse reads one request head from r. Lines may end in CRLF or LF. The
// request line is validated before any header is read.
func Parse(r *bufio.Reader) (*Request, error) {
	line, err := readLine(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyRequest
		}
		return nil, err
	}

	method, target, version, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:  method,
		Target:  target,
		Version: version,
		Headers: headers.NewHeaders(),
	}

	for {
		line, err := readLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// stream ended before the blank line; take what we have
				break
			}
			return nil, err
		}
		if line == "" {
			break
		}
		if err := req.Headers.AddLine(line); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
	}

	req.Body = &Body{r: r, remaining: req.ContentLength()}
	return req, nil
}

// readLine returns the next line without its terminator. A final line
// with no newline is returned as-is; io.EOF is returned only when there
// is nothing left at all.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSuffix(line, "\r"), nil
		}
		if err == io.EOF {
			return "", io.EOF
		}
		return "", fmt.Errorf("%w: %v", ErrConnRead, err)
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// ContentLength returns the declared body length. A missing, invalid or
// negative value counts as 0 rather than rejecting the request.
func (r *Request) ContentLength() int64 {
	cl, ok := r.Headers.Get("content-length")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Authorization returns the raw Authorization header value
func (r *Request) Authorization() (string, bool) {
	return r.Headers.Get("authorization")
}
