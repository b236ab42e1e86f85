package response

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Brownie44l1/originserver/internal/headers"
)

// DateFormat is the RFC 1123 layout used for the Date header
const DateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// writerState tracks what's been written so far
type writerState int

const (
	stateStart writerState = iota
	stateStatusWritten
	stateHeadersWritten
	stateBodyWritten
)

// Writer writes one HTTP response to an io.Writer
type Writer struct {
	w          io.Writer
	state      writerState
	statusCode StatusCode
	headOnly   bool
	written    int64
	hadError   bool

	// Now supplies the Date header; replaced in tests
	Now func() time.Time
}

// NewWriter creates a new response writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		state: stateStart,
		Now:   time.Now,
	}
}

// SetHeadOnly makes the writer drop body bytes, as for a HEAD request.
// Headers, including Content-Length, are written unchanged.
func (w *Writer) SetHeadOnly(headOnly bool) {
	w.headOnly = headOnly
}

// WriteStatusLine writes the HTTP status line
func (w *Writer) WriteStatusLine(code StatusCode) error {
	if w.state != stateStart {
		return fmt.Errorf("status line already written")
	}

	statusLine := fmt.Sprintf("HTTP/1.1 %d %s\r\n", code, StatusText(code))
	if _, err := io.WriteString(w.w, statusLine); err != nil {
		w.hadError = true
		return err
	}

	w.statusCode = code
	w.state = stateStatusWritten
	return nil
}

// WriteHeaders writes all headers in order followed by the blank line
func (w *Writer) WriteHeaders(h *headers.Headers) error {
	if w.state != stateStatusWritten {
		return fmt.Errorf("must write status line before headers")
	}

	var err error
	h.Each(func(name, value string) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w.w, "%s: %s\r\n", name, value)
	})
	if err != nil {
		w.hadError = true
		return err
	}

	if _, err := io.WriteString(w.w, "\r\n"); err != nil {
		w.hadError = true
		return err
	}

	w.state = stateHeadersWritten
	return nil
}

// WriteBody writes the response body. Nothing is sent for 204 responses
// or in head-only mode.
func (w *Writer) WriteBody(data []byte) error {
	if w.state != stateHeadersWritten {
		return fmt.Errorf("must write headers before body")
	}

	if len(data) == 0 || w.headOnly || !w.statusCode.AllowsBody() {
		w.state = stateBodyWritten
		return nil
	}

	n, err := w.w.Write(data)
	w.written += int64(n)
	if err != nil {
		w.hadError = true
		return err
	}

	w.state = stateBodyWritten
	return nil
}

// DateHeader returns the current Date header value
func (w *Writer) DateHeader() string {
	return w.Now().UTC().Format(DateFormat)
}

// Write serializes resp: status line, Date, Content-Type, Content-Length,
// blank line, body. A challenge response uses the minimal 401 form.
func (w *Writer) Write(resp *Response) error {
	if err := w.WriteStatusLine(resp.Status); err != nil {
		return err
	}

	h := headers.NewHeaders()
	h.Set("Date", w.DateHeader())
	if resp.Challenge != "" {
		h.Set("WWW-Authenticate", resp.Challenge)
		h.Set("Content-Length", "0")
		if err := w.WriteHeaders(h); err != nil {
			return err
		}
		return w.WriteBody(nil)
	}

	h.Set("Content-Type", resp.ContentType)
	h.Set("Content-Length", strconv.FormatInt(resp.Length(), 10))
	if err := w.WriteHeaders(h); err != nil {
		return err
	}
	return w.WriteBody(resp.Body)
}

// State tracking methods for logging

func (w *Writer) HadError() bool {
	return w.hadError
}

func (w *Writer) StatusCode() StatusCode {
	return w.statusCode
}

// BytesWritten returns the number of body bytes sent
func (w *Writer) BytesWritten() int64 {
	return w.written
}
