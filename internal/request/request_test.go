package request

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseString(data string) (*Request, error) {
	return Parse(bufio.NewReader(strings.NewReader(data)))
}

func TestSimpleGETRequest(t *testing.T) {
	data := "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n"
	req, err := parseString(data)

	require.NoError(t, err)
	assert.Equal(t, MethodGet, req.Method)
	assert.Equal(t, "/index.html", req.Target)
	assert.Equal(t, "HTTP/1.1", req.Version)

	host, ok := req.Headers.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)
	assert.Equal(t, int64(0), req.ContentLength())
}

func TestBareLFLineEndings(t *testing.T) {
	req, err := parseString("HEAD /a.txt HTTP/1.1\nHost: x\n\n")

	require.NoError(t, err)
	assert.Equal(t, MethodHead, req.Method)
	host, _ := req.Headers.Get("host")
	assert.Equal(t, "x", host)
}

func TestBodyIsPositionedAfterHeaders(t *testing.T) {
	data := "PUT /upload.txt HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Content-Length: 13\r\n" +
		"\r\n" +
		"Hello, World!"

	req, err := parseString(data)
	require.NoError(t, err)
	assert.Equal(t, MethodPut, req.Method)
	assert.Equal(t, int64(13), req.ContentLength())

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "Hello, World!", string(body))
	assert.Zero(t, req.Body.Remaining())
}

func TestBodyStopsAtContentLength(t *testing.T) {
	data := "PUT /a.txt HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello, trailing bytes"

	req, err := parseString(data)
	require.NoError(t, err)
	assert.Equal(t, int64(5), req.Body.Remaining())

	buf := make([]byte, 3)
	n, err := req.Body.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hel", string(buf[:n]))
	assert.Equal(t, int64(2), req.Body.Remaining())

	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, "lo", string(rest))
	assert.Zero(t, req.Body.Remaining())
}

func TestBodyWithoutContentLength(t *testing.T) {
	req, err := parseString("GET / HTTP/1.1\r\n\r\nignored")
	require.NoError(t, err)
	assert.Zero(t, req.Body.Remaining())

	n, err := req.Body.Read(make([]byte, 8))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestHeadersLastWinsAndLowerCased(t *testing.T) {
	data := "GET / HTTP/1.1\r\n" +
		"X-Token: first\r\n" +
		"x-token: second\r\n" +
		"AUTHORIZATION:   Basic abc  \r\n" +
		"\r\n"

	req, err := parseString(data)
	require.NoError(t, err)

	v, _ := req.Headers.Get("x-token")
	assert.Equal(t, "second", v)

	auth, ok := req.Authorization()
	assert.True(t, ok)
	assert.Equal(t, "Basic abc", auth)
}

func TestHeadersEndAtStreamEnd(t *testing.T) {
	req, err := parseString("GET / HTTP/1.1\r\nHost: example.com")

	require.NoError(t, err)
	host, ok := req.Headers.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)
}

func TestRequestLineWithoutHeaders(t *testing.T) {
	req, err := parseString("DELETE /gone HTTP/1.1")

	require.NoError(t, err)
	assert.Equal(t, MethodDelete, req.Method)
	assert.Equal(t, 0, req.Headers.Len())
}

func TestMalformedRequests(t *testing.T) {
	cases := map[string]string{
		"empty stream":     "",
		"empty line":       "\r\n",
		"two tokens":       "GET /path\r\nHost: example.com\r\n\r\n",
		"four tokens":      "GET /path HTTP/1.1 extra\r\n\r\n",
		"double space":     "GET  /path HTTP/1.1\r\n\r\n",
		"leading space":    " GET /path HTTP/1.1\r\n\r\n",
		"only spaces":      "   \r\n\r\n",
		"one token":        "GET\r\n\r\n",
		"header w/o colon": "GET / HTTP/1.1\r\nInvalidHeader\r\n\r\n",
		"empty header":     "GET / HTTP/1.1\r\n: nothing\r\n\r\n",
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseString(data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedRequest)
		})
	}
}

func TestTrailingSpacesAfterVersion(t *testing.T) {
	for _, line := range []string{"GET /a.txt HTTP/1.1 ", "GET /a.txt HTTP/1.1   "} {
		req, err := parseString(line + "\r\nHost: example.com\r\n\r\n")

		require.NoError(t, err, "%q", line)
		assert.Equal(t, MethodGet, req.Method)
		assert.Equal(t, "/a.txt", req.Target)
		assert.Equal(t, SupportedVersion, req.Version)
	}
}

func TestEmptyRequestIsMalformed(t *testing.T) {
	for _, data := range []string{"", "\r\n", "\n"} {
		_, err := parseString(data)
		assert.ErrorIs(t, err, ErrEmptyRequest)
		assert.ErrorIs(t, err, ErrMalformedRequest)
	}

	_, err := parseString("GET /\r\n\r\n")
	assert.NotErrorIs(t, err, ErrEmptyRequest)
}

func TestUnsupportedVersion(t *testing.T) {
	for _, version := range []string{"HTTP/1.0", "HTTP/2.0", "http/1.1", "HTTP/1.1x"} {
		_, err := parseString("GET / " + version + "\r\nHost: example.com\r\n\r\n")

		require.Error(t, err, version)
		assert.ErrorIs(t, err, ErrUnsupportedVersion, version)
	}
}

func TestVersionCheckedBeforeHeaders(t *testing.T) {
	// the bad header line would be a 400, but the version fails first
	_, err := parseString("GET / HTTP/1.0\r\nbroken header\r\n\r\n")
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestUnknownMethodIsParsed(t *testing.T) {
	methods := []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS", "BREW"}

	for _, method := range methods {
		req, err := parseString(method + " / HTTP/1.1\r\nHost: example.com\r\n\r\n")

		require.NoError(t, err, "Method %s should parse", method)
		assert.Equal(t, Method(method), req.Method)
	}
}

func TestMethodIsSupported(t *testing.T) {
	assert.True(t, MethodGet.IsSupported())
	assert.True(t, MethodHead.IsSupported())
	assert.True(t, MethodPut.IsSupported())
	assert.True(t, MethodDelete.IsSupported())
	assert.False(t, Method("POST").IsSupported())
	assert.False(t, Method("get").IsSupported())
}

func TestContentLengthLeniency(t *testing.T) {
	cases := map[string]int64{
		"42":   42,
		"0":    0,
		"-5":   0,
		"abc":  0,
		"":     0,
		"1e3":  0,
		" 7 ":  7, // trimmed during header parsing
		"9999": 9999,
	}

	for value, want := range cases {
		req, err := parseString("PUT /x HTTP/1.1\r\nContent-Length: " + value + "\r\n\r\n")
		require.NoError(t, err)
		assert.Equal(t, want, req.ContentLength(), "Content-Length %q", value)
	}
}

func TestIncrementalParsing(t *testing.T) {
	// Simulate slow reader that returns data a few bytes at a time
	data := []byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n")
	reader := &slowReader{data: data, chunkSize: 5}

	req, err := Parse(bufio.NewReader(reader))

	require.NoError(t, err)
	assert.Equal(t, MethodGet, req.Method)
	assert.Equal(t, "/", req.Target)
}

func TestReadErrorIsConnRead(t *testing.T) {
	boom := errors.New("connection reset by peer")

	_, err := Parse(bufio.NewReader(&failingReader{err: boom}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnRead)

	// Failure in the middle of the headers
	r := io.MultiReader(strings.NewReader("GET / HTTP/1.1\r\nHost: x\r\n"), &failingReader{err: boom})
	_, err = Parse(bufio.NewReader(r))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnRead)
}

// slowReader simulates a network connection that provides data slowly
type slowReader struct {
	data      []byte
	chunkSize int
	offset    int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.offset >= len(r.data) {
		return 0, io.EOF
	}

	n := r.chunkSize
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data)-r.offset {
		n = len(r.data) - r.offset
	}

	copy(p, r.data[r.offset:r.offset+n])
	r.offset += n
	return n, nil
}

type failingReader struct {
	err error
}

func (r *failingReader) Read(p []byte) (int, error) {
	return 0, r.err
}
