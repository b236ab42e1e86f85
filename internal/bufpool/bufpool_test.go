package bufpool

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBuffer(t *testing.T) {
	buf := GetBuffer()
	assert.Len(t, buf, CopySize)
	PutBuffer(buf)

	PutBuffer(make([]byte, 10)) // dropped, must not panic
	assert.Len(t, GetBuffer(), CopySize)
}

// readFromRecorder notes whether io.Copy took the ReaderFrom shortcut
type readFromRecorder struct {
	bytes.Buffer
	usedReadFrom bool
}

func (r *readFromRecorder) ReadFrom(src io.Reader) (int64, error) {
	r.usedReadFrom = true
	return r.Buffer.ReadFrom(src)
}

func TestCopyNUsesPooledBuffer(t *testing.T) {
	dst := &readFromRecorder{}
	n, err := CopyN(dst, strings.NewReader("hello world"), 11)

	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, "hello world", dst.String())
	assert.False(t, dst.usedReadFrom)
}

func TestCopyNExact(t *testing.T) {
	var dst bytes.Buffer
	n, err := CopyN(&dst, strings.NewReader("hello world"), 5)

	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", dst.String())
}

func TestCopyNShortSource(t *testing.T) {
	var dst bytes.Buffer
	n, err := CopyN(&dst, strings.NewReader("abc"), 10)

	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "abc", dst.String())
}

func TestCopyNZero(t *testing.T) {
	var dst bytes.Buffer
	n, err := CopyN(&dst, strings.NewReader("abc"), 0)

	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 0, dst.Len())
}

func TestCopyNLargerThanBuffer(t *testing.T) {
	src := bytes.Repeat([]byte("0123456789"), CopySize/5)
	var dst bytes.Buffer
	n, err := CopyN(&dst, bytes.NewReader(src), int64(len(src)))

	require.NoError(t, err)
	assert.Equal(t, int64(len(src)), n)
	assert.Equal(t, src, dst.Bytes())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestCopyNWriteError(t *testing.T) {
	_, err := CopyN(failingWriter{}, strings.NewReader("abc"), 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestPooledReaderWriter(t *testing.T) {
	br := NewReader(strings.NewReader("line\n"))
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "line\n", line)
	PutReader(br)

	br = NewReader(strings.NewReader("again\n"))
	line, err = br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "again\n", line)

	var out bytes.Buffer
	bw := NewWriter(&out)
	_, err = bw.WriteString("buffered")
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	require.NoError(t, bw.Flush())
	assert.Equal(t, "buffered", out.String())
	PutWriter(bw)
}
