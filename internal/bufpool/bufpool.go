package bufpool

import (
	"bufio"
	"io"
	"sync"
)

// CopySize is the size of buffers handed out by GetBuffer
const CopySize = 32 * 1024

var copyBufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, CopySize)
		return &buf
	},
}

var (
	bufioReaderPool sync.Pool
	bufioWriterPool sync.Pool
)

// GetBuffer returns a pooled CopySize buffer
func GetBuffer() []byte {
	return *copyBufPool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool. Buffers of any other size are
// left to the GC.
func PutBuffer(buf []byte) {
	if cap(buf) != CopySize {
		return
	}
	buf = buf[:CopySize]
	copyBufPool.Put(&buf)
}

// writerOnly hides any ReadFrom method of the wrapped writer so
// io.CopyBuffer goes through the pooled buffer.
type writerOnly struct {
	io.Writer
}

// CopyN copies exactly n bytes from src to dst through a pooled buffer,
// the way io.CopyN does.
func CopyN(dst io.Writer, src io.Reader, n int64) (int64, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	written, err := io.CopyBuffer(writerOnly{dst}, io.LimitReader(src, n), buf)
	if written == n {
		return n, nil
	}
	if written < n && err == nil {
		err = io.EOF
	}
	return written, err
}

// NewReader returns a pooled bufio.Reader reading from r
func NewReader(r io.Reader) *bufio.Reader {
	if v := bufioReaderPool.Get(); v != nil {
		br := v.(*bufio.Reader)
		br.Reset(r)
		return br
	}
	return bufio.NewReader(r)
}

// PutReader returns br to the pool
func PutReader(br *bufio.Reader) {
	br.Reset(nil)
	bufioReaderPool.Put(br)
}

// NewWriter returns a pooled bufio.Writer writing to w
func NewWriter(w io.Writer) *bufio.Writer {
	if v := bufioWriterPool.Get(); v != nil {
		bw := v.(*bufio.Writer)
		bw.Reset(w)
		return bw
	}
	return bufio.NewWriter(w)
}

// PutWriter returns bw to the pool. Callers flush first.
func PutWriter(bw *bufio.Writer) {
	bw.Reset(nil)
	bufioWriterPool.Put(bw)
}
