package server

import (
	"bufio"
	"context"
	"io"
	"net"
	"runtime"
	"time"

	"github.com/rs/xid"

	"github.com/Brownie44l1/originserver/internal/bufpool"
	"github.com/Brownie44l1/originserver/internal/handler"
	"github.com/Brownie44l1/originserver/internal/request"
	"github.com/Brownie44l1/originserver/internal/response"
)

const (
	// lingerTimeout bounds the post-response drain of unread request bytes
	lingerTimeout  = 500 * time.Millisecond
	maxLingerBytes = 256 << 10
)

// serveConn handles the single request on conn and closes it
func (s *Server) serveConn(conn net.Conn) {
	start := time.Now()
	log := s.Logger.With().
		Str("conn_id", xid.New().String()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()
	ctx := log.WithContext(context.Background())

	s.trackConn(conn, true)
	s.metrics.ActiveConnections.Inc()
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			log.Error().Interface("panic", r).Str("stack", string(buf)).Msg("panic serving connection")
			s.metrics.RecordDrop()
		}
		conn.Close()
		s.metrics.ActiveConnections.Dec()
		s.trackConn(conn, false)
	}()

	if s.aborting.Load() {
		return
	}

	if s.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(start.Add(s.cfg.ReadTimeout))
	}

	br := bufpool.NewReader(conn)
	defer bufpool.PutReader(br)
	bw := bufpool.NewWriter(conn)
	defer bufpool.PutWriter(bw)

	req, err := request.Parse(br)
	var resp *response.Response
	if err != nil {
		resp = handler.Reject(err)
		if resp == nil {
			log.Warn().Err(err).Msg("connection dropped")
			s.metrics.RecordDrop()
			return
		}
		log.Debug().Err(err).Msg("rejected request")
	} else {
		resp = s.handler.Serve(ctx, req)
	}

	w := response.NewWriter(bw)
	w.SetHeadOnly(req != nil && req.Method == request.MethodHead)
	err = w.Write(resp)
	if err == nil {
		err = bw.Flush()
	}
	duration := time.Since(start)
	s.metrics.RecordRequest(resp.Status, duration)

	event := log.Info()
	if err != nil {
		event = log.Warn().Err(err).Bool("partial", w.HadError())
	}
	if req != nil {
		event = event.Str("method", sanitizeValue(string(req.Method))).Str("target", sanitizeValue(req.Target))
	}
	event.Int("status", int(w.StatusCode())).
		Int64("bytes", w.BytesWritten()).
		Dur("duration", duration).
		Msg("request handled")

	if err == nil && hasUnreadInput(req, br) {
		lingerClose(conn, br)
	}
}

// hasUnreadInput reports whether request bytes are still buffered or
// declared but unread. Closing a socket with unread input resets it.
func hasUnreadInput(req *request.Request, br *bufio.Reader) bool {
	if br.Buffered() > 0 {
		return true
	}
	return req != nil && req.Body.Remaining() > 0
}

// lingerClose half-closes conn and discards whatever the client is still
// sending, for at most lingerTimeout.
func lingerClose(conn net.Conn, br io.Reader) {
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tcp.CloseWrite(); err != nil {
		return
	}
	tcp.SetReadDeadline(time.Now().Add(lingerTimeout))
	io.Copy(io.Discard, io.LimitReader(br, maxLingerBytes))
}
