package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/Brownie44l1/originserver/internal/handler"
)

var (
	ErrServerClosed = errors.New("server closed")
	ErrNotListening = errors.New("server is not listening")
)

// Server accepts connections on one goroutine and hands each one to a
// fixed pool of workers. Every connection carries exactly one request.
type Server struct {
	cfg     Config
	handler *handler.Handler
	metrics *Metrics

	Logger zerolog.Logger

	listener net.Listener
	queue    chan net.Conn

	inShutdown atomic.Bool
	aborting   atomic.Bool

	mu          sync.Mutex
	activeConn  map[net.Conn]struct{}
	started     bool
	doneChan    chan struct{}
	workersDone chan struct{}
	workers     sync.WaitGroup
}

// New creates a server for cfg. The handler is shared by every worker.
func New(cfg Config, h *handler.Handler, logger zerolog.Logger) *Server {
	return &Server{
		cfg:         cfg,
		handler:     h,
		metrics:     NewMetrics(),
		Logger:      logger,
		queue:       make(chan net.Conn, cfg.QueueSize),
		activeConn:  make(map[net.Conn]struct{}),
		doneChan:    make(chan struct{}),
		workersDone: make(chan struct{}),
	}
}

// Listen binds the configured address. It is separate from Serve so a
// bad port fails before anything else starts.
func (s *Server) Listen() error {
	if s.inShutdown.Load() {
		return ErrServerClosed
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe binds the configured address and serves until closed
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve starts the worker pool and runs the accept loop. It always
// returns a non-nil error; ErrServerClosed after Shutdown or Close.
func (s *Server) Serve() error {
	s.mu.Lock()
	ln := s.listener
	if ln == nil {
		s.mu.Unlock()
		return ErrNotListening
	}
	if s.started || s.inShutdown.Load() {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.started = true
	s.startWorkersLocked()
	s.mu.Unlock()

	// only the accept loop sends, so it owns closing the queue
	defer close(s.queue)

	s.Logger.Info().
		Str("addr", ln.Addr().String()).
		Str("root", s.handler.Root()).
		Int("workers", s.cfg.Workers).
		Int("queue", s.cfg.QueueSize).
		Msg("server started")

	var tempDelay time.Duration // how long to sleep on accept failure
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if max := 1 * time.Second; tempDelay > max {
				tempDelay = max
			}
			s.Logger.Error().Err(err).Dur("retry_in", tempDelay).Msg("accept error")
			select {
			case <-time.After(tempDelay):
				continue
			case <-s.doneChan:
				return ErrServerClosed
			}
		}
		tempDelay = 0

		select {
		case s.queue <- conn:
		case <-s.doneChan:
			conn.Close()
			return ErrServerClosed
		}
	}
}

func (s *Server) startWorkersLocked() {
	for i := 0; i < s.cfg.Workers; i++ {
		s.workers.Add(1)
		go s.worker()
	}
	go func() {
		s.workers.Wait()
		close(s.workersDone)
	}()
}

// worker serves queued connections one at a time until the queue closes
func (s *Server) worker() {
	defer s.workers.Done()
	for conn := range s.queue {
		if s.aborting.Load() {
			conn.Close()
			continue
		}
		s.serveConn(conn)
	}
}

func (s *Server) shuttingDown() bool {
	return s.inShutdown.Load()
}

// beginShutdown stops the accept loop. Safe to call more than once.
func (s *Server) beginShutdown() error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.doneChan:
		// Already closed. Don't close again.
	default:
		close(s.doneChan)
	}

	if !s.started {
		// no workers were ever started
		s.started = true
		close(s.workersDone)
	}

	var err error
	if s.listener != nil {
		if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	return err
}

// Shutdown stops accepting, lets workers finish every connection already
// accepted, and waits for them or for ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	lnErr := s.beginShutdown()

	select {
	case <-s.workersDone:
		return lnErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting and closes queued and in-flight connections
// without answering them.
func (s *Server) Close() error {
	s.aborting.Store(true)
	err := s.beginShutdown()

	s.mu.Lock()
	for c := range s.activeConn {
		c.Close()
		delete(s.activeConn, c)
	}
	s.mu.Unlock()
	return err
}

func (s *Server) trackConn(c net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.activeConn[c] = struct{}{}
	} else {
		delete(s.activeConn, c)
	}
}

// Stats returns a snapshot of the server metrics
func (s *Server) Stats() MetricsSnapshot {
	return s.metrics.Snapshot()
}
