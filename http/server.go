package http

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Server struct {
	Name   string
	Router *Router
	Logger *slog.Logger

	// Workers bounds the number of connections served at once; Backlog is
	// how many accepted connections may wait for a free worker.
	Workers int
	Backlog int

	// IdleTimeout closes a connection that sends nothing for this long while
	// a request is awaited. Zero waits forever.
	IdleTimeout time.Duration

	MaxLineBytes int
	MaxBodyBytes int64

	mu         sync.Mutex
	listener   net.Listener
	pool       *WorkerPool
	conns      map[*conn]struct{}
	inShutdown atomic.Bool
}

func NewServer(name string, router *Router) *Server {
	if router == nil {
		router = NewRouter()
	}

	return &Server{
		Name:         name,
		Router:       router,
		Logger:       slog.Default(),
		Workers:      DefaultWorkerPoolSize,
		Backlog:      DefaultWorkerPoolSize,
		MaxLineBytes: DefaultMaxLineBytes,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Listen binds addr with address reuse enabled.
func (s *Server) Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := listenConfig()
	return lc.Listen(ctx, "tcp", addr)
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := s.Listen(ctx, addr)
	if err != nil {
		return err
	}

	return s.Serve(listener)
}

// Serve accepts connections on listener and hands them to the worker pool.
// After Shutdown it returns ErrServerClosed.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		listener.Close()
		return ErrServerClosed
	}
	pool := NewWorkerPool(s.Workers, s.Backlog, s.serveConn)
	s.listener = listener
	s.pool = pool
	s.mu.Unlock()

	pool.Start()
	defer pool.Close()

	s.Logger.Info("server listening",
		"name", s.Name,
		"addr", listener.Addr().String(),
		"workers", pool.Size)

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 5 * time.Millisecond
	retry.MaxInterval = time.Second
	retry.MaxElapsedTime = time.Minute

	for {
		rwc, err := listener.Accept()
		if err != nil {
			if s.inShutdown.Load() || errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}

			delay := retry.NextBackOff()
			if delay == backoff.Stop {
				return err
			}
			s.Logger.Warn("accept failed", "error", err, "retry_in", delay)
			time.Sleep(delay)
			continue
		}
		retry.Reset()

		connAcceptedCnt.Add(context.Background(), 1)
		pool.Submit(rwc)
	}
}

// ServeConn runs the request loop on conn with freshly allocated buffers and
// closes conn when done.
func (s *Server) ServeConn(rwc net.Conn) {
	s.serveConn(rwc,
		bufio.NewReaderSize(rwc, DefaultReadBufferSize),
		bufio.NewWriterSize(rwc, DefaultWriteBufferSize))
}

// Shutdown stops accepting, closes idle connections and waits for the
// connections in an exchange to finish it. When ctx ends first the remaining
// connections are closed and ctx's error is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	var err error
	if s.listener != nil {
		if closeErr := s.listener.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
			err = closeErr
		}
	}
	pool := s.pool
	s.mu.Unlock()

	s.closeConns(true)

	if pool == nil {
		return err
	}

	if waitErr := pool.Wait(ctx); waitErr != nil {
		s.Logger.Warn("shutdown deadline reached, closing active connections")
		s.closeConns(false)
		return waitErr
	}

	s.Logger.Info("server stopped", "name", s.Name)
	return err
}

func (s *Server) trackConn(c *conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conns == nil {
		s.conns = make(map[*conn]struct{})
	}
	if add {
		s.conns[c] = struct{}{}
	} else {
		delete(s.conns, c)
	}
}

// markIdle records that c waits for its next request. It reports false when
// the server is shutting down and c should close instead.
func (s *Server) markIdle(c *conn) bool {
	s.mu.Lock()
	c.idle = true
	s.mu.Unlock()

	return !s.inShutdown.Load()
}

func (s *Server) markActive(c *conn) {
	s.mu.Lock()
	c.idle = false
	s.mu.Unlock()
}

func (s *Server) closeConns(idleOnly bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.conns {
		if idleOnly && !c.idle {
			continue
		}
		c.rwc.Close()
	}
}
