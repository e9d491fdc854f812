package net

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zhukovaskychina/xmysql-tabledef/logger"
)

const defaultShutdownTimeout = 5 * time.Second

// ServerOptions holds the listener settings of a Server.
type ServerOptions struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*ServerOptions)

// WithLocalAddress sets the listen address, host:port.
func WithLocalAddress(addr string) ServerOption {
	return func(o *ServerOptions) {
		o.addr = addr
	}
}

// WithTimeouts sets the read and write deadlines of each request.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(o *ServerOptions) {
		o.readTimeout = read
		o.writeTimeout = write
	}
}

// WithShutdownTimeout bounds how long Stop waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(o *ServerOptions) {
		o.shutdownTimeout = d
	}
}

// Server runs a handler until its context ends.
type Server struct {
	ServerOptions

	srv      *http.Server
	listener net.Listener

	sync.Once
	done chan struct{}
}

// NewServer builds a Server around handler.
func NewServer(handler http.Handler, opts ...ServerOption) *Server {
	s := &Server{
		ServerOptions: ServerOptions{
			addr:            "127.0.0.1:8080",
			readTimeout:     10 * time.Second,
			writeTimeout:    30 * time.Second,
			shutdownTimeout: defaultShutdownTimeout,
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&s.ServerOptions)
	}
	s.srv = &http.Server{
		Handler:      handler,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}
	return s
}

// Listen binds the address. Addr reports the bound address afterwards,
// which matters when the port was 0.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.addr)
	}
	s.listener = l
	return nil
}

// Addr is the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// RunContext serves until ctx is cancelled or Stop is called, then shuts
// down gracefully.
func (s *Server) RunContext(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("descriptor service listening on %s", s.Addr())
		errCh <- s.srv.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	case <-s.done:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	logger.Infof("descriptor service on %s stopped", s.Addr())
	return nil
}

// Stop asks a running server to shut down.
func (s *Server) Stop() {
	s.Once.Do(func() {
		close(s.done)
	})
}

// IsClosed reports whether Stop was called.
func (s *Server) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
