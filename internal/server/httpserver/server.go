package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"
)

// Server is the public HTTP listener. It carries the gateway, so no write
// timeout is set: WebSocket connections are long-lived once hijacked.
type Server struct {
	srv *http.Server
	ln  net.Listener

	// tls is fixed by New. http.Server fills in its own TLSConfig while
	// serving, so that field says nothing about HTTPS.
	tls bool
}

// Option configures a Server.
type Option func(*Server)

// WithTLS serves HTTPS with cfg. cfg must supply certificates, normally
// through GetCertificate.
func WithTLS(cfg *tls.Config) Option {
	return func(s *Server) {
		s.srv.TLSConfig = cfg
		s.tls = cfg != nil
	}
}

// New creates a server for addr.
func New(addr string, h http.Handler, opts ...Option) *Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s := &Server{srv: srv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the address so that bind errors surface before Serve runs
// in the background.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// TLS reports whether the server speaks HTTPS.
func (s *Server) TLS() bool {
	return s.tls
}

// Serve accepts connections until Shutdown, after which it returns
// http.ErrServerClosed.
func (s *Server) Serve() error {
	if s.ln == nil {
		return errors.New("httpserver: Serve called before Listen")
	}
	if s.TLS() {
		return s.srv.ServeTLS(s.ln, "", "")
	}
	return s.srv.Serve(s.ln)
}

// Shutdown stops accepting and waits for in-flight requests. Hijacked
// WebSocket connections are not tracked here; the gateway closes them.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
