// Package localserver provides the local management server.
package localserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

const (
	// idleTimeout closes connections that send nothing.
	idleTimeout = 30 * time.Second

	// maxLine bounds one command line.
	maxLine = 4096
)

// Server represents the local management server.
type Server struct {
	path    string
	handler *Handler
	logger  logger.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}

	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a new local server.
func New(socketPath string, h *Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		path:    socketPath,
		handler: h,
		logger:  logger.Component(log, "localserver"),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Listen binds the socket. A stale socket file left by a crashed process
// is removed; any other file at the path is an error.
func (s *Server) Listen() error {
	if fi, err := os.Lstat(s.path); err == nil {
		if fi.Mode()&fs.ModeSocket == 0 {
			return fmt.Errorf("%s exists and is not a socket", s.path)
		}
		if conn, err := net.DialTimeout("unix", s.path, time.Second); err == nil {
			conn.Close()
			return fmt.Errorf("%s is in use by another process", s.path)
		}
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	l, err := net.Listen("unix", s.path)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.path, 0600); err != nil {
		l.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	s.running.Store(true)
	s.logger.Info("local socket listening", "path", s.path)
	return nil
}

// ListenAndServe starts the local server.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Serve accepts connections until Shutdown. Listen must have succeeded.
func (s *Server) Serve() error {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l == nil {
		return errors.New("localserver: not listening")
	}

	for {
		conn, err := l.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Shutdown stops accepting, lets in-flight commands reply, then waits for
// every connection to finish or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	s.mu.Lock()
	var closeErr error
	if s.listener != nil {
		closeErr = s.listener.Close()
	}
	// Unblock idle readers; a reply being written still goes out.
	for conn := range s.conns {
		conn.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), maxLine)
	enc := json.NewEncoder(conn)

	for {
		if !s.running.Load() {
			return
		}
		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrDeadlineExceeded) {
				s.logger.Debug("local connection read failed", "error", err)
			}
			return
		}

		line := scanner.Text()
		resp := s.handler.Execute(context.Background(), line)
		if resp.OK {
			s.logger.Info("local command executed", "command", line)
		} else {
			s.logger.Warn("local command failed", "command", line, "error", resp.Error)
		}

		conn.SetWriteDeadline(time.Now().Add(idleTimeout))
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}
