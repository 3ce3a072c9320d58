package connection

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/yndnr/pairmesh-go/internal/server/httpserver/handler"
)

// SocketReply is one reply line from the local socket.
type SocketReply struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// SocketClient sends management commands over the local socket.
type SocketClient struct {
	path   string
	conn   net.Conn
	reader *bufio.Reader
}

// NewSocketClient creates a new socket client.
func NewSocketClient(socketPath string) *SocketClient {
	return &SocketClient{path: socketPath}
}

// Connect connects to the local socket.
func (c *SocketClient) Connect() error {
	conn, err := net.DialTimeout("unix", c.path, 5*time.Second)
	if err != nil {
		return err
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Close closes the socket connection.
func (c *SocketClient) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// Execute sends one command line and returns the raw reply line.
func (c *SocketClient) Execute(ctx context.Context, cmd string) (string, error) {
	if c.conn == nil {
		if err := c.Connect(); err != nil {
			return "", err
		}
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	c.conn.SetDeadline(deadline)

	if _, err := c.conn.Write([]byte(cmd + "\n")); err != nil {
		return "", err
	}
	return c.reader.ReadString('\n')
}

// Call runs cmd and decodes the reply data into target.
func (c *SocketClient) Call(ctx context.Context, cmd string, target any) error {
	line, err := c.Execute(ctx, cmd)
	if err != nil {
		return fmt.Errorf("socket %s: %w", c.path, err)
	}

	var reply SocketReply
	if err := json.Unmarshal([]byte(line), &reply); err != nil {
		return fmt.Errorf("parse reply: %w", err)
	}
	if !reply.OK {
		if reply.Error == "" {
			return errors.New("command failed")
		}
		return errors.New(reply.Error)
	}
	if target != nil && len(reply.Data) > 0 {
		if err := json.Unmarshal(reply.Data, target); err != nil {
			return fmt.Errorf("parse reply data: %w", err)
		}
	}
	return nil
}

// Target implements Admin.
func (c *SocketClient) Target() string {
	return "unix://" + c.path
}

// Status implements Admin.
func (c *SocketClient) Status(ctx context.Context) (*handler.StatusSummary, error) {
	var out handler.StatusSummary
	if err := c.Call(ctx, "status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health implements Admin.
func (c *SocketClient) Health(ctx context.Context) (*handler.HealthResponse, error) {
	var out handler.HealthResponse
	if err := c.Call(ctx, "health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GC implements Admin.
func (c *SocketClient) GC(ctx context.Context) (*handler.GCResponse, error) {
	var out handler.GCResponse
	if err := c.Call(ctx, "gc", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
