package connection

import (
	"context"

	"github.com/yndnr/pairmesh-go/internal/server/httpserver/handler"
)

// Admin is the management surface shared by both transports.
type Admin interface {
	Status(ctx context.Context) (*handler.StatusSummary, error)
	Health(ctx context.Context) (*handler.HealthResponse, error)
	GC(ctx context.Context) (*handler.GCResponse, error)
	Target() string
}

var (
	_ Admin = (*HTTPClient)(nil)
	_ Admin = (*SocketClient)(nil)
)
