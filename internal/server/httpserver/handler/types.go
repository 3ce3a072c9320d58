package handler

// Envelope wraps every JSON body except /metrics. Code is "OK" on success
// and a PM-* error code otherwise.
type Envelope struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// HealthResponse is the body of GET /health and GET /ready.
type HealthResponse struct {
	Status    string `json:"status" yaml:"status"`
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Time      string `json:"time" yaml:"time"`
}

// StatusSummary is the body of GET /admin/v1/status/summary.
type StatusSummary struct {
	Status             string         `json:"status" yaml:"status"`
	Version            string         `json:"version" yaml:"version"`
	Sessions           map[string]int `json:"sessions" yaml:"sessions"`
	RoomsActive        int            `json:"rooms_active" yaml:"rooms_active"`
	QueueDepth         int            `json:"queue_depth" yaml:"queue_depth"`
	Connections        int            `json:"connections" yaml:"connections"`
	GraceWindowSeconds float64        `json:"grace_window_seconds" yaml:"grace_window_seconds"`
	UptimeSeconds      int64          `json:"uptime_seconds" yaml:"uptime_seconds"`
	Time               string         `json:"time" yaml:"time"`
}

// GCResponse is the body of POST /admin/v1/gc/trigger.
type GCResponse struct {
	CleanedCount int    `json:"cleaned_count" yaml:"cleaned_count"`
	TriggeredAt  string `json:"triggered_at" yaml:"triggered_at"`
}
