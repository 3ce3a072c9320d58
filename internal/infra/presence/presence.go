package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// Status is a presence transition.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Event is the JSON document posted to the endpoint.
type Event struct {
	SessionID string    `json:"session_id"`
	Status    Status    `json:"status"`
	At        time.Time `json:"at"`
}

// Reporter receives presence transitions. Implementations must not block.
type Reporter interface {
	Online(sessionID string)
	Offline(sessionID string)
}

// Nop discards every report.
type Nop struct{}

func (Nop) Online(string)  {}
func (Nop) Offline(string) {}

// Config configures an HTTPReporter.
type Config struct {
	Endpoint  string
	Timeout   time.Duration
	QueueSize int
	UserAgent string
}

// HTTPReporter posts events from a single background worker.
type HTTPReporter struct {
	endpoint  string
	userAgent string
	timeout   time.Duration
	client    *http.Client

	queue    chan Event
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	metrics *metric.Registry
	logger  logger.Logger
	now     func() time.Time
}

// NewHTTPReporter validates cfg and creates a stopped reporter.
func NewHTTPReporter(cfg Config, log logger.Logger, metrics *metric.Registry) (*HTTPReporter, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("presence endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("presence endpoint: %q is not an http(s) URL", cfg.Endpoint)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if log == nil {
		log = logger.Default()
	}
	if metrics == nil {
		metrics = metric.NewRegistry()
	}

	return &HTTPReporter{
		endpoint:  cfg.Endpoint,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		client:    &http.Client{},
		queue:     make(chan Event, cfg.QueueSize),
		done:      make(chan struct{}),
		metrics:   metrics,
		logger:    logger.Component(log, "presence"),
		now:       time.Now,
	}, nil
}

// Start launches the worker.
func (r *HTTPReporter) Start() {
	r.wg.Add(1)
	go r.run()
}

// Stop stops accepting events, lets the worker post what is already
// queued, and waits for it until ctx is done.
func (r *HTTPReporter) Stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.done) })

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Online implements Reporter.
func (r *HTTPReporter) Online(sessionID string) {
	r.enqueue(Event{SessionID: sessionID, Status: StatusOnline, At: r.now().UTC()})
}

// Offline implements Reporter.
func (r *HTTPReporter) Offline(sessionID string) {
	r.enqueue(Event{SessionID: sessionID, Status: StatusOffline, At: r.now().UTC()})
}

func (r *HTTPReporter) enqueue(ev Event) {
	select {
	case <-r.done:
		r.metrics.PresenceEvents.WithLabelValues("dropped").Inc()
		return
	default:
	}

	select {
	case r.queue <- ev:
	default:
		r.metrics.PresenceEvents.WithLabelValues("dropped").Inc()
		r.logger.Debug("presence queue full, event dropped", "session_id", ev.SessionID)
	}
}

func (r *HTTPReporter) run() {
	defer r.wg.Done()

	for {
		select {
		case ev := <-r.queue:
			r.deliver(ev)
		case <-r.done:
			for {
				select {
				case ev := <-r.queue:
					r.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (r *HTTPReporter) deliver(ev Event) {
	if err := r.post(ev); err != nil {
		r.metrics.PresenceEvents.WithLabelValues("failed").Inc()
		r.logger.Warn("presence report failed",
			"session_id", ev.SessionID,
			"status", ev.Status,
			"error", err)
		return
	}
	r.metrics.PresenceEvents.WithLabelValues("sent").Inc()
}

func (r *HTTPReporter) post(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
