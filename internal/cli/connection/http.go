package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/pairmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/pairmesh-go/internal/server/httpserver/handler"
)

// HTTPClient calls the server's HTTP API.
type HTTPClient struct {
	baseURL    string
	client     *http.Client
	adminToken string
}

// NewHTTPClient creates a client for server. A bare host:port gets an
// http:// prefix.
func NewHTTPClient(server, adminToken string) *HTTPClient {
	baseURL := strings.TrimSuffix(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	return &HTTPClient{
		baseURL:    baseURL,
		adminToken: adminToken,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetTLSConfig replaces the client's TLS settings. Nil keeps the
// defaults.
func (c *HTTPClient) SetTLSConfig(cfg *tls.Config) {
	if cfg == nil {
		return
	}
	c.client.Transport = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: cfg,
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.addHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

func (c *HTTPClient) addHeaders(req *http.Request) {
	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent("pairmesh-cli"))
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Target implements Admin.
func (c *HTTPClient) Target() string {
	return c.baseURL
}

// Status implements Admin.
func (c *HTTPClient) Status(ctx context.Context) (*handler.StatusSummary, error) {
	resp, err := c.Get(ctx, "/admin/v1/status/summary")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var out handler.StatusSummary
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health implements Admin. It reads /ready so a draining server reports
// draining rather than healthy.
func (c *HTTPClient) Health(ctx context.Context) (*handler.HealthResponse, error) {
	resp, err := c.Get(ctx, "/health")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var out handler.HealthResponse
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}

	ready, err := c.Get(ctx, "/ready")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	ready.Body.Close()
	if ready.StatusCode == http.StatusServiceUnavailable {
		out.Status = "draining"
	}
	return &out, nil
}

// GC implements Admin.
func (c *HTTPClient) GC(ctx context.Context) (*handler.GCResponse, error) {
	resp, err := c.Post(ctx, "/admin/v1/gc/trigger", nil)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var out handler.GCResponse
	if err := ParseResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ParseResponse decodes the data field of the response envelope into
// target. Error envelopes become errors carrying the server's code.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	var env struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 400 {
		if decodeErr == nil && env.Message != "" {
			return fmt.Errorf("[%s] %s", env.Code, env.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("parse response: %w", decodeErr)
	}

	if target != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, target); err != nil {
			return fmt.Errorf("parse response data: %w", err)
		}
	}
	return nil
}
