package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// ErrNotFound is returned when the named process is unknown to the daemon.
var ErrNotFound = errors.New("process not found")

// Client provides HTTP client functionality to communicate with the spawnd daemon
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config configures a Client. Zero values fall back to DefaultConfig.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
	TLS     *TLSClientConfig
	// Insecure disables certificate verification entirely.
	Insecure bool
}

// TLSClientConfig is used when Enabled is set. Paths are PEM files.
type TLSClientConfig struct {
	Enabled    bool
	CACert     string
	ClientCert string
	ClientKey  string
	ServerName string
	SkipVerify bool
}

// DefaultConfig points at a daemon listening on localhost:8080.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a new spawnd API client
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	c := &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
	if (config.TLS != nil && config.TLS.Enabled) || config.Insecure {
		// A broken TLS config falls back to system roots; requests to a
		// private CA will then fail verification and say so.
		if tc, err := clientTLS(config); err != nil {
			config.Logger.Error("client TLS config ignored", "error", err)
		} else {
			c.client.Transport = &http.Transport{TLSClientConfig: tc}
		}
	}
	return c
}

// IsReachable reports whether the health endpoint answers at all.
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.Health(ctx)
	if err != nil {
		c.logger.Debug("daemon unreachable", "url", c.baseURL, "error", err)
		return false
	}
	return true
}

// Health fetches the daemon liveness report. A stopping daemon answers
// 503 but still returns the report.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.getJSON(ctx, "/healthz", &h, http.StatusServiceUnavailable)
	return h, err
}

// Status lists every supervised process
func (c *Client) Status(ctx context.Context) ([]ProcessStatus, error) {
	var out []ProcessStatus
	if err := c.getJSON(ctx, "/status", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusOf fetches one process by name
func (c *Client) StatusOf(ctx context.Context, name string) (ProcessStatus, error) {
	var out ProcessStatus
	err := c.getJSON(ctx, "/status/"+url.PathEscape(name), &out)
	return out, err
}

// Global fetches the daemon-wide settings from the config directory
func (c *Client) Global(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	if err := c.getJSON(ctx, "/global", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getJSON decodes a 200 response, or one of the extra accepted codes, into v.
func (c *Client) getJSON(ctx context.Context, path string, v any, accept ...int) error {
	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	ok := resp.StatusCode == http.StatusOK
	for _, code := range accept {
		ok = ok || resp.StatusCode == code
	}
	if !ok {
		return c.apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// apiError turns a non-2xx response into an error, preferring the
// server's {"error": ...} body when there is one.
func (c *Client) apiError(resp *http.Response) error {
	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error == "" {
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	c.logger.Debug("status API error", "status", resp.StatusCode, "error", body.Error)
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, body.Error)
	}
	return fmt.Errorf("status API: %s", body.Error)
}

// clientTLS builds the transport TLS settings. Insecure wins over
// everything else.
func clientTLS(config Config) (*tls.Config, error) {
	if config.Insecure {
		return &tls.Config{InsecureSkipVerify: true}, nil // #nosec G402
	}
	t := config.TLS
	if t == nil {
		return &tls.Config{}, nil
	}
	out := &tls.Config{
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.SkipVerify, // #nosec G402
	}
	if t.CACert != "" {
		pool, err := certPool(t.CACert)
		if err != nil {
			return nil, fmt.Errorf("CA certificate %s: %w", t.CACert, err)
		}
		out.RootCAs = pool
	}
	if t.ClientCert != "" && t.ClientKey != "" {
		pair, err := tls.LoadX509KeyPair(t.ClientCert, t.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("client certificate: %w", err)
		}
		out.Certificates = append(out.Certificates, pair)
	}
	return out, nil
}

func certPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("no PEM certificates found")
	}
	return pool, nil
}
