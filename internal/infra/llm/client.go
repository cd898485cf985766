// Package llm implements the request client for the remote chat-completion
// service that classifies software packages.
//
// This package contains:
//   - Client: one classification call per item with bounded retry/backoff
//   - ParseVerdict: tolerant parser for the nested classification envelope
//   - Monitor: throttle and latency tracking for the remote service
//   - RateLimiter: optional client-side pacing of outgoing requests
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/softscan/internal/core/domain"
	"github.com/vietddude/softscan/internal/scanning/metrics"
)

const (
	DefaultURL        = "https://api.perplexity.ai/chat/completions"
	DefaultModel      = "sonar"
	DefaultTimeout    = 20 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
)

var (
	ErrRateLimited = errors.New("rate limited (429)")
	ErrTransport   = errors.New("transport failure")
	ErrMaxRetries  = errors.New("max retries exceeded")
)

// Config holds settings for the classification service client.
type Config struct {
	URL            string        `yaml:"url"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RateLimitRPS   float64       `yaml:"rate_limit_rps"`   // 0 = unlimited
	RateLimitBurst int           `yaml:"rate_limit_burst"`
}

// DefaultConfig returns the settings the scanner ships with.
func DefaultConfig() Config {
	return Config{
		URL:            DefaultURL,
		Model:          DefaultModel,
		Timeout:        DefaultTimeout,
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
		RateLimitBurst: 1,
	}
}

// Client classifies software names through the remote service.
// A single Client is shared by every task of a batch; its HTTP connection
// pool is the only shared resource and is never mutated by callers.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *RateLimiter
	sleep      func(ctx context.Context, d time.Duration) error

	Monitor *Monitor
}

// NewClient creates a new classification client.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		sleep:   sleepContext,
		Monitor: NewMonitor(),
	}
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = NewRateLimiter(cfg.RateLimitRPS, burst)
	}
	return c
}

// Config returns the effective client configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Classify asks the service whether itemName is harmful. It never returns an
// error: every failure is folded into an UNKNOWN verdict whose RCA names the
// failure.
func (c *Client) Classify(ctx context.Context, itemName, credential string) domain.Verdict {
	req := domain.ClassificationRequest{ItemName: itemName, Credential: credential}

	payload, err := json.Marshal(newChatRequest(c.cfg.Model, req.ItemName))
	if err != nil {
		// Only reachable with a broken model name; treat like a failed fetch.
		slog.Error("Failed to marshal classification request", "item", itemName, "error", err)
		return domain.UnknownVerdict(domain.RCAFetchError)
	}

	status, body, err := c.postWithRetry(ctx, payload, req)
	if err != nil {
		slog.Warn("Classification gave up", "item", itemName, "error", err)
		return domain.UnknownVerdict(domain.RCAMaxRetries)
	}

	if status != http.StatusOK {
		slog.Debug("Classification failed", "item", itemName, "status", status)
		return domain.UnknownVerdict(domain.RCAFetchError)
	}

	return ParseVerdict(body)
}

// attempt performs exactly one HTTP call. A nil error means a status was
// obtained; 429 is reported both as status and as ErrRateLimited.
func (c *Client) attempt(
	ctx context.Context,
	payload []byte,
	req domain.ClassificationRequest,
) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("%w: rate limiter: %v", ErrTransport, err)
		}
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: create request: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.recordTransportFailure()
		return 0, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.Monitor.RecordThrottle(resp.Header.Get("Retry-After"))
		metrics.ClassifyAttemptsTotal.WithLabelValues("rate_limited").Inc()
		return resp.StatusCode, nil, ErrRateLimited
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordTransportFailure()
		return 0, nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	latency := time.Since(start)
	metrics.ClassifyLatency.Observe(latency.Seconds())

	if resp.StatusCode != http.StatusOK {
		c.Monitor.RecordHTTPError(resp.StatusCode)
		metrics.ClassifyAttemptsTotal.WithLabelValues("http_error").Inc()
		return resp.StatusCode, body, nil
	}

	c.Monitor.RecordRequest(latency)
	metrics.ClassifyAttemptsTotal.WithLabelValues("ok").Inc()
	return resp.StatusCode, body, nil
}

func (c *Client) recordTransportFailure() {
	c.Monitor.RecordTransportFailure()
	metrics.ClassifyAttemptsTotal.WithLabelValues("transport_error").Inc()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
