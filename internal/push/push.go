// Package push implements optional agent-initiated delivery of the current
// metric values to a central monitoring server, for nodes that cannot expose
// an inbound scrape port.
package push

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/T3chie-404/xand-mon-agent/internal/config"
	"github.com/T3chie-404/xand-mon-agent/internal/version"
)

// Client pushes metric values to the monitoring API after each probe cycle.
type Client struct {
	apiURL   string
	apiKey   string
	nodeName string
	attempts int
	client   *http.Client
	logger   *slog.Logger
	backoff  func(attempt int) time.Duration
}

// New creates a push Client. Pass nil logger to use the default logger.
func New(cfg config.PushConfig, nodeName string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		apiURL:   cfg.APIURL,
		apiKey:   cfg.APIKey,
		nodeName: nodeName,
		attempts: cfg.RetryAttempts,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		backoff: func(attempt int) time.Duration {
			// 2s, 4s, 8s, ...
			return time.Duration(1<<attempt) * time.Second
		},
	}
}

// NewWithBackoff creates a Client with a custom backoff schedule (for testing).
func NewWithBackoff(cfg config.PushConfig, nodeName string, logger *slog.Logger, backoff func(int) time.Duration) *Client {
	c := New(cfg, nodeName, logger)
	c.backoff = backoff
	return c
}

type metadata struct {
	AgentVersion string  `json:"agent_version"`
	PushTime     float64 `json:"push_time"`
}

type payload struct {
	Node      string         `json:"node"`
	Timestamp int64          `json:"timestamp"`
	Metrics   map[string]any `json:"metrics"`
	Metadata  metadata       `json:"metadata"`
}

// Notify sends the given metric values asynchronously so the caller (the
// scheduler) never blocks on the monitoring server.
func (c *Client) Notify(values map[string]any) {
	go func() {
		if err := c.Push(values); err != nil {
			c.logger.Error("pushing metrics", "node", c.nodeName, "error", err)
		}
	}()
}

// Push sends the given metric values, retrying transient failures with
// exponential backoff. An authentication rejection aborts immediately since
// retrying it cannot succeed.
func (c *Client) Push(values map[string]any) error {
	now := time.Now()
	body, err := json.Marshal(payload{
		Node:      c.nodeName,
		Timestamp: now.Unix(),
		Metrics:   values,
		Metadata: metadata{
			AgentVersion: version.Version,
			PushTime:     float64(now.UnixMilli()) / 1000,
		},
	})
	if err != nil {
		return fmt.Errorf("marshaling push payload: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		status, err := c.post(body)
		if err == nil && status == http.StatusOK {
			return nil
		}
		if status == http.StatusUnauthorized {
			return fmt.Errorf("monitoring server rejected API key (status 401)")
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("monitoring server returned status %d", status)
		}
		c.logger.Warn("push attempt failed",
			"attempt", attempt,
			"max_attempts", c.attempts,
			"error", lastErr,
		)
		if attempt < c.attempts {
			time.Sleep(c.backoff(attempt))
		}
	}
	return fmt.Errorf("push failed after %d attempts: %w", c.attempts, lastErr)
}

func (c *Client) post(body []byte) (int, error) {
	req, err := http.NewRequest(http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "xand-mon-agent/"+version.Version)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending push request: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
