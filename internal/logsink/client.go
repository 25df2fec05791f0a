// Package logsink ships chat records to the durable log service and provides the
// server-side file writer for it.
package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Sink accepts fire-and-forget records.
type Sink interface {
	Log(record any)
	Close() error
}

// Nop discards every record.
type Nop struct{}

func (Nop) Log(any)      {}
func (Nop) Close() error { return nil }

// Response is the sink service reply.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Client posts records to the sink service from a background worker.
// Log never blocks; when the queue is full the record is dropped with a warning.
type Client struct {
	url    string
	http   *http.Client
	logger *slog.Logger

	queue chan any
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewClient creates a client posting to baseURL + "/api/save-log".
func NewClient(baseURL string, queueSize int, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	c := &Client{
		url:    strings.TrimRight(baseURL, "/") + "/api/save-log",
		http:   &http.Client{Timeout: timeout},
		logger: logger,
		queue:  make(chan any, queueSize),
	}

	c.wg.Add(1)
	go c.run()

	return c
}

// Log enqueues record.
func (c *Client) Log(record any) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}

	select {
	case c.queue <- record:
	default:
		c.logger.Warn("log sink queue full, dropping record", "queue_len", len(c.queue))
	}
}

// Close stops accepting records and waits for queued ones to be sent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *Client) run() {
	defer c.wg.Done()
	for record := range c.queue {
		if err := c.send(record); err != nil {
			c.logger.Warn("failed to ship log record", "error", err)
		}
	}
}

func (c *Client) send(record any) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.http.Timeout+time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if out.Status != "ok" {
		return fmt.Errorf("sink rejected record: %s", out.Error)
	}
	return nil
}
