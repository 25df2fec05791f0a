// Package answer provides clients for the answer-generation service.
package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/hrchat/internal/domain"
)

// maxResponseSize caps the answer body read from the service.
const maxResponseSize = 4 << 20

var (
	errMissingAnswer = errors.New("response has no answer")
	errRemote        = errors.New("answer service returned error")
)

// HTTPClient talks to the answer service over JSON/HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the service at baseURL. A zero timeout
// leaves requests unbounded.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type askRequest struct {
	Question string `json:"question"`
}

type wireLink struct {
	FileTitle     string `json:"file_title"`
	AttachmentURL string `json:"attachment_url"`
}

type askResponse struct {
	Answer *string    `json:"answer"`
	Links  []wireLink `json:"links"`
	Error  string     `json:"error"`
}

// Ask posts question to /chat. Transport errors, non-2xx statuses, malformed
// bodies, and bodies carrying an error all fail with domain.ErrServiceFailure.
func (c *HTTPClient) Ask(ctx context.Context, question string) (domain.Answer, error) {
	body, err := json.Marshal(askRequest{Question: question})
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: encode request: %v", domain.ErrServiceFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: build request: %v", domain.ErrServiceFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %v", domain.ErrServiceFailure, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close answer response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Answer{}, fmt.Errorf("%w: status %d", domain.ErrServiceFailure, resp.StatusCode)
	}

	var out askResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&out); err != nil {
		return domain.Answer{}, fmt.Errorf("%w: decode response: %v", domain.ErrServiceFailure, err)
	}

	ans, err := out.toAnswer()
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %w", domain.ErrServiceFailure, err)
	}

	c.logger.Debug("answer received", "duration_ms", time.Since(start).Milliseconds(), "links", len(ans.Links))
	return ans, nil
}

func (r askResponse) toAnswer() (domain.Answer, error) {
	if r.Error != "" {
		return domain.Answer{}, fmt.Errorf("%w: %s", errRemote, r.Error)
	}
	if r.Answer == nil {
		return domain.Answer{}, errMissingAnswer
	}
	links := make([]domain.Link, 0, len(r.Links))
	for _, l := range r.Links {
		links = append(links, domain.Link{Title: l.FileTitle, URL: l.AttachmentURL})
	}
	return domain.Answer{Text: *r.Answer, Links: links}, nil
}

// Health calls GET /health and reports whether the service answered ok.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var out struct {
		OK bool `json:"ok"`
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || !out.OK {
		return fmt.Errorf("health check failed: service not ok")
	}
	return nil
}
