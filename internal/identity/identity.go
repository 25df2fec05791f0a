// Package identity holds the current authenticated identity and talks to the
// external identity service.
package identity

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

// Service is the external identity service.
type Service interface {
	Authenticate(ctx context.Context, username, password string) error
	Register(ctx context.Context, username, password string) error
}

// Credentials is the identity service request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Reply is the identity service response body.
type Reply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HTTPService calls the identity service over JSON/HTTP.
type HTTPService struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

var _ Service = (*HTTPService)(nil)

// NewHTTPService creates a client for the identity service at baseURL.
func NewHTTPService(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPService{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Authenticate calls POST /api/login.
func (s *HTTPService) Authenticate(ctx context.Context, username, password string) error {
	return s.post(ctx, "/api/login", Credentials{Username: username, Password: password})
}

// Register calls POST /api/signup.
func (s *HTTPService) Register(ctx context.Context, username, password string) error {
	return s.post(ctx, "/api/signup", Credentials{Username: username, Password: password})
}

func (s *HTTPService) post(ctx context.Context, path string, creds Credentials) error {
	body, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", domain.ErrServiceFailure, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrServiceFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		s.logger.Warn("identity service unreachable", "path", path, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrServiceFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var reply Reply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&reply); err != nil {
		return fmt.Errorf("%w: decode response (status %d): %v", domain.ErrServiceFailure, resp.StatusCode, err)
	}
	if reply.Success && resp.StatusCode < 300 {
		return nil
	}
	return replyError(resp.StatusCode, reply.Error)
}

// replyError maps an identity service failure to the error taxonomy, keeping the
// service's reason text.
func replyError(status int, reason string) error {
	var kind error
	switch status {
	case http.StatusBadRequest:
		kind = domain.ErrValidation
	case http.StatusNotFound:
		kind = domain.ErrNotFound
	case http.StatusUnauthorized:
		kind = domain.ErrUnauthorized
	case http.StatusConflict:
		kind = domain.ErrConflict
	default:
		kind = domain.ErrServiceFailure
	}
	if reason == "" {
		return fmt.Errorf("%w (status %d)", kind, status)
	}
	return &ReasonError{Kind: kind, Reason: reason}
}

// ReasonError carries the user-facing reason reported by the identity service.
type ReasonError struct {
	Kind   error
	Reason string
}

func (e *ReasonError) Error() string { return e.Reason }
func (e *ReasonError) Unwrap() error { return e.Kind }

// Reason returns the text to show the user for err.
func Reason(err error) string {
	var re *ReasonError
	if errors.As(err, &re) {
		return re.Reason
	}
	switch {
	case errors.Is(err, domain.ErrMismatch):
		return "Passwords do not match"
	case errors.Is(err, domain.ErrServiceFailure):
		return "Server error"
	}
	return err.Error()
}
