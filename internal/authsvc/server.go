// Package authsvc is the reference identity service and logging sink the chat
// client talks to.
package authsvc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ashureev/hrchat/internal/api"
	"github.com/ashureev/hrchat/internal/domain"
	"github.com/ashureev/hrchat/internal/identity"
	"github.com/ashureev/hrchat/internal/logsink"
	"github.com/ashureev/hrchat/internal/middleware"
	"github.com/ashureev/hrchat/internal/store"
)

const maxRequestBodySize = 64 << 10

// LogAppender durably stores one interaction record.
type LogAppender interface {
	Append(raw json.RawMessage) error
}

// Server serves /api/signup, /api/login and /api/save-log.
type Server struct {
	users   store.Users
	logs    LogAppender
	limiter *middleware.RateLimiter
	cost    int
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRateLimiter throttles the credential endpoints per client IP.
func WithRateLimiter(l *middleware.RateLimiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.cost = cost }
}

// NewServer creates a server over the credential store and log appender.
func NewServer(users store.Users, logs LogAppender, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		users:  users,
		logs:   logs,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ LogAppender = (*logsink.FileSink)(nil)

// RegisterRoutes registers the service routes.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Post("/api/signup", s.HandleSignup)
		r.Post("/api/login", s.HandleLogin)
	})
	r.Post("/api/save-log", s.HandleSaveLog)
}

// HandleSignup creates a credential record.
func (s *Server) HandleSignup(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}
	if !domain.ValidUsername(creds.Username) {
		api.JSON(w, http.StatusBadRequest, identity.Reply{Error: "Invalid username"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.cost)
	if err != nil {
		s.logger.Error("hash password", "user", creds.Username, "error", err)
		api.JSON(w, http.StatusInternalServerError, identity.Reply{Error: "Server error"})
		return
	}

	user := &domain.User{Username: creds.Username, PasswordHash: string(hash), CreatedAt: s.now().UTC()}
	if err := s.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			api.JSON(w, http.StatusConflict, identity.Reply{Error: "User already exists"})
			return
		}
		s.logger.Error("create user", "user", creds.Username, "error", err)
		api.JSON(w, http.StatusInternalServerError, identity.Reply{Error: "Server error"})
		return
	}

	s.logger.Info("user registered", "user", creds.Username)
	api.JSON(w, http.StatusOK, identity.Reply{Success: true})
}

// HandleLogin verifies a username/password pair.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	creds, ok := s.decodeCredentials(w, r)
	if !ok {
		return
	}

	user, err := s.users.GetUser(r.Context(), creds.Username)
	if err != nil {
		s.logger.Error("get user", "user", creds.Username, "error", err)
		api.JSON(w, http.StatusInternalServerError, identity.Reply{Error: "Server error"})
		return
	}
	if user == nil {
		api.JSON(w, http.StatusNotFound, identity.Reply{Error: "User not found"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			api.JSON(w, http.StatusUnauthorized, identity.Reply{Error: "Wrong password"})
			return
		}
		s.logger.Error("compare password", "user", creds.Username, "error", err)
		api.JSON(w, http.StatusInternalServerError, identity.Reply{Error: "Server error"})
		return
	}

	api.JSON(w, http.StatusOK, identity.Reply{Success: true})
}

// HandleSaveLog appends the request body to the interaction log.
func (s *Server) HandleSaveLog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		api.JSON(w, http.StatusBadRequest, logsink.Response{Status: "error", Error: "invalid request body"})
		return
	}
	if err := s.logs.Append(raw); err != nil {
		s.logger.Error("append interaction log", "error", err)
		api.JSON(w, http.StatusInternalServerError, logsink.Response{Status: "error", Error: "Server error"})
		return
	}
	api.JSON(w, http.StatusOK, logsink.Response{Status: "ok"})
}

func (s *Server) decodeCredentials(w http.ResponseWriter, r *http.Request) (identity.Credentials, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var creds identity.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		api.JSON(w, http.StatusBadRequest, identity.Reply{Error: "Invalid request body"})
		return creds, false
	}
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		api.JSON(w, http.StatusBadRequest, identity.Reply{Error: "Missing fields"})
		return creds, false
	}
	return creds, true
}
