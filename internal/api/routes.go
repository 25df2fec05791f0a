package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/hrchat/internal/app"
	"github.com/ashureev/hrchat/internal/chat"
	"github.com/ashureev/hrchat/internal/domain"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type askRequest struct {
	Question string `json:"question"`
}

type draftRequest struct {
	Draft string `json:"draft"`
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

// AskResponse reports where a submission landed.
type AskResponse struct {
	SessionID    domain.SessionID `json:"session_id"`
	SessionIndex int              `json:"session_index"`
	Outcome      chat.Outcome     `json:"outcome"`
	Entry        domain.Entry     `json:"entry"`
}

// RegisterRoutes registers the presentation routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/state", h.HandleState)
	r.Post("/api/login", h.HandleLogin)
	r.Post("/api/signup", h.HandleSignup)
	r.Post("/api/logout", h.HandleLogout)
	r.Post("/api/sessions", h.HandleCreateSession)
	r.Put("/api/sessions/{id}/select", h.HandleSelectSession)
	r.Delete("/api/sessions/{id}", h.HandleDeleteSession)
	r.Put("/api/sessions/{id}/entries/{entry}/rating", h.HandleRate)
	r.Post("/api/ask", h.HandleAsk)
	r.Put("/api/draft", h.HandleDraft)
	r.Put("/api/preferences", h.HandlePreferences)
	r.Get("/ws/state", h.HandleStream)
}

// HandleState returns the full view, with sessions filtered by ?q=.
func (h *Handler) HandleState(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.app.View(r.Context(), r.URL.Query().Get("q")))
}

// HandleLogin signs in and returns the new view.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.app.Login(r.Context(), req.Username, req.Password); err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, h.app.View(r.Context(), ""))
}

// HandleSignup registers an account without signing in.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.app.Signup(r.Context(), req.Username, req.Password, req.Confirm); err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleLogout signs out.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Logout(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, h.app.View(r.Context(), ""))
}

// HandleCreateSession starts an empty session and selects it.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	if _, err := h.app.Pipeline.NewSession(); err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusCreated, h.app.View(r.Context(), ""))
}

// HandleSelectSession makes {id} the active session.
func (h *Handler) HandleSelectSession(w http.ResponseWriter, r *http.Request) {
	if _, err := h.app.Store.SelectByID(sessionID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, h.app.View(r.Context(), r.URL.Query().Get("q")))
}

// HandleDeleteSession removes {id}.
func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Store.DeleteByID(sessionID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, h.app.View(r.Context(), r.URL.Query().Get("q")))
}

// HandleRate sets the rating of one entry.
func (h *Handler) HandleRate(w http.ResponseWriter, r *http.Request) {
	entry, err := strconv.Atoi(chi.URLParam(r, "entry"))
	if err != nil {
		Error(w, http.StatusBadRequest, "validation", "invalid entry index")
		return
	}
	var req ratingRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.app.Pipeline.Rate(sessionID(r), entry, req.Rating); err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, h.app.View(r.Context(), r.URL.Query().Get("q")))
}

// HandleAsk submits a question and waits for the entry to be recorded.
// A failed answer call still yields 200 with a fallback entry.
func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decode(w, r, &req) {
		return
	}
	// A submission runs to completion even if the browser goes away.
	res, err := h.app.Pipeline.Submit(context.WithoutCancel(r.Context()), req.Question)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, AskResponse{
		SessionID:    res.SessionID,
		SessionIndex: res.SessionIndex,
		Outcome:      res.Outcome,
		Entry:        res.Entry,
	})
}

// HandleDraft stores the question input.
func (h *Handler) HandleDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if !decode(w, r, &req) {
		return
	}
	h.app.Pipeline.SetDraft(req.Draft)
	w.WriteHeader(http.StatusNoContent)
}

// HandlePreferences stores display settings.
func (h *Handler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	var req app.Preferences
	if !decode(w, r, &req) {
		return
	}
	if err := h.app.SetPreferences(r.Context(), req); err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, req)
}

func sessionID(r *http.Request) domain.SessionID {
	return domain.SessionID(chi.URLParam(r, "id"))
}
