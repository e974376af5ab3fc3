package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/honeypot/internal/domain"
	"github.com/ashureev/honeypot/internal/honeypot"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 1000
)

// HoneypotHandler serves the engagement endpoints.
type HoneypotHandler struct {
	svc Service
}

// NewHoneypotHandler creates a handler over svc.
func NewHoneypotHandler(svc Service) *HoneypotHandler {
	return &HoneypotHandler{svc: svc}
}

// RegisterRoutes registers the engagement routes.
func (h *HoneypotHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", h.Analyze)
		r.Route("/honeypot", func(r chi.Router) {
			r.Post("/start", h.Start)
			r.Post("/incoming", h.Incoming)
			r.Get("/session/{id}", h.Session)
		})
		r.Get("/iocs/top", h.TopIOCs)
	})
}

type analyzeRequest struct {
	Message string `json:"message"`
}

type startRequest struct {
	Message       string           `json:"message"`
	AnalyzeResult *domain.Analysis `json:"analyze_result,omitempty"`
}

type incomingRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Analyze classifies a message and reports memory matches.
func (h *HoneypotHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.Analyze(r.Context(), req.Message)
	if err != nil {
		slog.Error("Analyze failed", "error", err)
		Error(w, http.StatusInternalServerError, "analyze_failed")
		return
	}
	JSON(w, http.StatusOK, res)
}

// Start opens a honeypot session with its first message.
func (h *HoneypotHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.Start(r.Context(), req.Message, req.AnalyzeResult)
	if err != nil {
		slog.Error("Failed to start honeypot session", "error", err)
		Error(w, http.StatusInternalServerError, "start_failed")
		return
	}
	JSON(w, http.StatusOK, res)
}

// Incoming processes the next message of a session.
func (h *HoneypotHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	var req incomingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		Error(w, http.StatusBadRequest, "session_id_required")
		return
	}

	res, err := h.svc.Incoming(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.sessionError(w, req.SessionID, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Session returns a session snapshot.
func (h *HoneypotHandler) Session(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := h.svc.Session(r.Context(), id)
	if err != nil {
		h.sessionError(w, id, err)
		return
	}
	JSON(w, http.StatusOK, snap)
}

// TopIOCs returns the most frequently seen indicators.
func (h *HoneypotHandler) TopIOCs(w http.ResponseWriter, r *http.Request) {
	limit := defaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		limit = min(n, maxTopLimit)
	}

	stats := h.svc.TopIOCs(limit)
	if stats == nil {
		stats = []domain.IOCStat{}
	}
	JSON(w, http.StatusOK, map[string]any{"iocs": stats})
}

func (h *HoneypotHandler) sessionError(w http.ResponseWriter, id string, err error) {
	if honeypot.IsNotFound(err) {
		Error(w, http.StatusNotFound, "session_not_found")
		return
	}
	slog.Error("Session request failed", "session_id", id, "error", err)
	Error(w, http.StatusInternalServerError, "internal_error")
}
