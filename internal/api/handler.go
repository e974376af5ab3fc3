// Package api provides HTTP handlers for the honeypot API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ashureev/honeypot/internal/domain"
	"github.com/ashureev/honeypot/internal/honeypot"
)

// Service is the engagement service behind the HTTP API.
type Service interface {
	Start(ctx context.Context, text string, analysis *domain.Analysis) (honeypot.StartResult, error)
	Incoming(ctx context.Context, id, text string) (honeypot.IncomingResult, error)
	Session(ctx context.Context, id string) (*domain.Session, error)
	TopIOCs(n int) []domain.IOCStat
	Analyze(ctx context.Context, text string) (honeypot.AnalyzeResult, error)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

var _ Service = (*honeypot.Service)(nil)

// decode reads a JSON body into v and writes the error response itself.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		Error(w, http.StatusRequestEntityTooLarge, "request_too_large")
	case errors.Is(err, io.EOF):
		Error(w, http.StatusBadRequest, "empty_body")
	default:
		Error(w, http.StatusBadRequest, "invalid_request")
	}
	return false
}
