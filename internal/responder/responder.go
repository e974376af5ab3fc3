// Package responder phrases honeypot replies through an optional external
// generative model. Every implementation returns within a bounded time and
// falls back to a fixed reply instead of failing.
package responder

import (
	"context"

	"github.com/ashureev/honeypot/internal/domain"
)

// FallbackReply is used when no better text is available.
const FallbackReply = "I’m confused. Which bank is this from? Please share the official website and a reference number."

// DefaultPersona is the persona hint sent when none is configured.
const DefaultPersona = "confused_customer"

// historyWindow bounds how much of the transcript is sent to the model.
const historyWindow = 10

// Request carries everything needed to phrase one reply.
type Request struct {
	SessionID string
	Persona   string
	History   []domain.Message
	// GoalHint is the question the engine wants answered.
	GoalHint string
	// Fallback replaces FallbackReply when set.
	Fallback string
}

func (r Request) fallback() string {
	if r.Fallback != "" {
		return r.Fallback
	}
	return FallbackReply
}

// Responder produces reply text for the actor.
type Responder interface {
	Reply(ctx context.Context, req Request) string
	Close()
}

// Static returns the engine's own question unchanged.
type Static struct{}

// Reply returns the request fallback.
func (Static) Reply(_ context.Context, req Request) string {
	return req.fallback()
}

// Close is a no-op.
func (Static) Close() {}

func recentHistory(history []domain.Message) []domain.Message {
	if len(history) <= historyWindow {
		return history
	}
	return history[len(history)-historyWindow:]
}

func chatRole(r domain.Role) string {
	if r == domain.RoleScammer {
		return "user"
	}
	return "assistant"
}

var (
	_ Responder = Static{}
	_ Responder = (*GrpcClient)(nil)
)
