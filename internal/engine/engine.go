// Package engine drives a honeypot conversation one incoming message at a
// time: it harvests indicators, tracks intent and progress, and decides
// whether to ask the next question or close the session.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/honeypot/internal/domain"
	"github.com/ashureev/honeypot/internal/intel"
	"github.com/ashureev/honeypot/internal/session"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = session.ErrNotFound

// Memory is the cross-session index the engine feeds with every message.
type Memory interface {
	Update(text string, analysis *domain.Analysis, in *domain.Intel) domain.MemoryRecord
}

// Result is the outcome of processing one incoming message.
type Result struct {
	Status     domain.Status
	StopReason domain.StopReason
	// Reply is empty when the session was already ended.
	Reply string
	// Ask is the ladder rung of a continuing reply.
	Ask Ask
	// Extracted holds the indicators found in this message alone.
	Extracted domain.Intel
	Turns     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the embedded rule tables.
func WithRules(r *Rules) Option {
	return func(e *Engine) { e.rules = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine is safe for concurrent use; per-session ordering comes from the
// session store.
type Engine struct {
	sessions session.Store
	memory   Memory
	rules    *Rules
	now      func() time.Time
	logger   *slog.Logger
}

// New creates an engine over the given stores.
func New(sessions session.Store, memory Memory, opts ...Option) *Engine {
	e := &Engine{
		sessions: sessions,
		memory:   memory,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rules == nil {
		e.rules = DefaultRules()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Rules returns the active rule tables.
func (e *Engine) Rules() *Rules {
	return e.rules
}

// Create starts a session annotated with analysis and processes text as its
// first message.
func (e *Engine) Create(text string, analysis *domain.Analysis) (string, Result, error) {
	s := e.sessions.Create(analysis)
	e.logger.Info("Honeypot session created", "session_id", s.ID)

	res, err := e.Submit(s.ID, text)
	if err != nil {
		return s.ID, Result{}, err
	}
	return s.ID, res, nil
}

// Submit processes one message from the actor in session id.
func (e *Engine) Submit(id, text string) (Result, error) {
	var res Result
	err := e.sessions.Update(id, func(s *domain.Session) error {
		res = e.step(s, text)
		return nil
	})
	if err != nil {
		if session.IsNotFound(err) {
			return Result{}, fmt.Errorf("submit %s: %w", id, ErrSessionNotFound)
		}
		return Result{}, fmt.Errorf("submit %s: %w", id, err)
	}

	if res.StopReason != domain.StopNone {
		e.logger.Info("Honeypot session ended",
			"session_id", id,
			"stop_reason", res.StopReason,
			"turns", res.Turns,
		)
	} else {
		e.logger.Debug("Honeypot turn",
			"session_id", id,
			"status", res.Status,
			"ask", res.Ask,
			"turns", res.Turns,
		)
	}
	return res, nil
}

func (e *Engine) step(s *domain.Session, text string) Result {
	if s.Ended() {
		return Result{Status: domain.StatusEnded, Turns: s.Turns}
	}

	now := e.now()
	s.Append(domain.RoleScammer, text, now)
	s.LastContactAt = now

	before := s.Intel.Sizes()
	extracted := intel.Extract(text)
	s.Intel.Merge(extracted)
	e.memory.Update(text, nil, &extracted)

	// Progress is judged on set sizes only.
	if s.Intel.Sizes() == before {
		s.NoProgressCount++
	} else {
		s.NoProgressCount = 0
	}

	intent := e.rules.ClassifyIntent(text)
	if intent == s.LastIntent {
		s.RepeatCount++
	} else {
		s.LastIntent = intent
		s.RepeatCount = 0
	}

	if reason, stop := e.rules.StopReason(s); stop {
		s.End(reason)
		closing := e.rules.Closing(reason)
		s.Append(domain.RoleHoneypot, closing, now)
		return Result{
			Status:     domain.StatusEnded,
			StopReason: reason,
			Reply:      closing,
			Extracted:  extracted,
			Turns:      s.Turns,
		}
	}

	ask := e.rules.NextAsk(s, text)
	reply := e.rules.Reply(ask)
	s.Turns++
	s.Append(domain.RoleHoneypot, reply, now)
	return Result{
		Status:    domain.StatusRunning,
		Reply:     reply,
		Ask:       ask,
		Extracted: extracted,
		Turns:     s.Turns,
	}
}
