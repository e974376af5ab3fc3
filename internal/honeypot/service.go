// Package honeypot exposes the engagement engine as a service: it annotates
// new conversations, phrases replies, and fans results out to the archive,
// the live feed and the transcript log.
package honeypot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/honeypot/internal/classifier"
	"github.com/ashureev/honeypot/internal/domain"
	"github.com/ashureev/honeypot/internal/engine"
	"github.com/ashureev/honeypot/internal/feed"
	"github.com/ashureev/honeypot/internal/memory"
	"github.com/ashureev/honeypot/internal/responder"
	"github.com/ashureev/honeypot/internal/session"
	"github.com/ashureev/honeypot/internal/store"
)

// StartResult is returned when a conversation is opened.
type StartResult struct {
	SessionID  string            `json:"session_id"`
	FirstReply string            `json:"first_reply"`
	Status     domain.Status     `json:"status"`
	StopReason domain.StopReason `json:"stop_reason"`
	Session    *domain.Session   `json:"session"`
}

// IncomingResult is returned for every later message.
type IncomingResult struct {
	// Reply is empty when the session had already ended.
	Reply      string            `json:"reply"`
	Status     domain.Status     `json:"status"`
	StopReason domain.StopReason `json:"stop_reason"`
	Session    *domain.Session   `json:"session"`
}

// AnalyzeResult is a classification enriched with what memory knows about
// the same text.
type AnalyzeResult struct {
	domain.Analysis
	MemoryMatch   bool         `json:"memory_match"`
	SeenCount     int          `json:"seen_count"`
	FirstSeen     time.Time    `json:"first_seen"`
	LastSeen      time.Time    `json:"last_seen"`
	PreviousIntel domain.Intel `json:"previous_intel"`
}

// Option configures a Service.
type Option func(*Service)

// WithClassifier replaces the keyword classifier.
func WithClassifier(c classifier.Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

// WithResponder phrases continuing replies through r.
func WithResponder(r responder.Responder) Option {
	return func(s *Service) { s.responder = r }
}

// WithPersona sets the persona passed to the responder.
func WithPersona(persona string) Option {
	return func(s *Service) { s.persona = persona }
}

// WithArchive persists sessions and memory to repo.
func WithArchive(repo store.Repository) Option {
	return func(s *Service) { s.archive = repo }
}

// WithFeed publishes an event per processed message to hub.
func WithFeed(hub *feed.Hub) Option {
	return func(s *Service) { s.hub = hub }
}

// WithConversationLogger records transcripts through l.
func WithConversationLogger(l ConversationLogger) Option {
	return func(s *Service) { s.convLog = l }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service is safe for concurrent use.
type Service struct {
	engine     *engine.Engine
	sessions   session.Store
	memory     *memory.Index
	classifier classifier.Classifier
	responder  responder.Responder
	persona    string
	archive    store.Repository
	hub        *feed.Hub
	convLog    ConversationLogger
	logger     *slog.Logger
}

// NewService wires the engine with its stores and optional sinks.
func NewService(eng *engine.Engine, sessions session.Store, mem *memory.Index, opts ...Option) *Service {
	s := &Service{
		engine:   eng,
		sessions: sessions,
		memory:   mem,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.classifier == nil {
		s.classifier = classifier.NewKeyword()
	}
	if s.persona == "" {
		s.persona = responder.DefaultPersona
	}
	if s.convLog == nil {
		s.convLog = nopConversationLogger{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Start opens a conversation with its first message. A nil analysis is
// filled in by the classifier.
func (s *Service) Start(ctx context.Context, text string, analysis *domain.Analysis) (StartResult, error) {
	if analysis == nil {
		analysis = s.classify(ctx, text)
	}

	id, res, err := s.engine.Create(text, analysis)
	if err != nil {
		return StartResult{}, fmt.Errorf("start session: %w", err)
	}

	snap, reply := s.afterStep(ctx, id, text, res)
	return StartResult{
		SessionID:  id,
		FirstReply: reply,
		Status:     res.Status,
		StopReason: res.StopReason,
		Session:    snap,
	}, nil
}

// Incoming processes a later message in session id.
func (s *Service) Incoming(ctx context.Context, id, text string) (IncomingResult, error) {
	res, err := s.engine.Submit(id, text)
	if err != nil {
		if archived := s.archivedEnded(ctx, id, err); archived != nil {
			return IncomingResult{Status: domain.StatusEnded, Session: archived}, nil
		}
		return IncomingResult{}, err
	}

	snap, reply := s.afterStep(ctx, id, text, res)
	return IncomingResult{
		Reply:      reply,
		Status:     res.Status,
		StopReason: res.StopReason,
		Session:    snap,
	}, nil
}

// Session returns a snapshot of session id. Sessions from earlier runs are
// served read-only from the archive.
func (s *Service) Session(ctx context.Context, id string) (*domain.Session, error) {
	snap, err := s.sessions.Get(id)
	if err == nil {
		return snap, nil
	}
	if !session.IsNotFound(err) || s.archive == nil {
		return nil, err
	}

	archived, aerr := s.archive.GetSession(ctx, id)
	if aerr != nil {
		return nil, fmt.Errorf("read archived session %s: %w", id, aerr)
	}
	if archived == nil {
		return nil, err
	}
	return archived, nil
}

// archivedEnded returns the archived snapshot of an evicted ended session.
func (s *Service) archivedEnded(ctx context.Context, id string, err error) *domain.Session {
	if s.archive == nil || !IsNotFound(err) {
		return nil
	}
	archived, aerr := s.archive.GetSession(ctx, id)
	if aerr != nil {
		s.logger.Warn("Failed to read archived session", "session_id", id, "error", aerr)
		return nil
	}
	if archived == nil || !archived.Ended() {
		return nil
	}
	return archived
}

// TopIOCs returns the n most frequent indicators. n <= 0 returns all.
func (s *Service) TopIOCs(n int) []domain.IOCStat {
	return s.memory.Top(n)
}

// Analyze classifies text and reports whether memory has seen it before.
// The sighting itself is recorded.
func (s *Service) Analyze(ctx context.Context, text string) (AnalyzeResult, error) {
	analysis, err := s.classifier.Classify(ctx, text)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("classify: %w", err)
	}

	_, seen := s.memory.Lookup(text)
	rec := s.memory.Update(text, analysis, nil)
	s.archiveMemory(ctx, rec, nil)

	return AnalyzeResult{
		Analysis:      *analysis,
		MemoryMatch:   seen,
		SeenCount:     rec.Count,
		FirstSeen:     rec.FirstSeen,
		LastSeen:      rec.LastSeen,
		PreviousIntel: rec.Intel,
	}, nil
}

// RestoreMemory seeds the in-process memory from the archive.
func (s *Service) RestoreMemory(ctx context.Context) error {
	if s.archive == nil {
		return nil
	}
	records, err := s.archive.ListMemoryRecords(ctx)
	if err != nil {
		return fmt.Errorf("load memory records: %w", err)
	}
	stats, err := s.archive.TopIOCs(ctx, 0)
	if err != nil {
		return fmt.Errorf("load ioc stats: %w", err)
	}
	s.memory.Restore(records, stats)
	s.logger.Info("Memory restored from archive", "records", len(records), "iocs", len(stats))
	return nil
}

func (s *Service) classify(ctx context.Context, text string) *domain.Analysis {
	analysis, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.logger.Warn("Classification failed, starting unannotated", "error", err)
		return nil
	}
	return analysis
}

// afterStep runs everything that must stay outside the session lock and
// returns the snapshot and the reply text to send.
func (s *Service) afterStep(ctx context.Context, id, text string, res engine.Result) (*domain.Session, string) {
	snap, err := s.sessions.Get(id)
	if err != nil {
		s.logger.Warn("Session vanished after processing", "session_id", id, "error", err)
	}

	// Nothing was recorded for an already ended session.
	if res.Reply == "" {
		return snap, ""
	}

	reply := s.phrase(ctx, id, snap, res)
	now := time.Now().UTC()

	s.convLog.Log(ConversationLogEvent{
		Timestamp: now,
		SessionID: id,
		EventType: EventScammerMessage,
		Content:   text,
		Turns:     res.Turns,
		Intel:     &res.Extracted,
	})
	s.convLog.Log(ConversationLogEvent{
		Timestamp: now,
		SessionID: id,
		EventType: EventHoneypotReply,
		Content:   reply,
		Status:    res.Status,
		Turns:     res.Turns,
	})
	if res.StopReason != domain.StopNone {
		s.convLog.Log(ConversationLogEvent{
			Timestamp:  now,
			SessionID:  id,
			EventType:  EventSessionEnded,
			Status:     res.Status,
			StopReason: res.StopReason,
			Turns:      res.Turns,
		})
	}

	if s.hub != nil {
		s.hub.Publish(feed.Event{
			SessionID:  id,
			Status:     res.Status,
			StopReason: res.StopReason,
			Turns:      res.Turns,
			NewIntel:   res.Extracted,
			Timestamp:  now,
		})
	}

	if s.archive != nil {
		if snap != nil {
			if err := s.archive.SaveSession(ctx, snap); err != nil {
				s.logger.Warn("Failed to archive session", "session_id", id, "error", err)
			}
		}
		if rec, ok := s.memory.Lookup(text); ok {
			s.archiveMemory(ctx, rec, &res.Extracted)
		}
	}

	return snap, reply
}

func (s *Service) phrase(ctx context.Context, id string, snap *domain.Session, res engine.Result) string {
	if s.responder == nil || res.Status != domain.StatusRunning || snap == nil {
		return res.Reply
	}
	return s.responder.Reply(ctx, responder.Request{
		SessionID: id,
		Persona:   s.persona,
		History:   snap.Messages,
		GoalHint:  res.Reply,
		Fallback:  res.Reply,
	})
}

func (s *Service) archiveMemory(ctx context.Context, rec domain.MemoryRecord, extracted *domain.Intel) {
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveMemoryRecord(ctx, rec); err != nil {
		s.logger.Warn("Failed to archive memory record", "error", err)
	}
	if extracted == nil || extracted.Empty() {
		return
	}
	if err := s.archive.SaveIOCStats(ctx, s.memory.Stats(*extracted)); err != nil {
		s.logger.Warn("Failed to archive IOC stats", "error", err)
	}
}

// Close flushes the transcript log.
func (s *Service) Close() error {
	if err := s.convLog.Close(); err != nil {
		return fmt.Errorf("close conversation log: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, engine.ErrSessionNotFound) || session.IsNotFound(err)
}
