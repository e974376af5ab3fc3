package honeypot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/ashureev/honeypot/internal/domain"
)

// Conversation event types.
const (
	EventScammerMessage = "scammer_message"
	EventHoneypotReply  = "honeypot_reply"
	EventSessionEnded   = "session_ended"
)

// ConversationLogEvent is one NDJSON line of a session transcript.
type ConversationLogEvent struct {
	Timestamp  time.Time         `json:"ts"`
	SessionID  string            `json:"session_id"`
	EventType  string            `json:"event_type"`
	Content    string            `json:"content,omitempty"`
	Status     domain.Status     `json:"status,omitempty"`
	StopReason domain.StopReason `json:"stop_reason,omitempty"`
	Turns      int               `json:"turns"`
	Intel      *domain.Intel     `json:"intel,omitempty"`
}

// ConversationLogConfig controls the transcript writer.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// ConversationLogger records session transcripts.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

type nopConversationLogger struct{}

func (nopConversationLogger) Log(ConversationLogEvent) {}
func (nopConversationLogger) Close() error             { return nil }

// fileConversationLogger appends events to <dir>/<session_id>.ndjson from a
// single writer goroutine.
type fileConversationLogger struct {
	dir    string
	queue  chan ConversationLogEvent
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// NewConversationLogger starts a transcript writer. A disabled config
// yields a logger that discards events.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return nopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log directory: %w", err)
	}

	l := &fileConversationLogger{
		dir:    cfg.Dir,
		queue:  make(chan ConversationLogEvent, cfg.QueueSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Log enqueues an event. Events are dropped with a warning when the queue
// is full or the logger is closed.
func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("Conversation log queue full, dropping event",
			"session_id", event.SessionID,
			"event_type", event.EventType,
		)
	}
}

// Close drains pending events and stops the writer.
func (l *fileConversationLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return nil
}

func (l *fileConversationLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		if err := l.write(event); err != nil {
			l.logger.Warn("Failed to write conversation log", "session_id", event.SessionID, "error", err)
		}
	}
}

func (l *fileConversationLogger) write(event ConversationLogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(l.dir, sessionFileName(event.SessionID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	return f.Close()
}

func sessionFileName(id string) string {
	name := unsafeFileChars.ReplaceAllString(id, "_")
	if name == "" {
		name = "unknown"
	}
	return name + ".ndjson"
}
