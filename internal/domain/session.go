package domain

import (
	"slices"
	"time"
)

// Status is the lifecycle state of a honeypot session.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusEnded   Status = "ENDED"
)

// StopReason names the termination predicate that ended a session.
type StopReason string

const (
	StopNone              StopReason = ""
	StopAllIntelCollected StopReason = "all_intel_collected"
	StopNoIntelProgress   StopReason = "no_intel_progress"
	StopMaxTurns          StopReason = "max_turns"
	StopRepeatedIntent    StopReason = "repeated_intent"
)

// StopReasons lists the termination predicates in evaluation priority.
func StopReasons() []StopReason {
	return []StopReason{StopAllIntelCollected, StopNoIntelProgress, StopMaxTurns, StopRepeatedIntent}
}

// Valid reports whether r is one of the known stop reasons.
func (r StopReason) Valid() bool {
	return slices.Contains(StopReasons(), r)
}

// Intent is the coarse purpose of an actor message.
type Intent string

const (
	IntentNone    Intent = ""
	IntentCollect Intent = "COLLECT"
	IntentPayment Intent = "PAYMENT"
	IntentLink    Intent = "LINK"
	IntentOTP     Intent = "OTP"
	IntentOther   Intent = "OTHER"
)

// MarkedIntents lists the intents detected by markers, in match priority.
// IntentOther is the fallback and has no markers.
func MarkedIntents() []Intent {
	return []Intent{IntentCollect, IntentPayment, IntentLink, IntentOTP}
}

// Role identifies the author of a logged message.
type Role string

const (
	RoleScammer  Role = "scammer"
	RoleHoneypot Role = "honeypot"
)

// Message is one entry of the session transcript.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"ts"`
}

// Session holds the engagement state for one conversation.
type Session struct {
	ID              string     `json:"id"`
	Status          Status     `json:"status"`
	StopReason      StopReason `json:"stop_reason,omitempty"`
	Turns           int        `json:"turns"`
	LastIntent      Intent     `json:"last_intent"`
	RepeatCount     int        `json:"repeat_count"`
	NoProgressCount int        `json:"no_progress_count"`
	RefusedSite     bool       `json:"refused_site_flag"`
	Intel           Intel      `json:"intel"`
	Messages        []Message  `json:"messages"`
	Analysis        *Analysis  `json:"analyze_result,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	LastContactAt   time.Time  `json:"last_scammer_time"`
}

// NewSession returns a RUNNING session with zeroed counters.
func NewSession(id string, analysis *Analysis, now time.Time) *Session {
	return &Session{
		ID:            id,
		Status:        StatusRunning,
		Intel:         NewIntel(),
		Messages:      []Message{},
		Analysis:      analysis.Clone(),
		CreatedAt:     now,
		LastContactAt: now,
	}
}

// Ended reports whether the session reached its terminal state.
func (s *Session) Ended() bool {
	return s.Status == StatusEnded
}

// End moves the session to ENDED. It returns false when already ended.
func (s *Session) End(reason StopReason) bool {
	if s.Ended() {
		return false
	}
	s.Status = StatusEnded
	s.StopReason = reason
	return true
}

// Append adds a transcript entry.
func (s *Session) Append(role Role, text string, at time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Text: text, Timestamp: at})
}

// Clone returns a deep copy safe to hand out of a store.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Intel = s.Intel.Clone()
	out.Messages = slices.Clone(s.Messages)
	if out.Messages == nil {
		out.Messages = []Message{}
	}
	out.Analysis = s.Analysis.Clone()
	return &out
}
