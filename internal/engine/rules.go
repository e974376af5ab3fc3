package engine

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/honeypot/internal/domain"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Limits holds the termination thresholds.
type Limits struct {
	MaxTurns        int `yaml:"max_turns"`
	RepeatLimit     int `yaml:"repeat_limit"`
	NoProgressLimit int `yaml:"no_progress_limit"`
}

// IntentRule maps a set of lowercase markers to an intent.
type IntentRule struct {
	Intent  domain.Intent `yaml:"intent"`
	Markers []string      `yaml:"markers"`
}

// RefusalRules lists phrasings that decline a request.
type RefusalRules struct {
	Phrases     []string `yaml:"phrases"`
	SitePhrases []string `yaml:"site_phrases"`
}

// Replies holds the adaptive question texts, one per ladder rung.
type Replies struct {
	RefusalPhone   string `yaml:"refusal_phone"`
	RefusalUPI     string `yaml:"refusal_upi"`
	RefusalLink    string `yaml:"refusal_link"`
	RefusalClarify string `yaml:"refusal_clarify"`
	Link           string `yaml:"link"`
	UPI            string `yaml:"upi"`
	Phone          string `yaml:"phone"`
	LinkSubstitute string `yaml:"link_substitute"`
	Clarify        string `yaml:"clarify"`
}

// Rules is the complete, ordered decision table of the engine.
type Rules struct {
	Limits          Limits                       `yaml:"limits"`
	Intents         []IntentRule                 `yaml:"intents"`
	Refusal         RefusalRules                 `yaml:"refusal"`
	ClosingMessages map[domain.StopReason]string `yaml:"closing"`
	Replies         Replies                      `yaml:"replies"`
}

// DefaultRules returns the embedded rule tables.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("engine: embedded rules invalid: %v", err))
	}
	return r
}

// LoadRules reads and validates a rules file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates YAML rule tables.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	r.normalize()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) normalize() {
	for i := range r.Intents {
		for j, m := range r.Intents[i].Markers {
			r.Intents[i].Markers[j] = strings.ToLower(m)
		}
	}
	for i, p := range r.Refusal.Phrases {
		r.Refusal.Phrases[i] = strings.ToLower(p)
	}
	for i, p := range r.Refusal.SitePhrases {
		r.Refusal.SitePhrases[i] = strings.ToLower(p)
	}
}

// Validate checks that every intent and stop reason is covered exactly once.
func (r *Rules) Validate() error {
	var errs []error

	if r.Limits.MaxTurns <= 0 || r.Limits.RepeatLimit <= 0 || r.Limits.NoProgressLimit <= 0 {
		errs = append(errs, errors.New("limits must be positive"))
	}

	seen := map[domain.Intent]bool{}
	for _, rule := range r.Intents {
		if !slices.Contains(domain.MarkedIntents(), rule.Intent) {
			errs = append(errs, fmt.Errorf("unknown intent %q", rule.Intent))
			continue
		}
		if seen[rule.Intent] {
			errs = append(errs, fmt.Errorf("intent %s listed twice", rule.Intent))
		}
		seen[rule.Intent] = true
		if len(rule.Markers) == 0 {
			errs = append(errs, fmt.Errorf("intent %s has no markers", rule.Intent))
		}
	}
	for _, in := range domain.MarkedIntents() {
		if !seen[in] {
			errs = append(errs, fmt.Errorf("intent %s missing", in))
		}
	}

	if len(r.Refusal.Phrases) == 0 {
		errs = append(errs, errors.New("refusal phrases empty"))
	}

	for _, reason := range domain.StopReasons() {
		if strings.TrimSpace(r.ClosingMessages[reason]) == "" {
			errs = append(errs, fmt.Errorf("closing message for %s missing", reason))
		}
	}
	for reason := range r.ClosingMessages {
		if !reason.Valid() {
			errs = append(errs, fmt.Errorf("closing message for unknown reason %q", reason))
		}
	}

	for ask, text := range r.Replies.byAsk() {
		if strings.TrimSpace(text) == "" {
			errs = append(errs, fmt.Errorf("reply %s missing", ask))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid rules: %w", errors.Join(errs...))
	}
	return nil
}

// ClassifyIntent returns the first intent whose markers appear in text.
func (r *Rules) ClassifyIntent(text string) domain.Intent {
	t := strings.ToLower(text)
	for _, rule := range r.Intents {
		if containsAny(t, rule.Markers) {
			return rule.Intent
		}
	}
	return domain.IntentOther
}

// IsRefusal reports whether text declines a request.
func (r *Rules) IsRefusal(text string) bool {
	return containsAny(strings.ToLower(strings.TrimSpace(text)), r.Refusal.Phrases)
}

// IsSiteRefusal reports whether text is a refusal that denies having a site.
func (r *Rules) IsSiteRefusal(text string) bool {
	return r.IsRefusal(text) && containsAny(strings.ToLower(text), r.Refusal.SitePhrases)
}

// Closing returns the canonical closing sentence for reason.
func (r *Rules) Closing(reason domain.StopReason) string {
	return r.ClosingMessages[reason]
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
