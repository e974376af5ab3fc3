package domain

import "time"

// Analysis is the result of the external risk classifier. The engine stores
// it but never reads it.
type Analysis struct {
	IsScam             bool     `json:"is_scam"`
	Score              float64  `json:"scam_score"`
	ScamType           string   `json:"scam_type"`
	Reasons            []string `json:"reasons"`
	UserAlert          string   `json:"user_alert,omitempty"`
	RecommendedActions []string `json:"recommended_actions,omitempty"`
}

// Clone returns a deep copy. A nil receiver yields nil.
func (a *Analysis) Clone() *Analysis {
	if a == nil {
		return nil
	}
	out := *a
	out.Reasons = append([]string(nil), a.Reasons...)
	out.RecommendedActions = append([]string(nil), a.RecommendedActions...)
	return &out
}

// MemoryRecord aggregates every sighting of one normalized message content.
type MemoryRecord struct {
	Key          string    `json:"key"`
	Count        int       `json:"count"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	LastAnalysis *Analysis `json:"last_analyze,omitempty"`
	Intel        Intel     `json:"intel"`
}

// Clone returns a deep copy.
func (r MemoryRecord) Clone() MemoryRecord {
	r.Intel = r.Intel.Clone()
	r.LastAnalysis = r.LastAnalysis.Clone()
	return r
}

// IOCStat is one row of the cross-session indicator report.
type IOCStat struct {
	Category  Category  `json:"type"`
	Value     string    `json:"value"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}
