// Package classifier annotates suspicious messages with a keyword risk score.
// The engagement engine never reads the result; it is stored on the session
// for reporting.
package classifier

import (
	"context"
	"strings"

	"github.com/ashureev/honeypot/internal/domain"
)

// ScamThreshold is the minimum score for a message to count as a scam.
const ScamThreshold = 0.5

const userAlert = "⚠️ Suspicious message detected. Do NOT pay or share OTP/UPI PIN."

var recommendedActions = []string{
	"Do not click unknown links.",
	"Do not approve UPI collect requests.",
	"Verify through official website/app or customer care.",
	"Report and block the sender.",
}

// Classifier produces a risk annotation for a message.
type Classifier interface {
	Classify(ctx context.Context, text string) (*domain.Analysis, error)
}

type pattern struct {
	reason   string
	scamType string
	weight   float64
	keywords []string
}

// Later patterns override the scam type of earlier ones.
var patterns = []pattern{
	{"keyword:pay", "UPI_PAYMENT", 0.3, []string{"pay", "payment", "upi", "upi id", "upi-id", "collect request", "pin", "upi pin", "processing fee", "activate"}},
	{"pattern:reward_scam", "REWARD_SCAM", 0.3, []string{"reward", "points", "redeem", "cashback", "expire", "expiring"}},
	{"pattern:delivery_scam", "DELIVERY_SCAM", 0.3, []string{"parcel", "courier", "delivery", "shipment", "tracking", "reschedule"}},
	{"pattern:job_scam", "JOB_SCAM", 0.3, []string{"job", "work from home", "earn", "salary", "registration fee"}},
	{"pattern:utility_scam", "UTILITY_SCAM", 0.3, []string{"electricity", "power", "bill", "disconnect", "gas", "water"}},
	{"pattern:govt_benefit_scam", "GOVT_BENEFIT_SCAM", 0.3, []string{"subsidy", "government", "scheme", "benefit", "processing fee"}},
	{"pattern:urgency", "", 0.2, []string{"today", "urgent", "immediately", "within", "expire", "fast", "now"}},
	{"pattern:credential_theft", "PHISHING", 0.2, []string{"otp", "upi pin"}},
}

// Keyword scores messages by summing the weights of matched keyword groups.
type Keyword struct{}

// NewKeyword returns the keyword classifier.
func NewKeyword() *Keyword {
	return &Keyword{}
}

// Classify never fails.
func (Keyword) Classify(_ context.Context, text string) (*domain.Analysis, error) {
	t := strings.ToLower(text)
	a := &domain.Analysis{ScamType: "UNKNOWN", Reasons: []string{}}

	for _, p := range patterns {
		if !containsAny(t, p.keywords) {
			continue
		}
		a.Score += p.weight
		a.Reasons = append(a.Reasons, p.reason)
		if p.scamType != "" {
			a.ScamType = p.scamType
		}
	}
	a.Score = min(a.Score, 1.0)
	a.IsScam = a.Score >= ScamThreshold

	if a.IsScam {
		a.UserAlert = userAlert
		a.RecommendedActions = append([]string(nil), recommendedActions...)
	}
	return a, nil
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Ensure Keyword implements Classifier.
var _ Classifier = Keyword{}
