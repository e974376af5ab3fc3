package engine

import "github.com/ashureev/honeypot/internal/domain"

// Ask names the rung of the adaptive question ladder that produced a reply.
type Ask string

const (
	AskRefusalPhone   Ask = "refusal_phone"
	AskRefusalUPI     Ask = "refusal_upi"
	AskRefusalLink    Ask = "refusal_link"
	AskRefusalClarify Ask = "refusal_clarify"
	AskLink           Ask = "link"
	AskUPI            Ask = "upi"
	AskPhone          Ask = "phone"
	AskLinkSubstitute Ask = "link_substitute"
	AskClarify        Ask = "clarify"
)

func (r Replies) byAsk() map[Ask]string {
	return map[Ask]string{
		AskRefusalPhone:   r.RefusalPhone,
		AskRefusalUPI:     r.RefusalUPI,
		AskRefusalLink:    r.RefusalLink,
		AskRefusalClarify: r.RefusalClarify,
		AskLink:           r.Link,
		AskUPI:            r.UPI,
		AskPhone:          r.Phone,
		AskLinkSubstitute: r.LinkSubstitute,
		AskClarify:        r.Clarify,
	}
}

// Reply returns the question text for a ladder rung.
func (r *Rules) Reply(a Ask) string {
	return r.Replies.byAsk()[a]
}

// NextAsk picks the ladder rung for a continuing turn. It sets the sticky
// site-refusal flag on s when text denies having a website or link.
func (r *Rules) NextAsk(s *domain.Session, text string) Ask {
	refusal := r.IsRefusal(text)
	if refusal && r.IsSiteRefusal(text) {
		s.RefusedSite = true
	}

	needLink := !s.Intel.HasLinkClass()
	needUPI := len(s.Intel.UPIIDs) == 0
	needPhone := len(s.Intel.PhoneNumbers) == 0

	if refusal {
		switch {
		case needPhone:
			return AskRefusalPhone
		case needUPI:
			return AskRefusalUPI
		case needLink:
			return AskRefusalLink
		default:
			return AskRefusalClarify
		}
	}

	switch {
	case needLink && !s.RefusedSite:
		return AskLink
	case needUPI:
		return AskUPI
	case needPhone:
		return AskPhone
	case needLink:
		return AskLinkSubstitute
	default:
		return AskClarify
	}
}

// StopReason evaluates the termination predicates in priority order and
// returns the first that holds.
func (r *Rules) StopReason(s *domain.Session) (domain.StopReason, bool) {
	for _, reason := range domain.StopReasons() {
		if r.holds(reason, s) {
			return reason, true
		}
	}
	return domain.StopNone, false
}

func (r *Rules) holds(reason domain.StopReason, s *domain.Session) bool {
	switch reason {
	case domain.StopAllIntelCollected:
		return len(s.Intel.UPIIDs) > 0 && len(s.Intel.PhoneNumbers) > 0 && s.Intel.HasLinkClass()
	case domain.StopNoIntelProgress:
		return s.NoProgressCount >= r.Limits.NoProgressLimit
	case domain.StopMaxTurns:
		return s.Turns >= r.Limits.MaxTurns
	case domain.StopRepeatedIntent:
		return s.RepeatCount >= r.Limits.RepeatLimit
	}
	return false
}
