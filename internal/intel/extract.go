// Package intel extracts indicators of compromise from free text.
package intel

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ashureev/honeypot/internal/domain"
)

var (
	upiPattern   = regexp.MustCompile(`(?i)\b[a-z0-9.\-_]{2,}@[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(?:\+91[\-\s]?|\b)[6-9]\d{9}\b`)
	linkPattern  = regexp.MustCompile(`(?i)\bhttps?://[^\s<>]+`)
)

// Extract returns the payment handles, phone numbers, links and link hosts
// found in text. It has no side effects and never fails; a link whose host
// cannot be parsed contributes no domain but is still reported as a link.
func Extract(text string) domain.Intel {
	out := domain.NewIntel()

	for _, m := range upiPattern.FindAllString(text, -1) {
		out.UPIIDs[strings.ToLower(m)] = struct{}{}
	}
	for _, m := range phonePattern.FindAllString(text, -1) {
		out.PhoneNumbers[m] = struct{}{}
	}
	for _, m := range linkPattern.FindAllString(text, -1) {
		out.Links[m] = struct{}{}
	}
	for link := range out.Links {
		if host, ok := Host(link); ok {
			out.Domains[host] = struct{}{}
		}
	}
	return out
}

// Host returns the lowercased host portion (including any port) of link.
func Host(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Host), true
}
