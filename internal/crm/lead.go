package crm

import (
	"fmt"
	"net/url"
	"strings"
)

// Lead is the normalized shape required by the outbound CRM webhook.
// Constructed fresh per request and discarded after the forward completes.
type Lead struct {
	Title      string
	Name       string
	Phone      string
	Email      string
	Company    string
	Comments   string
	SourceID   string
	WebformURL string
	UTM        UTM
}

// UTM carries campaign-attribution parameters parsed from the landing page.
type UTM struct {
	Source   string
	Medium   string
	Campaign string
	Content  string
	Term     string
}

// ParseUTM extracts UTM parameters from a landing-page URL. A malformed URL
// is tolerated: all fields default to empty strings.
func ParseUTM(pageLocation string) UTM {
	if pageLocation == "" {
		return UTM{}
	}
	u, err := url.Parse(pageLocation)
	if err != nil {
		return UTM{}
	}
	q := u.Query()
	return UTM{
		Source:   q.Get("utm_source"),
		Medium:   q.Get("utm_medium"),
		Campaign: q.Get("utm_campaign"),
		Content:  q.Get("utm_content"),
		Term:     q.Get("utm_term"),
	}
}

// FormatPhone strips non-digit characters for CRM formatting. It returns an
// error when fewer than 7 digits remain.
func FormatPhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 7 {
		return "", fmt.Errorf("crm: phone %q has fewer than 7 digits", raw)
	}
	return digits, nil
}
