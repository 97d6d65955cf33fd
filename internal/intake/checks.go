package intake

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrInvalidEmail is returned when the email fails the loose pattern check
	ErrInvalidEmail = errors.New("email is missing or malformed")

	// ErrInvalidPhone is returned when the phone is shorter than 7 characters
	ErrInvalidPhone = errors.New("phone is missing or too short")

	// ErrInvalidName is returned when the name is shorter than 2 characters
	ErrInvalidName = errors.New("name is missing or too short")

	// ErrMissingSKU is returned when the product reference is empty
	ErrMissingSKU = errors.New("sku is required")
)

// Intentionally permissive: non-whitespace, "@", non-whitespace, ".",
// non-whitespace. Not RFC 5322.
var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// validateFields applies the structural field rules. The returned error names
// the failing field for logs; callers surface only a generic invalid-input
// outcome.
func validateFields(sub Submission, requireSKU bool) error {
	if !emailPattern.MatchString(sub.Get("email")) {
		return ErrInvalidEmail
	}
	if len(sub.Get("phone")) < 7 {
		return ErrInvalidPhone
	}
	if len(sub.Get("name")) < 2 {
		return ErrInvalidName
	}
	if requireSKU && !sub.SKUOptional && sub.Get("sku") == "" {
		return ErrMissingSKU
	}
	return nil
}

// honeypotTripped reports the first field whose name carries the honeypot
// prefix (case-sensitive) and holds a non-blank value.
func honeypotTripped(fields map[string]string, prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	for name, value := range fields {
		if strings.HasPrefix(name, prefix) && strings.TrimSpace(value) != "" {
			return name, true
		}
	}
	return "", false
}

// formTimeBelow reports whether the declared fill time is absent or under the
// minimum number of seconds.
func formTimeBelow(sub Submission, minSeconds int) bool {
	raw := sub.Get("form_time")
	if raw == "" {
		return true
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return true
	}
	return seconds < float64(minSeconds)
}

// digitsOnly strips every non-digit rune from s.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

func latinLettersOnly(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.Is(unicode.Latin, r) {
				return false
			}
			hasLetter = true
		}
	}
	return hasLetter
}

// suspiciousCombo flags name/phone pairings judged implausible: a Latin-only
// name with a phone leading with 7, or a Cyrillic name with a phone leading
// with 1. A heuristic with acknowledged false-positive risk; keep it behind
// its policy flag.
func suspiciousCombo(name, phone string) bool {
	digits := digitsOnly(phone)
	if digits == "" {
		return false
	}
	switch {
	case latinLettersOnly(name) && digits[0] == '7':
		return true
	case containsCyrillic(name) && digits[0] == '1':
		return true
	}
	return false
}

var clickIDParams = []string{"gclid", "fbclid"}

// suspiciousReferrer flags landing pages carrying advertising click
// identifiers, a known low-intent traffic pattern.
func suspiciousReferrer(pageLocation string) bool {
	if pageLocation == "" {
		return false
	}
	u, err := url.Parse(pageLocation)
	if err != nil {
		return false
	}
	query := u.Query()
	for _, param := range clickIDParams {
		if query.Has(param) {
			return true
		}
	}
	return false
}

// originAllowed reports whether the declared origin is acceptable. A missing
// origin is trusted (same-origin or non-browser caller, an explicit policy
// choice). A present origin must host-match one of the allow-list entries;
// matching is by suffix so www variants pass.
func originAllowed(origin string, allowed []string) bool {
	origin = strings.TrimSpace(origin)
	if origin == "" || len(allowed) == 0 {
		return true
	}
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}
