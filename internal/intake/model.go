package intake

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Submission is the flat view of an inbound lead payload together with the
// request attributes the pipeline checks against. It lives only for the
// duration of the request.
type Submission struct {
	Fields   map[string]string
	RemoteIP string
	Origin   string

	// SKUOptional relaxes the SKU requirement for form-builder shapes that
	// submit without a product reference.
	SKUOptional bool
}

// Get returns the trimmed value of a field, or "" when absent.
func (s Submission) Get(key string) string {
	return strings.TrimSpace(s.Fields[key])
}

// Reason is a machine-readable outcome code for a pipeline verdict.
type Reason string

const (
	ReasonAccepted           Reason = "accepted"
	ReasonInvalidOrigin      Reason = "invalid_origin"
	ReasonBotDetected        Reason = "bot_detected"
	ReasonTooFast            Reason = "too_fast"
	ReasonInvalidInput       Reason = "invalid_input"
	ReasonSuspiciousCombo    Reason = "suspicious_combo"
	ReasonSuspiciousReferrer Reason = "suspicious_referrer"
	ReasonCaptchaRequired    Reason = "captcha_required"
	ReasonCaptchaFailed      Reason = "captcha_failed"
	ReasonCaptchaLowScore    Reason = "captcha_low_score"
	ReasonRateLimited        Reason = "rate_limited"
	ReasonBadPayload         Reason = "bad_payload"
	ReasonInternalError      Reason = "internal_error"
)

// Verdict is the outcome of evaluating a submission. Derived, in-memory only.
type Verdict struct {
	OK            bool
	Reason        Reason
	Status        int
	Message       string
	LeadID        string
	CaptchaErrors []string
}

var rejectionStatus = map[Reason]int{
	ReasonInvalidOrigin:      http.StatusForbidden,
	ReasonBotDetected:        http.StatusBadRequest,
	ReasonTooFast:            http.StatusBadRequest,
	ReasonInvalidInput:       http.StatusBadRequest,
	ReasonSuspiciousCombo:    http.StatusBadRequest,
	ReasonSuspiciousReferrer: http.StatusBadRequest,
	ReasonCaptchaRequired:    http.StatusBadRequest,
	ReasonCaptchaFailed:      http.StatusForbidden,
	ReasonCaptchaLowScore:    http.StatusForbidden,
	ReasonRateLimited:        http.StatusTooManyRequests,
	ReasonBadPayload:         http.StatusBadRequest,
	ReasonInternalError:      http.StatusInternalServerError,
}

var rejectionMessage = map[Reason]string{
	ReasonInvalidOrigin:      "invalid origin",
	ReasonBotDetected:        "bot detected",
	ReasonTooFast:            "submitted too fast",
	ReasonInvalidInput:       "invalid input",
	ReasonSuspiciousCombo:    "submission flagged as suspicious",
	ReasonSuspiciousReferrer: "suspicious referrer",
	ReasonCaptchaRequired:    "captcha token required",
	ReasonCaptchaFailed:      "captcha verification failed",
	ReasonCaptchaLowScore:    "low captcha score",
	ReasonRateLimited:        "too many requests",
	ReasonBadPayload:         "malformed payload",
	ReasonInternalError:      "internal error",
}

func reject(reason Reason) Verdict {
	return Verdict{
		OK:      false,
		Reason:  reason,
		Status:  rejectionStatus[reason],
		Message: rejectionMessage[reason],
	}
}

func accepted(leadID string) Verdict {
	return Verdict{
		OK:      true,
		Reason:  ReasonAccepted,
		Status:  http.StatusOK,
		Message: "lead accepted",
		LeadID:  leadID,
	}
}

// newLeadID creates an opaque correlation token for an accepted submission:
// 16 random bytes, hex-encoded.
func newLeadID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return strings.ReplaceAll(uuid.New().String(), "-", "")
	}
	return hex.EncodeToString(b)
}
