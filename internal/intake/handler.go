package intake

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/formgate/lead-intake/internal/observability/metrics"
	"github.com/formgate/lead-intake/pkg/logging"
)

// Handler handles HTTP requests for lead intake
type Handler struct {
	pipeline *Pipeline
	logger   *logging.Logger
	metrics  *metrics.IntakeMetrics
}

// NewHandler creates a new intake handler
func NewHandler(pipeline *Pipeline, logger *logging.Logger, m *metrics.IntakeMetrics) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		pipeline: pipeline,
		logger:   logger,
		metrics:  m,
	}
}

// leadResponse is the caller-facing contract shared by all three paths.
type leadResponse struct {
	OK      bool     `json:"ok"`
	LeadID  string   `json:"lead_id,omitempty"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// CreateLead handles POST /api/lead requests: a flat mapping of field name
// to value, submitted as JSON or as a standard web form.
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	defer h.recoverInternal(w, r)

	fields, err := parseFlatFields(r)
	if err != nil {
		h.logger.Error("failed to parse lead payload", "error", err)
		h.writeVerdict(w, r, reject(ReasonBadPayload))
		return
	}

	verdict := h.pipeline.Evaluate(r.Context(), Submission{
		Fields:   fields,
		RemoteIP: remoteIP(r),
		Origin:   requestOrigin(r),
	})
	h.writeVerdict(w, r, verdict)
}

// parseFlatFields reads a flat field mapping from a JSON body or an
// urlencoded form. Scalar JSON values are coerced to strings.
func parseFlatFields(r *http.Request) (map[string]string, error) {
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("intake: parse form: %w", err)
		}
		return flattenForm(r.PostForm), nil
	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return nil, fmt.Errorf("intake: parse multipart form: %w", err)
		}
		return flattenForm(r.PostForm), nil
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("intake: decode json body: %w", err)
	}
	return coerceFields(raw), nil
}

func flattenForm(form url.Values) map[string]string {
	fields := make(map[string]string, len(form))
	for name := range form {
		fields[name] = form.Get(name)
	}
	return fields
}

// coerceFields flattens scalar JSON values to strings; nested structures are
// dropped (the flat contract carries strings only).
func coerceFields(raw map[string]any) map[string]string {
	fields := make(map[string]string, len(raw))
	for name, value := range raw {
		switch v := value.(type) {
		case string:
			fields[name] = v
		case float64:
			fields[name] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			fields[name] = strconv.FormatBool(v)
		}
	}
	return fields
}

// remoteIP returns the caller's source identifier for rate accounting.
// chi's RealIP middleware has already folded X-Forwarded-For into RemoteAddr.
func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// requestOrigin returns the declared origin, falling back to the referrer.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	return r.Header.Get("Referer")
}

func (h *Handler) writeVerdict(w http.ResponseWriter, r *http.Request, v Verdict) {
	h.metrics.ObserveSubmission(r.URL.Path, string(v.Reason))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(v.Status)
	_ = json.NewEncoder(w).Encode(leadResponse{
		OK:      v.OK,
		LeadID:  v.LeadID,
		Message: v.Message,
		Errors:  v.CaptchaErrors,
	})
}

// recoverInternal converts an unexpected panic into a generic 500 without
// leaking internals.
func (h *Handler) recoverInternal(w http.ResponseWriter, r *http.Request) {
	if rec := recover(); rec != nil {
		h.logger.Error("panic while handling submission", "panic", rec, "path", r.URL.Path)
		h.writeVerdict(w, r, reject(ReasonInternalError))
	}
}
