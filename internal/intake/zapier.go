package intake

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Verbose keys the aggregator emits for some connected forms; consulted
// before the generic field names.
var zapierFieldAliases = map[string][]string{
	"email": {"email_b7f2", "contact_email"},
	"phone": {"phone_b7f2", "contact_phone"},
	"name":  {"name_b7f2", "contact_name", "full_name"},
	"sku":   {"sku_b7f2", "product", "product_sku"},
}

// CreateZapierLead handles POST /api/zapier requests. The body is either a
// flat mapping, or a flat mapping whose "data" field holds a JSON-encoded
// string to be merged in.
func (h *Handler) CreateZapierLead(w http.ResponseWriter, r *http.Request) {
	defer h.recoverInternal(w, r)

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.logger.Error("failed to decode zapier payload", "error", err)
		h.writeVerdict(w, r, reject(ReasonBadPayload))
		return
	}

	fields := coerceFields(raw)
	if encoded, ok := fields["data"]; ok && strings.HasPrefix(strings.TrimSpace(encoded), "{") {
		var nested map[string]any
		if err := json.Unmarshal([]byte(encoded), &nested); err != nil {
			h.logger.Error("failed to decode zapier data field", "error", err)
			h.writeVerdict(w, r, reject(ReasonBadPayload))
			return
		}
		for name, value := range coerceFields(nested) {
			fields[name] = value
		}
		delete(fields, "data")
	}

	// Verbose keys win over the generic names when both are present.
	for canonical, aliases := range zapierFieldAliases {
		for _, alias := range aliases {
			if v := strings.TrimSpace(fields[alias]); v != "" {
				fields[canonical] = v
				break
			}
		}
	}
	if fields["source"] == "" {
		fields["source"] = "zapier"
	}

	verdict := h.pipeline.Evaluate(r.Context(), Submission{
		Fields:      fields,
		RemoteIP:    remoteIP(r),
		Origin:      requestOrigin(r),
		SKUOptional: true,
	})
	h.writeVerdict(w, r, verdict)
}
