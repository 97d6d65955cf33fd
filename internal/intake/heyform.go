package intake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// heyFormPayload is the form builder's webhook shape.
type heyFormPayload struct {
	ID           string               `json:"id"`
	FormID       string               `json:"formId"`
	FormName     string               `json:"formName"`
	Answers      []heyFormAnswer      `json:"answers"`
	HiddenFields []heyFormHiddenField `json:"hiddenFields"`
}

type heyFormAnswer struct {
	Title string `json:"title"`
	Value any    `json:"value"`
}

type heyFormHiddenField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CreateHeyFormLead handles POST /api/heyform requests, normalizing the form
// builder payload into the flat submission contract. This path tolerates a
// missing SKU answer: it normalizes to an empty string and proceeds.
func (h *Handler) CreateHeyFormLead(w http.ResponseWriter, r *http.Request) {
	defer h.recoverInternal(w, r)

	var payload heyFormPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.Error("failed to decode heyform payload", "error", err)
		h.writeVerdict(w, r, reject(ReasonBadPayload))
		return
	}

	fields := map[string]string{
		"email":  mapValue(payload.Answers, "email"),
		"phone":  mapValue(payload.Answers, "phone"),
		"name":   mapValue(payload.Answers, "name"),
		"sku":    mapValue(payload.Answers, "sku"),
		"source": "heyform",
	}
	// Answers win over hidden fields, but an answer lookup that produced ""
	// leaves the slot open for a hidden field of the same name.
	for _, hidden := range payload.HiddenFields {
		name := strings.TrimSpace(hidden.Name)
		if name == "" {
			continue
		}
		if fields[name] == "" {
			fields[name] = hidden.Value
		}
	}

	h.logger.Info("heyform submission received",
		"form_id", payload.FormID,
		"form_name", payload.FormName,
		"submission_id", payload.ID,
	)

	verdict := h.pipeline.Evaluate(r.Context(), Submission{
		Fields:      fields,
		RemoteIP:    remoteIP(r),
		Origin:      requestOrigin(r),
		SKUOptional: true,
	})
	h.writeVerdict(w, r, verdict)
}

// mapValue finds the first answer whose title contains the keyword
// (case-insensitive) and normalizes its value to a string. Missing answers
// normalize to "".
func mapValue(answers []heyFormAnswer, keyword string) string {
	keyword = strings.ToLower(keyword)
	for _, answer := range answers {
		if !strings.Contains(strings.ToLower(answer.Title), keyword) {
			continue
		}
		return normalizeAnswer(answer.Value)
	}
	return ""
}

// normalizeAnswer flattens a form builder answer value: strings pass through,
// numbers become decimal strings, name-pair objects reduce to "first last",
// anything else is JSON-serialized.
func normalizeAnswer(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any:
		first, _ := v["firstName"].(string)
		last, _ := v["lastName"].(string)
		if first != "" || last != "" {
			return strings.TrimSpace(first + " " + last)
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
