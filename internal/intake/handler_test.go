package intake

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/formgate/lead-intake/internal/ratewindow"
	"github.com/formgate/lead-intake/pkg/logging"
)

func newTestHandler(t *testing.T, policy Policy, opts ...PipelineOption) *Handler {
	t.Helper()
	pipeline := NewPipeline(policy, ratewindow.NewMemoryStore(time.Minute), logging.Default(), opts...)
	return NewHandler(pipeline, logging.Default(), nil)
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.10:51234"
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) leadResponse {
	t.Helper()
	var resp leadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestCreateLead_Success(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	w := postJSON(t, h.CreateLead, "/api/lead", map[string]string{
		"email":     "a@b.com",
		"phone":     "5551234567",
		"name":      "Jo Ann",
		"sku":       "X1",
		"form_time": "5",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	if !resp.OK {
		t.Error("expected ok true")
	}
	if !leadIDPattern.MatchString(resp.LeadID) {
		t.Errorf("expected 32 hex char lead_id, got %q", resp.LeadID)
	}
	if resp.Message == "" {
		t.Error("expected a message")
	}
}

func TestCreateLead_HoneypotRejected(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	w := postJSON(t, h.CreateLead, "/api/lead", map[string]string{
		"email":     "a@b.com",
		"phone":     "5551234567",
		"name":      "Jo Ann",
		"sku":       "X1",
		"form_time": "5",
		"hp_trap":   "http://spam.example",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.OK {
		t.Error("expected ok false")
	}
	if resp.Message != "bot detected" {
		t.Errorf("expected bot detected message, got %q", resp.Message)
	}
	if resp.LeadID != "" {
		t.Error("expected no lead_id on rejection")
	}
}

func TestCreateLead_RateLimitedAfterCeiling(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	payload := map[string]string{
		"email":     "a@b.com",
		"phone":     "5551234567",
		"name":      "Jo Ann",
		"sku":       "X1",
		"form_time": "5",
	}

	for i := 1; i <= 3; i++ {
		if w := postJSON(t, h.CreateLead, "/api/lead", payload); w.Code != http.StatusOK {
			t.Fatalf("submission %d: expected 200, got %d", i, w.Code)
		}
	}
	for i := 4; i <= 5; i++ {
		if w := postJSON(t, h.CreateLead, "/api/lead", payload); w.Code != http.StatusTooManyRequests {
			t.Fatalf("submission %d: expected 429, got %d", i, w.Code)
		}
	}
}

func TestCreateLead_InvalidOrigin(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	body, _ := json.Marshal(map[string]string{
		"email": "a@b.com", "phone": "5551234567", "name": "Jo Ann", "sku": "X1",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/lead", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://evil.example.net")
	w := httptest.NewRecorder()

	h.CreateLead(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestCreateLead_FormEncodedBody(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	form := url.Values{
		"email":     {"a@b.com"},
		"phone":     {"5551234567"},
		"name":      {"Jo Ann"},
		"sku":       {"X1"},
		"form_time": {"5"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/lead", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	h.CreateLead(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateLead_MalformedJSON(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	req := httptest.NewRequest(http.MethodPost, "/api/lead", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.CreateLead(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateHeyFormLead_MissingSKUProceeds(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	payload := map[string]any{
		"id":       "sub-1",
		"formId":   "form-1",
		"formName": "Contact",
		"answers": []map[string]any{
			{"title": "Email", "value": "x@y.com"},
			{"title": "Contact Phone", "value": "1234567890"},
			{"title": "Full Name", "value": "A B"},
		},
	}

	w := postJSON(t, h.CreateHeyFormLead, "/api/heyform", payload)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with missing sku answer, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeResponse(t, w)
	if !resp.OK {
		t.Error("expected ok true")
	}
}

func TestCreateHeyFormLead_AnswerNormalization(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	payload := map[string]any{
		"answers": []map[string]any{
			{"title": "Your Email", "value": "x@y.com"},
			{"title": "Phone number", "value": 1234567890},
			{"title": "Name", "value": map[string]any{"firstName": "Ada", "lastName": "Lovelace"}},
			{"title": "SKU", "value": "K5"},
		},
		"hiddenFields": []map[string]any{
			{"name": "page_location", "value": "https://example.com/?utm_source=ad"},
		},
	}

	w := postJSON(t, h.CreateHeyFormLead, "/api/heyform", payload)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateHeyFormLead_HiddenFieldFillsUnansweredSlot(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	// No answer title matches "email", so the hidden field of that name must
	// supply the value instead of losing to the empty lookup result.
	payload := map[string]any{
		"answers": []map[string]any{
			{"title": "Contact Phone", "value": "1234567890"},
			{"title": "Full Name", "value": "A B"},
		},
		"hiddenFields": []map[string]any{
			{"name": "email", "value": "x@y.com"},
		},
	}

	w := postJSON(t, h.CreateHeyFormLead, "/api/heyform", payload)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with email from hidden field, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeResponse(t, w); !resp.OK {
		t.Error("expected ok true")
	}
}

func TestCreateHeyFormLead_MissingRequiredAnswerRejected(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	payload := map[string]any{
		"answers": []map[string]any{
			{"title": "Contact Phone", "value": "1234567890"},
			{"title": "Full Name", "value": "A B"},
		},
	}

	w := postJSON(t, h.CreateHeyFormLead, "/api/heyform", payload)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing email answer, got %d", w.Code)
	}
}

func TestCreateZapierLead_FlatMapping(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	w := postJSON(t, h.CreateZapierLead, "/api/zapier", map[string]string{
		"email": "a@b.com",
		"phone": "5551234567",
		"name":  "Jo Ann",
		"sku":   "X1",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateZapierLead_NestedDataMerged(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	nested, _ := json.Marshal(map[string]string{
		"email": "a@b.com",
		"phone": "5551234567",
		"name":  "Jo Ann",
	})
	w := postJSON(t, h.CreateZapierLead, "/api/zapier", map[string]string{
		"data": string(nested),
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateZapierLead_VerboseKeysPreferred(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	w := postJSON(t, h.CreateZapierLead, "/api/zapier", map[string]string{
		"email":      "stale@old.example",
		"email_b7f2": "fresh@new.example",
		"phone_b7f2": "5551234567",
		"name_b7f2":  "Jo Ann",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateZapierLead_MalformedDataField(t *testing.T) {
	h := newTestHandler(t, testPolicy())

	w := postJSON(t, h.CreateZapierLead, "/api/zapier", map[string]string{
		"data": "{not json",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
