package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elile/screening-core/internal/consent"
	"github.com/elile/screening-core/internal/webhook"
)

const testHRISSecret = "test-secret"

func newTestServer() (*Server, *consent.Store) {
	consents := consent.NewStore()
	srv := New(Config{
		ConsentRegistrar: consents,
		HRISSecret:       testHRISSecret,
	})
	return srv, consents
}

func postHRIS(t *testing.T, srv *Server, body []byte, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/hris/webhooks/tenant-a", bytes.NewReader(body))
	req.Header.Set("X-Signature", webhook.SignPayload(body, testHRISSecret))
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHRISWebhook_ConsentGrantedRegistersConsent(t *testing.T) {
	srv, consents := newTestServer()

	body := []byte(`{"type":"consent.granted","subject_id":"subj-1","consent_scopes":["background_check"]}`)
	rec := postHRIS(t, srv, body, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	grants := consents.ValidConsents("subj-1", time.Now())
	if len(grants) != 1 {
		t.Fatalf("expected one registered consent, got %d", len(grants))
	}
	if grants[0].VerificationMethod != consent.MethodHRISAPI {
		t.Fatalf("expected hris_api verification method, got %s", grants[0].VerificationMethod)
	}
}

func TestHRISWebhook_EventTypeFromHeaderWins(t *testing.T) {
	srv, _ := newTestServer()

	body := []byte(`{"subject_id":"subj-2"}`)
	rec := postHRIS(t, srv, body, func(r *http.Request) {
		r.Header.Set("X-Event-Type", "hire.initiated")
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for header-typed event, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHRISWebhook_InvalidSignatureRejected(t *testing.T) {
	srv, consents := newTestServer()

	body := []byte(`{"type":"consent.granted","subject_id":"subj-3","consent_scopes":["background_check"]}`)
	rec := postHRIS(t, srv, body, func(r *http.Request) {
		r.Header.Set("X-Signature", "deadbeef")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
	if got := consents.ValidConsents("subj-3", time.Now()); len(got) != 0 {
		t.Fatalf("a rejected webhook must not register consent, got %d", len(got))
	}
}

func TestHRISWebhook_MissingEventTypeRejected(t *testing.T) {
	srv, _ := newTestServer()

	body := []byte(`{"subject_id":"subj-4"}`)
	rec := postHRIS(t, srv, body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when no header or payload field names the event, got %d", rec.Code)
	}
}

func TestHRISWebhook_InvalidJSONRejected(t *testing.T) {
	srv, _ := newTestServer()

	body := []byte(`{not json`)
	rec := postHRIS(t, srv, body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health, got %d", rec.Code)
	}
}
