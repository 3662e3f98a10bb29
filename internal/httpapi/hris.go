package httpapi

import (
	"crypto/hmac"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/elile/screening-core/internal/consent"
	"github.com/elile/screening-core/internal/store"
	"github.com/elile/screening-core/internal/webhook"
)

// hrisEvent captures the handful of fields recognized across the HRIS
// platforms this endpoint accepts: event type may arrive via header or
// one of three payload field spellings.
type hrisEvent struct {
	Type          string `json:"type"`
	EventType     string `json:"event_type"`
	EventTypeCC   string `json:"eventType"`
	SubjectID     string `json:"subject_id"`
	ConsentScopes []consent.Scope `json:"consent_scopes,omitempty"`
	Method        string `json:"method,omitempty"`
}

func (e hrisEvent) resolvedType() string {
	switch {
	case e.Type != "":
		return e.Type
	case e.EventType != "":
		return e.EventType
	default:
		return e.EventTypeCC
	}
}

var recognizedHRISEvents = map[string]bool{
	"hire.initiated":       true,
	"rehire.initiated":     true,
	"consent.granted":      true,
	"position.changed":     true,
	"employee.terminated":  true,
}

// handleHRISWebhook ingests inbound platform events: consent.granted
// registers a grant in the ConsentStore; every other event, hires and
// rehires included, is logged and recorded for audit only. Signature
// verification is HMAC-SHA256 over the raw body using the server's single
// HRIS secret, shared by all tenants; if no secret is configured
// (local/dev) the check is skipped.
func (s *Server) handleHRISWebhook(w http.ResponseWriter, r *http.Request) {
	tenantID := mux.Vars(r)["tenant_id"]
	if s.tenants != nil {
		if _, err := s.tenants.LoadTenant(r.Context(), tenantID); err != nil {
			http.Error(w, "unknown tenant", http.StatusNotFound)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}

	if s.hrisSecret != "" {
		sig := r.Header.Get("X-Signature")
		if sig == "" {
			sig = r.Header.Get("X-Webhook-Signature")
		}
		expected := webhook.SignPayload(body, s.hrisSecret)
		if sig == "" || !hmac.Equal([]byte(sig), []byte(expected)) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	eventType := r.Header.Get("X-Event-Type")
	if eventType == "" {
		eventType = r.Header.Get("X-Webhook-Event-Type")
	}

	var evt hrisEvent
	if len(body) > 0 {
		if err := json.Unmarshal(body, &evt); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}
	if eventType == "" {
		eventType = evt.resolvedType()
	}
	if eventType == "" {
		http.Error(w, "missing event type", http.StatusBadRequest)
		return
	}
	if !recognizedHRISEvents[eventType] {
		s.log.Warn("hris webhook: unrecognized event type", "tenant_id", tenantID, "event_type", eventType)
	}

	switch eventType {
	case "consent.granted":
		s.ingestConsentGranted(tenantID, evt)
	case "hire.initiated", "rehire.initiated":
		s.log.Info("hris webhook: hire event received", "tenant_id", tenantID, "subject_id", evt.SubjectID, "event_type", eventType)
	case "employee.terminated", "position.changed":
		s.log.Info("hris webhook: lifecycle event received", "tenant_id", tenantID, "subject_id", evt.SubjectID, "event_type", eventType)
	}

	if s.db != nil {
		detail, _ := json.Marshal(evt)
		_ = s.db.RecordAuditEvent(r.Context(), &store.AuditEvent{
			TenantID:  tenantID,
			EventType: "hris." + eventType,
			Detail:    detail,
		})
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "processed", "event_type": eventType})
}

func (s *Server) ingestConsentGranted(tenantID string, evt hrisEvent) {
	if evt.SubjectID == "" || len(evt.ConsentScopes) == 0 {
		return
	}
	now := time.Now().UTC()
	expires := now.AddDate(1, 0, 0)
	c := &consent.Consent{
		ConsentID:          newID("consent"),
		SubjectID:          evt.SubjectID,
		Scopes:             evt.ConsentScopes,
		GrantedAt:          now,
		ExpiresAt:          &expires,
		VerificationMethod: consent.MethodHRISAPI,
		Purpose:            "background_check",
	}
	// The orchestrator's consent.Store is keyed by subject; ingestion here
	// only registers the grant, it does not itself trigger a screening.
	if s.consentRegistrar != nil {
		s.consentRegistrar.Register(c)
	}
}
