package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/elile/screening-core/internal/multitenancy"
	"github.com/elile/screening-core/internal/webhook"
)

// registerWebhookRequest is the POST /v1/webhooks request body.
type registerWebhookRequest struct {
	URL    string              `json:"url"`
	Events []webhook.EventType `json:"events"`
	Secret string              `json:"secret,omitempty"`
}

func (s *Server) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	tenantID, err := multitenancy.GetTenantID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if s.webhooks == nil {
		http.Error(w, "webhook subscriptions are not enabled", http.StatusNotImplemented)
		return
	}

	var req registerWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	sub := &webhook.Subscription{
		TenantID: tenantID,
		URL:      req.URL,
		Events:   req.Events,
		Secret:   req.Secret,
	}
	if err := s.webhooks.Register(sub); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	tenantID, err := multitenancy.GetTenantID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if s.webhooks == nil {
		writeJSON(w, http.StatusOK, []*webhook.Subscription{})
		return
	}
	subs := s.webhooks.ListForTenant(tenantID)
	if subs == nil {
		subs = []*webhook.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleUnregisterWebhook(w http.ResponseWriter, r *http.Request) {
	tenantID, err := multitenancy.GetTenantID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if s.webhooks == nil {
		http.Error(w, "webhook subscriptions are not enabled", http.StatusNotImplemented)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.webhooks.Unregister(id, tenantID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
