// Package httpapi is the thin gorilla/mux adapter over the screening
// orchestrator: it decodes requests, enforces tenant/auth context via
// internal/middleware, and translates orchestrator errors into the
// appropriate status codes. It holds no screening logic of its own.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elile/screening-core/internal/compliance"
	"github.com/elile/screening-core/internal/consent"
	"github.com/elile/screening-core/internal/investigation"
	"github.com/elile/screening-core/internal/middleware"
	"github.com/elile/screening-core/internal/multitenancy"
	"github.com/elile/screening-core/internal/screening"
	"github.com/elile/screening-core/internal/store"
	"github.com/elile/screening-core/internal/webhook"
)

// Server wires the HTTP surface to the orchestrator and its
// collaborators. It keeps a small in-memory table of in-flight
// screenings so GET/DELETE can act on a run before it's persisted.
type Server struct {
	orchestrator      *screening.Orchestrator
	tenants           *multitenancy.TenantManager
	db                *store.Client
	rateLimiter       *middleware.RateLimiter
	emitter           webhook.Emitter
	webhooks          *webhook.Registry
	consentRegistrar  *consent.Store
	auditLog          *store.AuditLog
	hrisSecret        string
	log               *slog.Logger

	mu      sync.Mutex
	running map[string]*runState
}

type runState struct {
	cancel context.CancelFunc
	result *screening.Result
	status screening.Status
	err    error
}

// Config bundles the collaborators Server needs. Only Orchestrator is
// required: the handlers check the other collaborators for nil and skip
// what depends on them, and an empty HRISSecret disables inbound
// signature verification (local/dev only).
type Config struct {
	Orchestrator     *screening.Orchestrator
	Tenants          *multitenancy.TenantManager
	DB               *store.Client
	RateLimiter      *middleware.RateLimiter
	Emitter          webhook.Emitter
	Webhooks         *webhook.Registry
	ConsentRegistrar *consent.Store
	AuditLog         *store.AuditLog
	HRISSecret       string
	Log              *slog.Logger
}

func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		orchestrator:     cfg.Orchestrator,
		tenants:          cfg.Tenants,
		db:               cfg.DB,
		rateLimiter:      cfg.RateLimiter,
		emitter:          cfg.Emitter,
		webhooks:         cfg.Webhooks,
		consentRegistrar: cfg.ConsentRegistrar,
		auditLog:         cfg.AuditLog,
		hrisSecret:       cfg.HRISSecret,
		log:              log,
		running:          make(map[string]*runState),
	}
}

// Router assembles the full mux.Router, including unauthenticated
// health/metrics routes and the tenant-scoped screening API.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/db", s.handleHealthDB).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleHealthReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/v1/hris/webhooks/{tenant_id}", s.handleHRISWebhook).Methods(http.MethodPost)

	tenantScoped := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.TenantMiddleware(s.tenants, s.rateLimited(h))
	}

	r.HandleFunc("/v1/screenings", tenantScoped(s.handleCreateScreening)).Methods(http.MethodPost)
	r.HandleFunc("/v1/screenings/{id}", tenantScoped(s.handleGetScreening)).Methods(http.MethodGet)
	r.HandleFunc("/v1/screenings/{id}", tenantScoped(s.handleCancelScreening)).Methods(http.MethodDelete)

	r.HandleFunc("/v1/webhooks", tenantScoped(s.handleRegisterWebhook)).Methods(http.MethodPost)
	r.HandleFunc("/v1/webhooks", tenantScoped(s.handleListWebhooks)).Methods(http.MethodGet)
	r.HandleFunc("/v1/webhooks/{id}", tenantScoped(s.handleUnregisterWebhook)).Methods(http.MethodDelete)

	return r
}

func (s *Server) rateLimited(next http.HandlerFunc) http.HandlerFunc {
	if s.rateLimiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, _ := multitenancy.GetTenantID(r.Context())
		key := tenantID + ":" + r.RemoteAddr
		if !s.rateLimiter.Allow(key) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// createScreeningRequest is the POST /v1/screenings request body.
type createScreeningRequest struct {
	SubjectID       string                   `json:"subject_id"`
	FullName        string                   `json:"full_name"`
	DOB             *time.Time               `json:"dob,omitempty"`
	NationalIDLast4 string                   `json:"national_id_last4,omitempty"`
	Addresses       []investigation.Address  `json:"addresses,omitempty"`
	Emails          []string                 `json:"emails,omitempty"`
	Phones          []string                 `json:"phones,omitempty"`
	CheckTypes      []investigation.InfoType `json:"check_types"`
	Locale          compliance.Locale        `json:"locale"`
	Role            compliance.RoleCategory  `json:"role"`
	Tier            compliance.Tier          `json:"tier"`
	ConsentID       string                   `json:"consent_id,omitempty"`
	CorrelationID   string                   `json:"correlation_id,omitempty"`
}

func (s *Server) handleCreateScreening(w http.ResponseWriter, r *http.Request) {
	tenantID, err := multitenancy.GetTenantID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var req createScreeningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.SubjectID == "" || len(req.CheckTypes) == 0 {
		http.Error(w, "subject_id and check_types are required", http.StatusBadRequest)
		return
	}
	if req.Locale == "" {
		req.Locale = compliance.LocaleUS
	}
	if req.Tier == "" {
		req.Tier = compliance.TierStandard
	}
	if req.Role == "" {
		req.Role = compliance.RoleStandard
	}

	screeningID := req.CorrelationID
	if screeningID == "" {
		screeningID = newID("scrn")
	}

	subject := investigation.Subject{
		SubjectID:       req.SubjectID,
		FullName:        req.FullName,
		DOB:             req.DOB,
		NationalIDLast4: req.NationalIDLast4,
		Addresses:       req.Addresses,
		Emails:          req.Emails,
		Phones:          req.Phones,
	}

	sreq := screening.Request{
		ScreeningID:  screeningID,
		TenantID:     tenantID,
		Subject:      subject,
		DesiredTypes: req.CheckTypes,
		Params: investigation.ScreeningParams{
			Locale: req.Locale,
			Role:   req.Role,
			Tier:   req.Tier,
		},
	}

	if _, _, err := s.orchestrator.Precheck(sreq); err != nil {
		var serr *screening.Error
		if asScreeningError(err, &serr) {
			switch serr.Kind {
			case screening.FailureValidation:
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": serr.Message})
			case screening.FailureComplianceAll:
				writeJSON(w, http.StatusBadRequest, map[string]interface{}{"error": serr.Message, "blocked_checks": serr.BlockedChecks})
			case screening.FailureConsentMissing:
				writeJSON(w, http.StatusForbidden, map[string]interface{}{"error": serr.Message, "missing_scopes": serr.MissingScopes})
			default:
				writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": serr.Message})
			}
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[screeningID] = &runState{cancel: cancel, status: screening.StatusRunning}
	s.mu.Unlock()

	if s.db != nil {
		_ = s.db.CreateScreening(r.Context(), &store.ScreeningRecord{
			ScreeningID: screeningID, TenantID: tenantID, SubjectID: req.SubjectID,
			Status: string(screening.StatusRunning),
		})
	}
	if s.emitter != nil {
		evt := webhook.NewEvent(webhook.EventScreeningStarted, tenantID)
		evt.ScreeningID = screeningID
		evt.SubjectID = req.SubjectID
		evt.Status = string(screening.StatusRunning)
		s.emitter.Emit(evt)
	}
	s.appendAudit(r.Context(), tenantID, screeningID, "screening.initiated", map[string]interface{}{
		"check_types": req.CheckTypes,
	})

	go s.runScreening(ctx, tenantID, screeningID, sreq)

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"screening_id": screeningID,
		"status":       screening.StatusRunning,
	})
}

func (s *Server) runScreening(ctx context.Context, tenantID, screeningID string, req screening.Request) {
	result, err := s.orchestrator.RunScreening(ctx, req)

	s.mu.Lock()
	st := s.running[screeningID]
	if st == nil {
		st = &runState{}
		s.running[screeningID] = st
	}
	st.result = &result
	st.err = err
	if err != nil {
		st.status = screening.StatusFailed
	} else {
		st.status = result.Status
	}
	s.mu.Unlock()

	if s.db != nil {
		payload, _ := json.Marshal(result)
		rec := &store.ScreeningRecord{
			ScreeningID: screeningID, TenantID: tenantID, SubjectID: req.Subject.SubjectID,
			Status: string(st.status), Payload: payload,
		}
		if err == nil {
			rec.RiskScore = float64(result.Risk.OverallScore)
			rec.RiskLevel = string(result.Risk.Level)
		}
		_ = s.db.UpdateScreening(context.Background(), rec)
	}

	if s.emitter == nil {
		return
	}
	switch {
	case err != nil:
		var serr *screening.Error
		eventType := webhook.EventScreeningFailed
		if asScreeningError(err, &serr) && serr.Kind == screening.FailureConsentMissing {
			eventType = webhook.EventScreeningConsentMissing
		}
		evt := webhook.NewEvent(eventType, tenantID)
		evt.ScreeningID = screeningID
		evt.SubjectID = req.Subject.SubjectID
		evt.Status = string(st.status)
		evt.Detail = err.Error()
		if serr != nil {
			evt.FailureKind = string(serr.Kind)
			for _, scope := range serr.MissingScopes {
				evt.MissingScopes = append(evt.MissingScopes, string(scope))
			}
		}
		s.emitter.Emit(evt)
	default:
		score := result.Risk.OverallScore
		evt := webhook.NewEvent(webhook.EventScreeningCompleted, tenantID)
		evt.ScreeningID = screeningID
		evt.SubjectID = req.Subject.SubjectID
		evt.Status = string(st.status)
		evt.RiskLevel = string(result.Risk.Level)
		evt.RiskScore = &score
		evt.FindingCount = len(result.Findings)
		s.emitter.Emit(evt)
	}
}

func asScreeningError(err error, target **screening.Error) bool {
	se, ok := err.(*screening.Error)
	if ok {
		*target = se
	}
	return ok
}

func (s *Server) handleGetScreening(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tenantID, _ := multitenancy.GetTenantID(r.Context())

	s.mu.Lock()
	st, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		resp := map[string]interface{}{"screening_id": id, "status": st.status}
		if st.result != nil {
			resp["findings"] = st.result.Findings
			resp["risk"] = st.result.Risk
			resp["permitted_types"] = st.result.PermittedTypes
			resp["blocked_checks"] = st.result.BlockedChecks
		}
		if st.err != nil {
			resp["error"] = st.err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if s.db == nil {
		http.Error(w, "screening not found", http.StatusNotFound)
		return
	}
	rec, err := s.db.GetScreening(r.Context(), tenantID, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "screening not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancelScreening(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	st, ok := s.running[id]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "screening not found", http.StatusNotFound)
		return
	}
	st.cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"screening_id": id, "status": "CANCELLING"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthDB(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_configured"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.db.GetTenant(ctx, "__healthcheck__"); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// appendAudit records one audit event if a direct-Postgres audit log
// is configured; it never fails the request that triggered it.
func (s *Server) appendAudit(ctx context.Context, tenantID, screeningID, eventType string, detail map[string]interface{}) {
	if s.auditLog == nil {
		return
	}
	payload, err := json.Marshal(detail)
	if err != nil {
		s.log.Warn("audit: marshal detail failed", "error", err)
		return
	}
	ev := &store.AuditEvent{
		EventID:     uuid.NewString(),
		TenantID:    tenantID,
		ScreeningID: screeningID,
		EventType:   eventType,
		Detail:      payload,
	}
	if err := s.auditLog.Append(ctx, ev); err != nil {
		s.log.Warn("audit: append failed", "error", err, "event_type", eventType)
	}
}
