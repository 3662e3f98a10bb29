// Package webhook delivers screening lifecycle events to tenant-registered
// HTTP endpoints. Payloads are typed ScreeningEvents rather than free-form
// maps so subscribers get a stable, documented shape; delivery is
// asynchronous (in-memory worker pool or Cloud Tasks) and signed with a
// per-subscription HMAC secret.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Emitter is what the HTTP layer holds to fire events; the in-memory
// Dispatcher and the CloudDispatcher both satisfy it.
type Emitter interface {
	Emit(event ScreeningEvent)
	Shutdown()
}

// EventType names the screening lifecycle moments subscribers can
// register for.
type EventType string

const (
	EventScreeningStarted        EventType = "screening.started"
	EventScreeningCompleted      EventType = "screening.completed"
	EventScreeningFailed         EventType = "screening.failed"
	EventScreeningConsentMissing EventType = "screening.consent_missing"
	EventScreeningBlocked        EventType = "screening.blocked"
	EventFindingAdded            EventType = "finding.added"
	EventRiskLevelChanged        EventType = "risk.level_changed"
	EventConsentExpiring         EventType = "consent.expiring"
)

// ScreeningEvent is the wire payload POSTed to subscribers. Fields
// beyond the envelope (event id, type, tenant, timestamp) are filled
// per event type: a completion carries risk fields, a failure carries
// the failure kind, a consent event carries the missing scopes.
type ScreeningEvent struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	TenantID   string    `json:"tenant_id"`
	OccurredAt time.Time `json:"occurred_at"`

	ScreeningID   string   `json:"screening_id,omitempty"`
	SubjectID     string   `json:"subject_id,omitempty"`
	Status        string   `json:"status,omitempty"`
	RiskLevel     string   `json:"risk_level,omitempty"`
	RiskScore     *int     `json:"risk_score,omitempty"`
	FindingCount  int      `json:"finding_count,omitempty"`
	FailureKind   string   `json:"failure_kind,omitempty"`
	MissingScopes []string `json:"missing_scopes,omitempty"`
	Detail        string   `json:"detail,omitempty"`
}

// NewEvent stamps the envelope for one screening event; callers fill
// the event-type-specific fields before handing it to an Emitter.
func NewEvent(t EventType, tenantID string) ScreeningEvent {
	return ScreeningEvent{
		EventID:    "evt-" + uuid.NewString(),
		Type:       t,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
	}
}

// Subscription is one tenant-owned webhook registration.
type Subscription struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenant_id"`
	URL       string      `json:"url"`
	Events    []EventType `json:"events"`
	Secret    string      `json:"-"`
	Active    bool        `json:"active"`
	CreatedAt time.Time   `json:"created_at"`

	// consecutive delivery failures; reset on any success, disables the
	// subscription at the threshold.
	failStreak int
}

// maxFailStreak disables a subscription after this many consecutive
// failed deliveries; a subsequent successful re-registration re-arms it.
const maxFailStreak = 10

// Registry stores webhook subscriptions, indexed by tenant and event
// type. Tenant scoping lives here, not in the dispatchers: ForEvent
// only ever returns subscriptions owned by the emitting tenant.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
	log  *slog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[string]*Subscription),
		log:  slog.Default(),
	}
}

// Register adds a subscription, assigning an ID when the caller didn't.
func (r *Registry) Register(sub *Subscription) error {
	if sub.URL == "" {
		return fmt.Errorf("webhook: subscription URL is required")
	}
	if sub.TenantID == "" {
		return fmt.Errorf("webhook: subscription must be tenant-owned")
	}
	if len(sub.Events) == 0 {
		return fmt.Errorf("webhook: at least one event type is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID == "" {
		sub.ID = "wh-" + uuid.NewString()
	}
	sub.Active = true
	sub.CreatedAt = time.Now().UTC()
	sub.failStreak = 0
	r.subs[sub.ID] = sub

	r.log.Info("webhook subscription registered", "id", sub.ID, "tenant_id", sub.TenantID, "events", len(sub.Events))
	return nil
}

// Unregister removes a subscription. The tenant must own it; a tenant
// can never remove (or probe for) another tenant's registration.
func (r *Registry) Unregister(id, tenantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || sub.TenantID != tenantID {
		return fmt.Errorf("webhook: subscription %s not found", id)
	}
	delete(r.subs, id)
	r.log.Info("webhook subscription removed", "id", id, "tenant_id", tenantID)
	return nil
}

// ForEvent returns the active subscriptions of the emitting tenant that
// listen for the given event type.
func (r *Registry) ForEvent(eventType EventType, tenantID string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Subscription
	for _, sub := range r.subs {
		if !sub.Active || sub.TenantID != tenantID {
			continue
		}
		for _, evt := range sub.Events {
			if evt == eventType {
				out = append(out, sub)
				break
			}
		}
	}
	return out
}

// ListForTenant returns every subscription a tenant owns.
func (r *Registry) ListForTenant(tenantID string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Subscription
	for _, sub := range r.subs {
		if sub.TenantID == tenantID {
			out = append(out, sub)
		}
	}
	return out
}

// MarkDelivered resets a subscription's failure streak.
func (r *Registry) MarkDelivered(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[id]; ok {
		sub.failStreak = 0
	}
}

// MarkFailed counts one failed delivery, disabling the subscription
// once the streak reaches the threshold.
func (r *Registry) MarkFailed(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return
	}
	sub.failStreak++
	if sub.failStreak >= maxFailStreak && sub.Active {
		sub.Active = false
		r.log.Warn("webhook subscription disabled after repeated failures", "id", id, "failures", sub.failStreak)
	}
}

// SignPayload computes the hex HMAC-SHA256 signature carried in
// X-Screening-Signature; the HRIS inbound endpoint verifies the same
// scheme in reverse.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
