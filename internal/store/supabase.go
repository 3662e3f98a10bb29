package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	supabase "github.com/supabase-community/supabase-go"
)

// Client wraps the Supabase REST client with the domain queries the
// screening core needs: tenants, API keys, screenings, cache entries,
// consent records and audit events.
type Client struct {
	sb *supabase.Client
}

// NewClient dials Supabase using the project URL and service-role key.
func NewClient(url, serviceKey string) (*Client, error) {
	sb, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("supabase.NewClient: %w", err)
	}
	return &Client{sb: sb}, nil
}

// ============================================================================
// TENANTS
// ============================================================================

type Tenant struct {
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"` // ACTIVE, TRIAL, SUSPENDED, CANCELLED
	Locale      string    `json:"locale"` // default jurisdiction, e.g. US, US_CA, EU
	Tier        string    `json:"tier"`   // basic, standard, enhanced
	CreatedAt   time.Time `json:"created_at"`
}

type APIKey struct {
	KeyID     string     `json:"key_id"`
	TenantID  string      `json:"tenant_id"`
	Name      string      `json:"name"`
	KeyHash   string      `json:"key_hash"`
	Scopes    []string    `json:"scopes"`
	IsActive  bool        `json:"is_active"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func (c *Client) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	var rows []Tenant
	_, err := c.sb.From("tenants").Select("*", "", false).Eq("tenant_id", tenantID).ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("GetTenant: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) CreateAPIKey(ctx context.Context, key *APIKey) error {
	key.CreatedAt = time.Now().UTC()
	_, err := c.sb.From("api_keys").Insert(key, false, "", "", "").ExecuteTo(nil)
	if err != nil {
		return fmt.Errorf("CreateAPIKey: %w", err)
	}
	return nil
}

func (c *Client) GetAPIKey(ctx context.Context, keyID string) (*APIKey, error) {
	var rows []APIKey
	_, err := c.sb.From("api_keys").Select("*", "", false).Eq("key_id", keyID).ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("GetAPIKey: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ============================================================================
// SCREENINGS
// ============================================================================

// ScreeningRecord is the persisted row for a screening investigation. The
// Findings/Queries/Audit payloads are stored as JSONB so the relational
// schema doesn't need to track every information-type shape.
type ScreeningRecord struct {
	ScreeningID string          `json:"screening_id"`
	TenantID    string          `json:"tenant_id"`
	SubjectID   string          `json:"subject_id"`
	Status      string          `json:"status"`
	RiskLevel   string          `json:"risk_level,omitempty"`
	RiskScore   float64         `json:"risk_score,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func (c *Client) CreateScreening(ctx context.Context, rec *ScreeningRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	_, err := c.sb.From("screenings").Insert(rec, false, "", "", "").ExecuteTo(nil)
	if err != nil {
		return fmt.Errorf("CreateScreening: %w", err)
	}
	return nil
}

func (c *Client) UpdateScreening(ctx context.Context, rec *ScreeningRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	_, err := c.sb.From("screenings").Update(rec, "", "").Eq("screening_id", rec.ScreeningID).ExecuteTo(nil)
	if err != nil {
		return fmt.Errorf("UpdateScreening: %w", err)
	}
	return nil
}

func (c *Client) GetScreening(ctx context.Context, tenantID, screeningID string) (*ScreeningRecord, error) {
	var rows []ScreeningRecord
	_, err := c.sb.From("screenings").Select("*", "", false).
		Eq("tenant_id", tenantID).Eq("screening_id", screeningID).ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("GetScreening: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ============================================================================
// CONSENT
// ============================================================================

type ConsentRecord struct {
	ConsentID   string     `json:"consent_id"`
	TenantID    string     `json:"tenant_id"`
	SubjectID   string     `json:"subject_id"`
	Scopes      []string   `json:"scopes"`
	GrantedAt   time.Time  `json:"granted_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	Method      string     `json:"method"` // e.g. ELECTRONIC_SIGNATURE, SSO_ACKNOWLEDGMENT
}

func (c *Client) SaveConsent(ctx context.Context, rec *ConsentRecord) error {
	_, err := c.sb.From("consent_records").Insert(rec, false, "", "", "").ExecuteTo(nil)
	if err != nil {
		return fmt.Errorf("SaveConsent: %w", err)
	}
	return nil
}

func (c *Client) GetActiveConsent(ctx context.Context, tenantID, subjectID string) (*ConsentRecord, error) {
	var rows []ConsentRecord
	_, err := c.sb.From("consent_records").Select("*", "", false).
		Eq("tenant_id", tenantID).Eq("subject_id", subjectID).
		Order("granted_at", nil).ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("GetActiveConsent: %w", err)
	}
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if r.RevokedAt != nil {
			continue
		}
		if r.ExpiresAt != nil && r.ExpiresAt.Before(time.Now()) {
			continue
		}
		return &r, nil
	}
	return nil, nil
}

// ============================================================================
// AUDIT EVENTS
// ============================================================================

type AuditEvent struct {
	EventID     string          `json:"event_id"`
	TenantID    string          `json:"tenant_id"`
	ScreeningID string          `json:"screening_id,omitempty"`
	EventType   string          `json:"event_type"`
	Detail      json.RawMessage `json:"detail,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

func (c *Client) RecordAuditEvent(ctx context.Context, ev *AuditEvent) error {
	ev.OccurredAt = time.Now().UTC()
	_, err := c.sb.From("audit_events").Insert(ev, false, "", "", "").ExecuteTo(nil)
	if err != nil {
		return fmt.Errorf("RecordAuditEvent: %w", err)
	}
	return nil
}

// ============================================================================
// RETENTION
// ============================================================================

// RetentionRecord tracks when a screening's raw provider payloads must be
// purged to honor the jurisdiction's data-retention limit.
type RetentionRecord struct {
	ScreeningID string    `json:"screening_id"`
	TenantID    string    `json:"tenant_id"`
	PurgeAfter  time.Time `json:"purge_after"`
	Purged      bool      `json:"purged"`
}

func (c *Client) ScheduleRetention(ctx context.Context, rec *RetentionRecord) error {
	_, err := c.sb.From("retention_records").Insert(rec, false, "", "", "").ExecuteTo(nil)
	if err != nil {
		return fmt.Errorf("ScheduleRetention: %w", err)
	}
	return nil
}

func (c *Client) DuePurges(ctx context.Context, asOf time.Time) ([]RetentionRecord, error) {
	var rows []RetentionRecord
	_, err := c.sb.From("retention_records").Select("*", "", false).
		Eq("purged", "false").Lte("purge_after", asOf.Format(time.RFC3339)).ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("DuePurges: %w", err)
	}
	return rows, nil
}
