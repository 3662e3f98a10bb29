package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// AuditLog is a direct Postgres-backed append-only audit trail. It
// bypasses the Supabase REST client and talks
// to the audit table over database/sql so every append runs inside a
// serializable transaction: audit events must never be lost or
// reordered relative to the fact they describe, which a best-effort
// REST insert cannot guarantee under retry.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog opens a direct Postgres connection for the append-only
// audit trail. dbURL is a standard postgres:// connection string.
func NewAuditLog(dbURL string) (*AuditLog, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("store: open audit db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping audit db: %w", err)
	}
	return &AuditLog{db: db}, nil
}

// Close releases the underlying connection pool.
func (a *AuditLog) Close() error { return a.db.Close() }

// Append writes one audit event inside a serializable transaction.
// Kinds such as
// screening.initiated/completed/failed, data.accessed, cache.hit/miss,
// provider.query, consent.granted/revoked, and compliance.violation all
// flow through this single path.
func (a *AuditLog) Append(ctx context.Context, ev *AuditEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	detail := ev.Detail
	if detail == nil {
		detail = json.RawMessage("{}")
	}

	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("store: begin audit tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_events
			(event_id, tenant_id, screening_id, event_type, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.EventID, ev.TenantID, ev.ScreeningID, ev.EventType, []byte(detail), ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert audit event: %w", err)
	}
	return tx.Commit()
}

// EventsForScreening returns every audit event recorded for one
// screening, ordered by occurrence, for incident review and compliance
// export.
func (a *AuditLog) EventsForScreening(ctx context.Context, tenantID, screeningID string) ([]AuditEvent, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT event_id, tenant_id, screening_id, event_type, detail, occurred_at
		FROM audit_events
		WHERE tenant_id = $1 AND screening_id = $2
		ORDER BY occurred_at ASC`, tenantID, screeningID)
	if err != nil {
		return nil, fmt.Errorf("store: query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		var detail []byte
		if err := rows.Scan(&ev.EventID, &ev.TenantID, &ev.ScreeningID, &ev.EventType, &detail, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("store: scan audit event: %w", err)
		}
		ev.Detail = json.RawMessage(detail)
		events = append(events, ev)
	}
	return events, rows.Err()
}
