package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// DBRecorder persists audit events to PostgreSQL.
type DBRecorder struct {
	db *sql.DB
}

// NewDBRecorder creates a recorder and ensures the audit_events table exists.
func NewDBRecorder(db *sql.DB) (*DBRecorder, error) {
	if db == nil {
		return nil, fmt.Errorf("audit: database connection is required")
	}
	r := &DBRecorder{db: db}
	if err := r.ensureTable(); err != nil {
		return nil, fmt.Errorf("audit: ensure audit_events table: %w", err)
	}
	return r, nil
}

func (r *DBRecorder) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		actor_id TEXT NOT NULL,
		organization_id TEXT,
		target_user_id TEXT,
		request_id VARCHAR(100),
		detail JSONB,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_events_organization_id ON audit_events(organization_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_actor_id ON audit_events(actor_id);
	`
	_, err := r.db.Exec(query)
	return err
}

// Record inserts one event. Timestamp defaults to now when unset.
func (r *DBRecorder) Record(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	var detail interface{}
	if event.Detail != nil {
		b, err := json.Marshal(event.Detail)
		if err != nil {
			return fmt.Errorf("audit: marshal detail: %w", err)
		}
		detail = b
	}

	query := `
		INSERT INTO audit_events (
			timestamp, event_type, status,
			actor_id, organization_id, target_user_id,
			request_id, detail
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		event.Timestamp, event.EventType, event.Status,
		event.ActorID, nullable(event.OrganizationID), nullable(event.TargetUserID),
		nullable(event.RequestID), detail,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
