package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"agritrust/pkg/domain"
	audit "agritrust/pkg/platform/audit"
)

// Schema is the DDL for the audit event table. Applied by deploy tooling and
// by the integration test harness.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id            UUID PRIMARY KEY,
    category      TEXT NOT NULL,
    action        TEXT NOT NULL,
    actor         TEXT NOT NULL,
    subject       TEXT NOT NULL,
    farmer_id     BIGINT NOT NULL DEFAULT 0,
    sequence      BIGINT,
    detail        TEXT NOT NULL DEFAULT '',
    request_id    TEXT NOT NULL DEFAULT '',
    logical_time  BIGINT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_subject_idx ON audit_events (subject, logical_time);
`

// Store persists audit events in PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(id, category, action, actor, subject, farmer_id, sequence, detail, request_id, logical_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.ID, string(event.Category), event.Action, event.Actor.String(), event.Subject.String(),
		uint64(event.FarmerID), event.Sequence, event.Detail, event.RequestID, event.LogicalTime, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListBySubject(ctx context.Context, subject domain.Principal) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, action, actor, subject, farmer_id, sequence, detail, request_id, logical_time, created_at
		FROM audit_events WHERE subject = $1 ORDER BY logical_time`,
		subject.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, action, actor, subject, farmer_id, sequence, detail, request_id, logical_time, created_at
		FROM audit_events ORDER BY logical_time DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			actor    string
			subject  string
			farmerID uint64
		)
		if err := rows.Scan(&event.ID, &category, &event.Action, &actor, &subject,
			&farmerID, &event.Sequence, &event.Detail, &event.RequestID, &event.LogicalTime, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.Actor = domain.Principal(actor)
		event.Subject = domain.Principal(subject)
		event.FarmerID = domain.FarmerID(farmerID)
		events = append(events, event)
	}
	return events, rows.Err()
}
