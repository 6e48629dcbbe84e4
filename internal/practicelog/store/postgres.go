package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agritrust/internal/practicelog/models"
	"agritrust/pkg/domain"
	"agritrust/pkg/platform/sentinel"
)

// Schema creates the practice log tables. Sequence numbers are dense per
// farmer and assigned at append time under a lock on the farmer's rows.
const Schema = `
CREATE TABLE IF NOT EXISTS practice_log_entries (
	farmer           TEXT NOT NULL,
	sequence         BIGINT NOT NULL,
	practice_type    TEXT NOT NULL,
	category         TEXT NOT NULL,
	details          TEXT NOT NULL,
	evidence_hash    TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	moderation_notes TEXT NOT NULL DEFAULT '',
	logged_at        BIGINT NOT NULL,
	moderated_at     BIGINT,
	PRIMARY KEY (farmer, sequence)
);

CREATE TABLE IF NOT EXISTS practice_log_settings (
	id              BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	owner_principal TEXT NOT NULL,
	moderator       TEXT NOT NULL DEFAULT ''
);
`

const entryColumns = `farmer, sequence, practice_type, category, details, evidence_hash, status, moderation_notes, logged_at, moderated_at`

// PostgresLog persists practice log entries in PostgreSQL.
type PostgresLog struct {
	db *sql.DB
}

// NewPostgresLog constructs a PostgreSQL-backed practice log store.
func NewPostgresLog(db *sql.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

// EnsureSettings seeds the settings row if none exists yet.
func (s *PostgresLog) EnsureSettings(ctx context.Context, settings models.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO practice_log_settings (id, owner_principal, moderator)
		VALUES (TRUE, $1, $2)
		ON CONFLICT (id) DO NOTHING
	`, string(settings.Owner), string(settings.Moderator))
	if err != nil {
		return fmt.Errorf("seed practice log settings: %w", err)
	}
	return nil
}

// Append assigns the next sequence for the farmer and inserts the entry. The
// advisory lock keyed on the farmer serializes concurrent appends so the
// sequence stays dense.
func (s *PostgresLog) Append(ctx context.Context, entry *models.PracticeLogEntry) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(entry.Farmer)); err != nil {
		return 0, fmt.Errorf("lock farmer log: %w", err)
	}

	var sequence uint64
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM practice_log_entries WHERE farmer = $1`, string(entry.Farmer)).Scan(&sequence)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO practice_log_entries (farmer, sequence, practice_type, category, details, evidence_hash, status, moderation_notes, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, string(entry.Farmer), sequence, entry.PracticeType, entry.Category, entry.Details,
		entry.EvidenceHash, string(entry.Status), entry.ModerationNotes, entry.LoggedAt)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}
	entry.Sequence = sequence
	return sequence, nil
}

func (s *PostgresLog) Find(ctx context.Context, farmer domain.Principal, sequence uint64) (*models.PracticeLogEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM practice_log_entries WHERE farmer = $1 AND sequence = $2`,
		string(farmer), sequence)
	return scanEntry(row)
}

func (s *PostgresLog) Count(ctx context.Context, farmer domain.Principal) (uint64, error) {
	var count uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM practice_log_entries WHERE farmer = $1`, string(farmer)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

// Execute loads the entry under FOR UPDATE, runs validate then mutate, and
// writes back the result. A validate error rolls back with no change.
func (s *PostgresLog) Execute(ctx context.Context, farmer domain.Principal, sequence uint64, validate func(*models.PracticeLogEntry) error, mutate func(*models.PracticeLogEntry)) (*models.PracticeLogEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin entry update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM practice_log_entries WHERE farmer = $1 AND sequence = $2 FOR UPDATE`,
		string(farmer), sequence)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, err
	}

	if err := validate(entry); err != nil {
		return nil, err
	}
	mutate(entry)

	_, err = tx.ExecContext(ctx, `
		UPDATE practice_log_entries
		SET details = $3, evidence_hash = $4, status = $5, moderation_notes = $6, moderated_at = $7
		WHERE farmer = $1 AND sequence = $2
	`, string(farmer), sequence, entry.Details, entry.EvidenceHash,
		string(entry.Status), entry.ModerationNotes, nullableUint(entry.ModeratedAt))
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit entry update: %w", err)
	}
	return entry, nil
}

func (s *PostgresLog) Settings(ctx context.Context) (models.Settings, error) {
	return scanLogSettings(s.db.QueryRowContext(ctx,
		`SELECT owner_principal, moderator FROM practice_log_settings WHERE id`))
}

func (s *PostgresLog) UpdateSettings(ctx context.Context, validate func(models.Settings) error, mutate func(*models.Settings)) (models.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Settings{}, fmt.Errorf("begin settings update: %w", err)
	}
	defer tx.Rollback()

	settings, err := scanLogSettings(tx.QueryRowContext(ctx,
		`SELECT owner_principal, moderator FROM practice_log_settings WHERE id FOR UPDATE`))
	if err != nil {
		return models.Settings{}, err
	}

	if err := validate(settings); err != nil {
		return models.Settings{}, err
	}
	mutate(&settings)

	_, err = tx.ExecContext(ctx, `
		UPDATE practice_log_settings SET owner_principal = $1, moderator = $2 WHERE id
	`, string(settings.Owner), string(settings.Moderator))
	if err != nil {
		return models.Settings{}, fmt.Errorf("update settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Settings{}, fmt.Errorf("commit settings update: %w", err)
	}
	return settings, nil
}

func scanEntry(row rowScanner) (*models.PracticeLogEntry, error) {
	var (
		entry       models.PracticeLogEntry
		farmer      string
		status      string
		moderatedAt sql.NullInt64
	)
	err := row.Scan(&farmer, &entry.Sequence, &entry.PracticeType, &entry.Category, &entry.Details,
		&entry.EvidenceHash, &status, &entry.ModerationNotes, &entry.LoggedAt, &moderatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entry: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	entry.Farmer = domain.Principal(farmer)
	entry.Status = models.ModerationStatus(status)
	if moderatedAt.Valid {
		v := uint64(moderatedAt.Int64)
		entry.ModeratedAt = &v
	}
	return &entry, nil
}

func scanLogSettings(row rowScanner) (models.Settings, error) {
	var (
		settings  models.Settings
		owner     string
		moderator string
	)
	err := row.Scan(&owner, &moderator)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Settings{}, fmt.Errorf("practice log settings: %w", sentinel.ErrNotFound)
		}
		return models.Settings{}, fmt.Errorf("scan settings: %w", err)
	}
	settings.Owner = domain.Principal(owner)
	settings.Moderator = domain.Principal(moderator)
	return settings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func nullableUint(v *uint64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
