package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agritrust/internal/registry/models"
	"agritrust/pkg/domain"
	"agritrust/pkg/platform/sentinel"
)

// Schema creates the registry tables. Farmer IDs come from a sequence that
// starts at 1; the settings table holds a single row keyed by id = true.
const Schema = `
CREATE TABLE IF NOT EXISTS farmer_profiles (
	id             BIGSERIAL PRIMARY KEY,
	principal      TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	location       TEXT NOT NULL,
	farm_size      DOUBLE PRECISION NOT NULL,
	additional_info TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	registered_at  BIGINT NOT NULL,
	verified_at    BIGINT,
	active         BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS registry_settings (
	id               BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	owner_principal  TEXT NOT NULL,
	verifier         TEXT NOT NULL DEFAULT '',
	registration_fee BIGINT NOT NULL DEFAULT 0,
	balance          BIGINT NOT NULL DEFAULT 0
);
`

const profileColumns = `id, principal, name, location, farm_size, additional_info, status, registered_at, verified_at, active`

// Postgres persists farmer profiles in PostgreSQL. Execute and
// UpdateSettings run their validate-then-mutate cycle inside a transaction
// with the target row locked.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSettings seeds the settings row if none exists yet.
func (s *Postgres) EnsureSettings(ctx context.Context, settings models.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registry_settings (id, owner_principal, verifier, registration_fee, balance)
		VALUES (TRUE, $1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, string(settings.Owner), string(settings.Verifier), settings.RegistrationFee, settings.Balance)
	if err != nil {
		return fmt.Errorf("seed registry settings: %w", err)
	}
	return nil
}

func (s *Postgres) CreateProfile(ctx context.Context, profile *models.FarmerProfile, paidFee uint64) (domain.FarmerID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create profile: %w", err)
	}
	defer tx.Rollback()

	var id uint64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO farmer_profiles (principal, name, location, farm_size, additional_info, status, registered_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (principal) DO NOTHING
		RETURNING id
	`, string(profile.Principal), profile.Name, profile.Location, profile.FarmSize,
		profile.AdditionalInfo, string(profile.Status), profile.RegisteredAt).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("profile %s: %w", profile.Principal, sentinel.ErrAlreadyExists)
		}
		return 0, fmt.Errorf("insert profile: %w", err)
	}

	if paidFee > 0 {
		if _, err := tx.ExecContext(ctx, `UPDATE registry_settings SET balance = balance + $1 WHERE id`, paidFee); err != nil {
			return 0, fmt.Errorf("accrue registration fee: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create profile: %w", err)
	}
	profile.ID = domain.FarmerID(id)
	return profile.ID, nil
}

func (s *Postgres) FindByPrincipal(ctx context.Context, principal domain.Principal) (*models.FarmerProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM farmer_profiles WHERE principal = $1`, string(principal))
	return scanProfile(row)
}

func (s *Postgres) FindByID(ctx context.Context, id domain.FarmerID) (*models.FarmerProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM farmer_profiles WHERE id = $1`, uint64(id))
	return scanProfile(row)
}

// Execute loads the profile under FOR UPDATE, runs validate then mutate, and
// writes back the result. A validate error rolls back with no change.
func (s *Postgres) Execute(ctx context.Context, principal domain.Principal, validate func(*models.FarmerProfile) error, mutate func(*models.FarmerProfile)) (*models.FarmerProfile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin profile update: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM farmer_profiles WHERE principal = $1 FOR UPDATE`, string(principal))
	profile, err := scanProfile(row)
	if err != nil {
		return nil, err
	}

	if err := validate(profile); err != nil {
		return nil, err
	}
	mutate(profile)

	_, err = tx.ExecContext(ctx, `
		UPDATE farmer_profiles
		SET name = $2, location = $3, farm_size = $4, additional_info = $5,
		    status = $6, verified_at = $7, active = $8
		WHERE principal = $1
	`, string(profile.Principal), profile.Name, profile.Location, profile.FarmSize,
		profile.AdditionalInfo, string(profile.Status), nullableUint(profile.VerifiedAt), profile.Active)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit profile update: %w", err)
	}
	return profile, nil
}

func (s *Postgres) Settings(ctx context.Context) (models.Settings, error) {
	return scanSettings(s.db.QueryRowContext(ctx,
		`SELECT owner_principal, verifier, registration_fee, balance FROM registry_settings WHERE id`))
}

func (s *Postgres) UpdateSettings(ctx context.Context, validate func(models.Settings) error, mutate func(*models.Settings)) (models.Settings, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Settings{}, fmt.Errorf("begin settings update: %w", err)
	}
	defer tx.Rollback()

	settings, err := scanSettings(tx.QueryRowContext(ctx,
		`SELECT owner_principal, verifier, registration_fee, balance FROM registry_settings WHERE id FOR UPDATE`))
	if err != nil {
		return models.Settings{}, err
	}

	if err := validate(settings); err != nil {
		return models.Settings{}, err
	}
	mutate(&settings)

	_, err = tx.ExecContext(ctx, `
		UPDATE registry_settings
		SET owner_principal = $1, verifier = $2, registration_fee = $3, balance = $4
		WHERE id
	`, string(settings.Owner), string(settings.Verifier), settings.RegistrationFee, settings.Balance)
	if err != nil {
		return models.Settings{}, fmt.Errorf("update settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Settings{}, fmt.Errorf("commit settings update: %w", err)
	}
	return settings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.FarmerProfile, error) {
	var (
		profile    models.FarmerProfile
		id         uint64
		principal  string
		status     string
		verifiedAt sql.NullInt64
	)
	err := row.Scan(&id, &principal, &profile.Name, &profile.Location, &profile.FarmSize,
		&profile.AdditionalInfo, &status, &profile.RegisteredAt, &verifiedAt, &profile.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	profile.ID = domain.FarmerID(id)
	profile.Principal = domain.Principal(principal)
	profile.Status = models.VerificationStatus(status)
	if verifiedAt.Valid {
		v := uint64(verifiedAt.Int64)
		profile.VerifiedAt = &v
	}
	return &profile, nil
}

func scanSettings(row rowScanner) (models.Settings, error) {
	var (
		settings models.Settings
		owner    string
		verifier string
	)
	err := row.Scan(&owner, &verifier, &settings.RegistrationFee, &settings.Balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Settings{}, fmt.Errorf("registry settings: %w", sentinel.ErrNotFound)
		}
		return models.Settings{}, fmt.Errorf("scan settings: %w", err)
	}
	settings.Owner = domain.Principal(owner)
	settings.Verifier = domain.Principal(verifier)
	return settings, nil
}

func nullableUint(v *uint64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
