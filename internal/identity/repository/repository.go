package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inkflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Organization represents the organization database model.
type Organization struct {
	ID            uuid.UUID  `db:"id"`
	Name          string     `db:"name"`
	Plan          string     `db:"plan"`
	BillingStatus string     `db:"billing_status"`
	TrialEndsAt   *time.Time `db:"trial_ends_at"`
	Timezone      string     `db:"timezone"`
	Currency      string     `db:"currency"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// User represents the user database model.
type User struct {
	ID           uuid.UUID `db:"id"`
	OrgID        uuid.UUID `db:"org_id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

// Artist represents the artist database model.
type Artist struct {
	ID        uuid.UUID  `db:"id"`
	OrgID     uuid.UUID  `db:"org_id"`
	UserID    *uuid.UUID `db:"user_id"`
	Name      string     `db:"name"`
	CreatedAt time.Time  `db:"created_at"`
}

// Settings represents the per-organization settings row.
type Settings struct {
	OrgID            uuid.UUID `db:"org_id"`
	DepositType      string    `db:"deposit_type"`
	DepositValue     int64     `db:"deposit_value"`
	DepositDueDays   int       `db:"deposit_due_days"`
	ReminderTemplate string    `db:"reminder_template"`
	DepositTemplate  string    `db:"deposit_template"`
	FollowupTemplate string    `db:"followup_template"`
}

const (
	orgNotFoundMsg      = "organization not found"
	userNotFoundMsg     = "user not found"
	artistNotFoundMsg   = "artist not found"
	settingsNotFoundMsg = "settings not found"
)

// Repository provides database operations for organizations, users,
// artists and settings.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new identity repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateOrganizationWithOwner inserts the organization, its owner user and
// default settings in a single transaction.
func (r *Repository) CreateOrganizationWithOwner(ctx context.Context, org *Organization, owner *User, settings *Settings) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin signup tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO organizations (id, name, plan, billing_status, trial_ends_at, timezone, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		org.ID, org.Name, org.Plan, org.BillingStatus, org.TrialEndsAt, org.Timezone, org.Currency, org.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, org_id, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		owner.ID, owner.OrgID, owner.Email, owner.PasswordHash, owner.Role, owner.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create owner user: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO settings (org_id, deposit_type, deposit_value, deposit_due_days, reminder_template, deposit_template, followup_template)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		settings.OrgID, settings.DepositType, settings.DepositValue, settings.DepositDueDays,
		settings.ReminderTemplate, settings.DepositTemplate, settings.FollowupTemplate,
	)
	if err != nil {
		return fmt.Errorf("failed to create default settings: %w", err)
	}

	return tx.Commit(ctx)
}

// GetUserByEmail retrieves a user by email address (globally unique).
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_id, email, password_hash, role, created_at
		FROM users WHERE lower(email) = lower($1)`, email).
		Scan(&u.ID, &u.OrgID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(userNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// GetOrganization retrieves an organization by ID.
func (r *Repository) GetOrganization(ctx context.Context, orgID uuid.UUID) (*Organization, error) {
	var o Organization
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, plan, billing_status, trial_ends_at, timezone, currency, created_at, updated_at
		FROM organizations WHERE id = $1`, orgID).
		Scan(&o.ID, &o.Name, &o.Plan, &o.BillingStatus, &o.TrialEndsAt, &o.Timezone, &o.Currency, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(orgNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &o, nil
}

// UpdateBillingStatus sets the billing status of an organization.
func (r *Repository) UpdateBillingStatus(ctx context.Context, orgID uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE organizations SET billing_status = $2, updated_at = now() WHERE id = $1`,
		orgID, status)
	if err != nil {
		return fmt.Errorf("failed to update billing status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(orgNotFoundMsg)
	}
	return nil
}

// ListDunningOrganizations returns organizations that are past due, or whose
// trial expires before the given cutoff, together with the owner's email.
func (r *Repository) ListDunningOrganizations(ctx context.Context, trialCutoff time.Time) ([]DunningOrganization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.id, o.name, o.billing_status, o.trial_ends_at, u.email
		FROM organizations o
		JOIN users u ON u.org_id = o.id AND u.role = 'owner'
		WHERE o.billing_status = 'past_due'
		   OR (o.billing_status = 'trialing' AND o.trial_ends_at IS NOT NULL AND o.trial_ends_at <= $1)`,
		trialCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list dunning organizations: %w", err)
	}
	defer rows.Close()

	var results []DunningOrganization
	for rows.Next() {
		var d DunningOrganization
		if err := rows.Scan(&d.OrgID, &d.Name, &d.BillingStatus, &d.TrialEndsAt, &d.OwnerEmail); err != nil {
			return nil, fmt.Errorf("failed to scan dunning organization: %w", err)
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// DunningOrganization is an organization flagged by the billing dunning scan.
type DunningOrganization struct {
	OrgID         uuid.UUID
	Name          string
	BillingStatus string
	TrialEndsAt   *time.Time
	OwnerEmail    string
}

// GetOwnerEmail returns the owner user's email for an organization.
func (r *Repository) GetOwnerEmail(ctx context.Context, orgID uuid.UUID) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx, `
		SELECT email FROM users WHERE org_id = $1 AND role = 'owner' LIMIT 1`, orgID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound(userNotFoundMsg)
		}
		return "", fmt.Errorf("failed to get owner email: %w", err)
	}
	return email, nil
}

// CreateArtist inserts a new artist, optionally together with a login user.
func (r *Repository) CreateArtist(ctx context.Context, artist *Artist, user *User) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin artist tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if user != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO users (id, org_id, email, password_hash, role, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			user.ID, user.OrgID, user.Email, user.PasswordHash, user.Role, user.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create artist user: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO artists (id, org_id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		artist.ID, artist.OrgID, artist.UserID, artist.Name, artist.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create artist: %w", err)
	}

	return tx.Commit(ctx)
}

// GetArtist retrieves an artist by ID within an organization.
func (r *Repository) GetArtist(ctx context.Context, id, orgID uuid.UUID) (*Artist, error) {
	var a Artist
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_id, user_id, name, created_at
		FROM artists WHERE id = $1 AND org_id = $2`, id, orgID).
		Scan(&a.ID, &a.OrgID, &a.UserID, &a.Name, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(artistNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get artist: %w", err)
	}
	return &a, nil
}

// GetArtistByUser retrieves the artist record bound to a user, if any.
func (r *Repository) GetArtistByUser(ctx context.Context, userID uuid.UUID) (*Artist, error) {
	var a Artist
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_id, user_id, name, created_at
		FROM artists WHERE user_id = $1`, userID).
		Scan(&a.ID, &a.OrgID, &a.UserID, &a.Name, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get artist by user: %w", err)
	}
	return &a, nil
}

// ListArtists returns all artists for an organization.
func (r *Repository) ListArtists(ctx context.Context, orgID uuid.UUID) ([]Artist, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, user_id, name, created_at
		FROM artists WHERE org_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artists: %w", err)
	}
	defer rows.Close()

	var artists []Artist
	for rows.Next() {
		var a Artist
		if err := rows.Scan(&a.ID, &a.OrgID, &a.UserID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		artists = append(artists, a)
	}
	return artists, rows.Err()
}

// CountArtists returns the number of artists for an organization.
func (r *Repository) CountArtists(ctx context.Context, orgID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM artists WHERE org_id = $1`, orgID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count artists: %w", err)
	}
	return count, nil
}

// UpdateArtist renames an artist.
func (r *Repository) UpdateArtist(ctx context.Context, id, orgID uuid.UUID, name string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE artists SET name = $3 WHERE id = $1 AND org_id = $2`, id, orgID, name)
	if err != nil {
		return fmt.Errorf("failed to update artist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(artistNotFoundMsg)
	}
	return nil
}

// DeleteArtist removes an artist.
func (r *Repository) DeleteArtist(ctx context.Context, id, orgID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM artists WHERE id = $1 AND org_id = $2`, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete artist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(artistNotFoundMsg)
	}
	return nil
}

// GetSettings retrieves the settings row for an organization.
func (r *Repository) GetSettings(ctx context.Context, orgID uuid.UUID) (*Settings, error) {
	var s Settings
	err := r.pool.QueryRow(ctx, `
		SELECT org_id, deposit_type, deposit_value, deposit_due_days,
		       reminder_template, deposit_template, followup_template
		FROM settings WHERE org_id = $1`, orgID).
		Scan(&s.OrgID, &s.DepositType, &s.DepositValue, &s.DepositDueDays,
			&s.ReminderTemplate, &s.DepositTemplate, &s.FollowupTemplate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(settingsNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &s, nil
}

// UpdateSettings replaces the settings row for an organization.
func (r *Repository) UpdateSettings(ctx context.Context, s *Settings) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE settings SET deposit_type = $2, deposit_value = $3, deposit_due_days = $4,
			reminder_template = $5, deposit_template = $6, followup_template = $7,
			updated_at = now()
		WHERE org_id = $1`,
		s.OrgID, s.DepositType, s.DepositValue, s.DepositDueDays,
		s.ReminderTemplate, s.DepositTemplate, s.FollowupTemplate,
	)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(settingsNotFoundMsg)
	}
	return nil
}
