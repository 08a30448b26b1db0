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

// Integration status values.
const (
	StatusDisconnected = "disconnected"
	StatusAuthorized   = "authorized"
	StatusConnected    = "connected"
)

// Integration links an artist to a Meta page and its Instagram business
// account.
type Integration struct {
	ID                  uuid.UUID `db:"id"`
	OrgID               uuid.UUID `db:"org_id"`
	ArtistID            uuid.UUID `db:"artist_id"`
	Status              string    `db:"status"`
	PageID              *string   `db:"page_id"`
	IGBusinessAccountID *string   `db:"ig_business_account_id"`
	PageToken           *string   `db:"page_token"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

const integrationColumns = `id, org_id, artist_id, status, page_id, ig_business_account_id, page_token, created_at, updated_at`

// Repository provides database operations for Meta integrations.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new social integrations repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanIntegration(row pgx.Row) (*Integration, error) {
	var in Integration
	err := row.Scan(&in.ID, &in.OrgID, &in.ArtistID, &in.Status, &in.PageID,
		&in.IGBusinessAccountID, &in.PageToken, &in.CreatedAt, &in.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// Upsert stores the integration for the (org, artist) pair.
func (r *Repository) Upsert(ctx context.Context, in *Integration) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO integrations (id, org_id, artist_id, status, page_id, ig_business_account_id, page_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (org_id, artist_id) DO UPDATE SET
			status = EXCLUDED.status,
			page_id = EXCLUDED.page_id,
			ig_business_account_id = EXCLUDED.ig_business_account_id,
			page_token = EXCLUDED.page_token,
			updated_at = now()`,
		in.ID, in.OrgID, in.ArtistID, in.Status, in.PageID, in.IGBusinessAccountID, in.PageToken,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert integration: %w", err)
	}
	return nil
}

// Disconnect clears the integration's credentials.
func (r *Repository) Disconnect(ctx context.Context, orgID, artistID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE integrations SET status = 'disconnected', page_id = NULL,
			ig_business_account_id = NULL, page_token = NULL, updated_at = now()
		WHERE org_id = $1 AND artist_id = $2`, orgID, artistID)
	if err != nil {
		return fmt.Errorf("failed to disconnect integration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("integration not found")
	}
	return nil
}

// GetByArtist returns the integration of an artist, or nil when none exists.
func (r *Repository) GetByArtist(ctx context.Context, orgID, artistID uuid.UUID) (*Integration, error) {
	in, err := scanIntegration(r.pool.QueryRow(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE org_id = $1 AND artist_id = $2`,
		orgID, artistID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return in, nil
}

// ListByOrg returns the organization's integrations.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]Integration, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE org_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	defer rows.Close()

	var integrations []Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		integrations = append(integrations, *in)
	}
	return integrations, rows.Err()
}

// FindByPageID returns the connected integration owning the Meta page, or
// nil when none matches.
func (r *Repository) FindByPageID(ctx context.Context, pageID string) (*Integration, error) {
	in, err := scanIntegration(r.pool.QueryRow(ctx,
		`SELECT `+integrationColumns+` FROM integrations
		 WHERE page_id = $1 AND status = 'connected' LIMIT 1`, pageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find integration by page: %w", err)
	}
	return in, nil
}

// FindByIGBusinessID returns the connected integration owning the Instagram
// business account, or nil when none matches.
func (r *Repository) FindByIGBusinessID(ctx context.Context, igBusinessID string) (*Integration, error) {
	in, err := scanIntegration(r.pool.QueryRow(ctx,
		`SELECT `+integrationColumns+` FROM integrations
		 WHERE ig_business_account_id = $1 AND status = 'connected' LIMIT 1`, igBusinessID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find integration by ig account: %w", err)
	}
	return in, nil
}

// ConnectedPageToken resolves the page token used for outbound sends. Artist
// tenants use their own integration; otherwise any connected integration of
// the organization serves.
func (r *Repository) ConnectedPageToken(ctx context.Context, orgID uuid.UUID, artistID *uuid.UUID) (string, error) {
	query := `SELECT page_token FROM integrations
		WHERE org_id = $1 AND status = 'connected' AND page_token IS NOT NULL`
	args := []any{orgID}
	if artistID != nil {
		args = append(args, *artistID)
		query += ` AND artist_id = $2`
	}
	query += ` ORDER BY updated_at DESC LIMIT 1`

	var token string
	err := r.pool.QueryRow(ctx, query, args...).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotConfigured("no connected social integration")
		}
		return "", fmt.Errorf("failed to resolve page token: %w", err)
	}
	return token, nil
}
