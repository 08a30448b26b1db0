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

// Client represents the client database model.
type Client struct {
	ID               uuid.UUID `db:"id"`
	OrgID            uuid.UUID `db:"org_id"`
	Name             string    `db:"name"`
	Email            *string   `db:"email"`
	Phone            *string   `db:"phone"`
	IGHandle         *string   `db:"ig_handle"`
	IGUserID         *string   `db:"ig_user_id"`
	FBUserID         *string   `db:"fb_user_id"`
	MarketingOptIn   bool      `db:"marketing_opt_in"`
	Unsubscribed     bool      `db:"unsubscribed"`
	UnsubscribeToken *string   `db:"unsubscribe_token"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Asset represents a stored client asset (inbound attachment reference).
type Asset struct {
	ID        uuid.UUID  `db:"id"`
	OrgID     uuid.UUID  `db:"org_id"`
	ClientID  uuid.UUID  `db:"client_id"`
	MessageID *uuid.UUID `db:"message_id"`
	URL       string     `db:"url"`
	ObjectKey *string    `db:"object_key"`
	CreatedAt time.Time  `db:"created_at"`
}

const clientNotFoundMsg = "client not found"

const clientColumns = `id, org_id, name, email, phone, ig_handle, ig_user_id, fb_user_id,
	marketing_opt_in, unsubscribed, unsubscribe_token, created_at, updated_at`

// Repository provides database operations for clients and their assets.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new clients repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.Phone, &c.IGHandle, &c.IGUserID,
		&c.FBUserID, &c.MarketingOptIn, &c.Unsubscribed, &c.UnsubscribeToken, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(clientNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to scan client: %w", err)
	}
	return &c, nil
}

// Create inserts a new client.
func (r *Repository) Create(ctx context.Context, c *Client) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clients (id, org_id, name, email, phone, ig_handle, ig_user_id, fb_user_id,
			marketing_opt_in, unsubscribed, unsubscribe_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		c.ID, c.OrgID, c.Name, c.Email, c.Phone, c.IGHandle, c.IGUserID, c.FBUserID,
		c.MarketingOptIn, c.Unsubscribed, c.UnsubscribeToken, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetByID retrieves a client by ID within an organization.
func (r *Repository) GetByID(ctx context.Context, id, orgID uuid.UUID) (*Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1 AND org_id = $2`, id, orgID)
	return scanClient(row)
}

// FindByEmail finds the oldest client with the given email.
func (r *Repository) FindByEmail(ctx context.Context, orgID uuid.UUID, email string) (*Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients
		 WHERE org_id = $1 AND lower(email) = lower($2) ORDER BY created_at LIMIT 1`, orgID, email)
	return scanClient(row)
}

// FindByPhone finds the oldest client with the given (normalized) phone.
func (r *Repository) FindByPhone(ctx context.Context, orgID uuid.UUID, phone string) (*Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients
		 WHERE org_id = $1 AND phone = $2 ORDER BY created_at LIMIT 1`, orgID, phone)
	return scanClient(row)
}

// FindByIGHandle finds the oldest client with the given Instagram handle.
func (r *Repository) FindByIGHandle(ctx context.Context, orgID uuid.UUID, handle string) (*Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients
		 WHERE org_id = $1 AND lower(ig_handle) = lower($2) ORDER BY created_at LIMIT 1`, orgID, handle)
	return scanClient(row)
}

// FindByPlatformUserID finds a client by Instagram or Facebook platform user id.
func (r *Repository) FindByPlatformUserID(ctx context.Context, orgID uuid.UUID, igUserID, fbUserID string) (*Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients
		 WHERE org_id = $1 AND (($2 <> '' AND ig_user_id = $2) OR ($3 <> '' AND fb_user_id = $3))
		 ORDER BY created_at LIMIT 1`, orgID, igUserID, fbUserID)
	return scanClient(row)
}

// FindByUnsubscribeToken finds a client by unsubscribe token across all tenants.
func (r *Repository) FindByUnsubscribeToken(ctx context.Context, token string) (*Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE unsubscribe_token = $1`, token)
	return scanClient(row)
}

// List returns all clients for an organization, newest first.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]Client, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM clients
		 WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.Phone, &c.IGHandle, &c.IGUserID,
			&c.FBUserID, &c.MarketingOptIn, &c.Unsubscribed, &c.UnsubscribeToken, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// ListMarketable returns clients eligible for a campaign: not unsubscribed,
// and opted in when onlyOptIn is set.
func (r *Repository) ListMarketable(ctx context.Context, orgID uuid.UUID, onlyOptIn bool) ([]Client, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM clients
		 WHERE org_id = $1 AND unsubscribed = FALSE AND ($2 = FALSE OR marketing_opt_in = TRUE)
		 ORDER BY created_at`, orgID, onlyOptIn)
	if err != nil {
		return nil, fmt.Errorf("failed to list marketable clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.OrgID, &c.Name, &c.Email, &c.Phone, &c.IGHandle, &c.IGUserID,
			&c.FBUserID, &c.MarketingOptIn, &c.Unsubscribed, &c.UnsubscribeToken, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// Update persists mutable client fields.
func (r *Repository) Update(ctx context.Context, c *Client) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET name = $3, email = $4, phone = $5, ig_handle = $6, ig_user_id = $7,
			fb_user_id = $8, marketing_opt_in = $9, unsubscribed = $10, unsubscribe_token = $11,
			updated_at = now()
		WHERE id = $1 AND org_id = $2`,
		c.ID, c.OrgID, c.Name, c.Email, c.Phone, c.IGHandle, c.IGUserID,
		c.FBUserID, c.MarketingOptIn, c.Unsubscribed, c.UnsubscribeToken,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(clientNotFoundMsg)
	}
	return nil
}

// SetUnsubscribeToken stores the token only when none is set yet and returns
// the token now on the row, so concurrent callers converge on one value.
func (r *Repository) SetUnsubscribeToken(ctx context.Context, id, orgID uuid.UUID, token string) (string, error) {
	var current string
	err := r.pool.QueryRow(ctx, `
		UPDATE clients SET unsubscribe_token = COALESCE(unsubscribe_token, $3), updated_at = now()
		WHERE id = $1 AND org_id = $2
		RETURNING unsubscribe_token`, id, orgID, token).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperr.NotFound(clientNotFoundMsg)
		}
		return "", fmt.Errorf("failed to set unsubscribe token: %w", err)
	}
	return current, nil
}

// MarkUnsubscribed flags the client as unsubscribed.
func (r *Repository) MarkUnsubscribed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET unsubscribed = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark client unsubscribed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(clientNotFoundMsg)
	}
	return nil
}

// CreateAsset stores an asset reference for a client.
func (r *Repository) CreateAsset(ctx context.Context, a *Asset) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO client_assets (id, org_id, client_id, message_id, url, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.OrgID, a.ClientID, a.MessageID, a.URL, a.ObjectKey, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client asset: %w", err)
	}
	return nil
}

// ListAssets returns the stored assets for a client, newest first.
func (r *Repository) ListAssets(ctx context.Context, orgID, clientID uuid.UUID) ([]Asset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, client_id, message_id, url, object_key, created_at
		FROM client_assets WHERE org_id = $1 AND client_id = $2 ORDER BY created_at DESC`,
		orgID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list client assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.OrgID, &a.ClientID, &a.MessageID, &a.URL, &a.ObjectKey, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}
