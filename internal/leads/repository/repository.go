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

// Lead status values.
const (
	StatusNew       = "new"
	StatusContacted = "contacted"
	StatusBooked    = "booked"
	StatusLost      = "lost"
)

// Lead represents the lead database model.
type Lead struct {
	ID        uuid.UUID  `db:"id"`
	OrgID     uuid.UUID  `db:"org_id"`
	ArtistID  *uuid.UUID `db:"artist_id"`
	ClientID  *uuid.UUID `db:"client_id"`
	Name      string     `db:"name"`
	Email     *string    `db:"email"`
	Phone     *string    `db:"phone"`
	IGHandle  *string    `db:"ig_handle"`
	Status    string     `db:"status"`
	Source    string     `db:"source"`
	Message   *string    `db:"message"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

const leadNotFoundMsg = "lead not found"

const leadColumns = `id, org_id, artist_id, client_id, name, email, phone, ig_handle,
	status, source, message, created_at, updated_at`

// Repository provides database operations for leads.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.OrgID, &l.ArtistID, &l.ClientID, &l.Name, &l.Email, &l.Phone,
		&l.IGHandle, &l.Status, &l.Source, &l.Message, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(leadNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}
	return &l, nil
}

// Create inserts a new lead.
func (r *Repository) Create(ctx context.Context, l *Lead) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO leads (id, org_id, artist_id, client_id, name, email, phone, ig_handle,
			status, source, message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		l.ID, l.OrgID, l.ArtistID, l.ClientID, l.Name, l.Email, l.Phone, l.IGHandle,
		l.Status, l.Source, l.Message, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

// GetByID retrieves a lead by ID within an organization.
func (r *Repository) GetByID(ctx context.Context, id, orgID uuid.UUID) (*Lead, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1 AND org_id = $2`, id, orgID)
	return scanLead(row)
}

// FindOpenByClient returns the most recent non-terminal lead for a client.
func (r *Repository) FindOpenByClient(ctx context.Context, orgID, clientID uuid.UUID) (*Lead, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE org_id = $1 AND client_id = $2 AND status IN ('new', 'contacted')
		 ORDER BY created_at DESC LIMIT 1`, orgID, clientID)
	return scanLead(row)
}

// List returns leads for an organization, optionally filtered by status and
// artist, newest first.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, status string, artistID *uuid.UUID, limit, offset int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE org_id = $1
		   AND ($2 = '' OR status = $2)
		   AND ($3::uuid IS NULL OR artist_id = $3)
		 ORDER BY created_at DESC LIMIT $4 OFFSET $5`,
		orgID, status, artistID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		var l Lead
		if err := rows.Scan(&l.ID, &l.OrgID, &l.ArtistID, &l.ClientID, &l.Name, &l.Email, &l.Phone,
			&l.IGHandle, &l.Status, &l.Source, &l.Message, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// Update persists mutable lead fields.
func (r *Repository) Update(ctx context.Context, l *Lead) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET artist_id = $3, client_id = $4, name = $5, email = $6, phone = $7,
			ig_handle = $8, status = $9, message = $10, updated_at = now()
		WHERE id = $1 AND org_id = $2`,
		l.ID, l.OrgID, l.ArtistID, l.ClientID, l.Name, l.Email, l.Phone,
		l.IGHandle, l.Status, l.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMsg)
	}
	return nil
}

// UpdateStatus moves a lead to the given pipeline status.
func (r *Repository) UpdateStatus(ctx context.Context, id, orgID uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET status = $3, updated_at = now() WHERE id = $1 AND org_id = $2`,
		id, orgID, status)
	if err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMsg)
	}
	return nil
}
