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

// Campaign status values.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusSent      = "sent"
)

// Send outcome values.
const (
	SendSent    = "sent"
	SendSkipped = "skipped"
	SendFailed  = "failed"
)

// Campaign is a marketing blast over one channel.
type Campaign struct {
	ID          uuid.UUID  `db:"id"`
	OrgID       uuid.UUID  `db:"org_id"`
	Channel     string     `db:"channel"`
	Subject     *string    `db:"subject"`
	Body        string     `db:"body"`
	OnlyOptIn   bool       `db:"only_opt_in"`
	Status      string     `db:"status"`
	ScheduledAt *time.Time `db:"scheduled_at"`
	SentAt      *time.Time `db:"sent_at"`
	CreatedAt   time.Time  `db:"created_at"`
}

// Send records the per-recipient outcome of a campaign run.
type Send struct {
	ID         uuid.UUID `db:"id"`
	CampaignID uuid.UUID `db:"campaign_id"`
	OrgID      uuid.UUID `db:"org_id"`
	ClientID   uuid.UUID `db:"client_id"`
	Channel    string    `db:"channel"`
	Status     string    `db:"status"`
	Error      *string   `db:"error"`
	CreatedAt  time.Time `db:"created_at"`
}

const campaignColumns = `id, org_id, channel, subject, body, only_opt_in, status, scheduled_at, sent_at, created_at`

// Repository provides database operations for campaigns.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new campaigns repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanCampaign(row pgx.Row) (*Campaign, error) {
	var c Campaign
	err := row.Scan(&c.ID, &c.OrgID, &c.Channel, &c.Subject, &c.Body, &c.OnlyOptIn,
		&c.Status, &c.ScheduledAt, &c.SentAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a draft campaign.
func (r *Repository) Create(ctx context.Context, c *Campaign) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO campaigns (id, org_id, channel, subject, body, only_opt_in, status, scheduled_at, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.OrgID, c.Channel, c.Subject, c.Body, c.OnlyOptIn, c.Status, c.ScheduledAt, c.SentAt, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetByID retrieves a campaign within an organization.
func (r *Repository) GetByID(ctx context.Context, id, orgID uuid.UUID) (*Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 AND org_id = $2`, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("campaign not found")
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

// List returns the organization's campaigns, newest first.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE org_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var campaigns []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// MarkScheduled moves a draft to scheduled. Returns a conflict when the
// campaign is not a draft.
func (r *Repository) MarkScheduled(ctx context.Context, id, orgID uuid.UUID, scheduledAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = 'scheduled', scheduled_at = $1
		WHERE id = $2 AND org_id = $3 AND status = 'draft'`, scheduledAt, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to schedule campaign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("campaign is not a draft")
	}
	return nil
}

// MarkSent closes out a campaign run. Returns false when another run already
// closed it.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE campaigns SET status = 'sent', sent_at = $1
		WHERE id = $2 AND status <> 'sent'`, sentAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark campaign sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CreateSend records one recipient outcome.
func (r *Repository) CreateSend(ctx context.Context, s *Send) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO campaign_sends (id, campaign_id, org_id, client_id, channel, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.CampaignID, s.OrgID, s.ClientID, s.Channel, s.Status, s.Error, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record campaign send: %w", err)
	}
	return nil
}

// ListSends returns the recipient outcomes of a campaign.
func (r *Repository) ListSends(ctx context.Context, orgID, campaignID uuid.UUID) ([]Send, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, campaign_id, org_id, client_id, channel, status, error, created_at
		FROM campaign_sends WHERE org_id = $1 AND campaign_id = $2 ORDER BY created_at`,
		orgID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign sends: %w", err)
	}
	defer rows.Close()

	var sends []Send
	for rows.Next() {
		var s Send
		if err := rows.Scan(&s.ID, &s.CampaignID, &s.OrgID, &s.ClientID, &s.Channel, &s.Status, &s.Error, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan campaign send: %w", err)
		}
		sends = append(sends, s)
	}
	return sends, rows.Err()
}
