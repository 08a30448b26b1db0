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

// Channel values for messages.
const (
	ChannelEmail     = "email"
	ChannelSMS       = "sms"
	ChannelInstagram = "instagram"
	ChannelFacebook  = "facebook"
	ChannelOther     = "other"
)

// Direction values for messages.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Message represents the message database model.
type Message struct {
	ID         uuid.UUID  `db:"id"`
	OrgID      uuid.UUID  `db:"org_id"`
	ClientID   uuid.UUID  `db:"client_id"`
	ArtistID   *uuid.UUID `db:"artist_id"`
	Direction  string     `db:"direction"`
	Channel    string     `db:"channel"`
	Body       string     `db:"body"`
	ExternalID *string    `db:"external_id"`
	CreatedAt  time.Time  `db:"created_at"`
}

// OutboxMessage is a durable stand-in for an external send that could not be
// delivered because the transport is not configured.
type OutboxMessage struct {
	ID        uuid.UUID `db:"id"`
	OrgID     uuid.UUID `db:"org_id"`
	ClientID  uuid.UUID `db:"client_id"`
	Channel   string    `db:"channel"`
	Recipient string    `db:"recipient"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

// Repository provides database operations for messages and the outbox.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new messaging repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a message. When the message carries an external id that was
// already stored for the organization, the insert is a no-op and Create
// returns false (webhook redelivery dedup).
func (r *Repository) Create(ctx context.Context, m *Message) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO messages (id, org_id, client_id, artist_id, direction, channel, body, external_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (org_id, external_id) WHERE external_id IS NOT NULL DO NOTHING`,
		m.ID, m.OrgID, m.ClientID, m.ArtistID, m.Direction, m.Channel, m.Body, m.ExternalID, m.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create message: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ExistsByExternalID reports whether a message with the given external id is
// already stored for the organization.
func (r *Repository) ExistsByExternalID(ctx context.Context, orgID uuid.UUID, externalID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM messages WHERE org_id = $1 AND external_id = $2)`,
		orgID, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check external id: %w", err)
	}
	return exists, nil
}

// LatestInbound returns the most recent inbound message for a client.
// When artistID is set only messages attributed to that artist are considered.
func (r *Repository) LatestInbound(ctx context.Context, orgID, clientID uuid.UUID, artistID *uuid.UUID) (*Message, error) {
	var m Message
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_id, client_id, artist_id, direction, channel, body, external_id, created_at
		FROM messages
		WHERE org_id = $1 AND client_id = $2 AND direction = 'inbound'
		  AND ($3::uuid IS NULL OR artist_id = $3)
		ORDER BY created_at DESC LIMIT 1`,
		orgID, clientID, artistID).
		Scan(&m.ID, &m.OrgID, &m.ClientID, &m.ArtistID, &m.Direction, &m.Channel, &m.Body, &m.ExternalID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("no inbound message for client")
		}
		return nil, fmt.Errorf("failed to load latest inbound message: %w", err)
	}
	return &m, nil
}

// ListByClient returns the conversation for a client, newest first.
func (r *Repository) ListByClient(ctx context.Context, orgID, clientID uuid.UUID, limit int) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, client_id, artist_id, direction, channel, body, external_id, created_at
		FROM messages WHERE org_id = $1 AND client_id = $2
		ORDER BY created_at DESC LIMIT $3`,
		orgID, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.OrgID, &m.ClientID, &m.ArtistID, &m.Direction, &m.Channel, &m.Body, &m.ExternalID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ListClientsWithStaleInbound returns clients whose last inbound message is
// older than the cutoff and has no outbound reply after it.
func (r *Repository) ListClientsWithStaleInbound(ctx context.Context, cutoff time.Time) ([]StaleConversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.org_id, m.client_id, m.artist_id, max(m.created_at) AS last_inbound
		FROM messages m
		WHERE m.direction = 'inbound'
		GROUP BY m.org_id, m.client_id, m.artist_id
		HAVING max(m.created_at) < $1
		   AND NOT EXISTS (
			SELECT 1 FROM messages o
			WHERE o.org_id = m.org_id AND o.client_id = m.client_id
			  AND o.direction = 'outbound' AND o.created_at > max(m.created_at)
		)`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale conversations: %w", err)
	}
	defer rows.Close()

	var results []StaleConversation
	for rows.Next() {
		var s StaleConversation
		if err := rows.Scan(&s.OrgID, &s.ClientID, &s.ArtistID, &s.LastInbound); err != nil {
			return nil, fmt.Errorf("failed to scan stale conversation: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// StaleConversation is a client conversation awaiting a reply.
type StaleConversation struct {
	OrgID       uuid.UUID
	ClientID    uuid.UUID
	ArtistID    *uuid.UUID
	LastInbound time.Time
}

// CreateOutbox stores an undeliverable outbound send durably.
func (r *Repository) CreateOutbox(ctx context.Context, o *OutboxMessage) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO outbox_messages (id, org_id, client_id, channel, recipient, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.OrgID, o.ClientID, o.Channel, o.Recipient, o.Body, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox message: %w", err)
	}
	return nil
}

// ListOutbox returns undelivered sends for an organization, oldest first.
func (r *Repository) ListOutbox(ctx context.Context, orgID uuid.UUID, limit int) ([]OutboxMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, client_id, channel, recipient, body, created_at
		FROM outbox_messages WHERE org_id = $1 ORDER BY created_at LIMIT $2`,
		orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox messages: %w", err)
	}
	defer rows.Close()

	var results []OutboxMessage
	for rows.Next() {
		var o OutboxMessage
		if err := rows.Scan(&o.ID, &o.OrgID, &o.ClientID, &o.Channel, &o.Recipient, &o.Body, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		results = append(results, o)
	}
	return results, rows.Err()
}
