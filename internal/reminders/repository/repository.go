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

// Reminder types. The ledger is the single idempotency authority for
// time-based sends: a reminder is delivered at most once no matter how often
// the queue redelivers the job or a scan re-derives the same condition.
const (
	TypeAppointment48h = "appointment_48h"
	TypeAppointment24h = "appointment_24h"
	TypeManual         = "manual"
	TypeDeposit        = "deposit"
	TypeNoReply        = "no_reply"
)

// Reminder status values.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusSkipped = "skipped"
)

// Reminder represents the reminder ledger row.
type Reminder struct {
	ID            uuid.UUID  `db:"id"`
	OrgID         uuid.UUID  `db:"org_id"`
	AppointmentID *uuid.UUID `db:"appointment_id"`
	ClientID      *uuid.UUID `db:"client_id"`
	Type          string     `db:"type"`
	Status        string     `db:"status"`
	SendAt        time.Time  `db:"send_at"`
	SentAt        *time.Time `db:"sent_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

const reminderNotFoundMsg = "reminder not found"

// Repository provides database operations for the reminder ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new reminders repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending reminder row.
func (r *Repository) Create(ctx context.Context, rem *Reminder) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reminders (id, org_id, appointment_id, client_id, type, status, send_at, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rem.ID, rem.OrgID, rem.AppointmentID, rem.ClientID, rem.Type, rem.Status, rem.SendAt, rem.SentAt, rem.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	return nil
}

// GetByID retrieves a reminder within an organization.
func (r *Repository) GetByID(ctx context.Context, id, orgID uuid.UUID) (*Reminder, error) {
	var rem Reminder
	err := r.pool.QueryRow(ctx, `
		SELECT id, org_id, appointment_id, client_id, type, status, send_at, sent_at, created_at
		FROM reminders WHERE id = $1 AND org_id = $2`, id, orgID).
		Scan(&rem.ID, &rem.OrgID, &rem.AppointmentID, &rem.ClientID, &rem.Type, &rem.Status, &rem.SendAt, &rem.SentAt, &rem.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(reminderNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return &rem, nil
}

// ClaimForSend atomically moves a pending reminder to sent. Returns false
// when the reminder was already sent or skipped, in which case the caller
// must no-op (idempotent delivery under queue retry).
func (r *Repository) ClaimForSend(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders SET status = 'sent', sent_at = now()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSkipped atomically moves a pending reminder to skipped (appointment
// cancelled, deposit already paid). Returns false when already handled.
func (r *Repository) MarkSkipped(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reminders SET status = 'skipped'
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("failed to skip reminder: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Release returns a claimed reminder to pending so the queue retry can
// deliver it again after a transport failure.
func (r *Repository) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reminders SET status = 'pending', sent_at = NULL
		WHERE id = $1 AND status = 'sent'`, id)
	if err != nil {
		return fmt.Errorf("failed to release reminder: %w", err)
	}
	return nil
}

// SkipPendingForAppointment skips all pending reminders of an appointment
// (used when the appointment is cancelled).
func (r *Repository) SkipPendingForAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reminders SET status = 'skipped'
		WHERE appointment_id = $1 AND status = 'pending'`, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to skip appointment reminders: %w", err)
	}
	return nil
}

// HasRecent reports whether a reminder of the given type exists for the
// client since the cutoff, in any status. Used as the suppression window for
// the no-reply escalation scan.
func (r *Repository) HasRecent(ctx context.Context, orgID, clientID uuid.UUID, reminderType string, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reminders
			WHERE org_id = $1 AND client_id = $2 AND type = $3 AND created_at > $4
		)`, orgID, clientID, reminderType, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check recent reminder: %w", err)
	}
	return exists, nil
}

// HasForAppointment reports whether a reminder of the given type exists for
// the appointment in any status.
func (r *Repository) HasForAppointment(ctx context.Context, appointmentID uuid.UUID, reminderType string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reminders WHERE appointment_id = $1 AND type = $2
		)`, appointmentID, reminderType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check appointment reminder: %w", err)
	}
	return exists, nil
}

// ListByAppointment returns the reminders of an appointment.
func (r *Repository) ListByAppointment(ctx context.Context, orgID, appointmentID uuid.UUID) ([]Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, appointment_id, client_id, type, status, send_at, sent_at, created_at
		FROM reminders WHERE org_id = $1 AND appointment_id = $2 ORDER BY send_at`,
		orgID, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		var rem Reminder
		if err := rows.Scan(&rem.ID, &rem.OrgID, &rem.AppointmentID, &rem.ClientID, &rem.Type, &rem.Status, &rem.SendAt, &rem.SentAt, &rem.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}
