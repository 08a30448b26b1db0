package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reminderrepo "inkflow_backend/internal/reminders/repository"
	"inkflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Appointment status values.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// Deposit status values.
const (
	DepositNone    = "none"
	DepositPending = "pending"
	DepositPaid    = "paid"
	DepositExpired = "expired"
)

const msgTimeConflict = "artist already has an appointment in this time slot"

// Appointment represents a booking on an artist's calendar.
type Appointment struct {
	ID                 uuid.UUID  `db:"id"`
	OrgID              uuid.UUID  `db:"org_id"`
	ClientID           uuid.UUID  `db:"client_id"`
	ArtistID           uuid.UUID  `db:"artist_id"`
	Title              string     `db:"title"`
	StartsAt           time.Time  `db:"starts_at"`
	EndsAt             time.Time  `db:"ends_at"`
	Status             string     `db:"status"`
	PriceCents         int64      `db:"price_cents"`
	DepositRequired    bool       `db:"deposit_required"`
	DepositAmountCents int64      `db:"deposit_amount_cents"`
	DepositStatus      string     `db:"deposit_status"`
	DepositDueAt       *time.Time `db:"deposit_due_at"`
	DepositPaidAt      *time.Time `db:"deposit_paid_at"`
	DepositLink        *string    `db:"deposit_link"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// ReminderSeed is a reminder row created together with its appointment.
type ReminderSeed struct {
	ID     uuid.UUID
	Type   string
	SendAt time.Time
}

const appointmentColumns = `id, org_id, client_id, artist_id, title, starts_at, ends_at, status,
	price_cents, deposit_required, deposit_amount_cents, deposit_status,
	deposit_due_at, deposit_paid_at, deposit_link, created_at, updated_at`

// Repository provides database operations for appointments.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new appointments repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.OrgID, &a.ClientID, &a.ArtistID, &a.Title, &a.StartsAt, &a.EndsAt,
		&a.Status, &a.PriceCents, &a.DepositRequired, &a.DepositAmountCents, &a.DepositStatus,
		&a.DepositDueAt, &a.DepositPaidAt, &a.DepositLink, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateScheduled inserts the appointment and its reminder seeds in one
// transaction. A per-artist advisory lock serializes concurrent bookings for
// the same artist before the overlap check runs; the exclusion constraint is
// the backstop for anything that slips past.
func (r *Repository) CreateScheduled(ctx context.Context, appt *Appointment, seeds []ReminderSeed) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, appt.ArtistID); err != nil {
		return fmt.Errorf("failed to acquire artist lock: %w", err)
	}

	conflict, err := overlapExists(ctx, tx, appt.ArtistID, appt.StartsAt, appt.EndsAt, appt.ID)
	if err != nil {
		return err
	}
	if conflict {
		return apperr.Conflict(msgTimeConflict)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (id, org_id, client_id, artist_id, title, starts_at, ends_at, status,
			price_cents, deposit_required, deposit_amount_cents, deposit_status,
			deposit_due_at, deposit_paid_at, deposit_link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		appt.ID, appt.OrgID, appt.ClientID, appt.ArtistID, appt.Title, appt.StartsAt, appt.EndsAt,
		appt.Status, appt.PriceCents, appt.DepositRequired, appt.DepositAmountCents, appt.DepositStatus,
		appt.DepositDueAt, appt.DepositPaidAt, appt.DepositLink, appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return apperr.Conflict(msgTimeConflict)
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	for _, seed := range seeds {
		_, err := tx.Exec(ctx, `
			INSERT INTO reminders (id, org_id, appointment_id, client_id, type, status, send_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			seed.ID, appt.OrgID, appt.ID, appt.ClientID, seed.Type,
			reminderrepo.StatusPending, seed.SendAt, appt.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create reminder seed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit appointment: %w", err)
	}
	return nil
}

// Reschedule moves an appointment to a new time slot under the same
// serialization as CreateScheduled, excluding the appointment itself from the
// overlap check.
func (r *Repository) Reschedule(ctx context.Context, appt *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, appt.ArtistID); err != nil {
		return fmt.Errorf("failed to acquire artist lock: %w", err)
	}

	conflict, err := overlapExists(ctx, tx, appt.ArtistID, appt.StartsAt, appt.EndsAt, appt.ID)
	if err != nil {
		return err
	}
	if conflict {
		return apperr.Conflict(msgTimeConflict)
	}

	_, err = tx.Exec(ctx, `
		UPDATE appointments SET title = $1, starts_at = $2, ends_at = $3, price_cents = $4, updated_at = now()
		WHERE id = $5 AND org_id = $6`,
		appt.Title, appt.StartsAt, appt.EndsAt, appt.PriceCents, appt.ID, appt.OrgID,
	)
	if err != nil {
		if isExclusionViolation(err) {
			return apperr.Conflict(msgTimeConflict)
		}
		return fmt.Errorf("failed to reschedule appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reschedule: %w", err)
	}
	return nil
}

// overlapExists runs the half-open interval check against scheduled
// appointments of the artist: [s1, e1) and [s2, e2) overlap iff s1 < e2 && s2 < e1.
func overlapExists(ctx context.Context, tx pgx.Tx, artistID uuid.UUID, startsAt, endsAt time.Time, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE artist_id = $1 AND status = 'scheduled'
			  AND starts_at < $3 AND ends_at > $2
			  AND id <> $4
		)`, artistID, startsAt, endsAt, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check overlap: %w", err)
	}
	return exists, nil
}

func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// GetByID retrieves an appointment within an organization.
func (r *Repository) GetByID(ctx context.Context, id, orgID uuid.UUID) (*Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 AND org_id = $2`, id, orgID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("appointment not found")
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return appt, nil
}

// ListParams filters the appointment listing.
type ListParams struct {
	ArtistID *uuid.UUID
	ClientID *uuid.UUID
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// List returns appointments of an organization, newest-start last.
func (r *Repository) List(ctx context.Context, orgID uuid.UUID, params ListParams) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE org_id = $1`
	args := []any{orgID}

	if params.ArtistID != nil {
		args = append(args, *params.ArtistID)
		query += fmt.Sprintf(" AND artist_id = $%d", len(args))
	}
	if params.ClientID != nil {
		args = append(args, *params.ClientID)
		query += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if params.From != nil {
		args = append(args, *params.From)
		query += fmt.Sprintf(" AND starts_at >= $%d", len(args))
	}
	if params.To != nil {
		args = append(args, *params.To)
		query += fmt.Sprintf(" AND starts_at < $%d", len(args))
	}

	limit := params.Limit
	if limit < 1 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY starts_at LIMIT $%d", len(args))
	args = append(args, params.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, *appt)
	}
	return appointments, rows.Err()
}

// UpdateStatus sets the appointment status.
func (r *Repository) UpdateStatus(ctx context.Context, id, orgID uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET status = $1, updated_at = now()
		WHERE id = $2 AND org_id = $3`, status, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment not found")
	}
	return nil
}

// Cancel marks the appointment cancelled and skips its pending reminders in
// one transaction.
func (r *Repository) Cancel(ctx context.Context, id, orgID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE appointments SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND org_id = $2 AND status = 'scheduled'`, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to cancel appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("appointment is not scheduled")
	}

	_, err = tx.Exec(ctx, `
		UPDATE reminders SET status = 'skipped'
		WHERE appointment_id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("failed to skip reminders: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cancel: %w", err)
	}
	return nil
}

// SetDepositState updates the deposit lifecycle fields. paid_at is written
// together with the status so the two can never diverge.
func (r *Repository) SetDepositState(ctx context.Context, id, orgID uuid.UUID, status string, paidAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET deposit_status = $1, deposit_paid_at = $2, updated_at = now()
		WHERE id = $3 AND org_id = $4`, status, paidAt, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to update deposit state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment not found")
	}
	return nil
}

// SetDepositTerms writes a freshly computed deposit onto an appointment that
// had none.
func (r *Repository) SetDepositTerms(ctx context.Context, id, orgID uuid.UUID, amountCents int64, status string, dueAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET deposit_required = TRUE, deposit_amount_cents = $1,
			deposit_status = $2, deposit_due_at = $3, updated_at = now()
		WHERE id = $4 AND org_id = $5`, amountCents, status, dueAt, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to set deposit terms: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("appointment not found")
	}
	return nil
}

// SetDepositLink stores the checkout URL for the deposit.
func (r *Repository) SetDepositLink(ctx context.Context, id, orgID uuid.UUID, link string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE appointments SET deposit_link = $1, updated_at = now()
		WHERE id = $2 AND org_id = $3`, link, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to set deposit link: %w", err)
	}
	return nil
}

// MarkDepositPaid transitions a deposit to paid and stamps paid_at, but only
// from a non-paid state. Returns false when the deposit was already paid
// (webhook redelivery no-ops).
func (r *Repository) MarkDepositPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET deposit_status = 'paid', deposit_paid_at = $1, updated_at = now()
		WHERE id = $2 AND deposit_status IN ('pending', 'expired')`, paidAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark deposit paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FindEarliestUpcomingWithDeposit returns the client's earliest future
// scheduled appointment with an unpaid deposit, or nil when none exists.
func (r *Repository) FindEarliestUpcomingWithDeposit(ctx context.Context, orgID, clientID uuid.UUID, now time.Time) (*Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE org_id = $1 AND client_id = $2 AND status = 'scheduled'
		  AND starts_at > $3 AND deposit_amount_cents > 0 AND deposit_status IN ('pending', 'expired')
		ORDER BY starts_at LIMIT 1`, orgID, clientID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find upcoming deposit appointment: %w", err)
	}
	return appt, nil
}

// FindEarliestUpcoming returns the client's earliest future scheduled
// appointment regardless of deposit state, or nil when none exists.
func (r *Repository) FindEarliestUpcoming(ctx context.Context, orgID, clientID uuid.UUID, now time.Time) (*Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE org_id = $1 AND client_id = $2 AND status = 'scheduled' AND starts_at > $3
		ORDER BY starts_at LIMIT 1`, orgID, clientID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find upcoming appointment: %w", err)
	}
	return appt, nil
}

// FindEarliestPast returns the client's earliest past appointment, or nil.
func (r *Repository) FindEarliestPast(ctx context.Context, orgID, clientID uuid.UUID, now time.Time) (*Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+` FROM appointments
		WHERE org_id = $1 AND client_id = $2 AND starts_at <= $3
		ORDER BY starts_at LIMIT 1`, orgID, clientID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find past appointment: %w", err)
	}
	return appt, nil
}

// OverdueDeposit is a pending deposit whose due date passed.
type OverdueDeposit struct {
	AppointmentID uuid.UUID
	OrgID         uuid.UUID
	ClientID      uuid.UUID
	DueAt         time.Time
}

// ListOverdueDeposits returns pending deposits due before the cutoff,
// across organizations. Used by the deposit-due scan.
func (r *Repository) ListOverdueDeposits(ctx context.Context, cutoff time.Time) ([]OverdueDeposit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, org_id, client_id, deposit_due_at FROM appointments
		WHERE deposit_status = 'pending' AND deposit_due_at IS NOT NULL AND deposit_due_at < $1
		  AND status = 'scheduled'`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue deposits: %w", err)
	}
	defer rows.Close()

	var overdue []OverdueDeposit
	for rows.Next() {
		var o OverdueDeposit
		if err := rows.Scan(&o.AppointmentID, &o.OrgID, &o.ClientID, &o.DueAt); err != nil {
			return nil, fmt.Errorf("failed to scan overdue deposit: %w", err)
		}
		overdue = append(overdue, o)
	}
	return overdue, rows.Err()
}

// ExpireDeposit moves a pending deposit to expired. Returns false when the
// deposit changed state in the meantime.
func (r *Repository) ExpireDeposit(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET deposit_status = 'expired', updated_at = now()
		WHERE id = $1 AND deposit_status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("failed to expire deposit: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
