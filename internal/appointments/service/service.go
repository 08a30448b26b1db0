// Package service implements appointment booking with conflict detection and
// deposit terms.
package service

import (
	"context"
	"time"

	"inkflow_backend/internal/appointments/repository"
	reminderrepo "inkflow_backend/internal/reminders/repository"
	"inkflow_backend/internal/scheduler"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the slice of the appointments repository the service needs.
type Store interface {
	CreateScheduled(ctx context.Context, appt *repository.Appointment, seeds []repository.ReminderSeed) error
	Reschedule(ctx context.Context, appt *repository.Appointment) error
	GetByID(ctx context.Context, id, orgID uuid.UUID) (*repository.Appointment, error)
	UpdateStatus(ctx context.Context, id, orgID uuid.UUID, status string) error
	Cancel(ctx context.Context, id, orgID uuid.UUID) error
}

// PolicySource yields the organization's deposit policy.
type PolicySource interface {
	DepositPolicy(ctx context.Context, orgID uuid.UUID) (DepositPolicy, error)
}

// ReminderLedger writes manual entries to the reminder ledger.
type ReminderLedger interface {
	Create(ctx context.Context, rem *reminderrepo.Reminder) error
}

type Service struct {
	store     Store
	reminders ReminderLedger
	policy    PolicySource
	jobs      scheduler.ReminderScheduler
	log       *logger.Logger
}

func New(store Store, reminders ReminderLedger, policy PolicySource, jobs scheduler.ReminderScheduler, log *logger.Logger) *Service {
	return &Service{store: store, reminders: reminders, policy: policy, jobs: jobs, log: log}
}

// CreateParams carries a booking request.
type CreateParams struct {
	ClientID        uuid.UUID
	ArtistID        uuid.UUID
	Title           string
	StartsAt        time.Time
	EndsAt          time.Time
	PriceCents      int64
	DepositRequired bool
	// DepositPaid marks a required deposit as collected up front, for
	// walk-ins paying cash at the desk.
	DepositPaid        bool
	DepositAmountCents *int64
}

// Create books an appointment. The reminder ledger rows are written in the
// same transaction as the appointment; the delayed delivery jobs are enqueued
// afterwards and a queue failure does not undo the booking.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, params CreateParams) (*repository.Appointment, error) {
	if err := validateInterval(params.StartsAt, params.EndsAt); err != nil {
		return nil, err
	}
	if params.PriceCents < 0 {
		return nil, apperr.Validation("price must not be negative")
	}

	policy, err := s.policy.DepositPolicy(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	plan := ComputeDeposit(policy, params.PriceCents, params.DepositRequired, params.DepositPaid, params.DepositAmountCents, now)

	appt := &repository.Appointment{
		ID:                 uuid.New(),
		OrgID:              orgID,
		ClientID:           params.ClientID,
		ArtistID:           params.ArtistID,
		Title:              params.Title,
		StartsAt:           params.StartsAt.UTC(),
		EndsAt:             params.EndsAt.UTC(),
		Status:             repository.StatusScheduled,
		PriceCents:         params.PriceCents,
		DepositRequired:    plan.Required,
		DepositAmountCents: plan.AmountCents,
		DepositStatus:      plan.Status,
		DepositDueAt:       plan.DueAt,
		DepositPaidAt:      plan.PaidAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	seeds := []repository.ReminderSeed{
		{ID: uuid.New(), Type: reminderrepo.TypeAppointment48h, SendAt: appt.StartsAt.Add(-48 * time.Hour)},
		{ID: uuid.New(), Type: reminderrepo.TypeAppointment24h, SendAt: appt.StartsAt.Add(-24 * time.Hour)},
	}

	if err := s.store.CreateScheduled(ctx, appt, seeds); err != nil {
		return nil, err
	}

	for _, seed := range seeds {
		payload := scheduler.ReminderSendPayload{
			ReminderID:     seed.ID.String(),
			OrganizationID: orgID.String(),
		}
		if err := s.jobs.ScheduleReminder(ctx, payload, seed.SendAt); err != nil {
			s.log.Error("failed to enqueue reminder job",
				"reminderId", seed.ID, "appointmentId", appt.ID, "error", err)
		}
	}

	return appt, nil
}

// UpdateParams carries a partial appointment update.
type UpdateParams struct {
	Title      *string
	StartsAt   *time.Time
	EndsAt     *time.Time
	PriceCents *int64
}

// Update changes title, time slot or price. Time changes re-run the conflict
// check under the per-artist lock.
func (s *Service) Update(ctx context.Context, id, orgID uuid.UUID, params UpdateParams) (*repository.Appointment, error) {
	appt, err := s.store.GetByID(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if appt.Status != repository.StatusScheduled {
		return nil, apperr.Conflict("only scheduled appointments can be updated")
	}

	if params.Title != nil {
		appt.Title = *params.Title
	}
	if params.StartsAt != nil {
		appt.StartsAt = params.StartsAt.UTC()
	}
	if params.EndsAt != nil {
		appt.EndsAt = params.EndsAt.UTC()
	}
	if params.PriceCents != nil {
		if *params.PriceCents < 0 {
			return nil, apperr.Validation("price must not be negative")
		}
		appt.PriceCents = *params.PriceCents
	}

	if err := validateInterval(appt.StartsAt, appt.EndsAt); err != nil {
		return nil, err
	}

	if err := s.store.Reschedule(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// Complete marks a scheduled appointment completed or no_show.
func (s *Service) Complete(ctx context.Context, id, orgID uuid.UUID, status string) error {
	if status != repository.StatusCompleted && status != repository.StatusNoShow {
		return apperr.Validation("status must be completed or no_show")
	}
	appt, err := s.store.GetByID(ctx, id, orgID)
	if err != nil {
		return err
	}
	if appt.Status != repository.StatusScheduled {
		return apperr.Conflict("appointment is not scheduled")
	}
	return s.store.UpdateStatus(ctx, id, orgID, status)
}

// Cancel marks the appointment cancelled; its pending reminders are skipped
// so later job deliveries no-op.
func (s *Service) Cancel(ctx context.Context, id, orgID uuid.UUID) error {
	return s.store.Cancel(ctx, id, orgID)
}

// CreateManualReminder writes a pending manual entry to the reminder ledger
// and enqueues its delivery job. Only scheduled appointments take one.
func (s *Service) CreateManualReminder(ctx context.Context, id, orgID uuid.UUID, sendAt time.Time) (*reminderrepo.Reminder, error) {
	if sendAt.IsZero() {
		return nil, apperr.Validation("sendAt is required")
	}
	appt, err := s.store.GetByID(ctx, id, orgID)
	if err != nil {
		return nil, err
	}
	if appt.Status != repository.StatusScheduled {
		return nil, apperr.Conflict("appointment is not scheduled")
	}

	rem := &reminderrepo.Reminder{
		ID:            uuid.New(),
		OrgID:         orgID,
		AppointmentID: &appt.ID,
		ClientID:      &appt.ClientID,
		Type:          reminderrepo.TypeManual,
		Status:        reminderrepo.StatusPending,
		SendAt:        sendAt.UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.reminders.Create(ctx, rem); err != nil {
		return nil, err
	}

	payload := scheduler.ReminderSendPayload{
		ReminderID:     rem.ID.String(),
		OrganizationID: orgID.String(),
	}
	if err := s.jobs.ScheduleReminder(ctx, payload, rem.SendAt); err != nil {
		s.log.Error("failed to enqueue reminder job",
			"reminderId", rem.ID, "appointmentId", appt.ID, "error", err)
	}
	return rem, nil
}

func validateInterval(startsAt, endsAt time.Time) error {
	if startsAt.IsZero() || endsAt.IsZero() {
		return apperr.Validation("startsAt and endsAt are required")
	}
	if !endsAt.After(startsAt) {
		return apperr.Validation("endsAt must be after startsAt")
	}
	return nil
}
