package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"inkflow_backend/internal/appointments/repository"
	reminderrepo "inkflow_backend/internal/reminders/repository"
	"inkflow_backend/internal/scheduler"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	appt  *repository.Appointment
	seeds []repository.ReminderSeed

	rescheduled bool
	status      string
	cancelled   bool

	createErr error
}

func (f *fakeStore) CreateScheduled(_ context.Context, appt *repository.Appointment, seeds []repository.ReminderSeed) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.appt = appt
	f.seeds = seeds
	return nil
}

func (f *fakeStore) Reschedule(_ context.Context, appt *repository.Appointment) error {
	f.rescheduled = true
	f.appt = appt
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id, _ uuid.UUID) (*repository.Appointment, error) {
	if f.appt == nil || f.appt.ID != id {
		return nil, apperr.NotFound("appointment not found")
	}
	return f.appt, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, _, _ uuid.UUID, status string) error {
	f.status = status
	f.appt.Status = status
	return nil
}

func (f *fakeStore) Cancel(_ context.Context, _, _ uuid.UUID) error {
	f.cancelled = true
	return nil
}

type fakeReminders struct {
	created []*reminderrepo.Reminder
}

func (f *fakeReminders) Create(_ context.Context, rem *reminderrepo.Reminder) error {
	f.created = append(f.created, rem)
	return nil
}

type fakePolicy struct {
	policy DepositPolicy
}

func (f *fakePolicy) DepositPolicy(_ context.Context, _ uuid.UUID) (DepositPolicy, error) {
	return f.policy, nil
}

type fakeJobs struct {
	scheduled []scheduler.ReminderSendPayload
	at        []time.Time
	err       error
}

func (f *fakeJobs) ScheduleReminder(_ context.Context, payload scheduler.ReminderSendPayload, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, payload)
	f.at = append(f.at, at)
	return nil
}

func bookingParams() CreateParams {
	return CreateParams{
		ClientID:   uuid.New(),
		ArtistID:   uuid.New(),
		Title:      "Sesja",
		StartsAt:   time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		EndsAt:     time.Date(2025, 5, 1, 14, 0, 0, 0, time.UTC),
		PriceCents: 100000,
	}
}

func TestCreate_BooksWithDepositAndReminderSeeds(t *testing.T) {
	store := &fakeStore{}
	jobs := &fakeJobs{}
	policy := &fakePolicy{policy: DepositPolicy{Type: DepositTypePercent, Value: 20, DueDays: 3}}
	svc := New(store, &fakeReminders{}, policy, jobs, logger.New("test"))

	appt, err := svc.Create(context.Background(), uuid.New(), bookingParams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if appt.Status != repository.StatusScheduled {
		t.Fatalf("expected scheduled, got %q", appt.Status)
	}
	if appt.DepositAmountCents != 20000 || appt.DepositStatus != repository.DepositPending {
		t.Fatalf("unexpected deposit terms: %d %q", appt.DepositAmountCents, appt.DepositStatus)
	}

	if len(store.seeds) != 2 {
		t.Fatalf("expected 2 reminder seeds, got %d", len(store.seeds))
	}
	if store.seeds[0].Type != reminderrepo.TypeAppointment48h || store.seeds[1].Type != reminderrepo.TypeAppointment24h {
		t.Fatalf("unexpected seed types: %+v", store.seeds)
	}
	if !store.seeds[0].SendAt.Equal(appt.StartsAt.Add(-48 * time.Hour)) {
		t.Fatalf("unexpected 48h seed time: %v", store.seeds[0].SendAt)
	}

	if len(jobs.scheduled) != 2 {
		t.Fatalf("expected 2 jobs enqueued, got %d", len(jobs.scheduled))
	}
}

func TestCreate_UpfrontPaidDeposit(t *testing.T) {
	store := &fakeStore{}
	policy := &fakePolicy{policy: DepositPolicy{Type: DepositTypePercent, Value: 20, DueDays: 3}}
	svc := New(store, &fakeReminders{}, policy, &fakeJobs{}, logger.New("test"))

	params := bookingParams()
	params.DepositRequired = true
	params.DepositPaid = true
	appt, err := svc.Create(context.Background(), uuid.New(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if appt.DepositStatus != repository.DepositPaid {
		t.Fatalf("expected deposit paid, got %q", appt.DepositStatus)
	}
	if appt.DepositPaidAt == nil {
		t.Fatal("expected paid_at to be stamped")
	}
	if appt.DepositDueAt != nil {
		t.Fatalf("expected no due date, got %v", appt.DepositDueAt)
	}
}

func TestCreate_QueueFailureDoesNotUndoBooking(t *testing.T) {
	store := &fakeStore{}
	jobs := &fakeJobs{err: errors.New("redis down")}
	svc := New(store, &fakeReminders{}, &fakePolicy{}, jobs, logger.New("test"))

	appt, err := svc.Create(context.Background(), uuid.New(), bookingParams())
	if err != nil {
		t.Fatalf("expected the booking to survive a queue failure, got %v", err)
	}
	if store.appt == nil || store.appt.ID != appt.ID {
		t.Fatal("expected the appointment to be persisted")
	}
}

func TestCreate_InvalidIntervalRejected(t *testing.T) {
	svc := New(&fakeStore{}, &fakeReminders{}, &fakePolicy{}, &fakeJobs{}, logger.New("test"))

	params := bookingParams()
	params.EndsAt = params.StartsAt
	if _, err := svc.Create(context.Background(), uuid.New(), params); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	params = bookingParams()
	params.PriceCents = -1
	if _, err := svc.Create(context.Background(), uuid.New(), params); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for negative price, got %v", err)
	}
}

func TestCreate_ConflictPropagates(t *testing.T) {
	store := &fakeStore{createErr: apperr.Conflict("artist already booked in this time slot")}
	svc := New(store, &fakeReminders{}, &fakePolicy{}, &fakeJobs{}, logger.New("test"))

	_, err := svc.Create(context.Background(), uuid.New(), bookingParams())
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdate_OnlyScheduledCanMove(t *testing.T) {
	store := &fakeStore{appt: &repository.Appointment{
		ID:       uuid.New(),
		Status:   repository.StatusCompleted,
		StartsAt: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}}
	svc := New(store, &fakeReminders{}, &fakePolicy{}, &fakeJobs{}, logger.New("test"))

	newStart := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	_, err := svc.Update(context.Background(), store.appt.ID, uuid.New(), UpdateParams{StartsAt: &newStart})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if store.rescheduled {
		t.Fatal("expected no reschedule of a completed appointment")
	}
}

func TestUpdate_ReschedulesTimeSlot(t *testing.T) {
	store := &fakeStore{appt: &repository.Appointment{
		ID:       uuid.New(),
		Status:   repository.StatusScheduled,
		StartsAt: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}}
	svc := New(store, &fakeReminders{}, &fakePolicy{}, &fakeJobs{}, logger.New("test"))

	newStart := time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC)
	newEnd := time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC)
	appt, err := svc.Update(context.Background(), store.appt.ID, uuid.New(), UpdateParams{StartsAt: &newStart, EndsAt: &newEnd})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.rescheduled {
		t.Fatal("expected the store reschedule path")
	}
	if !appt.StartsAt.Equal(newStart) || !appt.EndsAt.Equal(newEnd) {
		t.Fatalf("unexpected slot: %v - %v", appt.StartsAt, appt.EndsAt)
	}
}

func TestCreateManualReminder_WritesLedgerAndEnqueues(t *testing.T) {
	store := &fakeStore{appt: &repository.Appointment{
		ID:       uuid.New(),
		ClientID: uuid.New(),
		Status:   repository.StatusScheduled,
	}}
	reminders := &fakeReminders{}
	jobs := &fakeJobs{}
	svc := New(store, reminders, &fakePolicy{}, jobs, logger.New("test"))

	sendAt := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	rem, err := svc.CreateManualReminder(context.Background(), store.appt.ID, uuid.New(), sendAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(reminders.created) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(reminders.created))
	}
	created := reminders.created[0]
	if created.Type != reminderrepo.TypeManual || created.Status != reminderrepo.StatusPending {
		t.Fatalf("unexpected ledger entry: type %q status %q", created.Type, created.Status)
	}
	if created.ClientID == nil || *created.ClientID != store.appt.ClientID {
		t.Fatal("expected the reminder to carry the appointment's client")
	}
	if len(jobs.scheduled) != 1 || jobs.scheduled[0].ReminderID != rem.ID.String() {
		t.Fatalf("expected the delivery job enqueued, got %+v", jobs.scheduled)
	}
	if !jobs.at[0].Equal(sendAt) {
		t.Fatalf("expected delivery at %v, got %v", sendAt, jobs.at[0])
	}
}

func TestCreateManualReminder_NonScheduledRejected(t *testing.T) {
	store := &fakeStore{appt: &repository.Appointment{
		ID:     uuid.New(),
		Status: repository.StatusCancelled,
	}}
	reminders := &fakeReminders{}
	svc := New(store, reminders, &fakePolicy{}, &fakeJobs{}, logger.New("test"))

	_, err := svc.CreateManualReminder(context.Background(), store.appt.ID, uuid.New(), time.Now().Add(time.Hour))
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(reminders.created) != 0 {
		t.Fatal("expected no ledger entry for a cancelled appointment")
	}
}

func TestComplete_ValidatesStatus(t *testing.T) {
	store := &fakeStore{appt: &repository.Appointment{ID: uuid.New(), Status: repository.StatusScheduled}}
	svc := New(store, &fakeReminders{}, &fakePolicy{}, &fakeJobs{}, logger.New("test"))

	if err := svc.Complete(context.Background(), store.appt.ID, uuid.New(), "done"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if err := svc.Complete(context.Background(), store.appt.ID, uuid.New(), repository.StatusNoShow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.status != repository.StatusNoShow {
		t.Fatalf("expected no_show, got %q", store.status)
	}
}
