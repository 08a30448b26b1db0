// Package service reconciles payment provider webhook events with local state.
package service

import (
	"context"
	"time"

	apptrepo "inkflow_backend/internal/appointments/repository"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Webhook event types emitted by the payment provider.
const (
	EventDepositPaid       = "deposit.paid"
	EventSubscriptionUp    = "subscription.activated"
	EventInvoicePaid       = "invoice.paid"
	EventSubscriptionState = "subscription.status_changed"
)

// AppointmentStore is the slice of the appointments repository reconciliation needs.
type AppointmentStore interface {
	GetByID(ctx context.Context, id, orgID uuid.UUID) (*apptrepo.Appointment, error)
	MarkDepositPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (bool, error)
}

// BillingStore updates organization billing state.
type BillingStore interface {
	UpdateBillingStatus(ctx context.Context, orgID uuid.UUID, status string) error
}

type Service struct {
	appointments AppointmentStore
	billing      BillingStore
	log          *logger.Logger
}

func New(appointments AppointmentStore, billing BillingStore, log *logger.Logger) *Service {
	return &Service{appointments: appointments, billing: billing, log: log}
}

// RecordDepositPaid is the only non-manual path to a paid deposit. The status
// flip and paid_at stamp happen in one statement; a redelivered event finds
// the deposit already paid and no-ops.
func (s *Service) RecordDepositPaid(ctx context.Context, orgID, appointmentID uuid.UUID, paidAt time.Time) error {
	if _, err := s.appointments.GetByID(ctx, appointmentID, orgID); err != nil {
		return err
	}

	updated, err := s.appointments.MarkDepositPaid(ctx, appointmentID, paidAt.UTC())
	if err != nil {
		return err
	}
	if !updated {
		s.log.Info("deposit already paid, ignoring event",
			"appointmentId", appointmentID, "orgId", orgID)
		return nil
	}
	s.log.Info("deposit paid", "appointmentId", appointmentID, "orgId", orgID)
	return nil
}

// ApplyBillingEvent maps subscription lifecycle events onto the organization
// billing status.
func (s *Service) ApplyBillingEvent(ctx context.Context, orgID uuid.UUID, eventType, status string) error {
	switch eventType {
	case EventSubscriptionUp, EventInvoicePaid:
		return s.billing.UpdateBillingStatus(ctx, orgID, "active")
	case EventSubscriptionState:
		switch status {
		case "active", "past_due", "canceled":
			return s.billing.UpdateBillingStatus(ctx, orgID, status)
		default:
			return apperr.Validation("unknown subscription status: " + status)
		}
	default:
		return apperr.Validation("unknown billing event type: " + eventType)
	}
}
