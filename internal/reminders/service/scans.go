package service

import (
	"context"
	"fmt"
	"time"

	apptrepo "inkflow_backend/internal/appointments/repository"
	"inkflow_backend/internal/reminders/repository"

	"github.com/google/uuid"
)

// ScanNoReply escalates conversations whose last inbound message is older
// than the cutoff with no outbound reply after it. The ledger entry written
// per escalation doubles as the suppression record, so overlapping scan runs
// converge on one notification per conversation per window.
func (s *Service) ScanNoReply(ctx context.Context) error {
	now := s.now()
	stale, err := s.stale.ListClientsWithStaleInbound(ctx, now.Add(-noReplyAfter))
	if err != nil {
		return err
	}

	for _, conv := range stale {
		recent, err := s.ledger.HasRecent(ctx, conv.OrgID, conv.ClientID, repository.TypeNoReply, now.Add(-noReplySuppression))
		if err != nil {
			return err
		}
		if recent {
			continue
		}

		clientID := conv.ClientID
		sentAt := now
		rem := &repository.Reminder{
			ID:        uuid.New(),
			OrgID:     conv.OrgID,
			ClientID:  &clientID,
			Type:      repository.TypeNoReply,
			Status:    repository.StatusSent,
			SendAt:    now,
			SentAt:    &sentAt,
			CreatedAt: now,
		}
		if err := s.ledger.Create(ctx, rem); err != nil {
			return err
		}

		if err := s.notifyNoReply(ctx, conv.OrgID, conv.ClientID, conv.LastInbound); err != nil {
			s.log.Error("no-reply notification failed",
				"orgId", conv.OrgID, "clientId", conv.ClientID, "error", err)
		}
	}
	return nil
}

func (s *Service) notifyNoReply(ctx context.Context, orgID, clientID uuid.UUID, lastInbound time.Time) error {
	if s.email == nil || !s.email.IsConfigured() {
		return nil
	}
	ownerEmail, err := s.orgs.GetOwnerEmail(ctx, orgID)
	if err != nil {
		return err
	}
	client, err := s.clients.GetByID(ctx, clientID, orgID)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Klient %s czeka na odpowiedź od %s.",
		client.Name, lastInbound.Format("02.01.2006 15:04"))
	return s.email.Send(ctx, ownerEmail, "Klient czeka na odpowiedź", body)
}

// ScanDepositsDue reminds about pending deposits past their due date and
// expires the ones past the grace window. At most one deposit reminder goes
// out per appointment; the per-appointment ledger check makes re-runs no-op.
func (s *Service) ScanDepositsDue(ctx context.Context) error {
	now := s.now()
	overdue, err := s.appointments.ListOverdueDeposits(ctx, now)
	if err != nil {
		return err
	}

	for _, o := range overdue {
		if o.DueAt.Before(now.Add(-depositGrace)) {
			expired, err := s.appointments.ExpireDeposit(ctx, o.AppointmentID)
			if err != nil {
				return err
			}
			if expired {
				s.log.Info("deposit expired", "appointmentId", o.AppointmentID, "orgId", o.OrgID)
			}
			continue
		}

		already, err := s.ledger.HasForAppointment(ctx, o.AppointmentID, repository.TypeDeposit)
		if err != nil {
			return err
		}
		if already {
			continue
		}

		if err := s.sendDepositReminder(ctx, o, now); err != nil {
			s.log.JobError("deposit_reminder", err)
		}
	}
	return nil
}

func (s *Service) sendDepositReminder(ctx context.Context, o apptrepo.OverdueDeposit, now time.Time) error {
	appointmentID := o.AppointmentID
	clientID := o.ClientID
	rem := &repository.Reminder{
		ID:            uuid.New(),
		OrgID:         o.OrgID,
		AppointmentID: &appointmentID,
		ClientID:      &clientID,
		Type:          repository.TypeDeposit,
		Status:        repository.StatusPending,
		SendAt:        now,
		CreatedAt:     now,
	}
	if err := s.ledger.Create(ctx, rem); err != nil {
		return err
	}
	return s.ProcessReminder(ctx, rem.ID, o.OrgID)
}

// ScanDunning mails owners of past-due organizations and of trials about to
// expire. Suppression is per process; the window is generous relative to the
// scan interval.
func (s *Service) ScanDunning(ctx context.Context) error {
	if s.email == nil || !s.email.IsConfigured() {
		return nil
	}

	now := s.now()
	orgs, err := s.orgs.ListDunningOrganizations(ctx, now.Add(trialWarning))
	if err != nil {
		return err
	}

	for _, org := range orgs {
		s.mu.Lock()
		last, seen := s.lastDunning[org.OrgID]
		if seen && now.Sub(last) < dunningSuppression {
			s.mu.Unlock()
			continue
		}
		s.lastDunning[org.OrgID] = now
		s.mu.Unlock()

		body := dunningBody(org.Name, org.BillingStatus, org.TrialEndsAt)
		if err := s.email.Send(ctx, org.OwnerEmail, "Płatność za InkFlow", body); err != nil {
			s.log.SendFailure("email", org.OrgID.String(), err)
		}
	}
	return nil
}

func dunningBody(name, billingStatus string, trialEndsAt *time.Time) string {
	if billingStatus == "past_due" {
		return fmt.Sprintf("Studio %s ma zaległą płatność. Opłać fakturę, aby zachować dostęp.", name)
	}
	if trialEndsAt != nil {
		return fmt.Sprintf("Okres próbny studia %s kończy się %s. Wybierz plan, aby zachować dostęp.",
			name, trialEndsAt.Format("02.01.2006"))
	}
	return fmt.Sprintf("Studio %s wymaga aktualizacji płatności.", name)
}
