// Package service delivers reminders and runs the periodic escalation scans.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	apptrepo "inkflow_backend/internal/appointments/repository"
	clientrepo "inkflow_backend/internal/clients/repository"
	identityrepo "inkflow_backend/internal/identity/repository"
	msgrepo "inkflow_backend/internal/messaging/repository"
	msgsvc "inkflow_backend/internal/messaging/service"
	"inkflow_backend/internal/reminders/repository"
	"inkflow_backend/internal/scheduler"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/template"

	"github.com/google/uuid"
)

const (
	// noReplyAfter is how long an inbound conversation may sit unanswered
	// before the escalation fires.
	noReplyAfter = 24 * time.Hour
	// noReplySuppression keeps repeated scan runs from re-notifying the same
	// conversation.
	noReplySuppression = 20 * time.Hour
	// depositGrace is how long past the due date a pending deposit survives
	// before it expires.
	depositGrace = 48 * time.Hour
	// trialWarning is how far ahead of trial expiry dunning mail goes out.
	trialWarning = 72 * time.Hour
	// dunningSuppression spaces repeated dunning mails per organization.
	dunningSuppression = 24 * time.Hour
)

const (
	defaultReminderTemplate = "Cześć {{name}}! Przypominamy o wizycie \"{{title}}\" dnia {{date}} o {{time}}."
	defaultDepositTemplate  = "Cześć {{name}}! Prosimy o opłacenie zadatku {{amount}} za wizytę \"{{title}}\" dnia {{date}}. {{link}}"
	defaultFollowupTemplate = "Klient {{name}} czeka na odpowiedź od {{date}}."
)

// Ledger is the slice of the reminders repository the service needs.
type Ledger interface {
	GetByID(ctx context.Context, id, orgID uuid.UUID) (*repository.Reminder, error)
	Create(ctx context.Context, rem *repository.Reminder) error
	ClaimForSend(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSkipped(ctx context.Context, id uuid.UUID) (bool, error)
	Release(ctx context.Context, id uuid.UUID) error
	HasRecent(ctx context.Context, orgID, clientID uuid.UUID, reminderType string, since time.Time) (bool, error)
	HasForAppointment(ctx context.Context, appointmentID uuid.UUID, reminderType string) (bool, error)
}

// AppointmentStore is the slice of the appointments repository the service needs.
type AppointmentStore interface {
	GetByID(ctx context.Context, id, orgID uuid.UUID) (*apptrepo.Appointment, error)
	ListOverdueDeposits(ctx context.Context, cutoff time.Time) ([]apptrepo.OverdueDeposit, error)
	ExpireDeposit(ctx context.Context, id uuid.UUID) (bool, error)
}

// ClientStore loads clients for rendering and routing.
type ClientStore interface {
	GetByID(ctx context.Context, id, orgID uuid.UUID) (*clientrepo.Client, error)
}

// Outbound routes rendered reminders through the channel router.
type Outbound interface {
	SendOutbound(ctx context.Context, params msgsvc.SendParams) (*msgrepo.Message, error)
}

// StaleSource finds conversations awaiting a reply.
type StaleSource interface {
	ListClientsWithStaleInbound(ctx context.Context, cutoff time.Time) ([]msgrepo.StaleConversation, error)
}

// OrgDirectory exposes organization settings and billing state.
type OrgDirectory interface {
	GetSettings(ctx context.Context, orgID uuid.UUID) (*identityrepo.Settings, error)
	GetOwnerEmail(ctx context.Context, orgID uuid.UUID) (string, error)
	ListDunningOrganizations(ctx context.Context, trialCutoff time.Time) ([]identityrepo.DunningOrganization, error)
}

// EmailSender notifies staff directly, outside the client channel router.
type EmailSender interface {
	IsConfigured() bool
	Send(ctx context.Context, toEmail, subject, body string) error
}

type Service struct {
	ledger       Ledger
	appointments AppointmentStore
	clients      ClientStore
	outbound     Outbound
	stale        StaleSource
	orgs         OrgDirectory
	email        EmailSender
	log          *logger.Logger

	// lastDunning tracks per-org dunning sends within this process. The scan
	// interval is much shorter than the suppression window.
	mu          sync.Mutex
	lastDunning map[uuid.UUID]time.Time

	now func() time.Time
}

func New(ledger Ledger, appointments AppointmentStore, clients ClientStore, outbound Outbound, stale StaleSource, orgs OrgDirectory, email EmailSender, log *logger.Logger) *Service {
	return &Service{
		ledger:       ledger,
		appointments: appointments,
		clients:      clients,
		outbound:     outbound,
		stale:        stale,
		orgs:         orgs,
		email:        email,
		log:          log,
		lastDunning:  make(map[uuid.UUID]time.Time),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ProcessReminder delivers one reminder. The ledger claim makes redelivery a
// no-op: only the call that flips pending to sent proceeds to the transport,
// and a transport failure releases the claim so the queue retry runs again.
func (s *Service) ProcessReminder(ctx context.Context, reminderID, orgID uuid.UUID) error {
	rem, err := s.ledger.GetByID(ctx, reminderID, orgID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if rem.Status != repository.StatusPending {
		return nil
	}

	var appt *apptrepo.Appointment
	if rem.AppointmentID != nil {
		appt, err = s.appointments.GetByID(ctx, *rem.AppointmentID, orgID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				_, err := s.ledger.MarkSkipped(ctx, rem.ID)
				return err
			}
			return err
		}
		if appt.Status != apptrepo.StatusScheduled {
			_, err := s.ledger.MarkSkipped(ctx, rem.ID)
			return err
		}
		if rem.Type == repository.TypeDeposit && appt.DepositStatus == apptrepo.DepositPaid {
			_, err := s.ledger.MarkSkipped(ctx, rem.ID)
			return err
		}
	}

	clientID := rem.ClientID
	if clientID == nil && appt != nil {
		clientID = &appt.ClientID
	}
	if clientID == nil {
		_, err := s.ledger.MarkSkipped(ctx, rem.ID)
		return err
	}
	client, err := s.clients.GetByID(ctx, *clientID, orgID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			_, err := s.ledger.MarkSkipped(ctx, rem.ID)
			return err
		}
		return err
	}

	body, err := s.renderBody(ctx, rem, appt, client)
	if err != nil {
		return err
	}

	claimed, err := s.ledger.ClaimForSend(ctx, rem.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	_, err = s.outbound.SendOutbound(ctx, msgsvc.SendParams{
		OrgID:   orgID,
		Client:  client,
		Subject: "Przypomnienie o wizycie",
		Body:    body,
	})
	if err != nil {
		if relErr := s.ledger.Release(ctx, rem.ID); relErr != nil {
			s.log.Error("failed to release reminder after send failure",
				"reminderId", rem.ID, "error", relErr)
		}
		return err
	}
	return nil
}

func (s *Service) renderBody(ctx context.Context, rem *repository.Reminder, appt *apptrepo.Appointment, client *clientrepo.Client) (string, error) {
	settings, err := s.orgs.GetSettings(ctx, rem.OrgID)
	if err != nil {
		return "", err
	}

	vars := map[string]string{"name": client.Name}
	if appt != nil {
		vars["title"] = appt.Title
		vars["date"] = appt.StartsAt.Format("02.01.2006")
		vars["time"] = appt.StartsAt.Format("15:04")
		vars["amount"] = formatAmount(appt.DepositAmountCents)
		if appt.DepositLink != nil {
			vars["link"] = *appt.DepositLink
		}
	}

	tpl := settings.ReminderTemplate
	switch rem.Type {
	case repository.TypeDeposit:
		tpl = settings.DepositTemplate
		if tpl == "" {
			tpl = defaultDepositTemplate
		}
	case repository.TypeNoReply:
		tpl = settings.FollowupTemplate
		if tpl == "" {
			tpl = defaultFollowupTemplate
		}
	default:
		if tpl == "" {
			tpl = defaultReminderTemplate
		}
	}
	return template.Render(tpl, vars), nil
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d zł", cents/100, cents%100)
}

var (
	_ scheduler.ReminderProcessor = (*Service)(nil)
	_ scheduler.Scanner           = (*Service)(nil)
)
