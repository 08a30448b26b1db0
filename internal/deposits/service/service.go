// Package service drives the deposit lifecycle: state transitions, checkout
// links and deposit request messages.
package service

import (
	"context"
	"fmt"
	"time"

	apptrepo "inkflow_backend/internal/appointments/repository"
	apptsvc "inkflow_backend/internal/appointments/service"
	clientrepo "inkflow_backend/internal/clients/repository"
	identityrepo "inkflow_backend/internal/identity/repository"
	msgrepo "inkflow_backend/internal/messaging/repository"
	msgsvc "inkflow_backend/internal/messaging/service"
	payclient "inkflow_backend/internal/payments/client"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/template"

	"github.com/google/uuid"
)

// AppointmentStore is the slice of the appointments repository the deposit
// lifecycle needs.
type AppointmentStore interface {
	GetByID(ctx context.Context, id, orgID uuid.UUID) (*apptrepo.Appointment, error)
	SetDepositState(ctx context.Context, id, orgID uuid.UUID, status string, paidAt *time.Time) error
	SetDepositTerms(ctx context.Context, id, orgID uuid.UUID, amountCents int64, status string, dueAt *time.Time) error
	SetDepositLink(ctx context.Context, id, orgID uuid.UUID, link string) error
	FindEarliestUpcomingWithDeposit(ctx context.Context, orgID, clientID uuid.UUID, now time.Time) (*apptrepo.Appointment, error)
	FindEarliestUpcoming(ctx context.Context, orgID, clientID uuid.UUID, now time.Time) (*apptrepo.Appointment, error)
	FindEarliestPast(ctx context.Context, orgID, clientID uuid.UUID, now time.Time) (*apptrepo.Appointment, error)
}

// ClientStore loads the recipient.
type ClientStore interface {
	GetByID(ctx context.Context, id, orgID uuid.UUID) (*clientrepo.Client, error)
}

// OrgDirectory exposes settings and organization currency.
type OrgDirectory interface {
	GetSettings(ctx context.Context, orgID uuid.UUID) (*identityrepo.Settings, error)
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*identityrepo.Organization, error)
}

// CheckoutCreator creates hosted checkout sessions.
type CheckoutCreator interface {
	IsConfigured() bool
	CreateCheckout(ctx context.Context, params payclient.CheckoutParams) (*payclient.Checkout, error)
}

// Outbound routes the deposit request message.
type Outbound interface {
	SendOutbound(ctx context.Context, params msgsvc.SendParams) (*msgrepo.Message, error)
}

type Service struct {
	appointments AppointmentStore
	clients      ClientStore
	orgs         OrgDirectory
	checkout     CheckoutCreator
	outbound     Outbound
	log          *logger.Logger

	now func() time.Time
}

func New(appointments AppointmentStore, clients ClientStore, orgs OrgDirectory, checkout CheckoutCreator, outbound Outbound, log *logger.Logger) *Service {
	return &Service{
		appointments: appointments,
		clients:      clients,
		orgs:         orgs,
		checkout:     checkout,
		outbound:     outbound,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// ValidateTransition checks a deposit state change requested by an operator.
// Allowed: none→pending, pending→{paid,expired}, expired→{paid,pending} and
// the corrective paid→pending.
func ValidateTransition(from, to string) error {
	allowed := map[string][]string{
		apptrepo.DepositNone:    {apptrepo.DepositPending},
		apptrepo.DepositPending: {apptrepo.DepositPaid, apptrepo.DepositExpired},
		apptrepo.DepositExpired: {apptrepo.DepositPaid, apptrepo.DepositPending},
		apptrepo.DepositPaid:    {apptrepo.DepositPending},
	}
	for _, t := range allowed[from] {
		if t == to {
			return nil
		}
	}
	return apperr.Conflict("deposit cannot move from " + from + " to " + to)
}

// UpdateStatus applies an operator-requested deposit transition. Moving to
// paid stamps paid_at; leaving paid clears it so the two never diverge.
func (s *Service) UpdateStatus(ctx context.Context, orgID, appointmentID uuid.UUID, to string) (*apptrepo.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, appointmentID, orgID)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(appt.DepositStatus, to); err != nil {
		return nil, err
	}

	now := s.now()

	if to == apptrepo.DepositPending && appt.DepositAmountCents == 0 {
		fresh, err := s.freshDeposit(ctx, orgID, appt.PriceCents, now)
		if err != nil {
			return nil, err
		}
		if fresh.AmountCents <= 0 {
			return nil, apperr.Validation("deposit amount must be positive")
		}
		if err := s.appointments.SetDepositTerms(ctx, appointmentID, orgID, fresh.AmountCents, apptrepo.DepositPending, fresh.DueAt); err != nil {
			return nil, err
		}
		return s.appointments.GetByID(ctx, appointmentID, orgID)
	}

	var paidAt *time.Time
	if to == apptrepo.DepositPaid {
		paidAt = &now
	}
	if err := s.appointments.SetDepositState(ctx, appointmentID, orgID, to, paidAt); err != nil {
		return nil, err
	}
	return s.appointments.GetByID(ctx, appointmentID, orgID)
}

// CreateCheckout creates a hosted checkout link for the appointment's deposit
// and stores it.
func (s *Service) CreateCheckout(ctx context.Context, orgID, appointmentID uuid.UUID) (string, error) {
	appt, err := s.appointments.GetByID(ctx, appointmentID, orgID)
	if err != nil {
		return "", err
	}
	return s.ensureLink(ctx, appt)
}

func (s *Service) ensureLink(ctx context.Context, appt *apptrepo.Appointment) (string, error) {
	if appt.DepositStatus == apptrepo.DepositPaid {
		return "", apperr.Conflict("deposit already paid")
	}
	if appt.DepositAmountCents <= 0 {
		return "", apperr.Validation("deposit amount must be positive")
	}
	if appt.DepositLink != nil && *appt.DepositLink != "" {
		return *appt.DepositLink, nil
	}
	if s.checkout == nil || !s.checkout.IsConfigured() {
		return "", apperr.NotConfigured("payment provider is not configured")
	}

	org, err := s.orgs.GetOrganization(ctx, appt.OrgID)
	if err != nil {
		return "", err
	}

	checkout, err := s.checkout.CreateCheckout(ctx, payclient.CheckoutParams{
		OrgID:         appt.OrgID.String(),
		AppointmentID: appt.ID.String(),
		AmountCents:   appt.DepositAmountCents,
		Currency:      org.Currency,
		Description:   "Zadatek: " + appt.Title,
	})
	if err != nil {
		return "", apperr.External("checkout creation failed", err)
	}

	if err := s.appointments.SetDepositLink(ctx, appt.ID, appt.OrgID, checkout.URL); err != nil {
		return "", err
	}
	appt.DepositLink = &checkout.URL
	return checkout.URL, nil
}

// SendLinkParams targets a deposit request at an appointment or a client.
type SendLinkParams struct {
	AppointmentID *uuid.UUID
	ClientID      *uuid.UUID
	// Channel may be empty; the router then auto-selects from the client's
	// contact fields.
	Channel  string
	ArtistID *uuid.UUID
}

// SendDepositLink resolves the target appointment, makes sure it carries a
// payable deposit and a checkout link, renders the organization's deposit
// template and routes the message to the client.
//
// Resolution order: explicit appointment id, then the client's earliest
// upcoming appointment with an unpaid deposit, then their earliest upcoming
// appointment with fresh terms from settings, then their earliest past one.
func (s *Service) SendDepositLink(ctx context.Context, orgID uuid.UUID, params SendLinkParams) (*apptrepo.Appointment, error) {
	appt, err := s.resolveTarget(ctx, orgID, params)
	if err != nil {
		return nil, err
	}
	if appt.DepositStatus == apptrepo.DepositPaid {
		return nil, apperr.Conflict("deposit already paid")
	}

	now := s.now()
	if appt.DepositAmountCents <= 0 || appt.DepositStatus == apptrepo.DepositNone {
		fresh, err := s.freshDeposit(ctx, orgID, appt.PriceCents, now)
		if err != nil {
			return nil, err
		}
		amount := appt.DepositAmountCents
		if amount <= 0 {
			amount = fresh.AmountCents
		}
		if amount <= 0 {
			return nil, apperr.Validation("deposit amount must be positive")
		}
		if err := s.appointments.SetDepositTerms(ctx, appt.ID, orgID, amount, apptrepo.DepositPending, fresh.DueAt); err != nil {
			return nil, err
		}
		appt, err = s.appointments.GetByID(ctx, appt.ID, orgID)
		if err != nil {
			return nil, err
		}
	}

	link := ""
	if url, err := s.ensureLink(ctx, appt); err == nil {
		link = url
	} else if !apperr.Is(err, apperr.KindNotConfigured) {
		return nil, err
	}

	client, err := s.clients.GetByID(ctx, appt.ClientID, orgID)
	if err != nil {
		return nil, err
	}

	body, err := s.renderDepositBody(ctx, appt, client, link)
	if err != nil {
		return nil, err
	}

	if _, err := s.outbound.SendOutbound(ctx, msgsvc.SendParams{
		OrgID:    orgID,
		ArtistID: params.ArtistID,
		Client:   client,
		Channel:  params.Channel,
		Subject:  "Prośba o zadatek",
		Body:     body,
	}); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) resolveTarget(ctx context.Context, orgID uuid.UUID, params SendLinkParams) (*apptrepo.Appointment, error) {
	if params.AppointmentID != nil {
		return s.appointments.GetByID(ctx, *params.AppointmentID, orgID)
	}
	if params.ClientID == nil {
		return nil, apperr.Validation("appointmentId or clientId is required")
	}

	now := s.now()
	clientID := *params.ClientID

	appt, err := s.appointments.FindEarliestUpcomingWithDeposit(ctx, orgID, clientID, now)
	if err != nil {
		return nil, err
	}
	if appt == nil {
		appt, err = s.appointments.FindEarliestUpcoming(ctx, orgID, clientID, now)
		if err != nil {
			return nil, err
		}
	}
	if appt == nil {
		appt, err = s.appointments.FindEarliestPast(ctx, orgID, clientID, now)
		if err != nil {
			return nil, err
		}
	}
	if appt == nil {
		return nil, apperr.NotFound("client has no appointment to attach a deposit to")
	}
	return appt, nil
}

func (s *Service) freshDeposit(ctx context.Context, orgID uuid.UUID, priceCents int64, now time.Time) (apptsvc.DepositPlan, error) {
	settings, err := s.orgs.GetSettings(ctx, orgID)
	if err != nil {
		return apptsvc.DepositPlan{}, err
	}
	policy := apptsvc.DepositPolicy{
		Type:    settings.DepositType,
		Value:   settings.DepositValue,
		DueDays: settings.DepositDueDays,
	}
	return apptsvc.ComputeDeposit(policy, priceCents, true, false, nil, now), nil
}

func (s *Service) renderDepositBody(ctx context.Context, appt *apptrepo.Appointment, client *clientrepo.Client, link string) (string, error) {
	settings, err := s.orgs.GetSettings(ctx, appt.OrgID)
	if err != nil {
		return "", err
	}
	tpl := settings.DepositTemplate
	if tpl == "" {
		tpl = "Cześć {{name}}! Prosimy o opłacenie zadatku {{amount}} za wizytę \"{{title}}\" dnia {{date}}. {{link}}"
	}
	vars := map[string]string{
		"name":   client.Name,
		"title":  appt.Title,
		"date":   appt.StartsAt.Format("02.01.2006"),
		"time":   appt.StartsAt.Format("15:04"),
		"amount": formatAmount(appt.DepositAmountCents),
		"link":   link,
	}
	return template.Render(tpl, vars), nil
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d zł", cents/100, cents%100)
}
