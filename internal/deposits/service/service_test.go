package service

import (
	"context"
	"strings"
	"testing"
	"time"

	apptrepo "inkflow_backend/internal/appointments/repository"
	clientrepo "inkflow_backend/internal/clients/repository"
	identityrepo "inkflow_backend/internal/identity/repository"
	msgrepo "inkflow_backend/internal/messaging/repository"
	msgsvc "inkflow_backend/internal/messaging/service"
	payclient "inkflow_backend/internal/payments/client"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to string
		ok       bool
	}{
		{apptrepo.DepositNone, apptrepo.DepositPending, true},
		{apptrepo.DepositPending, apptrepo.DepositPaid, true},
		{apptrepo.DepositPending, apptrepo.DepositExpired, true},
		{apptrepo.DepositExpired, apptrepo.DepositPaid, true},
		{apptrepo.DepositExpired, apptrepo.DepositPending, true},
		{apptrepo.DepositPaid, apptrepo.DepositPending, true},

		{apptrepo.DepositNone, apptrepo.DepositPaid, false},
		{apptrepo.DepositNone, apptrepo.DepositExpired, false},
		{apptrepo.DepositPaid, apptrepo.DepositExpired, false},
		{apptrepo.DepositPaid, apptrepo.DepositNone, false},
		{apptrepo.DepositPending, apptrepo.DepositNone, false},
		{apptrepo.DepositExpired, apptrepo.DepositNone, false},
	}
	for _, tc := range tests {
		err := ValidateTransition(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error: %v", tc.from, tc.to, err)
		}
		if !tc.ok && !apperr.Is(err, apperr.KindConflict) {
			t.Errorf("%s -> %s: expected conflict, got %v", tc.from, tc.to, err)
		}
	}
}

type fakeAppointments struct {
	appt *apptrepo.Appointment

	upcomingWithDeposit *apptrepo.Appointment
	upcoming            *apptrepo.Appointment
	past                *apptrepo.Appointment

	stateSet *string
	paidAt   *time.Time
	terms    *struct {
		amount int64
		status string
	}
	link string
}

func (f *fakeAppointments) GetByID(_ context.Context, id, _ uuid.UUID) (*apptrepo.Appointment, error) {
	if f.appt == nil || f.appt.ID != id {
		return nil, apperr.NotFound("appointment not found")
	}
	return f.appt, nil
}

func (f *fakeAppointments) SetDepositState(_ context.Context, _, _ uuid.UUID, status string, paidAt *time.Time) error {
	f.stateSet = &status
	f.paidAt = paidAt
	f.appt.DepositStatus = status
	f.appt.DepositPaidAt = paidAt
	return nil
}

func (f *fakeAppointments) SetDepositTerms(_ context.Context, _, _ uuid.UUID, amountCents int64, status string, dueAt *time.Time) error {
	f.terms = &struct {
		amount int64
		status string
	}{amountCents, status}
	f.appt.DepositAmountCents = amountCents
	f.appt.DepositStatus = status
	f.appt.DepositDueAt = dueAt
	return nil
}

func (f *fakeAppointments) SetDepositLink(_ context.Context, _, _ uuid.UUID, link string) error {
	f.link = link
	f.appt.DepositLink = &link
	return nil
}

func (f *fakeAppointments) FindEarliestUpcomingWithDeposit(_ context.Context, _, _ uuid.UUID, _ time.Time) (*apptrepo.Appointment, error) {
	return f.upcomingWithDeposit, nil
}

func (f *fakeAppointments) FindEarliestUpcoming(_ context.Context, _, _ uuid.UUID, _ time.Time) (*apptrepo.Appointment, error) {
	return f.upcoming, nil
}

func (f *fakeAppointments) FindEarliestPast(_ context.Context, _, _ uuid.UUID, _ time.Time) (*apptrepo.Appointment, error) {
	return f.past, nil
}

type fakeClients struct {
	client *clientrepo.Client
}

func (f *fakeClients) GetByID(_ context.Context, id, _ uuid.UUID) (*clientrepo.Client, error) {
	if f.client == nil || f.client.ID != id {
		return nil, apperr.NotFound("client not found")
	}
	return f.client, nil
}

type fakeOrgs struct {
	settings identityrepo.Settings
	org      identityrepo.Organization
}

func (f *fakeOrgs) GetSettings(_ context.Context, orgID uuid.UUID) (*identityrepo.Settings, error) {
	s := f.settings
	s.OrgID = orgID
	return &s, nil
}

func (f *fakeOrgs) GetOrganization(_ context.Context, _ uuid.UUID) (*identityrepo.Organization, error) {
	o := f.org
	return &o, nil
}

type fakeCheckout struct {
	configured bool
	url        string
	created    []payclient.CheckoutParams
}

func (f *fakeCheckout) IsConfigured() bool { return f.configured }

func (f *fakeCheckout) CreateCheckout(_ context.Context, params payclient.CheckoutParams) (*payclient.Checkout, error) {
	f.created = append(f.created, params)
	return &payclient.Checkout{ID: "chk_1", URL: f.url}, nil
}

type fakeOutbound struct {
	sent []msgsvc.SendParams
}

func (f *fakeOutbound) SendOutbound(_ context.Context, params msgsvc.SendParams) (*msgrepo.Message, error) {
	f.sent = append(f.sent, params)
	return &msgrepo.Message{ID: uuid.New()}, nil
}

func pendingDepositAppointment(orgID uuid.UUID) *apptrepo.Appointment {
	return &apptrepo.Appointment{
		ID:                 uuid.New(),
		OrgID:              orgID,
		ClientID:           uuid.New(),
		ArtistID:           uuid.New(),
		Title:              "Sesja",
		StartsAt:           time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC),
		EndsAt:             time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC),
		Status:             apptrepo.StatusScheduled,
		PriceCents:         100000,
		DepositRequired:    true,
		DepositAmountCents: 20000,
		DepositStatus:      apptrepo.DepositPending,
	}
}

func TestUpdateStatus_PaidStampsPaidAt(t *testing.T) {
	orgID := uuid.New()
	appts := &fakeAppointments{appt: pendingDepositAppointment(orgID)}
	svc := New(appts, &fakeClients{}, &fakeOrgs{}, nil, &fakeOutbound{}, logger.New("test"))

	updated, err := svc.UpdateStatus(context.Background(), orgID, appts.appt.ID, apptrepo.DepositPaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DepositStatus != apptrepo.DepositPaid {
		t.Fatalf("expected status paid, got %q", updated.DepositStatus)
	}
	if appts.paidAt == nil {
		t.Fatal("expected paid_at to be stamped")
	}
}

func TestUpdateStatus_LeavingPaidClearsPaidAt(t *testing.T) {
	orgID := uuid.New()
	appt := pendingDepositAppointment(orgID)
	paid := time.Now().UTC()
	appt.DepositStatus = apptrepo.DepositPaid
	appt.DepositPaidAt = &paid
	appts := &fakeAppointments{appt: appt}
	svc := New(appts, &fakeClients{}, &fakeOrgs{}, nil, &fakeOutbound{}, logger.New("test"))

	updated, err := svc.UpdateStatus(context.Background(), orgID, appt.ID, apptrepo.DepositPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DepositPaidAt != nil {
		t.Fatal("expected paid_at to be cleared")
	}
}

func TestUpdateStatus_PendingWithoutAmountDerivesFreshTerms(t *testing.T) {
	orgID := uuid.New()
	appt := pendingDepositAppointment(orgID)
	appt.DepositStatus = apptrepo.DepositNone
	appt.DepositAmountCents = 0
	appts := &fakeAppointments{appt: appt}
	orgs := &fakeOrgs{settings: identityrepo.Settings{DepositType: "percent", DepositValue: 20, DepositDueDays: 3}}
	svc := New(appts, &fakeClients{}, orgs, nil, &fakeOutbound{}, logger.New("test"))

	updated, err := svc.UpdateStatus(context.Background(), orgID, appt.ID, apptrepo.DepositPending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DepositAmountCents != 20000 {
		t.Fatalf("expected derived amount 20000, got %d", updated.DepositAmountCents)
	}
	if updated.DepositStatus != apptrepo.DepositPending {
		t.Fatalf("expected status pending, got %q", updated.DepositStatus)
	}
}

func TestUpdateStatus_InvalidTransitionRejected(t *testing.T) {
	orgID := uuid.New()
	appt := pendingDepositAppointment(orgID)
	appt.DepositStatus = apptrepo.DepositNone
	appts := &fakeAppointments{appt: appt}
	svc := New(appts, &fakeClients{}, &fakeOrgs{}, nil, &fakeOutbound{}, logger.New("test"))

	_, err := svc.UpdateStatus(context.Background(), orgID, appt.ID, apptrepo.DepositPaid)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateCheckout_PaidDepositConflicts(t *testing.T) {
	orgID := uuid.New()
	appt := pendingDepositAppointment(orgID)
	appt.DepositStatus = apptrepo.DepositPaid
	appts := &fakeAppointments{appt: appt}
	svc := New(appts, &fakeClients{}, &fakeOrgs{}, &fakeCheckout{configured: true}, &fakeOutbound{}, logger.New("test"))

	_, err := svc.CreateCheckout(context.Background(), orgID, appt.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateCheckout_ReusesExistingLink(t *testing.T) {
	orgID := uuid.New()
	appt := pendingDepositAppointment(orgID)
	existing := "https://pay.example/chk_0"
	appt.DepositLink = &existing
	appts := &fakeAppointments{appt: appt}
	checkout := &fakeCheckout{configured: true, url: "https://pay.example/chk_new"}
	svc := New(appts, &fakeClients{}, &fakeOrgs{}, checkout, &fakeOutbound{}, logger.New("test"))

	link, err := svc.CreateCheckout(context.Background(), orgID, appt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if link != existing {
		t.Fatalf("expected existing link to be reused, got %q", link)
	}
	if len(checkout.created) != 0 {
		t.Fatal("expected no new checkout session")
	}
}

func TestCreateCheckout_UnconfiguredProvider(t *testing.T) {
	orgID := uuid.New()
	appts := &fakeAppointments{appt: pendingDepositAppointment(orgID)}
	svc := New(appts, &fakeClients{}, &fakeOrgs{}, (*payclient.Client)(nil), &fakeOutbound{}, logger.New("test"))

	_, err := svc.CreateCheckout(context.Background(), orgID, appts.appt.ID)
	if !apperr.Is(err, apperr.KindNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestSendDepositLink_SendsRenderedTemplate(t *testing.T) {
	orgID := uuid.New()
	appt := pendingDepositAppointment(orgID)
	appts := &fakeAppointments{appt: appt}
	clients := &fakeClients{client: &clientrepo.Client{ID: appt.ClientID, OrgID: orgID, Name: "Jan"}}
	checkout := &fakeCheckout{configured: true, url: "https://pay.example/chk_1"}
	orgs := &fakeOrgs{org: identityrepo.Organization{Currency: "PLN"}}
	out := &fakeOutbound{}
	svc := New(appts, clients, orgs, checkout, out, logger.New("test"))

	_, err := svc.SendDepositLink(context.Background(), orgID, SendLinkParams{AppointmentID: &appt.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.sent) != 1 {
		t.Fatalf("expected 1 outbound send, got %d", len(out.sent))
	}
	body := out.sent[0].Body
	if !strings.Contains(body, "200.00 zł") || !strings.Contains(body, "https://pay.example/chk_1") {
		t.Fatalf("rendered body missing amount or link: %q", body)
	}
	if len(checkout.created) != 1 || checkout.created[0].Currency != "PLN" {
		t.Fatalf("expected checkout in org currency, got %+v", checkout.created)
	}
}

func TestSendDepositLink_UnconfiguredProviderStillSends(t *testing.T) {
	orgID := uuid.New()
	appt := pendingDepositAppointment(orgID)
	appts := &fakeAppointments{appt: appt}
	clients := &fakeClients{client: &clientrepo.Client{ID: appt.ClientID, OrgID: orgID, Name: "Jan"}}
	out := &fakeOutbound{}
	svc := New(appts, clients, &fakeOrgs{}, (*payclient.Client)(nil), out, logger.New("test"))

	_, err := svc.SendDepositLink(context.Background(), orgID, SendLinkParams{AppointmentID: &appt.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.sent) != 1 {
		t.Fatalf("expected the request to go out without a link, got %d sends", len(out.sent))
	}
}

func TestSendDepositLink_PaidDepositFails(t *testing.T) {
	orgID := uuid.New()
	appt := pendingDepositAppointment(orgID)
	paid := time.Now().UTC()
	appt.DepositStatus = apptrepo.DepositPaid
	appt.DepositPaidAt = &paid
	appts := &fakeAppointments{appt: appt}
	clients := &fakeClients{client: &clientrepo.Client{ID: appt.ClientID, OrgID: orgID, Name: "Jan"}}
	checkout := &fakeCheckout{configured: true, url: "https://pay.example/chk_1"}
	out := &fakeOutbound{}
	svc := New(appts, clients, &fakeOrgs{}, checkout, out, logger.New("test"))

	_, err := svc.SendDepositLink(context.Background(), orgID, SendLinkParams{AppointmentID: &appt.ID})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(out.sent) != 0 {
		t.Fatalf("expected no outbound message for a paid deposit, got %d", len(out.sent))
	}
	if len(checkout.created) != 0 {
		t.Fatal("expected no checkout session for a paid deposit")
	}
}

func TestSendDepositLink_ResolvesClientAppointment(t *testing.T) {
	orgID := uuid.New()
	appt := pendingDepositAppointment(orgID)
	appts := &fakeAppointments{appt: appt, upcomingWithDeposit: appt}
	clients := &fakeClients{client: &clientrepo.Client{ID: appt.ClientID, OrgID: orgID, Name: "Jan"}}
	out := &fakeOutbound{}
	svc := New(appts, clients, &fakeOrgs{}, (*payclient.Client)(nil), out, logger.New("test"))

	resolved, err := svc.SendDepositLink(context.Background(), orgID, SendLinkParams{ClientID: &appt.ClientID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.ID != appt.ID {
		t.Fatalf("expected appointment %s, got %s", appt.ID, resolved.ID)
	}
}

func TestSendDepositLink_NoAppointmentFound(t *testing.T) {
	orgID := uuid.New()
	clientID := uuid.New()
	svc := New(&fakeAppointments{}, &fakeClients{}, &fakeOrgs{}, nil, &fakeOutbound{}, logger.New("test"))

	_, err := svc.SendDepositLink(context.Background(), orgID, SendLinkParams{ClientID: &clientID})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
