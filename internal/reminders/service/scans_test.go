package service

import (
	"context"
	"testing"
	"time"

	apptrepo "inkflow_backend/internal/appointments/repository"
	clientrepo "inkflow_backend/internal/clients/repository"
	identityrepo "inkflow_backend/internal/identity/repository"
	msgrepo "inkflow_backend/internal/messaging/repository"
	"inkflow_backend/internal/reminders/repository"

	"github.com/google/uuid"
)

func TestScanNoReply_WritesLedgerAndNotifiesOwner(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	orgID := uuid.New()
	clientID := uuid.New()
	f.stale.conversations = []msgrepo.StaleConversation{
		{OrgID: orgID, ClientID: clientID, LastInbound: now.Add(-30 * time.Hour)},
	}
	f.withClient(&clientrepo.Client{ID: clientID, OrgID: orgID, Name: "Jan"})

	if err := f.svc.ScanNoReply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.ledger.created) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(f.ledger.created))
	}
	entry := f.ledger.created[0]
	if entry.Type != repository.TypeNoReply || entry.Status != repository.StatusSent {
		t.Fatalf("expected sent no_reply entry, got type %q status %q", entry.Type, entry.Status)
	}
	if len(f.email.sent) != 1 || f.email.sent[0] != "owner@studio.pl" {
		t.Fatalf("expected owner notification, got %v", f.email.sent)
	}
}

func TestScanNoReply_SuppressedByRecentEntry(t *testing.T) {
	f := newFixture(t)
	f.ledger.hasRecent = true
	f.stale.conversations = []msgrepo.StaleConversation{
		{OrgID: uuid.New(), ClientID: uuid.New(), LastInbound: time.Now().Add(-30 * time.Hour)},
	}

	if err := f.svc.ScanNoReply(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.ledger.created) != 0 {
		t.Fatalf("expected no new ledger entries, got %d", len(f.ledger.created))
	}
	if len(f.email.sent) != 0 {
		t.Fatal("expected no notification within the suppression window")
	}
}

func TestScanDepositsDue_RemindsWithinGrace(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	orgID := uuid.New()
	appt := scheduledAppointment(orgID)
	appt.DepositStatus = apptrepo.DepositPending
	appt.DepositAmountCents = 20000
	f.appts.appt = appt

	email := "jan@example.com"
	f.withClient(&clientrepo.Client{ID: appt.ClientID, OrgID: orgID, Name: "Jan", Email: &email})

	f.appts.overdue = []apptrepo.OverdueDeposit{
		{AppointmentID: appt.ID, OrgID: orgID, ClientID: appt.ClientID, DueAt: now.Add(-12 * time.Hour)},
	}

	if err := f.svc.ScanDepositsDue(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.appts.expired) != 0 {
		t.Fatal("expected no expiry within the grace window")
	}
	if len(f.ledger.created) != 1 || f.ledger.created[0].Type != repository.TypeDeposit {
		t.Fatalf("expected a deposit ledger entry, got %+v", f.ledger.created)
	}
	if len(f.out.sent) != 1 {
		t.Fatalf("expected the deposit reminder to be delivered, got %d sends", len(f.out.sent))
	}
}

func TestScanDepositsDue_ExpiresPastGrace(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	apptID := uuid.New()
	f.appts.overdue = []apptrepo.OverdueDeposit{
		{AppointmentID: apptID, OrgID: uuid.New(), ClientID: uuid.New(), DueAt: now.Add(-72 * time.Hour)},
	}

	if err := f.svc.ScanDepositsDue(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expired := f.appts.expired
	if len(expired) != 1 || expired[0] != apptID {
		t.Fatalf("expected deposit %s to expire, got %v", apptID, expired)
	}
	if len(f.ledger.created) != 0 {
		t.Fatal("expected no reminder for an expired deposit")
	}
}

func TestScanDepositsDue_OnePerAppointment(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }
	f.ledger.hasForAppt = true

	f.appts.overdue = []apptrepo.OverdueDeposit{
		{AppointmentID: uuid.New(), OrgID: uuid.New(), ClientID: uuid.New(), DueAt: now.Add(-12 * time.Hour)},
	}

	if err := f.svc.ScanDepositsDue(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.ledger.created) != 0 {
		t.Fatal("expected no second deposit reminder for the same appointment")
	}
}

func TestScanDunning_SuppressesRepeatedSends(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	f.orgs.dunning = []identityrepo.DunningOrganization{
		{OrgID: uuid.New(), Name: "Studio", BillingStatus: "past_due", OwnerEmail: "owner@studio.pl"},
	}

	if err := f.svc.ScanDunning(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.ScanDunning(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.email.sent) != 1 {
		t.Fatalf("expected 1 dunning mail across back-to-back scans, got %d", len(f.email.sent))
	}
}

func TestScanDunning_SkipsWhenEmailUnconfigured(t *testing.T) {
	f := newFixture(t)
	f.email.configured = false
	f.orgs.dunning = []identityrepo.DunningOrganization{
		{OrgID: uuid.New(), Name: "Studio", BillingStatus: "past_due", OwnerEmail: "owner@studio.pl"},
	}

	if err := f.svc.ScanDunning(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.email.sent) != 0 {
		t.Fatal("expected no mail without a configured sender")
	}
}
