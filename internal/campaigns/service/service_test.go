package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"inkflow_backend/internal/campaigns/repository"
	clientrepo "inkflow_backend/internal/clients/repository"
	msgrepo "inkflow_backend/internal/messaging/repository"
	msgsvc "inkflow_backend/internal/messaging/service"
	"inkflow_backend/internal/scheduler"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu       sync.Mutex
	campaign *repository.Campaign
	sends    []*repository.Send
	sentAt   *time.Time
}

func (f *fakeStore) Create(_ context.Context, c *repository.Campaign) error {
	f.campaign = c
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id, _ uuid.UUID) (*repository.Campaign, error) {
	if f.campaign == nil || f.campaign.ID != id {
		return nil, apperr.NotFound("campaign not found")
	}
	return f.campaign, nil
}

func (f *fakeStore) MarkScheduled(_ context.Context, _, _ uuid.UUID, scheduledAt time.Time) error {
	f.campaign.Status = repository.StatusScheduled
	f.campaign.ScheduledAt = &scheduledAt
	return nil
}

func (f *fakeStore) MarkSent(_ context.Context, _ uuid.UUID, sentAt time.Time) (bool, error) {
	if f.sentAt != nil {
		return false, nil
	}
	f.sentAt = &sentAt
	f.campaign.Status = repository.StatusSent
	return true, nil
}

func (f *fakeStore) CreateSend(_ context.Context, s *repository.Send) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, s)
	return nil
}

func (f *fakeStore) sendsByStatus(status string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sends {
		if s.Status == status {
			n++
		}
	}
	return n
}

type fakeRecipients struct {
	clients []clientrepo.Client
}

func (f *fakeRecipients) ListMarketable(_ context.Context, _ uuid.UUID, _ bool) ([]clientrepo.Client, error) {
	return f.clients, nil
}

type fakeTokens struct{}

func (fakeTokens) EnsureUnsubscribeToken(_ context.Context, _, clientID uuid.UUID) (string, error) {
	return "tok-" + clientID.String()[:8], nil
}

type fakeOutbound struct {
	mu      sync.Mutex
	sent    []msgsvc.SendParams
	failFor map[uuid.UUID]bool
}

func (f *fakeOutbound) SendOutbound(_ context.Context, params msgsvc.SendParams) (*msgrepo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[params.Client.ID] {
		return nil, errors.New("delivery failed")
	}
	f.sent = append(f.sent, params)
	return &msgrepo.Message{ID: uuid.New()}, nil
}

type fakeEnqueuer struct {
	enqueued []scheduler.CampaignRunPayload
	at       []time.Time
}

func (f *fakeEnqueuer) EnqueueCampaign(_ context.Context, payload scheduler.CampaignRunPayload, at time.Time) error {
	f.enqueued = append(f.enqueued, payload)
	f.at = append(f.at, at)
	return nil
}

func emailClient(addr string) clientrepo.Client {
	return clientrepo.Client{ID: uuid.New(), Name: "Jan", Email: &addr, MarketingOptIn: true}
}

func newCampaign(orgID uuid.UUID) *repository.Campaign {
	return &repository.Campaign{
		ID:        uuid.New(),
		OrgID:     orgID,
		Channel:   msgrepo.ChannelEmail,
		Body:      "Wolne terminy w kwietniu!",
		OnlyOptIn: true,
		Status:    repository.StatusScheduled,
		CreatedAt: time.Now().UTC(),
	}
}

func TestCreateDraft_RejectsSocialChannels(t *testing.T) {
	svc := New(&fakeStore{}, &fakeRecipients{}, fakeTokens{}, &fakeOutbound{}, &fakeEnqueuer{}, "https://app.example", logger.New("test"))

	_, err := svc.CreateDraft(context.Background(), uuid.New(), CreateParams{Channel: "instagram", Body: "hej"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSchedule_EnqueuesBatchJob(t *testing.T) {
	orgID := uuid.New()
	store := &fakeStore{campaign: newCampaign(orgID)}
	store.campaign.Status = repository.StatusDraft
	enq := &fakeEnqueuer{}
	svc := New(store, &fakeRecipients{}, fakeTokens{}, &fakeOutbound{}, enq, "https://app.example", logger.New("test"))

	runAt := time.Now().Add(2 * time.Hour).UTC()
	if err := svc.Schedule(context.Background(), orgID, store.campaign.ID, &runAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.campaign.Status != repository.StatusScheduled {
		t.Fatalf("expected scheduled status, got %q", store.campaign.Status)
	}
	if len(enq.enqueued) != 1 || enq.enqueued[0].CampaignID != store.campaign.ID.String() {
		t.Fatalf("expected the batch job to be enqueued, got %+v", enq.enqueued)
	}
	if !enq.at[0].Equal(runAt) {
		t.Fatalf("expected enqueue at %v, got %v", runAt, enq.at[0])
	}
}

func TestRunCampaign_RecordsOutcomesAndAppendsUnsubscribe(t *testing.T) {
	orgID := uuid.New()
	store := &fakeStore{campaign: newCampaign(orgID)}
	reachable := emailClient("jan@example.com")
	unreachable := clientrepo.Client{ID: uuid.New(), Name: "Bez kontaktu", MarketingOptIn: true}
	failing := emailClient("zofia@example.com")

	out := &fakeOutbound{failFor: map[uuid.UUID]bool{failing.ID: true}}
	recipients := &fakeRecipients{clients: []clientrepo.Client{reachable, unreachable, failing}}
	svc := New(store, recipients, fakeTokens{}, out, &fakeEnqueuer{}, "https://app.example", logger.New("test"))

	if err := svc.RunCampaign(context.Background(), store.campaign.ID, orgID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := store.sendsByStatus(repository.SendSent); got != 1 {
		t.Fatalf("expected 1 sent outcome, got %d", got)
	}
	if got := store.sendsByStatus(repository.SendSkipped); got != 1 {
		t.Fatalf("expected 1 skipped outcome, got %d", got)
	}
	if got := store.sendsByStatus(repository.SendFailed); got != 1 {
		t.Fatalf("expected 1 failed outcome, got %d", got)
	}

	if len(out.sent) != 1 {
		t.Fatalf("expected 1 delivered message, got %d", len(out.sent))
	}
	if !strings.Contains(out.sent[0].Body, "https://app.example/public/unsubscribe/tok-") {
		t.Fatalf("expected unsubscribe footer, got %q", out.sent[0].Body)
	}

	if store.campaign.Status != repository.StatusSent {
		t.Fatalf("expected campaign closed as sent, got %q", store.campaign.Status)
	}
}

func TestRunCampaign_AlreadySentIsNoOp(t *testing.T) {
	orgID := uuid.New()
	store := &fakeStore{campaign: newCampaign(orgID)}
	store.campaign.Status = repository.StatusSent
	out := &fakeOutbound{}
	recipients := &fakeRecipients{clients: []clientrepo.Client{emailClient("jan@example.com")}}
	svc := New(store, recipients, fakeTokens{}, out, &fakeEnqueuer{}, "https://app.example", logger.New("test"))

	if err := svc.RunCampaign(context.Background(), store.campaign.ID, orgID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.sent) != 0 {
		t.Fatal("expected no resend of a completed campaign")
	}
}

func TestRunCampaign_MissingCampaignIsNoOp(t *testing.T) {
	svc := New(&fakeStore{}, &fakeRecipients{}, fakeTokens{}, &fakeOutbound{}, &fakeEnqueuer{}, "https://app.example", logger.New("test"))

	if err := svc.RunCampaign(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("expected a vanished campaign to no-op, got %v", err)
	}
}
