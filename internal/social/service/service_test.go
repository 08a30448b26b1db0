package service

import (
	"context"
	"testing"

	clientrepo "inkflow_backend/internal/clients/repository"
	clientsvc "inkflow_backend/internal/clients/service"
	leadsvc "inkflow_backend/internal/leads/service"
	msgrepo "inkflow_backend/internal/messaging/repository"
	"inkflow_backend/internal/social/repository"
	"inkflow_backend/internal/social/transport"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeIntegrations struct {
	byPage map[string]*repository.Integration
	byIG   map[string]*repository.Integration
}

func (f *fakeIntegrations) FindByPageID(_ context.Context, pageID string) (*repository.Integration, error) {
	return f.byPage[pageID], nil
}

func (f *fakeIntegrations) FindByIGBusinessID(_ context.Context, igBusinessID string) (*repository.Integration, error) {
	return f.byIG[igBusinessID], nil
}

type fakeMessages struct {
	existing map[string]bool
	created  []*msgrepo.Message
}

func (f *fakeMessages) Create(_ context.Context, m *msgrepo.Message) (bool, error) {
	if m.ExternalID != nil && f.existing[*m.ExternalID] {
		return false, nil
	}
	f.created = append(f.created, m)
	return true, nil
}

func (f *fakeMessages) ExistsByExternalID(_ context.Context, _ uuid.UUID, externalID string) (bool, error) {
	return f.existing[externalID], nil
}

type fakeClientDirectory struct {
	known   *clientrepo.Client
	created []clientsvc.CreateParams
	assets  []*clientrepo.Asset
}

func (f *fakeClientDirectory) FindByPlatformUserID(_ context.Context, _ uuid.UUID, igUserID, fbUserID string) (*clientrepo.Client, error) {
	if f.known != nil {
		if igUserID != "" && f.known.IGUserID != nil && *f.known.IGUserID == igUserID {
			return f.known, nil
		}
		if fbUserID != "" && f.known.FBUserID != nil && *f.known.FBUserID == fbUserID {
			return f.known, nil
		}
	}
	return nil, apperr.NotFound("client not found")
}

func (f *fakeClientDirectory) Create(_ context.Context, orgID uuid.UUID, params clientsvc.CreateParams) (*clientrepo.Client, error) {
	f.created = append(f.created, params)
	c := &clientrepo.Client{ID: uuid.New(), OrgID: orgID, Name: params.Name}
	c.IGUserID = params.IGUserID
	c.FBUserID = params.FBUserID
	return c, nil
}

func (f *fakeClientDirectory) CreateAsset(_ context.Context, a *clientrepo.Asset) error {
	f.assets = append(f.assets, a)
	return nil
}

type fakeLeads struct {
	upserts []leadsvc.UpsertParams
}

func (f *fakeLeads) UpsertLead(_ context.Context, _ uuid.UUID, params leadsvc.UpsertParams) (*leadsvc.UpsertResult, error) {
	f.upserts = append(f.upserts, params)
	return &leadsvc.UpsertResult{}, nil
}

type ingestFixture struct {
	svc          *Service
	integrations *fakeIntegrations
	messages     *fakeMessages
	clients      *fakeClientDirectory
	leads        *fakeLeads
}

func newIngestFixture() *ingestFixture {
	f := &ingestFixture{
		integrations: &fakeIntegrations{byPage: map[string]*repository.Integration{}, byIG: map[string]*repository.Integration{}},
		messages:     &fakeMessages{existing: map[string]bool{}},
		clients:      &fakeClientDirectory{},
		leads:        &fakeLeads{},
	}
	f.svc = New(f.integrations, f.messages, f.clients, f.clients, f.clients, f.leads, nil, logger.New("test"))
	return f
}

func connectedIntegration(igBusinessID, pageID string) *repository.Integration {
	return &repository.Integration{
		ID:                  uuid.New(),
		OrgID:               uuid.New(),
		ArtistID:            uuid.New(),
		Status:              repository.StatusConnected,
		PageID:              &pageID,
		IGBusinessAccountID: &igBusinessID,
	}
}

func inboundPayload(entryID, senderID, recipientID, mid, text string) *transport.WebhookPayload {
	return &transport.WebhookPayload{
		Object: "instagram",
		Entry: []transport.Entry{
			{
				ID: entryID,
				Messaging: []transport.Messaging{
					{
						Sender:    transport.Party{ID: senderID},
						Recipient: transport.Party{ID: recipientID},
						Message:   &transport.MessagePart{MID: mid, Text: text},
					},
				},
			},
		},
	}
}

func TestProcessWebhook_StoresInstagramMessageAndLead(t *testing.T) {
	f := newIngestFixture()
	integration := connectedIntegration("ig-biz-1", "page-1")
	f.integrations.byIG["ig-biz-1"] = integration

	f.svc.ProcessWebhook(context.Background(), inboundPayload("ig-biz-1", "123456789", "ig-biz-1", "mid.1", "Chcę tatuaż"))

	if len(f.messages.created) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(f.messages.created))
	}
	msg := f.messages.created[0]
	if msg.OrgID != integration.OrgID || msg.Channel != msgrepo.ChannelInstagram || msg.Direction != msgrepo.DirectionInbound {
		t.Fatalf("unexpected message attribution: %+v", msg)
	}
	if msg.ExternalID == nil || *msg.ExternalID != "mid.1" {
		t.Fatal("expected external id to be recorded")
	}

	if len(f.clients.created) != 1 || f.clients.created[0].Name != "Instagram klient 6789" {
		t.Fatalf("expected placeholder client, got %+v", f.clients.created)
	}

	if len(f.leads.upserts) != 1 || f.leads.upserts[0].Source != msgrepo.ChannelInstagram {
		t.Fatalf("expected lead upsert from the conversation, got %+v", f.leads.upserts)
	}
}

func TestProcessWebhook_FacebookPageAttribution(t *testing.T) {
	f := newIngestFixture()
	integration := connectedIntegration("ig-biz-1", "page-1")
	f.integrations.byPage["page-1"] = integration

	f.svc.ProcessWebhook(context.Background(), inboundPayload("page-1", "fbuser-42", "page-1", "mid.9", "Hej"))

	if len(f.messages.created) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(f.messages.created))
	}
	if f.messages.created[0].Channel != msgrepo.ChannelFacebook {
		t.Fatalf("expected facebook channel, got %q", f.messages.created[0].Channel)
	}
	if len(f.clients.created) != 1 || f.clients.created[0].Name != "Facebook klient r-42" {
		t.Fatalf("expected facebook placeholder client, got %+v", f.clients.created)
	}
}

func TestProcessWebhook_DuplicateExternalIDDropped(t *testing.T) {
	f := newIngestFixture()
	f.integrations.byIG["ig-biz-1"] = connectedIntegration("ig-biz-1", "page-1")
	f.messages.existing["mid.1"] = true

	f.svc.ProcessWebhook(context.Background(), inboundPayload("ig-biz-1", "user-1", "ig-biz-1", "mid.1", "ponownie"))

	if len(f.messages.created) != 0 {
		t.Fatalf("expected duplicate to be dropped, got %d messages", len(f.messages.created))
	}
	if len(f.leads.upserts) != 0 {
		t.Fatal("expected no lead upsert for a duplicate")
	}
}

func TestProcessWebhook_UnattributedDropped(t *testing.T) {
	f := newIngestFixture()

	f.svc.ProcessWebhook(context.Background(), inboundPayload("stranger", "user-1", "stranger", "mid.1", "hello"))

	if len(f.messages.created) != 0 || len(f.clients.created) != 0 {
		t.Fatal("expected unattributed event to be dropped entirely")
	}
}

func TestProcessWebhook_ExistingClientReused(t *testing.T) {
	f := newIngestFixture()
	f.integrations.byIG["ig-biz-1"] = connectedIntegration("ig-biz-1", "page-1")

	igID := "user-1"
	f.clients.known = &clientrepo.Client{ID: uuid.New(), Name: "Jan", IGUserID: &igID}

	f.svc.ProcessWebhook(context.Background(), inboundPayload("ig-biz-1", "user-1", "ig-biz-1", "mid.1", "to znowu ja"))

	if len(f.clients.created) != 0 {
		t.Fatal("expected no placeholder client for a known sender")
	}
	if len(f.messages.created) != 1 || f.messages.created[0].ClientID != f.clients.known.ID {
		t.Fatal("expected the message to attach to the known client")
	}
}

func TestProcessWebhook_EmptyEventIgnored(t *testing.T) {
	f := newIngestFixture()
	f.integrations.byIG["ig-biz-1"] = connectedIntegration("ig-biz-1", "page-1")

	f.svc.ProcessWebhook(context.Background(), inboundPayload("ig-biz-1", "user-1", "ig-biz-1", "mid.1", ""))

	if len(f.messages.created) != 0 {
		t.Fatal("expected empty message to be ignored")
	}
}
