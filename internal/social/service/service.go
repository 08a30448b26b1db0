// Package service ingests Meta webhook events: tenant attribution, dedup,
// client matching and asset capture.
package service

import (
	"context"
	"fmt"
	"time"

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

// IntegrationFinder resolves which tenant owns a webhook event.
type IntegrationFinder interface {
	FindByPageID(ctx context.Context, pageID string) (*repository.Integration, error)
	FindByIGBusinessID(ctx context.Context, igBusinessID string) (*repository.Integration, error)
}

// MessageStore persists inbound messages with external-id dedup.
type MessageStore interface {
	Create(ctx context.Context, m *msgrepo.Message) (bool, error)
	ExistsByExternalID(ctx context.Context, orgID uuid.UUID, externalID string) (bool, error)
}

// ClientFinder looks up clients by platform user id.
type ClientFinder interface {
	FindByPlatformUserID(ctx context.Context, orgID uuid.UUID, igUserID, fbUserID string) (*clientrepo.Client, error)
}

// ClientCreator creates placeholder clients for first-contact senders.
type ClientCreator interface {
	Create(ctx context.Context, orgID uuid.UUID, params clientsvc.CreateParams) (*clientrepo.Client, error)
}

// AssetStore persists attachment references.
type AssetStore interface {
	CreateAsset(ctx context.Context, a *clientrepo.Asset) error
}

// LeadIntake feeds inbound conversations into the lead funnel.
type LeadIntake interface {
	UpsertLead(ctx context.Context, orgID uuid.UUID, params leadsvc.UpsertParams) (*leadsvc.UpsertResult, error)
}

// AssetMirror copies attachment URLs into durable storage.
type AssetMirror interface {
	IsConfigured() bool
	MirrorURL(ctx context.Context, orgID, clientID uuid.UUID, srcURL string) (string, error)
}

type Service struct {
	integrations  IntegrationFinder
	messages      MessageStore
	clientFinder  ClientFinder
	clientCreator ClientCreator
	assets        AssetStore
	leads         LeadIntake
	mirror        AssetMirror
	log           *logger.Logger
}

func New(integrations IntegrationFinder, messages MessageStore, clientFinder ClientFinder, clientCreator ClientCreator, assets AssetStore, leads LeadIntake, mirror AssetMirror, log *logger.Logger) *Service {
	return &Service{
		integrations:  integrations,
		messages:      messages,
		clientFinder:  clientFinder,
		clientCreator: clientCreator,
		assets:        assets,
		leads:         leads,
		mirror:        mirror,
		log:           log,
	}
}

// ProcessWebhook handles every event in the envelope. Per-event failures are
// logged and never fail the webhook; Meta redelivers the whole envelope on a
// non-200 and the dedup makes redelivery safe anyway.
func (s *Service) ProcessWebhook(ctx context.Context, payload *transport.WebhookPayload) {
	for _, event := range transport.Normalize(payload) {
		outcome, err := s.processEvent(ctx, event)
		if err != nil {
			s.log.Error("webhook event processing failed",
				"externalId", event.ExternalID, "error", err)
			continue
		}
		s.log.WebhookEvent("meta", outcome, "")
	}
}

func (s *Service) processEvent(ctx context.Context, event transport.InboundEvent) (string, error) {
	integration, channel, err := s.attribute(ctx, event)
	if err != nil {
		return "", err
	}
	if integration == nil {
		// Not one of our pages or accounts; drop without error.
		return "unattributed", nil
	}

	if event.Text == "" && len(event.Attachments) == 0 {
		return "empty", nil
	}

	if event.ExternalID != "" {
		exists, err := s.messages.ExistsByExternalID(ctx, integration.OrgID, event.ExternalID)
		if err != nil {
			return "", err
		}
		if exists {
			return "duplicate", nil
		}
	}

	client, err := s.findOrCreateClient(ctx, integration.OrgID, channel, event.SenderID)
	if err != nil {
		return "", err
	}

	artistID := integration.ArtistID
	msg := &msgrepo.Message{
		ID:        uuid.New(),
		OrgID:     integration.OrgID,
		ClientID:  client.ID,
		ArtistID:  &artistID,
		Direction: msgrepo.DirectionInbound,
		Channel:   channel,
		Body:      event.Text,
		CreatedAt: time.Now().UTC(),
	}
	if event.ExternalID != "" {
		externalID := event.ExternalID
		msg.ExternalID = &externalID
	}

	inserted, err := s.messages.Create(ctx, msg)
	if err != nil {
		return "", err
	}
	if !inserted {
		return "duplicate", nil
	}

	s.storeAttachments(ctx, integration.OrgID, client.ID, msg.ID, event.Attachments)

	// Lead creation is best effort: the message is already persisted and a
	// funnel hiccup must not bounce the webhook.
	if _, err := s.leads.UpsertLead(ctx, integration.OrgID, leadsvc.UpsertParams{
		Name:     client.Name,
		IGUserID: deref(client.IGUserID),
		FBUserID: deref(client.FBUserID),
		Source:   channel,
		Message:  event.Text,
		ArtistID: &artistID,
	}); err != nil {
		s.log.Error("lead creation from webhook failed",
			"orgId", integration.OrgID, "clientId", client.ID, "error", err)
	}

	return "stored", nil
}

// attribute resolves the tenant integration for the event. The recipient id
// is tried first as an Instagram business account and then as a page; the
// entry id covers envelopes where the recipient is the end user.
func (s *Service) attribute(ctx context.Context, event transport.InboundEvent) (*repository.Integration, string, error) {
	type lookup struct {
		id      string
		byIG    bool
		channel string
	}
	lookups := []lookup{
		{event.RecipientID, true, msgrepo.ChannelInstagram},
		{event.RecipientID, false, msgrepo.ChannelFacebook},
		{event.EntryID, true, msgrepo.ChannelInstagram},
		{event.EntryID, false, msgrepo.ChannelFacebook},
	}

	for _, l := range lookups {
		if l.id == "" {
			continue
		}
		var (
			in  *repository.Integration
			err error
		)
		if l.byIG {
			in, err = s.integrations.FindByIGBusinessID(ctx, l.id)
		} else {
			in, err = s.integrations.FindByPageID(ctx, l.id)
		}
		if err != nil {
			return nil, "", err
		}
		if in != nil {
			return in, l.channel, nil
		}
	}
	return nil, "", nil
}

func (s *Service) findOrCreateClient(ctx context.Context, orgID uuid.UUID, channel, senderID string) (*clientrepo.Client, error) {
	igID, fbID := "", ""
	if channel == msgrepo.ChannelInstagram {
		igID = senderID
	} else {
		fbID = senderID
	}

	client, err := s.clientFinder.FindByPlatformUserID(ctx, orgID, igID, fbID)
	if err == nil {
		return client, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	params := clientsvc.CreateParams{Name: placeholderName(channel, senderID)}
	if igID != "" {
		params.IGUserID = &igID
	}
	if fbID != "" {
		params.FBUserID = &fbID
	}
	return s.clientCreator.Create(ctx, orgID, params)
}

func (s *Service) storeAttachments(ctx context.Context, orgID, clientID, messageID uuid.UUID, urls []string) {
	for _, url := range urls {
		asset := &clientrepo.Asset{
			ID:        uuid.New(),
			OrgID:     orgID,
			ClientID:  clientID,
			MessageID: &messageID,
			URL:       url,
			CreatedAt: time.Now().UTC(),
		}

		if s.mirror != nil && s.mirror.IsConfigured() {
			objectKey, err := s.mirror.MirrorURL(ctx, orgID, clientID, url)
			if err != nil {
				s.log.Error("attachment mirroring failed", "url", url, "error", err)
			} else {
				asset.ObjectKey = &objectKey
			}
		}

		if err := s.assets.CreateAsset(ctx, asset); err != nil {
			s.log.Error("failed to store attachment", "url", url, "error", err)
		}
	}
}

func placeholderName(channel, senderID string) string {
	last4 := senderID
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}
	if channel == msgrepo.ChannelInstagram {
		return fmt.Sprintf("Instagram klient %s", last4)
	}
	return fmt.Sprintf("Facebook klient %s", last4)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
