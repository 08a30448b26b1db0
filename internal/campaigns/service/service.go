// Package service runs marketing campaigns: drafting, scheduling and the
// fan-out batch job.
package service

import (
	"context"
	"time"

	"inkflow_backend/internal/campaigns/repository"
	clientrepo "inkflow_backend/internal/clients/repository"
	msgrepo "inkflow_backend/internal/messaging/repository"
	msgsvc "inkflow_backend/internal/messaging/service"
	"inkflow_backend/internal/scheduler"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// sendConcurrency bounds the per-recipient fan-out.
const sendConcurrency = 5

// Store is the slice of the campaigns repository the service needs.
type Store interface {
	Create(ctx context.Context, c *repository.Campaign) error
	GetByID(ctx context.Context, id, orgID uuid.UUID) (*repository.Campaign, error)
	MarkScheduled(ctx context.Context, id, orgID uuid.UUID, scheduledAt time.Time) error
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error)
	CreateSend(ctx context.Context, s *repository.Send) error
}

// Recipients lists the marketable audience.
type Recipients interface {
	ListMarketable(ctx context.Context, orgID uuid.UUID, onlyOptIn bool) ([]clientrepo.Client, error)
}

// TokenSource lazily assigns unsubscribe tokens.
type TokenSource interface {
	EnsureUnsubscribeToken(ctx context.Context, orgID, clientID uuid.UUID) (string, error)
}

// Outbound routes campaign messages through the channel router.
type Outbound interface {
	SendOutbound(ctx context.Context, params msgsvc.SendParams) (*msgrepo.Message, error)
}

type Service struct {
	store      Store
	recipients Recipients
	tokens     TokenSource
	outbound   Outbound
	enqueuer   scheduler.CampaignEnqueuer
	baseURL    string
	log        *logger.Logger
}

func New(store Store, recipients Recipients, tokens TokenSource, outbound Outbound, enqueuer scheduler.CampaignEnqueuer, baseURL string, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		recipients: recipients,
		tokens:     tokens,
		outbound:   outbound,
		enqueuer:   enqueuer,
		baseURL:    baseURL,
		log:        log,
	}
}

// CreateParams drafts a campaign.
type CreateParams struct {
	Channel   string
	Subject   *string
	Body      string
	OnlyOptIn bool
}

// CreateDraft stores a new draft campaign.
func (s *Service) CreateDraft(ctx context.Context, orgID uuid.UUID, params CreateParams) (*repository.Campaign, error) {
	if params.Channel != msgrepo.ChannelEmail && params.Channel != msgrepo.ChannelSMS {
		return nil, apperr.Validation("campaign channel must be email or sms")
	}
	if params.Body == "" {
		return nil, apperr.Validation("campaign body is required")
	}

	campaign := &repository.Campaign{
		ID:        uuid.New(),
		OrgID:     orgID,
		Channel:   params.Channel,
		Subject:   params.Subject,
		Body:      params.Body,
		OnlyOptIn: params.OnlyOptIn,
		Status:    repository.StatusDraft,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

// Schedule moves a draft to scheduled and enqueues the batch job. A nil time
// runs the campaign immediately.
func (s *Service) Schedule(ctx context.Context, orgID, campaignID uuid.UUID, runAt *time.Time) error {
	at := time.Now().UTC()
	if runAt != nil {
		at = runAt.UTC()
	}

	if err := s.store.MarkScheduled(ctx, campaignID, orgID, at); err != nil {
		return err
	}

	payload := scheduler.CampaignRunPayload{
		CampaignID:     campaignID.String(),
		OrganizationID: orgID.String(),
	}
	return s.enqueuer.EnqueueCampaign(ctx, payload, at)
}

// RunCampaign executes the batch: one send attempt and one recorded outcome
// per recipient, failures isolated per recipient. A campaign already marked
// sent no-ops, so queue redelivery does not re-blast the audience.
func (s *Service) RunCampaign(ctx context.Context, campaignID, orgID uuid.UUID) error {
	campaign, err := s.store.GetByID(ctx, campaignID, orgID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if campaign.Status == repository.StatusSent {
		return nil
	}

	audience, err := s.recipients.ListMarketable(ctx, orgID, campaign.OnlyOptIn)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sendConcurrency)
	for i := range audience {
		client := audience[i]
		g.Go(func() error {
			s.sendToRecipient(gctx, campaign, &client)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	closed, err := s.store.MarkSent(ctx, campaignID, time.Now().UTC())
	if err != nil {
		return err
	}
	if closed {
		s.log.Info("campaign sent", "campaignId", campaignID, "orgId", orgID, "recipients", len(audience))
	}
	return nil
}

func (s *Service) sendToRecipient(ctx context.Context, campaign *repository.Campaign, client *clientrepo.Client) {
	outcome := &repository.Send{
		ID:         uuid.New(),
		CampaignID: campaign.ID,
		OrgID:      campaign.OrgID,
		ClientID:   client.ID,
		Channel:    campaign.Channel,
		CreatedAt:  time.Now().UTC(),
	}

	if !reachable(campaign.Channel, client) {
		outcome.Status = repository.SendSkipped
		s.recordSend(ctx, outcome)
		return
	}

	body := campaign.Body
	token, err := s.tokens.EnsureUnsubscribeToken(ctx, campaign.OrgID, client.ID)
	if err != nil {
		s.log.Error("failed to assign unsubscribe token",
			"campaignId", campaign.ID, "clientId", client.ID, "error", err)
	} else {
		body += "\n\nWypisz się: " + s.baseURL + "/public/unsubscribe/" + token
	}

	subject := ""
	if campaign.Subject != nil {
		subject = *campaign.Subject
	}

	_, err = s.outbound.SendOutbound(ctx, msgsvc.SendParams{
		OrgID:   campaign.OrgID,
		Client:  client,
		Channel: campaign.Channel,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		errMsg := err.Error()
		outcome.Status = repository.SendFailed
		outcome.Error = &errMsg
		s.log.SendFailure(campaign.Channel, client.ID.String(), err)
	} else {
		outcome.Status = repository.SendSent
	}
	s.recordSend(ctx, outcome)
}

func (s *Service) recordSend(ctx context.Context, outcome *repository.Send) {
	if err := s.store.CreateSend(ctx, outcome); err != nil {
		s.log.Error("failed to record campaign send",
			"campaignId", outcome.CampaignID, "clientId", outcome.ClientID, "error", err)
	}
}

func reachable(channel string, client *clientrepo.Client) bool {
	switch channel {
	case msgrepo.ChannelEmail:
		return client.Email != nil && *client.Email != ""
	case msgrepo.ChannelSMS:
		return client.Phone != nil && *client.Phone != ""
	default:
		return false
	}
}

var _ scheduler.CampaignRunner = (*Service)(nil)
