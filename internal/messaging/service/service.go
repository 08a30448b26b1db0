// Package service implements the outbound channel router.
package service

import (
	"context"
	"time"

	clientrepo "inkflow_backend/internal/clients/repository"
	"inkflow_backend/internal/messaging/repository"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
)

// EmailSender delivers outbound email.
type EmailSender interface {
	IsConfigured() bool
	Send(ctx context.Context, toEmail, subject, body string) error
}

// SMSSender delivers outbound text messages.
type SMSSender interface {
	IsConfigured() bool
	Send(ctx context.Context, phoneNumber, message string) error
}

// MetaSender delivers outbound Instagram/Facebook messages and returns the
// provider message id.
type MetaSender interface {
	IsConfigured() bool
	SendText(ctx context.Context, pageToken, recipientID, text string) (string, error)
}

// IntegrationSource resolves the connected page token for a tenant.
// Implementations return apperr.NotConfigured when no connected integration
// with a page token exists.
type IntegrationSource interface {
	ConnectedPageToken(ctx context.Context, orgID uuid.UUID, artistID *uuid.UUID) (string, error)
}

// Store is the slice of the messaging repository the router needs.
type Store interface {
	Create(ctx context.Context, m *repository.Message) (bool, error)
	LatestInbound(ctx context.Context, orgID, clientID uuid.UUID, artistID *uuid.UUID) (*repository.Message, error)
	CreateOutbox(ctx context.Context, o *repository.OutboxMessage) error
}

type Service struct {
	store        Store
	email        EmailSender
	sms          SMSSender
	meta         MetaSender
	integrations IntegrationSource
	log          *logger.Logger
}

func New(store Store, email EmailSender, sms SMSSender, meta MetaSender, integrations IntegrationSource, log *logger.Logger) *Service {
	return &Service{
		store:        store,
		email:        email,
		sms:          sms,
		meta:         meta,
		integrations: integrations,
		log:          log,
	}
}

// AutoSelectChannel picks the outbound channel from the client's contact
// fields: phone, then email, then Instagram, then Facebook.
func AutoSelectChannel(client *clientrepo.Client) (string, error) {
	switch {
	case client.Phone != nil && *client.Phone != "":
		return repository.ChannelSMS, nil
	case client.Email != nil && *client.Email != "":
		return repository.ChannelEmail, nil
	case client.IGUserID != nil && *client.IGUserID != "":
		return repository.ChannelInstagram, nil
	case client.FBUserID != nil && *client.FBUserID != "":
		return repository.ChannelFacebook, nil
	default:
		return "", apperr.Validation("client has no reachable contact channel")
	}
}

// DetermineReplyChannel returns the channel of the client's most recent
// inbound message. Artists only see conversations attributed to them.
func (s *Service) DetermineReplyChannel(ctx context.Context, orgID, clientID uuid.UUID, artistID *uuid.UUID) (string, error) {
	msg, err := s.store.LatestInbound(ctx, orgID, clientID, artistID)
	if err != nil {
		return "", err
	}
	return msg.Channel, nil
}

// SendParams carries an outbound send request.
type SendParams struct {
	OrgID    uuid.UUID
	ArtistID *uuid.UUID
	Client   *clientrepo.Client
	// Channel may be empty, in which case it is auto-selected from the
	// client's contact fields.
	Channel string
	Subject string
	Body    string
}

// SendOutbound routes a message to the requested channel and records the
// outbound Message. When the transport for the channel is not configured the
// send is diverted to the durable outbox but still recorded and reported as
// successful to the caller.
func (s *Service) SendOutbound(ctx context.Context, params SendParams) (*repository.Message, error) {
	if params.Body == "" {
		return nil, apperr.Validation("message body is required")
	}

	channel := params.Channel
	if channel == "" {
		selected, err := AutoSelectChannel(params.Client)
		if err != nil {
			return nil, err
		}
		channel = selected
	}

	externalID, err := s.deliver(ctx, params, channel)
	if err != nil {
		return nil, err
	}

	msg := &repository.Message{
		ID:         uuid.New(),
		OrgID:      params.OrgID,
		ClientID:   params.Client.ID,
		ArtistID:   params.ArtistID,
		Direction:  repository.DirectionOutbound,
		Channel:    channel,
		Body:       params.Body,
		ExternalID: externalID,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.store.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// deliver pushes the body through the channel transport, or diverts to the
// outbox when the transport is not configured. Returns the provider message
// id for transports that report one.
func (s *Service) deliver(ctx context.Context, params SendParams, channel string) (*string, error) {
	client := params.Client

	switch channel {
	case repository.ChannelEmail:
		if client.Email == nil || *client.Email == "" {
			return nil, apperr.Validation("client has no email address")
		}
		if s.email == nil || !s.email.IsConfigured() {
			return nil, s.divert(ctx, params, channel, *client.Email)
		}
		if err := s.email.Send(ctx, *client.Email, params.Subject, params.Body); err != nil {
			s.log.SendFailure(channel, client.ID.String(), err)
			return nil, apperr.External("email delivery failed", err)
		}
		return nil, nil

	case repository.ChannelSMS:
		if client.Phone == nil || *client.Phone == "" {
			return nil, apperr.Validation("client has no phone number")
		}
		if s.sms == nil || !s.sms.IsConfigured() {
			return nil, s.divert(ctx, params, channel, *client.Phone)
		}
		if err := s.sms.Send(ctx, *client.Phone, params.Body); err != nil {
			s.log.SendFailure(channel, client.ID.String(), err)
			return nil, apperr.External("sms delivery failed", err)
		}
		return nil, nil

	case repository.ChannelInstagram, repository.ChannelFacebook:
		recipientID := ""
		if channel == repository.ChannelInstagram && client.IGUserID != nil {
			recipientID = *client.IGUserID
		}
		if channel == repository.ChannelFacebook && client.FBUserID != nil {
			recipientID = *client.FBUserID
		}
		if recipientID == "" {
			return nil, apperr.Validation("client has no platform user id for " + channel)
		}

		token, err := s.integrations.ConnectedPageToken(ctx, params.OrgID, params.ArtistID)
		if err != nil {
			// No connected integration means sandbox mode, not a failure:
			// the send is diverted like any unconfigured transport.
			if apperr.Is(err, apperr.KindNotConfigured) {
				return nil, s.divert(ctx, params, channel, recipientID)
			}
			return nil, err
		}
		if s.meta == nil || !s.meta.IsConfigured() {
			return nil, s.divert(ctx, params, channel, recipientID)
		}
		externalID, err := s.meta.SendText(ctx, token, recipientID, params.Body)
		if err != nil {
			s.log.SendFailure(channel, client.ID.String(), err)
			return nil, apperr.External("social delivery failed", err)
		}
		if externalID == "" {
			return nil, nil
		}
		return &externalID, nil

	default:
		return nil, apperr.Validation("unsupported channel: " + channel)
	}
}

func (s *Service) divert(ctx context.Context, params SendParams, channel, recipient string) error {
	s.log.Info("transport not configured, diverting to outbox",
		"channel", channel, "orgId", params.OrgID, "clientId", params.Client.ID)
	return s.store.CreateOutbox(ctx, &repository.OutboxMessage{
		ID:        uuid.New(),
		OrgID:     params.OrgID,
		ClientID:  params.Client.ID,
		Channel:   channel,
		Recipient: recipient,
		Body:      params.Body,
		CreatedAt: time.Now().UTC(),
	})
}
