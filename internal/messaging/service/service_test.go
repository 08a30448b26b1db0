package service

import (
	"context"
	"testing"

	clientrepo "inkflow_backend/internal/clients/repository"
	"inkflow_backend/internal/messaging/repository"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
)

func strptr(s string) *string { return &s }

func TestAutoSelectChannel(t *testing.T) {
	tests := []struct {
		name    string
		client  clientrepo.Client
		want    string
		wantErr bool
	}{
		{"phone wins", clientrepo.Client{Phone: strptr("+48111222333"), Email: strptr("a@b.pl")}, repository.ChannelSMS, false},
		{"email next", clientrepo.Client{Email: strptr("a@b.pl"), IGUserID: strptr("ig1")}, repository.ChannelEmail, false},
		{"instagram next", clientrepo.Client{IGUserID: strptr("ig1"), FBUserID: strptr("fb1")}, repository.ChannelInstagram, false},
		{"facebook last", clientrepo.Client{FBUserID: strptr("fb1")}, repository.ChannelFacebook, false},
		{"empty strings do not count", clientrepo.Client{Phone: strptr(""), Email: strptr("a@b.pl")}, repository.ChannelEmail, false},
		{"unreachable", clientrepo.Client{}, "", true},
	}
	for _, tc := range tests {
		got, err := AutoSelectChannel(&tc.client)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

type fakeStore struct {
	messages []*repository.Message
	inbound  *repository.Message
	outbox   []*repository.OutboxMessage
}

func (f *fakeStore) Create(_ context.Context, m *repository.Message) (bool, error) {
	f.messages = append(f.messages, m)
	return true, nil
}

func (f *fakeStore) LatestInbound(_ context.Context, _, _ uuid.UUID, _ *uuid.UUID) (*repository.Message, error) {
	if f.inbound == nil {
		return nil, apperr.NotFound("no inbound messages")
	}
	return f.inbound, nil
}

func (f *fakeStore) CreateOutbox(_ context.Context, o *repository.OutboxMessage) error {
	f.outbox = append(f.outbox, o)
	return nil
}

type fakeSMS struct {
	configured bool
	sent       []string
}

func (f *fakeSMS) IsConfigured() bool { return f.configured }

func (f *fakeSMS) Send(_ context.Context, phoneNumber, _ string) error {
	f.sent = append(f.sent, phoneNumber)
	return nil
}

type fakeMeta struct {
	configured bool
	externalID string
	sent       []string
}

func (f *fakeMeta) IsConfigured() bool { return f.configured }

func (f *fakeMeta) SendText(_ context.Context, _, recipientID, _ string) (string, error) {
	f.sent = append(f.sent, recipientID)
	return f.externalID, nil
}

type fakeIntegrations struct {
	token string
	err   error
}

func (f *fakeIntegrations) ConnectedPageToken(_ context.Context, _ uuid.UUID, _ *uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

func TestSendOutbound_DeliversAndRecordsMessage(t *testing.T) {
	store := &fakeStore{}
	sms := &fakeSMS{configured: true}
	svc := New(store, nil, sms, nil, nil, logger.New("test"))

	client := &clientrepo.Client{ID: uuid.New(), Phone: strptr("+48111222333")}
	msg, err := svc.SendOutbound(context.Background(), SendParams{
		OrgID:  uuid.New(),
		Client: client,
		Body:   "Do zobaczenia jutro!",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sms.sent) != 1 || sms.sent[0] != "+48111222333" {
		t.Fatalf("expected one sms to the client, got %v", sms.sent)
	}
	if msg.Channel != repository.ChannelSMS || msg.Direction != repository.DirectionOutbound {
		t.Fatalf("unexpected recorded message: channel %q direction %q", msg.Channel, msg.Direction)
	}
	if len(store.messages) != 1 {
		t.Fatalf("expected the message to be recorded, got %d", len(store.messages))
	}
}

func TestSendOutbound_DivertsToOutboxWhenUnconfigured(t *testing.T) {
	store := &fakeStore{}
	svc := New(store, nil, &fakeSMS{configured: false}, nil, nil, logger.New("test"))

	client := &clientrepo.Client{ID: uuid.New(), Phone: strptr("+48111222333")}
	msg, err := svc.SendOutbound(context.Background(), SendParams{
		OrgID:   uuid.New(),
		Client:  client,
		Channel: repository.ChannelSMS,
		Body:    "Do zobaczenia jutro!",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.outbox) != 1 {
		t.Fatalf("expected 1 outbox entry, got %d", len(store.outbox))
	}
	if store.outbox[0].Recipient != "+48111222333" {
		t.Fatalf("unexpected outbox recipient %q", store.outbox[0].Recipient)
	}
	if msg == nil || len(store.messages) != 1 {
		t.Fatal("expected the diverted send to still be recorded as a message")
	}
}

func TestSendOutbound_SocialDivertsWhenIntegrationAbsent(t *testing.T) {
	store := &fakeStore{}
	meta := &fakeMeta{configured: true}
	integrations := &fakeIntegrations{err: apperr.NotConfigured("no connected social integration")}
	svc := New(store, nil, nil, meta, integrations, logger.New("test"))

	client := &clientrepo.Client{ID: uuid.New(), IGUserID: strptr("ig-123")}
	msg, err := svc.SendOutbound(context.Background(), SendParams{
		OrgID:   uuid.New(),
		Client:  client,
		Channel: repository.ChannelInstagram,
		Body:    "Do zobaczenia jutro!",
	})
	if err != nil {
		t.Fatalf("expected divert to outbox, got error: %v", err)
	}

	if len(store.outbox) != 1 {
		t.Fatalf("expected 1 outbox entry, got %d", len(store.outbox))
	}
	if store.outbox[0].Recipient != "ig-123" {
		t.Fatalf("unexpected outbox recipient %q", store.outbox[0].Recipient)
	}
	if len(meta.sent) != 0 {
		t.Fatal("expected no graph send without an integration")
	}
	if msg == nil || len(store.messages) != 1 {
		t.Fatal("expected the diverted send to still be recorded as a message")
	}
}

func TestSendOutbound_SocialRecordsProviderMessageID(t *testing.T) {
	store := &fakeStore{}
	meta := &fakeMeta{configured: true, externalID: "mid.42"}
	integrations := &fakeIntegrations{token: "page-token"}
	svc := New(store, nil, nil, meta, integrations, logger.New("test"))

	client := &clientrepo.Client{ID: uuid.New(), IGUserID: strptr("ig-123")}
	msg, err := svc.SendOutbound(context.Background(), SendParams{
		OrgID:   uuid.New(),
		Client:  client,
		Channel: repository.ChannelInstagram,
		Body:    "Do zobaczenia jutro!",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(meta.sent) != 1 || meta.sent[0] != "ig-123" {
		t.Fatalf("expected one graph send to the client, got %v", meta.sent)
	}
	if msg.ExternalID == nil || *msg.ExternalID != "mid.42" {
		t.Fatalf("expected the provider message id on the record, got %v", msg.ExternalID)
	}
	if len(store.outbox) != 0 {
		t.Fatal("expected no outbox entry for a delivered send")
	}
}

func TestSendOutbound_EmptyBodyRejected(t *testing.T) {
	svc := New(&fakeStore{}, nil, nil, nil, nil, logger.New("test"))
	_, err := svc.SendOutbound(context.Background(), SendParams{
		OrgID:  uuid.New(),
		Client: &clientrepo.Client{ID: uuid.New(), Phone: strptr("+48111222333")},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDetermineReplyChannel(t *testing.T) {
	store := &fakeStore{inbound: &repository.Message{Channel: repository.ChannelInstagram}}
	svc := New(store, nil, nil, nil, nil, logger.New("test"))

	channel, err := svc.DetermineReplyChannel(context.Background(), uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if channel != repository.ChannelInstagram {
		t.Fatalf("expected instagram, got %q", channel)
	}
}
