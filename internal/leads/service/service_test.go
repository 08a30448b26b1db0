package service

import (
	"context"
	"testing"

	clientrepo "inkflow_backend/internal/clients/repository"
	clientsvc "inkflow_backend/internal/clients/service"
	"inkflow_backend/internal/leads/repository"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeClients struct {
	resolved *clientrepo.Client
	created  []clientsvc.CreateParams
	merged   []clientsvc.ContactQuery
}

func (f *fakeClients) ResolveByContact(_ context.Context, _ uuid.UUID, _ clientsvc.ContactQuery) (*clientrepo.Client, error) {
	return f.resolved, nil
}

func (f *fakeClients) Create(_ context.Context, orgID uuid.UUID, params clientsvc.CreateParams) (*clientrepo.Client, error) {
	f.created = append(f.created, params)
	return &clientrepo.Client{ID: uuid.New(), OrgID: orgID, Name: params.Name}, nil
}

func (f *fakeClients) MergeContact(_ context.Context, _ *clientrepo.Client, q clientsvc.ContactQuery) error {
	f.merged = append(f.merged, q)
	return nil
}

type fakeLeadStore struct {
	openLead *repository.Lead
	created  []*repository.Lead
	updated  []*repository.Lead
}

func (f *fakeLeadStore) Create(_ context.Context, l *repository.Lead) error {
	f.created = append(f.created, l)
	return nil
}

func (f *fakeLeadStore) FindOpenByClient(_ context.Context, _, clientID uuid.UUID) (*repository.Lead, error) {
	if f.openLead != nil && f.openLead.ClientID != nil && *f.openLead.ClientID == clientID {
		return f.openLead, nil
	}
	return nil, apperr.NotFound("lead not found")
}

func (f *fakeLeadStore) Update(_ context.Context, l *repository.Lead) error {
	f.updated = append(f.updated, l)
	return nil
}

type fakeArtists struct {
	ids []uuid.UUID
}

func (f *fakeArtists) ListArtistIDs(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	return f.ids, nil
}

func TestUpsertLead_NewContactCreatesClientAndLead(t *testing.T) {
	store := &fakeLeadStore{}
	clients := &fakeClients{}
	svc := New(store, clients, &fakeArtists{}, logger.New("test"))

	result, err := svc.UpsertLead(context.Background(), uuid.New(), UpsertParams{
		Name:   "Jan Kowalski",
		Email:  "jan@example.com",
		Source: "webform",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ExistingClient {
		t.Fatal("expected a fresh client")
	}
	if len(clients.created) != 1 {
		t.Fatalf("expected 1 client created, got %d", len(clients.created))
	}
	if len(store.created) != 1 {
		t.Fatalf("expected 1 lead created, got %d", len(store.created))
	}
	lead := store.created[0]
	if lead.Status != repository.StatusNew || lead.Source != "webform" {
		t.Fatalf("unexpected lead defaults: status %q source %q", lead.Status, lead.Source)
	}
}

func TestUpsertLead_KnownContactReusesOpenLead(t *testing.T) {
	orgID := uuid.New()
	client := &clientrepo.Client{ID: uuid.New(), OrgID: orgID, Name: "Jan"}
	open := &repository.Lead{ID: uuid.New(), OrgID: orgID, ClientID: &client.ID, Name: "Jan", Status: repository.StatusNew}

	store := &fakeLeadStore{openLead: open}
	clients := &fakeClients{resolved: client}
	svc := New(store, clients, &fakeArtists{}, logger.New("test"))

	result, err := svc.UpsertLead(context.Background(), orgID, UpsertParams{
		Name:    "Jan",
		Email:   "jan@example.com",
		Message: "nowa wiadomość",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.ExistingClient {
		t.Fatal("expected the contact to resolve to a known client")
	}
	if result.Lead.ID != open.ID {
		t.Fatal("expected the open lead to be reused")
	}
	if len(store.created) != 0 {
		t.Fatal("expected no duplicate lead")
	}
	if len(store.updated) != 1 {
		t.Fatalf("expected the open lead to be updated, got %d updates", len(store.updated))
	}
	if len(clients.merged) != 1 {
		t.Fatal("expected contact fields to be merged")
	}
}

func TestUpsertLead_OpenLeadRefreshesNameAndSource(t *testing.T) {
	orgID := uuid.New()
	client := &clientrepo.Client{ID: uuid.New(), OrgID: orgID, Name: "Jan"}
	open := &repository.Lead{ID: uuid.New(), OrgID: orgID, ClientID: &client.ID, Name: "jan", Status: repository.StatusNew, Source: "webform"}

	store := &fakeLeadStore{openLead: open}
	svc := New(store, &fakeClients{resolved: client}, &fakeArtists{}, logger.New("test"))

	result, err := svc.UpsertLead(context.Background(), orgID, UpsertParams{
		Name:   "Jan Kowalski",
		Email:  "jan@example.com",
		Source: "instagram",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.updated) != 1 {
		t.Fatalf("expected the open lead to be updated, got %d updates", len(store.updated))
	}
	if result.Lead.Name != "Jan Kowalski" {
		t.Fatalf("expected the name to be refreshed, got %q", result.Lead.Name)
	}
	if result.Lead.Source != "instagram" {
		t.Fatalf("expected the source to be refreshed, got %q", result.Lead.Source)
	}
}

func TestUpsertLead_KnownClientWithoutOpenLeadGetsNewLead(t *testing.T) {
	orgID := uuid.New()
	client := &clientrepo.Client{ID: uuid.New(), OrgID: orgID, Name: "Jan"}

	store := &fakeLeadStore{}
	clients := &fakeClients{resolved: client}
	svc := New(store, clients, &fakeArtists{}, logger.New("test"))

	result, err := svc.UpsertLead(context.Background(), orgID, UpsertParams{Name: "Jan"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.ExistingClient {
		t.Fatal("expected existing client")
	}
	if len(store.created) != 1 {
		t.Fatalf("expected a new lead, got %d", len(store.created))
	}
}

func TestUpsertLead_SingleArtistAutoAssigned(t *testing.T) {
	artistID := uuid.New()
	store := &fakeLeadStore{}
	svc := New(store, &fakeClients{}, &fakeArtists{ids: []uuid.UUID{artistID}}, logger.New("test"))

	_, err := svc.UpsertLead(context.Background(), uuid.New(), UpsertParams{Name: "Jan"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.created[0].ArtistID == nil || *store.created[0].ArtistID != artistID {
		t.Fatal("expected the studio's only artist to be assigned")
	}
}

func TestUpsertLead_MultipleArtistsNotAssigned(t *testing.T) {
	store := &fakeLeadStore{}
	artists := &fakeArtists{ids: []uuid.UUID{uuid.New(), uuid.New()}}
	svc := New(store, &fakeClients{}, artists, logger.New("test"))

	_, err := svc.UpsertLead(context.Background(), uuid.New(), UpsertParams{Name: "Jan"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.created[0].ArtistID != nil {
		t.Fatal("expected no auto-assignment with multiple artists")
	}
}

func TestUpsertLead_BlankNameRejected(t *testing.T) {
	svc := New(&fakeLeadStore{}, &fakeClients{}, &fakeArtists{}, logger.New("test"))

	_, err := svc.UpsertLead(context.Background(), uuid.New(), UpsertParams{Name: "   "})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
