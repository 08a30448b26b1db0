// Package service implements lead intake with client deduplication.
package service

import (
	"context"
	"strings"
	"time"

	clientrepo "inkflow_backend/internal/clients/repository"
	clientsvc "inkflow_backend/internal/clients/service"
	"inkflow_backend/internal/leads/repository"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
)

// ClientResolver is the slice of the clients service the lead funnel needs.
type ClientResolver interface {
	ResolveByContact(ctx context.Context, orgID uuid.UUID, q clientsvc.ContactQuery) (*clientrepo.Client, error)
	Create(ctx context.Context, orgID uuid.UUID, params clientsvc.CreateParams) (*clientrepo.Client, error)
	MergeContact(ctx context.Context, client *clientrepo.Client, q clientsvc.ContactQuery) error
}

// LeadStore is the slice of the leads repository the service needs.
type LeadStore interface {
	Create(ctx context.Context, l *repository.Lead) error
	FindOpenByClient(ctx context.Context, orgID, clientID uuid.UUID) (*repository.Lead, error)
	Update(ctx context.Context, l *repository.Lead) error
}

// ArtistLister resolves the studio's artists for single-artist auto-assignment.
type ArtistLister interface {
	ListArtistIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error)
}

type Service struct {
	store   LeadStore
	clients ClientResolver
	artists ArtistLister
	log     *logger.Logger
}

func New(store LeadStore, clients ClientResolver, artists ArtistLister, log *logger.Logger) *Service {
	return &Service{store: store, clients: clients, artists: artists, log: log}
}

// UpsertParams carries a lead intake event from any source (public form,
// social webhook, manual entry).
type UpsertParams struct {
	Name     string
	Email    string
	Phone    string
	IGHandle string
	IGUserID string
	FBUserID string
	Source   string
	Message  string
	// Status, when set, overwrites the open lead's pipeline status.
	Status string
	// ArtistID, when set, is assigned if the lead has no artist yet.
	ArtistID       *uuid.UUID
	MarketingOptIn bool
}

// UpsertResult is the outcome of a lead intake event.
type UpsertResult struct {
	Lead *repository.Lead
	// ExistingClient is true when the contact resolved to a known client
	// rather than creating a new one.
	ExistingClient bool
}

// UpsertLead resolves the contact to a client (matching email, then phone,
// then Instagram handle), reuses the client's open lead when one exists, and
// otherwise creates a new lead. Contact fields only ever fill gaps, never
// overwrite. Guarantees at most one lead per resolved identity per call;
// concurrent duplicate submissions may race and are accepted.
func (s *Service) UpsertLead(ctx context.Context, orgID uuid.UUID, params UpsertParams) (*UpsertResult, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, apperr.Validation("lead name is required")
	}

	query := clientsvc.ContactQuery{
		Email:    params.Email,
		Phone:    params.Phone,
		IGHandle: params.IGHandle,
		IGUserID: params.IGUserID,
		FBUserID: params.FBUserID,
	}

	client, err := s.clients.ResolveByContact(ctx, orgID, query)
	if err != nil {
		return nil, err
	}

	existing := client != nil
	if existing {
		if err := s.clients.MergeContact(ctx, client, query); err != nil {
			return nil, err
		}
	} else {
		client, err = s.clients.Create(ctx, orgID, clientsvc.CreateParams{
			Name:           name,
			Email:          optional(params.Email),
			Phone:          optional(params.Phone),
			IGHandle:       optional(params.IGHandle),
			IGUserID:       optional(params.IGUserID),
			FBUserID:       optional(params.FBUserID),
			MarketingOptIn: params.MarketingOptIn,
		})
		if err != nil {
			return nil, err
		}
	}

	artistID := params.ArtistID
	if artistID == nil {
		artistID, err = s.singleArtist(ctx, orgID)
		if err != nil {
			return nil, err
		}
	}

	if existing {
		lead, err := s.store.FindOpenByClient(ctx, orgID, client.ID)
		if err == nil {
			changed := false
			if lead.Name != name {
				lead.Name = name
				changed = true
			}
			if params.Source != "" && lead.Source != params.Source {
				lead.Source = params.Source
				changed = true
			}
			if params.Status != "" && lead.Status != params.Status {
				lead.Status = params.Status
				changed = true
			}
			if lead.ArtistID == nil && artistID != nil {
				lead.ArtistID = artistID
				changed = true
			}
			if params.Message != "" {
				message := params.Message
				lead.Message = &message
				changed = true
			}
			if changed {
				if err := s.store.Update(ctx, lead); err != nil {
					return nil, err
				}
			}
			return &UpsertResult{Lead: lead, ExistingClient: true}, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
	}

	status := params.Status
	if status == "" {
		status = repository.StatusNew
	}
	source := params.Source
	if source == "" {
		source = "manual"
	}

	lead := &repository.Lead{
		ID:        uuid.New(),
		OrgID:     orgID,
		ArtistID:  artistID,
		ClientID:  &client.ID,
		Name:      name,
		Email:     optional(params.Email),
		Phone:     optional(params.Phone),
		IGHandle:  optional(params.IGHandle),
		Status:    status,
		Source:    source,
		Message:   optional(params.Message),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, lead); err != nil {
		return nil, err
	}

	s.log.Info("lead created", "orgId", orgID, "leadId", lead.ID, "source", source, "existingClient", existing)
	return &UpsertResult{Lead: lead, ExistingClient: existing}, nil
}

// singleArtist returns the only artist of the studio, or nil when the studio
// has zero or multiple artists.
func (s *Service) singleArtist(ctx context.Context, orgID uuid.UUID) (*uuid.UUID, error) {
	ids, err := s.artists.ListArtistIDs(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 1 {
		return &ids[0], nil
	}
	return nil, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
