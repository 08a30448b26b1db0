// Package service implements client resolution and marketing consent.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"inkflow_backend/internal/clients/repository"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/google/uuid"
)

type Service struct {
	repo *repository.Repository
	log  *logger.Logger
}

func New(repo *repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func (s *Service) Repository() *repository.Repository {
	return s.repo
}

// ContactQuery carries the contact fields used to resolve a client.
type ContactQuery struct {
	Email    string
	Phone    string
	IGHandle string
	IGUserID string
	FBUserID string
}

// ResolveByContact finds the client matching any supplied contact field.
// Matching order is deterministic: email, then phone, then Instagram handle,
// then platform user ids. Returns nil when nothing matches.
func (s *Service) ResolveByContact(ctx context.Context, orgID uuid.UUID, q ContactQuery) (*repository.Client, error) {
	if email := strings.TrimSpace(q.Email); email != "" {
		client, err := s.repo.FindByEmail(ctx, orgID, email)
		if err == nil {
			return client, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
	}
	if phone := strings.TrimSpace(q.Phone); phone != "" {
		client, err := s.repo.FindByPhone(ctx, orgID, phone)
		if err == nil {
			return client, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
	}
	if handle := normalizeHandle(q.IGHandle); handle != "" {
		client, err := s.repo.FindByIGHandle(ctx, orgID, handle)
		if err == nil {
			return client, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
	}
	if q.IGUserID != "" || q.FBUserID != "" {
		client, err := s.repo.FindByPlatformUserID(ctx, orgID, q.IGUserID, q.FBUserID)
		if err == nil {
			return client, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// CreateParams carries the fields for a new client record.
type CreateParams struct {
	Name           string
	Email          *string
	Phone          *string
	IGHandle       *string
	IGUserID       *string
	FBUserID       *string
	MarketingOptIn bool
}

// Create inserts a new client record.
func (s *Service) Create(ctx context.Context, orgID uuid.UUID, params CreateParams) (*repository.Client, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, apperr.Validation("client name is required")
	}

	client := &repository.Client{
		ID:             uuid.New(),
		OrgID:          orgID,
		Name:           name,
		Email:          params.Email,
		Phone:          params.Phone,
		IGHandle:       params.IGHandle,
		IGUserID:       params.IGUserID,
		FBUserID:       params.FBUserID,
		MarketingOptIn: params.MarketingOptIn,
		CreatedAt:      time.Now().UTC(),
	}
	if client.IGHandle != nil {
		normalized := normalizeHandle(*client.IGHandle)
		client.IGHandle = &normalized
	}

	if err := s.repo.Create(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

// MergeContact fills missing contact fields on an existing client.
// Existing values are never overwritten.
func (s *Service) MergeContact(ctx context.Context, client *repository.Client, q ContactQuery) error {
	changed := false
	if client.Email == nil && q.Email != "" {
		email := strings.TrimSpace(q.Email)
		client.Email = &email
		changed = true
	}
	if client.Phone == nil && q.Phone != "" {
		phone := strings.TrimSpace(q.Phone)
		client.Phone = &phone
		changed = true
	}
	if client.IGHandle == nil && q.IGHandle != "" {
		handle := normalizeHandle(q.IGHandle)
		client.IGHandle = &handle
		changed = true
	}
	if client.IGUserID == nil && q.IGUserID != "" {
		id := q.IGUserID
		client.IGUserID = &id
		changed = true
	}
	if client.FBUserID == nil && q.FBUserID != "" {
		id := q.FBUserID
		client.FBUserID = &id
		changed = true
	}
	if !changed {
		return nil
	}
	return s.repo.Update(ctx, client)
}

// EnsureUnsubscribeToken lazily assigns an unsubscribe token and returns it.
func (s *Service) EnsureUnsubscribeToken(ctx context.Context, orgID, clientID uuid.UUID) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", apperr.Internal("failed to generate token")
	}
	return s.repo.SetUnsubscribeToken(ctx, clientID, orgID, token)
}

// Unsubscribe marks the client behind the token as unsubscribed.
// The operation is idempotent: a second visit of the same link succeeds.
func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	client, err := s.repo.FindByUnsubscribeToken(ctx, token)
	if err != nil {
		return err
	}
	if client.Unsubscribed {
		return nil
	}
	if err := s.repo.MarkUnsubscribed(ctx, client.ID); err != nil {
		return err
	}
	s.log.Info("client unsubscribed", "orgId", client.OrgID, "clientId", client.ID)
	return nil
}

func normalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(handle)), "@")
}

func newToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
