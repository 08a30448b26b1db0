// Package service implements signup, login and studio administration.
package service

import (
	"context"
	"strings"
	"time"

	"inkflow_backend/internal/identity/repository"
	"inkflow_backend/internal/identity/transport"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleOwner     = "owner"
	RoleReception = "reception"
	RoleArtist    = "artist"

	defaultTrialDays = 14
)

type Service struct {
	repo *repository.Repository
	cfg  config.AuthServiceConfig
	log  *logger.Logger
}

func New(repo *repository.Repository, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, log: log}
}

// Repository exposes the underlying repository to sibling modules that need
// settings or billing access (wired in the composition root).
func (s *Service) Repository() *repository.Repository {
	return s.repo
}

// Signup creates a new organization with its owner account and default settings.
func (s *Service) Signup(ctx context.Context, req transport.SignupRequest) (*transport.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("email already registered")
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("failed to hash password")
	}

	now := time.Now().UTC()
	trialEnd := now.AddDate(0, 0, defaultTrialDays)

	timezone := req.Timezone
	if timezone == "" {
		timezone = "Europe/Warsaw"
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "PLN"
	}

	org := &repository.Organization{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(req.StudioName),
		Plan:          "starter",
		BillingStatus: "trialing",
		TrialEndsAt:   &trialEnd,
		Timezone:      timezone,
		Currency:      currency,
		CreatedAt:     now,
	}
	owner := &repository.User{
		ID:           uuid.New(),
		OrgID:        org.ID,
		Email:        email,
		PasswordHash: string(hash),
		Role:         RoleOwner,
		CreatedAt:    now,
	}
	settings := &repository.Settings{
		OrgID:          org.ID,
		DepositType:    "fixed",
		DepositValue:   0,
		DepositDueDays: 3,
	}

	if err := s.repo.CreateOrganizationWithOwner(ctx, org, owner, settings); err != nil {
		return nil, err
	}

	s.log.Info("organization created", "orgId", org.ID, "name", org.Name)
	return s.issueAuthResponse(owner, nil)
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, req transport.LoginRequest) (*transport.AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	var artistID *uuid.UUID
	if user.Role == RoleArtist {
		artist, err := s.repo.GetArtistByUser(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if artist != nil {
			artistID = &artist.ID
		}
	}

	return s.issueAuthResponse(user, artistID)
}

func (s *Service) issueAuthResponse(user *repository.User, artistID *uuid.UUID) (*transport.AuthResponse, error) {
	ttl := s.cfg.GetAccessTokenTTL()
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	expiresAt := time.Now().Add(ttl)

	claims := jwt.MapClaims{
		"sub":    user.ID.String(),
		"org_id": user.OrgID.String(),
		"role":   user.Role,
		"type":   "access",
		"exp":    expiresAt.Unix(),
		"iat":    time.Now().Unix(),
	}
	if artistID != nil {
		claims["artist_id"] = artistID.String()
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err := tokenObj.SignedString([]byte(s.cfg.GetJWTAccessSecret()))
	if err != nil {
		return nil, apperr.Internal("failed to sign token")
	}

	resp := &transport.AuthResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		User: transport.UserResponse{
			ID:    user.ID.String(),
			OrgID: user.OrgID.String(),
			Email: user.Email,
			Role:  user.Role,
		},
	}
	if artistID != nil {
		id := artistID.String()
		resp.User.ArtistID = &id
	}
	return resp, nil
}

// GetOrganization returns the caller's organization.
func (s *Service) GetOrganization(ctx context.Context, orgID uuid.UUID) (*transport.OrganizationResponse, error) {
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return &transport.OrganizationResponse{
		ID:            org.ID.String(),
		Name:          org.Name,
		Plan:          org.Plan,
		BillingStatus: org.BillingStatus,
		TrialEndsAt:   org.TrialEndsAt,
		Timezone:      org.Timezone,
		Currency:      org.Currency,
	}, nil
}

// CreateArtist adds an artist to the studio, optionally with a login account.
func (s *Service) CreateArtist(ctx context.Context, orgID uuid.UUID, req transport.CreateArtistRequest) (*transport.ArtistResponse, error) {
	now := time.Now().UTC()
	artist := &repository.Artist{
		ID:        uuid.New(),
		OrgID:     orgID,
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: now,
	}

	var user *repository.User
	if req.Email != nil && *req.Email != "" {
		if req.Password == nil || *req.Password == "" {
			return nil, apperr.Validation("password is required when creating an artist login")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperr.Internal("failed to hash password")
		}
		user = &repository.User{
			ID:           uuid.New(),
			OrgID:        orgID,
			Email:        strings.ToLower(strings.TrimSpace(*req.Email)),
			PasswordHash: string(hash),
			Role:         RoleArtist,
			CreatedAt:    now,
		}
		artist.UserID = &user.ID
	}

	if err := s.repo.CreateArtist(ctx, artist, user); err != nil {
		return nil, err
	}

	return artistResponse(artist), nil
}

// ListArtists returns the studio's artists.
func (s *Service) ListArtists(ctx context.Context, orgID uuid.UUID) ([]transport.ArtistResponse, error) {
	artists, err := s.repo.ListArtists(ctx, orgID)
	if err != nil {
		return nil, err
	}
	results := make([]transport.ArtistResponse, 0, len(artists))
	for i := range artists {
		results = append(results, *artistResponse(&artists[i]))
	}
	return results, nil
}

// UpdateArtist renames an artist.
func (s *Service) UpdateArtist(ctx context.Context, orgID, artistID uuid.UUID, req transport.UpdateArtistRequest) (*transport.ArtistResponse, error) {
	if req.Name != nil {
		if err := s.repo.UpdateArtist(ctx, artistID, orgID, strings.TrimSpace(*req.Name)); err != nil {
			return nil, err
		}
	}
	artist, err := s.repo.GetArtist(ctx, artistID, orgID)
	if err != nil {
		return nil, err
	}
	return artistResponse(artist), nil
}

// DeleteArtist removes an artist.
func (s *Service) DeleteArtist(ctx context.Context, orgID, artistID uuid.UUID) error {
	return s.repo.DeleteArtist(ctx, artistID, orgID)
}

// GetSettings returns the organization settings.
func (s *Service) GetSettings(ctx context.Context, orgID uuid.UUID) (*transport.SettingsResponse, error) {
	settings, err := s.repo.GetSettings(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return settingsResponse(settings), nil
}

// UpdateSettings applies a partial update to the organization settings.
// A negative deposit due days value is clamped to zero (due immediately).
func (s *Service) UpdateSettings(ctx context.Context, orgID uuid.UUID, req transport.UpdateSettingsRequest) (*transport.SettingsResponse, error) {
	settings, err := s.repo.GetSettings(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if req.DepositType != nil {
		settings.DepositType = *req.DepositType
	}
	if req.DepositValue != nil {
		settings.DepositValue = *req.DepositValue
	}
	if req.DepositDueDays != nil {
		days := *req.DepositDueDays
		if days < 0 {
			days = 0
		}
		settings.DepositDueDays = days
	}
	if req.ReminderTemplate != nil {
		settings.ReminderTemplate = *req.ReminderTemplate
	}
	if req.DepositTemplate != nil {
		settings.DepositTemplate = *req.DepositTemplate
	}
	if req.FollowupTemplate != nil {
		settings.FollowupTemplate = *req.FollowupTemplate
	}
	if settings.DepositType == "percent" && settings.DepositValue > 100 {
		return nil, apperr.Validation("percent deposit value cannot exceed 100")
	}

	if err := s.repo.UpdateSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settingsResponse(settings), nil
}

func artistResponse(a *repository.Artist) *transport.ArtistResponse {
	resp := &transport.ArtistResponse{
		ID:        a.ID.String(),
		Name:      a.Name,
		CreatedAt: a.CreatedAt,
	}
	if a.UserID != nil {
		id := a.UserID.String()
		resp.UserID = &id
	}
	return resp
}

func settingsResponse(s *repository.Settings) *transport.SettingsResponse {
	return &transport.SettingsResponse{
		DepositType:      s.DepositType,
		DepositValue:     s.DepositValue,
		DepositDueDays:   s.DepositDueDays,
		ReminderTemplate: s.ReminderTemplate,
		DepositTemplate:  s.DepositTemplate,
		FollowupTemplate: s.FollowupTemplate,
	}
}
