// Package leads provides the lead funnel bounded context module.
package leads

import (
	"context"
	"time"

	clientsvc "inkflow_backend/internal/clients/service"
	apphttp "inkflow_backend/internal/http"
	identityrepo "inkflow_backend/internal/identity/repository"
	"inkflow_backend/internal/leads/handler"
	"inkflow_backend/internal/leads/ratelimit"
	"inkflow_backend/internal/leads/repository"
	"inkflow_backend/internal/leads/service"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// RateLimitSettings configures the public intake limiter.
type RateLimitSettings struct {
	Limit   int
	Window  time.Duration
	Timeout time.Duration
}

func NewModule(pool *pgxpool.Pool, rdb *redis.Client, rl RateLimitSettings, clients *clientsvc.Service, identityRepo *identityrepo.Repository, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, clients, artistLister{repo: identityRepo}, log)
	limiter := ratelimit.New(rdb, rl.Limit, rl.Window, rl.Timeout, log)
	h := handler.New(svc, repo, limiter, val)

	return &Module{handler: h, service: svc, repo: repo}
}

func (m *Module) Name() string {
	return "leads"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
	m.handler.RegisterPublicRoutes(ctx.Public)
}

// artistLister adapts the identity repository to the lead funnel's
// single-artist auto-assignment lookup.
type artistLister struct {
	repo *identityrepo.Repository
}

func (a artistLister) ListArtistIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	artists, err := a.repo.ListArtists(ctx, orgID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(artists))
	for _, artist := range artists {
		ids = append(ids, artist.ID)
	}
	return ids, nil
}

var _ apphttp.Module = (*Module)(nil)
