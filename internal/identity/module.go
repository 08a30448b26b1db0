// Package identity provides the identity bounded context module:
// organizations, users, artists and per-studio settings.
package identity

import (
	apphttp "inkflow_backend/internal/http"
	"inkflow_backend/internal/identity/handler"
	"inkflow_backend/internal/identity/repository"
	"inkflow_backend/internal/identity/service"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, cfg, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

func (m *Module) Name() string {
	return "identity"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) Repository() *repository.Repository {
	return m.service.Repository()
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	auth := ctx.V1.Group("/auth")
	auth.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterAuthRoutes(auth)

	m.handler.RegisterRoutes(ctx.Protected)
}

var _ apphttp.Module = (*Module)(nil)
