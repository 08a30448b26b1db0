// Package clients provides the client bounded context module.
package clients

import (
	"inkflow_backend/internal/clients/handler"
	"inkflow_backend/internal/clients/repository"
	"inkflow_backend/internal/clients/service"
	apphttp "inkflow_backend/internal/http"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

func (m *Module) Name() string {
	return "clients"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) Repository() *repository.Repository {
	return m.service.Repository()
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/clients"))
	m.handler.RegisterPublicRoutes(ctx.Public)
}

var _ apphttp.Module = (*Module)(nil)
