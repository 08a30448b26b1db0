// Package campaigns provides the marketing campaign bounded context module.
package campaigns

import (
	"inkflow_backend/internal/campaigns/handler"
	"inkflow_backend/internal/campaigns/repository"
	"inkflow_backend/internal/campaigns/service"
	clientrepo "inkflow_backend/internal/clients/repository"
	clientsvc "inkflow_backend/internal/clients/service"
	apphttp "inkflow_backend/internal/http"
	identitysvc "inkflow_backend/internal/identity/service"
	msgsvc "inkflow_backend/internal/messaging/service"
	"inkflow_backend/internal/scheduler"
	"inkflow_backend/platform/httpkit"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

func NewModule(pool *pgxpool.Pool, clientRepo *clientrepo.Repository, clients *clientsvc.Service, outbound *msgsvc.Service, enqueuer scheduler.CampaignEnqueuer, baseURL string, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, clientRepo, clients, outbound, enqueuer, baseURL, log)
	h := handler.New(svc, repo, val)

	return &Module{handler: h, service: svc, repo: repo}
}

func (m *Module) Name() string {
	return "campaigns"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/campaigns")
	group.Use(httpkit.RequireRole(identitysvc.RoleOwner, identitysvc.RoleReception))
	m.handler.RegisterRoutes(group)
}

var _ apphttp.Module = (*Module)(nil)
