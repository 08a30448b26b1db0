// Package social provides Meta webhook ingestion and integration management.
package social

import (
	clientrepo "inkflow_backend/internal/clients/repository"
	clientsvc "inkflow_backend/internal/clients/service"
	apphttp "inkflow_backend/internal/http"
	leadsvc "inkflow_backend/internal/leads/service"
	msgrepo "inkflow_backend/internal/messaging/repository"
	"inkflow_backend/internal/social/handler"
	"inkflow_backend/internal/social/repository"
	"inkflow_backend/internal/social/service"
	"inkflow_backend/internal/social/storage"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the configuration slice the social module needs.
type Config interface {
	config.MetaConfig
	config.StorageConfig
}

type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

func NewModule(pool *pgxpool.Pool, cfg Config, messageRepo *msgrepo.Repository, clientRepo *clientrepo.Repository, clients *clientsvc.Service, leads *leadsvc.Service, log *logger.Logger, val *validator.Validator) (*Module, error) {
	repo := repository.New(pool)

	mirror, err := storage.NewMirror(cfg)
	if err != nil {
		return nil, err
	}

	svc := service.New(repo, messageRepo, clientRepo, clients, clientRepo, leads, mirror, log)
	h := handler.New(svc, repo, cfg.GetMetaAppSecret(), cfg.GetMetaVerifyToken(), val, log)

	return &Module{handler: h, service: svc, repo: repo}, nil
}

func (m *Module) Name() string {
	return "social"
}

// Repository exposes the integrations store; the messaging module uses it to
// resolve page tokens for outbound sends.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterWebhookRoutes(ctx.Webhooks)
	m.handler.RegisterRoutes(ctx.Protected.Group("/integrations"))
}

var _ apphttp.Module = (*Module)(nil)
