// Package messaging provides the conversation and channel-routing module.
package messaging

import (
	clientrepo "inkflow_backend/internal/clients/repository"
	apphttp "inkflow_backend/internal/http"
	"inkflow_backend/internal/messaging/email"
	"inkflow_backend/internal/messaging/handler"
	"inkflow_backend/internal/messaging/meta"
	"inkflow_backend/internal/messaging/repository"
	"inkflow_backend/internal/messaging/service"
	"inkflow_backend/internal/messaging/sms"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

// Config combines the transport configs the module needs.
type Config interface {
	config.EmailConfig
	config.SMSConfig
	config.MetaConfig
}

func NewModule(pool *pgxpool.Pool, cfg Config, clientRepo *clientrepo.Repository, integrations service.IntegrationSource, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(
		repo,
		email.NewSender(cfg),
		sms.NewClient(cfg, log),
		meta.NewClient(cfg, log),
		integrations,
		log,
	)
	h := handler.New(svc, repo, clientRepo, val)

	return &Module{handler: h, service: svc, repo: repo}
}

func (m *Module) Name() string {
	return "messaging"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected)
}

var _ apphttp.Module = (*Module)(nil)
