// Package payments provides payment provider integration and webhook
// reconciliation.
package payments

import (
	apptrepo "inkflow_backend/internal/appointments/repository"
	apphttp "inkflow_backend/internal/http"
	identityrepo "inkflow_backend/internal/identity/repository"
	"inkflow_backend/internal/payments/client"
	"inkflow_backend/internal/payments/handler"
	"inkflow_backend/internal/payments/service"
	"inkflow_backend/platform/config"
	"inkflow_backend/platform/logger"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
	client  *client.Client
}

func NewModule(cfg config.PaymentsConfig, appointmentRepo *apptrepo.Repository, identityRepo *identityrepo.Repository, log *logger.Logger) *Module {
	svc := service.New(appointmentRepo, identityRepo, log)
	h := handler.New(svc, cfg.GetPaymentsWebhookSecret(), log)

	return &Module{
		handler: h,
		service: svc,
		client:  client.New(cfg),
	}
}

func (m *Module) Name() string {
	return "payments"
}

func (m *Module) Service() *service.Service {
	return m.service
}

// Client returns the provider client, nil when payments are not configured.
func (m *Module) Client() *client.Client {
	return m.client
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Webhooks)
}

var _ apphttp.Module = (*Module)(nil)
