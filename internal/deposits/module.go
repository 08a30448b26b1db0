// Package deposits provides the deposit lifecycle bounded context module.
package deposits

import (
	apptrepo "inkflow_backend/internal/appointments/repository"
	clientrepo "inkflow_backend/internal/clients/repository"
	"inkflow_backend/internal/deposits/handler"
	"inkflow_backend/internal/deposits/service"
	apphttp "inkflow_backend/internal/http"
	identityrepo "inkflow_backend/internal/identity/repository"
	msgsvc "inkflow_backend/internal/messaging/service"
	payclient "inkflow_backend/internal/payments/client"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(appointmentRepo *apptrepo.Repository, clientRepo *clientrepo.Repository, identityRepo *identityrepo.Repository, checkout *payclient.Client, outbound *msgsvc.Service, log *logger.Logger, val *validator.Validator) *Module {
	svc := service.New(appointmentRepo, clientRepo, identityRepo, checkout, outbound, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

func (m *Module) Name() string {
	return "deposits"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/appointments"), ctx.Protected.Group("/deposits"))
}

var _ apphttp.Module = (*Module)(nil)
