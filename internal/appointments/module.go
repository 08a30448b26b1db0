// Package appointments provides the booking bounded context module.
package appointments

import (
	"context"

	"inkflow_backend/internal/appointments/handler"
	"inkflow_backend/internal/appointments/repository"
	"inkflow_backend/internal/appointments/service"
	clientrepo "inkflow_backend/internal/clients/repository"
	apphttp "inkflow_backend/internal/http"
	identityrepo "inkflow_backend/internal/identity/repository"
	reminderrepo "inkflow_backend/internal/reminders/repository"
	"inkflow_backend/internal/scheduler"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repository
}

func NewModule(pool *pgxpool.Pool, jobs scheduler.ReminderScheduler, identityRepo *identityrepo.Repository, clientRepo *clientrepo.Repository, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	reminders := reminderrepo.New(pool)
	svc := service.New(repo, reminders, policySource{repo: identityRepo}, jobs, log)
	h := handler.New(svc, repo, reminders, clientRepo, val)

	return &Module{handler: h, service: svc, repo: repo}
}

func (m *Module) Name() string {
	return "appointments"
}

func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) Repository() *repository.Repository {
	return m.repo
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/appointments"))
}

// policySource adapts the identity settings repository to the booking
// service's deposit policy lookup.
type policySource struct {
	repo *identityrepo.Repository
}

func (p policySource) DepositPolicy(ctx context.Context, orgID uuid.UUID) (service.DepositPolicy, error) {
	settings, err := p.repo.GetSettings(ctx, orgID)
	if err != nil {
		return service.DepositPolicy{}, err
	}
	return service.DepositPolicy{
		Type:    settings.DepositType,
		Value:   settings.DepositValue,
		DueDays: settings.DepositDueDays,
	}, nil
}

var _ apphttp.Module = (*Module)(nil)
