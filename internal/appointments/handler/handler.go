package handler

import (
	"net/http"
	"strconv"
	"time"

	"inkflow_backend/internal/appointments/repository"
	"inkflow_backend/internal/appointments/service"
	"inkflow_backend/internal/appointments/transport"
	clientrepo "inkflow_backend/internal/clients/repository"
	identitysvc "inkflow_backend/internal/identity/service"
	reminderrepo "inkflow_backend/internal/reminders/repository"
	"inkflow_backend/platform/httpkit"
	"inkflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for appointments.
type Handler struct {
	svc       *service.Service
	repo      *repository.Repository
	reminders *reminderrepo.Repository
	clients   *clientrepo.Repository
	val       *validator.Validator
}

func New(svc *service.Service, repo *repository.Repository, reminders *reminderrepo.Repository, clients *clientrepo.Repository, val *validator.Validator) *Handler {
	return &Handler{svc: svc, repo: repo, reminders: reminders, clients: clients, val: val}
}

// RegisterRoutes registers the authenticated appointment routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id", h.Update)
	rg.POST("/:id/status", h.UpdateStatus)
	rg.POST("/:id/cancel", h.Cancel)
	rg.GET("/:id/ical", h.ExportICal)
	rg.GET("/:id/reminders", h.ListReminders)
	rg.POST("/:id/reminders", h.CreateReminder)
}

func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	params := repository.ListParams{}
	if from, err := time.Parse(time.RFC3339, c.Query("from")); err == nil {
		params.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.Query("to")); err == nil {
		params.To = &to
	}
	if clientID, err := uuid.Parse(c.Query("clientId")); err == nil {
		params.ClientID = &clientID
	}
	if artistID, err := uuid.Parse(c.Query("artistId")); err == nil {
		params.ArtistID = &artistID
	}
	params.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	params.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	// Artists only see their own calendar.
	if identity.Role() == identitysvc.RoleArtist {
		params.ArtistID = identity.ArtistID()
	}

	appointments, err := h.repo.List(c.Request.Context(), identity.OrgID(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	results := make([]transport.AppointmentResponse, 0, len(appointments))
	for i := range appointments {
		results = append(results, appointmentResponse(&appointments[i]))
	}
	httpkit.OK(c, gin.H{"appointments": results})
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	clientID, _ := uuid.Parse(req.ClientID)
	artistID, _ := uuid.Parse(req.ArtistID)

	appt, err := h.svc.Create(c.Request.Context(), identity.OrgID(), service.CreateParams{
		ClientID:           clientID,
		ArtistID:           artistID,
		Title:              req.Title,
		StartsAt:           req.StartsAt,
		EndsAt:             req.EndsAt,
		PriceCents:         req.PriceCents,
		DepositRequired:    req.DepositRequired,
		DepositPaid:        req.DepositPaid,
		DepositAmountCents: req.DepositAmountCents,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, appointmentResponse(appt))
}

func (h *Handler) GetByID(c *gin.Context) {
	appt := h.loadScoped(c)
	if appt == nil {
		return
	}
	httpkit.OK(c, appointmentResponse(appt))
}

func (h *Handler) Update(c *gin.Context) {
	appt := h.loadScoped(c)
	if appt == nil {
		return
	}

	var req transport.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	updated, err := h.svc.Update(c.Request.Context(), appt.ID, identity.OrgID(), service.UpdateParams{
		Title:      req.Title,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
		PriceCents: req.PriceCents,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, appointmentResponse(updated))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	appt := h.loadScoped(c)
	if appt == nil {
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if httpkit.HandleError(c, h.svc.Complete(c.Request.Context(), appt.ID, identity.OrgID(), req.Status)) {
		return
	}
	httpkit.OK(c, gin.H{"status": req.Status})
}

func (h *Handler) Cancel(c *gin.Context) {
	appt := h.loadScoped(c)
	if appt == nil {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if httpkit.HandleError(c, h.svc.Cancel(c.Request.Context(), appt.ID, identity.OrgID())) {
		return
	}
	httpkit.OK(c, gin.H{"status": repository.StatusCancelled})
}

func (h *Handler) ExportICal(c *gin.Context) {
	appt := h.loadScoped(c)
	if appt == nil {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	client, err := h.clients.GetByID(c.Request.Context(), appt.ClientID, identity.OrgID())
	if httpkit.HandleError(c, err) {
		return
	}

	ics := service.RenderICal(appt, client.Name, time.Now())
	c.Header("Content-Disposition", `attachment; filename="appointment.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics))
}

func (h *Handler) ListReminders(c *gin.Context) {
	appt := h.loadScoped(c)
	if appt == nil {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	reminders, err := h.reminders.ListByAppointment(c.Request.Context(), identity.OrgID(), appt.ID)
	if httpkit.HandleError(c, err) {
		return
	}

	results := make([]transport.ReminderResponse, 0, len(reminders))
	for _, rem := range reminders {
		results = append(results, transport.ReminderResponse{
			ID:     rem.ID.String(),
			Type:   rem.Type,
			Status: rem.Status,
			SendAt: rem.SendAt,
			SentAt: rem.SentAt,
		})
	}
	httpkit.OK(c, gin.H{"reminders": results})
}

func (h *Handler) CreateReminder(c *gin.Context) {
	appt := h.loadScoped(c)
	if appt == nil {
		return
	}

	var req transport.CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	rem, err := h.svc.CreateManualReminder(c.Request.Context(), appt.ID, identity.OrgID(), req.SendAt)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ReminderResponse{
		ID:     rem.ID.String(),
		Type:   rem.Type,
		Status: rem.Status,
		SendAt: rem.SendAt,
	})
}

// loadScoped parses the id, loads the appointment and enforces artist
// visibility. Writes the error response and returns nil on failure.
func (h *Handler) loadScoped(c *gin.Context) *repository.Appointment {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid appointment id", nil)
		return nil
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return nil
	}

	appt, err := h.repo.GetByID(c.Request.Context(), id, identity.OrgID())
	if httpkit.HandleError(c, err) {
		return nil
	}

	if identity.Role() == identitysvc.RoleArtist {
		artistID := identity.ArtistID()
		if artistID == nil || *artistID != appt.ArtistID {
			httpkit.Error(c, http.StatusForbidden, "appointment belongs to another artist", nil)
			return nil
		}
	}
	return appt
}

func appointmentResponse(a *repository.Appointment) transport.AppointmentResponse {
	return transport.AppointmentResponse{
		ID:                 a.ID.String(),
		ClientID:           a.ClientID.String(),
		ArtistID:           a.ArtistID.String(),
		Title:              a.Title,
		StartsAt:           a.StartsAt,
		EndsAt:             a.EndsAt,
		Status:             a.Status,
		PriceCents:         a.PriceCents,
		DepositRequired:    a.DepositRequired,
		DepositAmountCents: a.DepositAmountCents,
		DepositStatus:      a.DepositStatus,
		DepositDueAt:       a.DepositDueAt,
		DepositPaidAt:      a.DepositPaidAt,
		DepositLink:        a.DepositLink,
		CreatedAt:          a.CreatedAt,
	}
}
