package handler

import (
	"net/http"

	"inkflow_backend/internal/deposits/service"
	"inkflow_backend/internal/deposits/transport"
	"inkflow_backend/platform/httpkit"
	"inkflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for the deposit lifecycle.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers deposit routes under the appointments resource and
// the standalone send endpoint.
func (h *Handler) RegisterRoutes(appointments, deposits *gin.RouterGroup) {
	appointments.POST("/:id/deposit/checkout", h.CreateCheckout)
	appointments.POST("/:id/deposit/status", h.UpdateStatus)
	appointments.GET("/:id/deposit/qr", h.QRCode)
	deposits.POST("/send", h.SendLink)
}

func (h *Handler) CreateCheckout(c *gin.Context) {
	appointmentID, identity := h.scoped(c)
	if identity == nil {
		return
	}

	link, err := h.svc.CreateCheckout(c.Request.Context(), identity.OrgID(), appointmentID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"link": link})
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	appointmentID, identity := h.scoped(c)
	if identity == nil {
		return
	}

	var req transport.UpdateDepositStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	appt, err := h.svc.UpdateStatus(c.Request.Context(), identity.OrgID(), appointmentID, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{
		"depositStatus": appt.DepositStatus,
		"depositPaidAt": appt.DepositPaidAt,
	})
}

func (h *Handler) QRCode(c *gin.Context) {
	appointmentID, identity := h.scoped(c)
	if identity == nil {
		return
	}

	link, err := h.svc.CreateCheckout(c.Request.Context(), identity.OrgID(), appointmentID)
	if httpkit.HandleError(c, err) {
		return
	}

	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to render qr code", nil)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) SendLink(c *gin.Context) {
	var req transport.SendDepositLinkRequest
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

	params := service.SendLinkParams{Channel: req.Channel, ArtistID: identity.ArtistID()}
	if req.AppointmentID != nil {
		id, err := uuid.Parse(*req.AppointmentID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid appointment id", nil)
			return
		}
		params.AppointmentID = &id
	}
	if req.ClientID != nil {
		id, err := uuid.Parse(*req.ClientID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid client id", nil)
			return
		}
		params.ClientID = &id
	}

	appt, err := h.svc.SendDepositLink(c.Request.Context(), identity.OrgID(), params)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{
		"appointmentId":      appt.ID.String(),
		"depositStatus":      appt.DepositStatus,
		"depositAmountCents": appt.DepositAmountCents,
	})
}

func (h *Handler) scoped(c *gin.Context) (uuid.UUID, httpkit.Identity) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid appointment id", nil)
		return uuid.Nil, nil
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, nil
	}
	return id, identity
}
