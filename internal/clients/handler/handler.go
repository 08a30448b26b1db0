package handler

import (
	"net/http"
	"strconv"

	"inkflow_backend/internal/clients/repository"
	"inkflow_backend/internal/clients/service"
	"inkflow_backend/internal/clients/transport"
	"inkflow_backend/platform/httpkit"
	"inkflow_backend/platform/phone"
	"inkflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for clients.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the authenticated client routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.PUT("/:id", h.Update)
	rg.GET("/:id/assets", h.ListAssets)
}

// RegisterPublicRoutes registers the unsubscribe link endpoint.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/unsubscribe/:token", h.Unsubscribe)
}

func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	clients, err := h.svc.Repository().List(c.Request.Context(), identity.OrgID(), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	results := make([]transport.ClientResponse, 0, len(clients))
	for i := range clients {
		results = append(results, clientResponse(&clients[i]))
	}
	httpkit.OK(c, gin.H{"clients": results})
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateClientRequest
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

	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		req.Phone = &normalized
	}

	client, err := h.svc.Create(c.Request.Context(), identity.OrgID(), service.CreateParams{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		IGHandle:       req.IGHandle,
		MarketingOptIn: req.MarketingOptIn,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, clientResponse(client))
}

func (h *Handler) GetByID(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid client id", nil)
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	client, err := h.svc.Repository().GetByID(c.Request.Context(), clientID, identity.OrgID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, clientResponse(client))
}

func (h *Handler) Update(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid client id", nil)
		return
	}

	var req transport.UpdateClientRequest
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

	client, err := h.svc.Repository().GetByID(c.Request.Context(), clientID, identity.OrgID())
	if httpkit.HandleError(c, err) {
		return
	}

	if req.Name != nil {
		client.Name = *req.Name
	}
	if req.Email != nil {
		client.Email = req.Email
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		client.Phone = &normalized
	}
	if req.IGHandle != nil {
		client.IGHandle = req.IGHandle
	}
	if req.MarketingOptIn != nil {
		client.MarketingOptIn = *req.MarketingOptIn
	}

	if httpkit.HandleError(c, h.svc.Repository().Update(c.Request.Context(), client)) {
		return
	}
	httpkit.OK(c, clientResponse(client))
}

func (h *Handler) ListAssets(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid client id", nil)
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	assets, err := h.svc.Repository().ListAssets(c.Request.Context(), identity.OrgID(), clientID)
	if httpkit.HandleError(c, err) {
		return
	}

	results := make([]transport.AssetResponse, 0, len(assets))
	for _, a := range assets {
		results = append(results, transport.AssetResponse{
			ID:        a.ID.String(),
			URL:       a.URL,
			ObjectKey: a.ObjectKey,
			CreatedAt: a.CreatedAt,
		})
	}
	httpkit.OK(c, gin.H{"assets": results})
}

// Unsubscribe handles GET /public/unsubscribe/:token.
func (h *Handler) Unsubscribe(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		httpkit.Error(c, http.StatusBadRequest, "missing token", nil)
		return
	}

	if httpkit.HandleError(c, h.svc.Unsubscribe(c.Request.Context(), token)) {
		return
	}
	c.String(http.StatusOK, "Wypisano z komunikacji marketingowej.")
}

func clientResponse(c *repository.Client) transport.ClientResponse {
	return transport.ClientResponse{
		ID:             c.ID.String(),
		Name:           c.Name,
		Email:          c.Email,
		Phone:          c.Phone,
		IGHandle:       c.IGHandle,
		MarketingOptIn: c.MarketingOptIn,
		Unsubscribed:   c.Unsubscribed,
		CreatedAt:      c.CreatedAt,
	}
}
