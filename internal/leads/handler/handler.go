package handler

import (
	"net/http"
	"strconv"

	"inkflow_backend/internal/leads/ratelimit"
	"inkflow_backend/internal/leads/repository"
	"inkflow_backend/internal/leads/service"
	"inkflow_backend/internal/leads/transport"
	"inkflow_backend/platform/httpkit"
	"inkflow_backend/platform/phone"
	"inkflow_backend/platform/sanitize"
	"inkflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for the lead pipeline.
type Handler struct {
	svc     *service.Service
	repo    *repository.Repository
	limiter *ratelimit.Limiter
	val     *validator.Validator
}

func New(svc *service.Service, repo *repository.Repository, limiter *ratelimit.Limiter, val *validator.Validator) *Handler {
	return &Handler{svc: svc, repo: repo, limiter: limiter, val: val}
}

// RegisterRoutes registers the authenticated lead pipeline routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/status", h.UpdateStatus)
}

// RegisterPublicRoutes registers the open intake form endpoint.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads", h.PublicIntake)
}

// PublicIntake handles POST /public/leads. A filled honeypot returns 200
// without creating anything, so bots cannot distinguish success.
func (h *Handler) PublicIntake(c *gin.Context) {
	orgID, err := uuid.Parse(c.Query("org"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "missing or invalid org", nil)
		return
	}

	var req transport.PublicLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if req.Website != "" {
		httpkit.OK(c, gin.H{"status": "ok"})
		return
	}

	if !h.limiter.Allow(c.Request.Context(), c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	source := req.Source
	if source == "" {
		source = "website"
	}

	result, err := h.svc.UpsertLead(c.Request.Context(), orgID, service.UpsertParams{
		Name:           sanitize.Text(req.Name),
		Email:          req.Email,
		Phone:          phone.NormalizeE164(req.Phone),
		IGHandle:       req.IGHandle,
		Source:         source,
		Message:        sanitize.Text(req.Message),
		MarketingOptIn: req.MarketingOptIn,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, gin.H{"id": result.Lead.ID.String()})
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

	// Artists only see their own pipeline.
	artistID := identity.ArtistID()

	leads, err := h.repo.List(c.Request.Context(), identity.OrgID(), c.Query("status"), artistID, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	results := make([]transport.LeadResponse, 0, len(leads))
	for i := range leads {
		results = append(results, leadResponse(&leads[i]))
	}
	httpkit.OK(c, gin.H{"leads": results})
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
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

	var artistID *uuid.UUID
	if req.ArtistID != nil {
		parsed, err := uuid.Parse(*req.ArtistID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid artist id", nil)
			return
		}
		artistID = &parsed
	} else if identity.ArtistID() != nil {
		artistID = identity.ArtistID()
	}

	source := req.Source
	if source == "" {
		source = "manual"
	}

	result, err := h.svc.UpsertLead(c.Request.Context(), identity.OrgID(), service.UpsertParams{
		Name:     sanitize.Text(req.Name),
		Email:    req.Email,
		Phone:    phone.NormalizeE164(req.Phone),
		IGHandle: req.IGHandle,
		Source:   source,
		Message:  sanitize.Text(req.Message),
		Status:   req.Status,
		ArtistID: artistID,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusCreated
	if result.ExistingClient {
		status = http.StatusOK
	}
	httpkit.JSON(c, status, leadResponse(result.Lead))
}

func (h *Handler) GetByID(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	lead, err := h.repo.GetByID(c.Request.Context(), leadID, identity.OrgID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, leadResponse(lead))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req transport.UpdateLeadStatusRequest
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

	if httpkit.HandleError(c, h.repo.UpdateStatus(c.Request.Context(), leadID, identity.OrgID(), req.Status)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func leadResponse(l *repository.Lead) transport.LeadResponse {
	resp := transport.LeadResponse{
		ID:        l.ID.String(),
		Name:      l.Name,
		Email:     l.Email,
		Phone:     l.Phone,
		IGHandle:  l.IGHandle,
		Status:    l.Status,
		Source:    l.Source,
		Message:   l.Message,
		CreatedAt: l.CreatedAt,
	}
	if l.ArtistID != nil {
		id := l.ArtistID.String()
		resp.ArtistID = &id
	}
	if l.ClientID != nil {
		id := l.ClientID.String()
		resp.ClientID = &id
	}
	return resp
}
