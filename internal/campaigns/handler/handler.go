package handler

import (
	"net/http"
	"time"

	"inkflow_backend/internal/campaigns/repository"
	"inkflow_backend/internal/campaigns/service"
	"inkflow_backend/platform/httpkit"
	"inkflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// CreateCampaignRequest drafts a campaign.
type CreateCampaignRequest struct {
	Channel   string  `json:"channel" validate:"required,oneof=email sms"`
	Subject   *string `json:"subject,omitempty" validate:"omitempty,max=200"`
	Body      string  `json:"body" validate:"required"`
	OnlyOptIn *bool   `json:"onlyOptIn,omitempty"`
}

// ScheduleCampaignRequest schedules a draft; no time means run now.
type ScheduleCampaignRequest struct {
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

// Handler handles HTTP requests for campaigns.
type Handler struct {
	svc  *service.Service
	repo *repository.Repository
	val  *validator.Validator
}

func New(svc *service.Service, repo *repository.Repository, val *validator.Validator) *Handler {
	return &Handler{svc: svc, repo: repo, val: val}
}

// RegisterRoutes registers the authenticated campaign routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/schedule", h.Schedule)
	rg.GET("/:id/sends", h.ListSends)
}

func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	campaigns, err := h.repo.List(c.Request.Context(), identity.OrgID())
	if httpkit.HandleError(c, err) {
		return
	}

	results := make([]gin.H, 0, len(campaigns))
	for i := range campaigns {
		results = append(results, campaignResponse(&campaigns[i]))
	}
	httpkit.OK(c, gin.H{"campaigns": results})
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateCampaignRequest
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

	onlyOptIn := true
	if req.OnlyOptIn != nil {
		onlyOptIn = *req.OnlyOptIn
	}

	campaign, err := h.svc.CreateDraft(c.Request.Context(), identity.OrgID(), service.CreateParams{
		Channel:   req.Channel,
		Subject:   req.Subject,
		Body:      req.Body,
		OnlyOptIn: onlyOptIn,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, campaignResponse(campaign))
}

func (h *Handler) GetByID(c *gin.Context) {
	campaignID, identity := h.scoped(c)
	if identity == nil {
		return
	}

	campaign, err := h.repo.GetByID(c.Request.Context(), campaignID, identity.OrgID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, campaignResponse(campaign))
}

func (h *Handler) Schedule(c *gin.Context) {
	campaignID, identity := h.scoped(c)
	if identity == nil {
		return
	}

	var req ScheduleCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	if httpkit.HandleError(c, h.svc.Schedule(c.Request.Context(), identity.OrgID(), campaignID, req.ScheduledAt)) {
		return
	}
	httpkit.OK(c, gin.H{"status": repository.StatusScheduled})
}

func (h *Handler) ListSends(c *gin.Context) {
	campaignID, identity := h.scoped(c)
	if identity == nil {
		return
	}

	sends, err := h.repo.ListSends(c.Request.Context(), identity.OrgID(), campaignID)
	if httpkit.HandleError(c, err) {
		return
	}

	results := make([]gin.H, 0, len(sends))
	for _, s := range sends {
		results = append(results, gin.H{
			"clientId":  s.ClientID.String(),
			"channel":   s.Channel,
			"status":    s.Status,
			"error":     s.Error,
			"createdAt": s.CreatedAt,
		})
	}
	httpkit.OK(c, gin.H{"sends": results})
}

func (h *Handler) scoped(c *gin.Context) (uuid.UUID, httpkit.Identity) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid campaign id", nil)
		return uuid.Nil, nil
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, nil
	}
	return id, identity
}

func campaignResponse(cp *repository.Campaign) gin.H {
	return gin.H{
		"id":          cp.ID.String(),
		"channel":     cp.Channel,
		"subject":     cp.Subject,
		"body":        cp.Body,
		"onlyOptIn":   cp.OnlyOptIn,
		"status":      cp.Status,
		"scheduledAt": cp.ScheduledAt,
		"sentAt":      cp.SentAt,
		"createdAt":   cp.CreatedAt,
	}
}
