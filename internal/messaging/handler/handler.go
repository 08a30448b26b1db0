package handler

import (
	"net/http"
	"strconv"

	clientrepo "inkflow_backend/internal/clients/repository"
	"inkflow_backend/internal/messaging/repository"
	"inkflow_backend/internal/messaging/service"
	"inkflow_backend/internal/messaging/transport"
	"inkflow_backend/platform/httpkit"
	"inkflow_backend/platform/sanitize"
	"inkflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for conversations and outbound sends.
type Handler struct {
	svc        *service.Service
	repo       *repository.Repository
	clientRepo *clientrepo.Repository
	val        *validator.Validator
}

func New(svc *service.Service, repo *repository.Repository, clientRepo *clientrepo.Repository, val *validator.Validator) *Handler {
	return &Handler{svc: svc, repo: repo, clientRepo: clientRepo, val: val}
}

// RegisterRoutes registers the authenticated messaging routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/clients/:id/messages", h.ListMessages)
	rg.POST("/clients/:id/messages", h.SendMessage)
	rg.GET("/clients/:id/reply-channel", h.GetReplyChannel)
	rg.GET("/outbox", h.ListOutbox)
}

func (h *Handler) ListMessages(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid client id", nil)
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > 500 {
		limit = 100
	}

	messages, err := h.repo.ListByClient(c.Request.Context(), identity.OrgID(), clientID, limit)
	if httpkit.HandleError(c, err) {
		return
	}

	results := make([]transport.MessageResponse, 0, len(messages))
	for i := range messages {
		results = append(results, messageResponse(&messages[i]))
	}
	httpkit.OK(c, gin.H{"messages": results})
}

func (h *Handler) SendMessage(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid client id", nil)
		return
	}

	var req transport.SendMessageRequest
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

	client, err := h.clientRepo.GetByID(c.Request.Context(), clientID, identity.OrgID())
	if httpkit.HandleError(c, err) {
		return
	}

	msg, err := h.svc.SendOutbound(c.Request.Context(), service.SendParams{
		OrgID:    identity.OrgID(),
		ArtistID: identity.ArtistID(),
		Client:   client,
		Channel:  req.Channel,
		Subject:  req.Subject,
		Body:     sanitize.Text(req.Body),
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, messageResponse(msg))
}

func (h *Handler) GetReplyChannel(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid client id", nil)
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	channel, err := h.svc.DetermineReplyChannel(c.Request.Context(), identity.OrgID(), clientID, identity.ArtistID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ReplyChannelResponse{Channel: channel})
}

func (h *Handler) ListOutbox(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit < 1 || limit > 500 {
		limit = 100
	}

	entries, err := h.repo.ListOutbox(c.Request.Context(), identity.OrgID(), limit)
	if httpkit.HandleError(c, err) {
		return
	}

	results := make([]transport.OutboxMessageResponse, 0, len(entries))
	for _, o := range entries {
		results = append(results, transport.OutboxMessageResponse{
			ID:        o.ID.String(),
			ClientID:  o.ClientID.String(),
			Channel:   o.Channel,
			Recipient: o.Recipient,
			Body:      o.Body,
			CreatedAt: o.CreatedAt,
		})
	}
	httpkit.OK(c, gin.H{"outbox": results})
}

func messageResponse(m *repository.Message) transport.MessageResponse {
	resp := transport.MessageResponse{
		ID:        m.ID.String(),
		ClientID:  m.ClientID.String(),
		Direction: m.Direction,
		Channel:   m.Channel,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
	if m.ArtistID != nil {
		id := m.ArtistID.String()
		resp.ArtistID = &id
	}
	return resp
}
