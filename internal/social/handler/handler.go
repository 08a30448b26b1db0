package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"inkflow_backend/internal/social/repository"
	"inkflow_backend/internal/social/service"
	"inkflow_backend/internal/social/transport"
	"inkflow_backend/platform/httpkit"
	"inkflow_backend/platform/logger"
	"inkflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	signatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
)

// Handler receives Meta webhooks and manages integrations.
type Handler struct {
	svc         *service.Service
	repo        *repository.Repository
	appSecret   string
	verifyToken string
	val         *validator.Validator
	log         *logger.Logger
}

func New(svc *service.Service, repo *repository.Repository, appSecret, verifyToken string, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, repo: repo, appSecret: appSecret, verifyToken: verifyToken, val: val, log: log}
}

// RegisterWebhookRoutes registers the Meta webhook endpoints.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.GET("/meta", h.Verify)
	rg.POST("/meta", h.Receive)
}

// RegisterRoutes registers the authenticated integration management routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("/connect", h.Connect)
	rg.POST("/disconnect", h.Disconnect)
}

// Verify answers the Meta subscription handshake: echo hub.challenge when
// the verify token matches, 403 otherwise.
func (h *Handler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	c.String(http.StatusForbidden, "verification failed")
}

// Receive validates the payload signature against the raw body before any
// parsing, then hands the envelope to the normalizer. Always answers 200 for
// verified payloads; per-event failures are not Meta's problem.
func (h *Handler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "failed to read body", nil)
		return
	}

	if !h.verifySignature(body, c.GetHeader(signatureHeader)) {
		h.log.WebhookEvent("meta", "signature_mismatch", "")
		httpkit.Error(c, http.StatusUnauthorized, "invalid signature", nil)
		return
	}

	var payload transport.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}

	h.svc.ProcessWebhook(c.Request.Context(), &payload)
	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *Handler) verifySignature(body []byte, header string) bool {
	if h.appSecret == "" || !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(header, signaturePrefix)))
}

// ConnectRequest stores page credentials for an artist.
type ConnectRequest struct {
	ArtistID            string  `json:"artistId" validate:"required,uuid"`
	PageID              string  `json:"pageId" validate:"required"`
	IGBusinessAccountID *string `json:"igBusinessAccountId,omitempty"`
	PageToken           string  `json:"pageToken" validate:"required"`
}

// DisconnectRequest clears an artist's integration.
type DisconnectRequest struct {
	ArtistID string `json:"artistId" validate:"required,uuid"`
}

func (h *Handler) List(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	integrations, err := h.repo.ListByOrg(c.Request.Context(), identity.OrgID())
	if httpkit.HandleError(c, err) {
		return
	}

	results := make([]gin.H, 0, len(integrations))
	for _, in := range integrations {
		results = append(results, gin.H{
			"artistId":            in.ArtistID.String(),
			"status":              in.Status,
			"pageId":              in.PageID,
			"igBusinessAccountId": in.IGBusinessAccountID,
		})
	}
	httpkit.OK(c, gin.H{"integrations": results})
}

func (h *Handler) Connect(c *gin.Context) {
	var req ConnectRequest
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

	artistID, _ := uuid.Parse(req.ArtistID)
	integration := &repository.Integration{
		ID:                  uuid.New(),
		OrgID:               identity.OrgID(),
		ArtistID:            artistID,
		Status:              repository.StatusConnected,
		PageID:              &req.PageID,
		IGBusinessAccountID: req.IGBusinessAccountID,
		PageToken:           &req.PageToken,
	}
	if httpkit.HandleError(c, h.repo.Upsert(c.Request.Context(), integration)) {
		return
	}
	httpkit.OK(c, gin.H{"status": repository.StatusConnected})
}

func (h *Handler) Disconnect(c *gin.Context) {
	var req DisconnectRequest
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

	artistID, _ := uuid.Parse(req.ArtistID)
	if httpkit.HandleError(c, h.repo.Disconnect(c.Request.Context(), identity.OrgID(), artistID)) {
		return
	}
	httpkit.OK(c, gin.H{"status": repository.StatusDisconnected})
}
