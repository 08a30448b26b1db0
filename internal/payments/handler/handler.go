package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"inkflow_backend/internal/payments/service"
	"inkflow_backend/platform/httpkit"
	"inkflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const signatureHeader = "X-Signature"

// Handler receives payment provider webhooks.
type Handler struct {
	svc           *service.Service
	webhookSecret string
	log           *logger.Logger
}

func New(svc *service.Service, webhookSecret string, log *logger.Logger) *Handler {
	return &Handler{svc: svc, webhookSecret: webhookSecret, log: log}
}

// RegisterRoutes registers the payments webhook endpoint.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments", h.Receive)
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		OrgID         string    `json:"orgId"`
		AppointmentID string    `json:"appointmentId"`
		Status        string    `json:"status"`
		PaidAt        time.Time `json:"paidAt"`
	} `json:"data"`
}

// Receive verifies the HMAC signature over the raw body before any parsing,
// then dispatches the event.
func (h *Handler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "failed to read body", nil)
		return
	}

	if !h.verifySignature(body, c.GetHeader(signatureHeader)) {
		h.log.WebhookEvent("payments", "signature_mismatch", "")
		httpkit.Error(c, http.StatusUnauthorized, "invalid signature", nil)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}

	orgID, err := uuid.Parse(event.Data.OrgID)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid organization id", nil)
		return
	}

	switch event.Type {
	case service.EventDepositPaid:
		appointmentID, err := uuid.Parse(event.Data.AppointmentID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid appointment id", nil)
			return
		}
		paidAt := event.Data.PaidAt
		if paidAt.IsZero() {
			paidAt = time.Now().UTC()
		}
		if httpkit.HandleError(c, h.svc.RecordDepositPaid(c.Request.Context(), orgID, appointmentID, paidAt)) {
			return
		}
	default:
		if httpkit.HandleError(c, h.svc.ApplyBillingEvent(c.Request.Context(), orgID, event.Type, event.Data.Status)) {
			return
		}
	}

	h.log.WebhookEvent("payments", event.Type, orgID.String())
	httpkit.OK(c, gin.H{"status": "ok"})
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if h.webhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
