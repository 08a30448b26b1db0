package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apptrepo "inkflow_backend/internal/appointments/repository"
	"inkflow_backend/internal/payments/service"
	"inkflow_backend/platform/apperr"
	"inkflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const testSecret = "whsec_test"

type fakeAppointments struct {
	appt        *apptrepo.Appointment
	markedPaid  []uuid.UUID
	alreadyPaid bool
}

func (f *fakeAppointments) GetByID(_ context.Context, id, _ uuid.UUID) (*apptrepo.Appointment, error) {
	if f.appt == nil || f.appt.ID != id {
		return nil, apperr.NotFound("appointment not found")
	}
	return f.appt, nil
}

func (f *fakeAppointments) MarkDepositPaid(_ context.Context, id uuid.UUID, _ time.Time) (bool, error) {
	if f.alreadyPaid {
		return false, nil
	}
	f.markedPaid = append(f.markedPaid, id)
	return true, nil
}

type fakeBilling struct {
	statuses map[uuid.UUID]string
}

func (f *fakeBilling) UpdateBillingStatus(_ context.Context, orgID uuid.UUID, status string) error {
	if f.statuses == nil {
		f.statuses = make(map[uuid.UUID]string)
	}
	f.statuses[orgID] = status
	return nil
}

func newTestRouter(appts *fakeAppointments, billing *fakeBilling) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.New(appts, billing, logger.New("test"))
	h := New(svc, testSecret, logger.New("test"))

	engine := gin.New()
	h.RegisterRoutes(engine.Group("/webhooks"))
	return engine
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, engine *gin.Engine, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestReceive_ValidDepositPaid(t *testing.T) {
	orgID := uuid.New()
	appt := &apptrepo.Appointment{ID: uuid.New(), OrgID: orgID, DepositStatus: apptrepo.DepositPending}
	appts := &fakeAppointments{appt: appt}
	engine := newTestRouter(appts, &fakeBilling{})

	body := []byte(fmt.Sprintf(`{"type":"deposit.paid","data":{"orgId":%q,"appointmentId":%q,"paidAt":"2025-04-01T10:00:00Z"}}`,
		orgID, appt.ID))

	w := postWebhook(t, engine, body, sign(body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(appts.markedPaid) != 1 || appts.markedPaid[0] != appt.ID {
		t.Fatalf("expected deposit marked paid, got %v", appts.markedPaid)
	}
}

func TestReceive_RedeliveredDepositPaidIsNoOp(t *testing.T) {
	orgID := uuid.New()
	appt := &apptrepo.Appointment{ID: uuid.New(), OrgID: orgID, DepositStatus: apptrepo.DepositPaid}
	appts := &fakeAppointments{appt: appt, alreadyPaid: true}
	engine := newTestRouter(appts, &fakeBilling{})

	body := []byte(fmt.Sprintf(`{"type":"deposit.paid","data":{"orgId":%q,"appointmentId":%q}}`, orgID, appt.ID))

	w := postWebhook(t, engine, body, sign(body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected redelivery to return 200, got %d", w.Code)
	}
	if len(appts.markedPaid) != 0 {
		t.Fatal("expected no state change on redelivery")
	}
}

func TestReceive_InvalidSignatureRejected(t *testing.T) {
	engine := newTestRouter(&fakeAppointments{}, &fakeBilling{})
	body := []byte(`{"type":"deposit.paid","data":{}}`)

	w := postWebhook(t, engine, body, "deadbeef")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestReceive_MissingSignatureRejected(t *testing.T) {
	engine := newTestRouter(&fakeAppointments{}, &fakeBilling{})
	body := []byte(`{"type":"deposit.paid","data":{}}`)

	w := postWebhook(t, engine, body, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestReceive_TamperedBodyRejected(t *testing.T) {
	engine := newTestRouter(&fakeAppointments{}, &fakeBilling{})
	body := []byte(`{"type":"deposit.paid","data":{}}`)
	signature := sign(body)

	w := postWebhook(t, engine, append(body, ' '), signature)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for tampered body, got %d", w.Code)
	}
}

func TestReceive_BillingEventUpdatesStatus(t *testing.T) {
	orgID := uuid.New()
	billing := &fakeBilling{}
	engine := newTestRouter(&fakeAppointments{}, billing)

	body := []byte(fmt.Sprintf(`{"type":"subscription.status_changed","data":{"orgId":%q,"status":"past_due"}}`, orgID))

	w := postWebhook(t, engine, body, sign(body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if billing.statuses[orgID] != "past_due" {
		t.Fatalf("expected billing status past_due, got %q", billing.statuses[orgID])
	}
}

func TestReceive_UnknownEventRejected(t *testing.T) {
	orgID := uuid.New()
	engine := newTestRouter(&fakeAppointments{}, &fakeBilling{})

	body := []byte(fmt.Sprintf(`{"type":"something.else","data":{"orgId":%q}}`, orgID))

	w := postWebhook(t, engine, body, sign(body))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
