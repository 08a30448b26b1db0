package service

import (
	"strings"
	"testing"
	"time"

	"inkflow_backend/internal/appointments/repository"

	"github.com/google/uuid"
)

func TestRenderICal(t *testing.T) {
	appt := &repository.Appointment{
		ID:       uuid.MustParse("6f1e8a34-0000-0000-0000-000000000001"),
		Title:    "Sesja; rękaw, etap 2",
		StartsAt: time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2025, 4, 1, 13, 30, 0, 0, time.UTC),
	}
	now := time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC)

	doc := RenderICal(appt, "Jan Kowalski", now)

	for _, want := range []string{
		"BEGIN:VCALENDAR\r\n",
		"UID:6f1e8a34-0000-0000-0000-000000000001@inkflow\r\n",
		"DTSTART:20250401T100000Z\r\n",
		"DTEND:20250401T133000Z\r\n",
		"DTSTAMP:20250320T090000Z\r\n",
		"SUMMARY:Sesja\\; rękaw\\, etap 2\r\n",
		"DESCRIPTION:Klient: Jan Kowalski\r\n",
		"END:VCALENDAR\r\n",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("rendered calendar missing %q\n%s", want, doc)
		}
	}

	if strings.Contains(strings.ReplaceAll(doc, "\r\n", ""), "\n") {
		t.Error("expected CRLF line endings only")
	}
}
