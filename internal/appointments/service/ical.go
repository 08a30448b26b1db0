package service

import (
	"fmt"
	"strings"
	"time"

	"inkflow_backend/internal/appointments/repository"
)

const icalTimeLayout = "20060102T150405Z"

// RenderICal produces a single-event iCalendar document for the appointment.
// Times are emitted in UTC basic format.
func RenderICal(appt *repository.Appointment, clientName string, now time.Time) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//inkflow//calendar//EN\r\n")
	b.WriteString("BEGIN:VEVENT\r\n")
	fmt.Fprintf(&b, "UID:%s@inkflow\r\n", appt.ID)
	fmt.Fprintf(&b, "DTSTAMP:%s\r\n", now.UTC().Format(icalTimeLayout))
	fmt.Fprintf(&b, "DTSTART:%s\r\n", appt.StartsAt.UTC().Format(icalTimeLayout))
	fmt.Fprintf(&b, "DTEND:%s\r\n", appt.EndsAt.UTC().Format(icalTimeLayout))
	fmt.Fprintf(&b, "SUMMARY:%s\r\n", escapeICalText(appt.Title))
	fmt.Fprintf(&b, "DESCRIPTION:%s\r\n", escapeICalText("Klient: "+clientName))
	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func escapeICalText(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
		"\r", "",
	)
	return r.Replace(s)
}
