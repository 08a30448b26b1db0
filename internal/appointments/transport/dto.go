// Package transport defines request/response DTOs for the appointments API.
package transport

import "time"

// CreateAppointmentRequest books a new appointment.
type CreateAppointmentRequest struct {
	ClientID           string    `json:"clientId" validate:"required,uuid"`
	ArtistID           string    `json:"artistId" validate:"required,uuid"`
	Title              string    `json:"title" validate:"required,min=1,max=200"`
	StartsAt           time.Time `json:"startsAt" validate:"required"`
	EndsAt             time.Time `json:"endsAt" validate:"required"`
	PriceCents         int64     `json:"priceCents" validate:"min=0"`
	DepositRequired    bool      `json:"depositRequired"`
	DepositPaid        bool      `json:"depositPaid"`
	DepositAmountCents *int64    `json:"depositAmountCents,omitempty" validate:"omitempty,min=1"`
}

// UpdateAppointmentRequest changes title, time slot or price.
type UpdateAppointmentRequest struct {
	Title      *string    `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	StartsAt   *time.Time `json:"startsAt,omitempty"`
	EndsAt     *time.Time `json:"endsAt,omitempty"`
	PriceCents *int64     `json:"priceCents,omitempty" validate:"omitempty,min=0"`
}

// CreateReminderRequest schedules a manual reminder for an appointment.
type CreateReminderRequest struct {
	SendAt time.Time `json:"sendAt" validate:"required"`
}

// UpdateStatusRequest closes out an appointment.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed no_show"`
}

// AppointmentResponse is the API shape of an appointment.
type AppointmentResponse struct {
	ID                 string     `json:"id"`
	ClientID           string     `json:"clientId"`
	ArtistID           string     `json:"artistId"`
	Title              string     `json:"title"`
	StartsAt           time.Time  `json:"startsAt"`
	EndsAt             time.Time  `json:"endsAt"`
	Status             string     `json:"status"`
	PriceCents         int64      `json:"priceCents"`
	DepositRequired    bool       `json:"depositRequired"`
	DepositAmountCents int64      `json:"depositAmountCents"`
	DepositStatus      string     `json:"depositStatus"`
	DepositDueAt       *time.Time `json:"depositDueAt,omitempty"`
	DepositPaidAt      *time.Time `json:"depositPaidAt,omitempty"`
	DepositLink        *string    `json:"depositLink,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// ReminderResponse is the API shape of a reminder ledger entry.
type ReminderResponse struct {
	ID     string     `json:"id"`
	Type   string     `json:"type"`
	Status string     `json:"status"`
	SendAt time.Time  `json:"sendAt"`
	SentAt *time.Time `json:"sentAt,omitempty"`
}
