// Package transport defines request/response DTOs for the deposits API.
package transport

// SendDepositLinkRequest targets a deposit request message.
type SendDepositLinkRequest struct {
	AppointmentID *string `json:"appointmentId,omitempty" validate:"omitempty,uuid"`
	ClientID      *string `json:"clientId,omitempty" validate:"omitempty,uuid"`
	Channel       string  `json:"channel,omitempty" validate:"omitempty,oneof=email sms instagram facebook"`
}

// UpdateDepositStatusRequest applies an operator deposit transition.
type UpdateDepositStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending paid expired"`
}
