package transport

import "time"

type SendMessageRequest struct {
	Channel string `json:"channel" validate:"omitempty,oneof=email sms instagram facebook"`
	Subject string `json:"subject" validate:"omitempty,max=200"`
	Body    string `json:"body" validate:"required,max=4000"`
}

type MessageResponse struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	ArtistID  *string   `json:"artistId,omitempty"`
	Direction string    `json:"direction"`
	Channel   string    `json:"channel"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type ReplyChannelResponse struct {
	Channel string `json:"channel"`
}

type OutboxMessageResponse struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	Channel   string    `json:"channel"`
	Recipient string    `json:"recipient"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
