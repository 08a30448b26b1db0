package transport

import "time"

type CreateClientRequest struct {
	Name           string  `json:"name" validate:"required,max=160"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	IGHandle       *string `json:"igHandle" validate:"omitempty,max=64"`
	MarketingOptIn bool    `json:"marketingOptIn"`
}

type UpdateClientRequest struct {
	Name           *string `json:"name" validate:"omitempty,max=160"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	IGHandle       *string `json:"igHandle" validate:"omitempty,max=64"`
	MarketingOptIn *bool   `json:"marketingOptIn"`
}

type ClientResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          *string   `json:"email,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	IGHandle       *string   `json:"igHandle,omitempty"`
	MarketingOptIn bool      `json:"marketingOptIn"`
	Unsubscribed   bool      `json:"unsubscribed"`
	CreatedAt      time.Time `json:"createdAt"`
}

type AssetResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ObjectKey *string   `json:"objectKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
