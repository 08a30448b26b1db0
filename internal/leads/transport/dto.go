package transport

import "time"

type PublicLeadRequest struct {
	Name           string `json:"name" validate:"required,max=160"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone" validate:"omitempty,max=32"`
	IGHandle       string `json:"igHandle" validate:"omitempty,max=64"`
	Source         string `json:"source" validate:"omitempty,max=64"`
	Message        string `json:"message" validate:"omitempty,max=4000"`
	MarketingOptIn bool   `json:"marketingOptIn"`
	// Website is a honeypot field: humans never see it, bots fill it.
	Website string `json:"website"`
}

type CreateLeadRequest struct {
	Name     string  `json:"name" validate:"required,max=160"`
	Email    string  `json:"email" validate:"omitempty,email"`
	Phone    string  `json:"phone" validate:"omitempty,max=32"`
	IGHandle string  `json:"igHandle" validate:"omitempty,max=64"`
	Source   string  `json:"source" validate:"omitempty,max=64"`
	Message  string  `json:"message" validate:"omitempty,max=4000"`
	ArtistID *string `json:"artistId" validate:"omitempty,uuid"`
	Status   string  `json:"status" validate:"omitempty,oneof=new contacted booked lost"`
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new contacted booked lost"`
}

type LeadResponse struct {
	ID        string    `json:"id"`
	ArtistID  *string   `json:"artistId,omitempty"`
	ClientID  *string   `json:"clientId,omitempty"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	IGHandle  *string   `json:"igHandle,omitempty"`
	Status    string    `json:"status"`
	Source    string    `json:"source"`
	Message   *string   `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
