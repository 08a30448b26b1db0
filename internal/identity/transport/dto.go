package transport

import "time"

type SignupRequest struct {
	StudioName string `json:"studioName" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Timezone   string `json:"timezone" validate:"omitempty,max=64"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	AccessToken string       `json:"accessToken"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	User        UserResponse `json:"user"`
}

type UserResponse struct {
	ID       string  `json:"id"`
	OrgID    string  `json:"orgId"`
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	ArtistID *string `json:"artistId,omitempty"`
}

type OrganizationResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Plan          string     `json:"plan"`
	BillingStatus string     `json:"billingStatus"`
	TrialEndsAt   *time.Time `json:"trialEndsAt,omitempty"`
	Timezone      string     `json:"timezone"`
	Currency      string     `json:"currency"`
}

type CreateArtistRequest struct {
	Name  string  `json:"name" validate:"required,max=120"`
	Email *string `json:"email" validate:"omitempty,email"`
	// When Email is set a login with the artist role is created alongside.
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
}

type UpdateArtistRequest struct {
	Name *string `json:"name" validate:"omitempty,max=120"`
}

type ArtistResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UserID    *string   `json:"userId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type SettingsResponse struct {
	DepositType      string `json:"depositType"`
	DepositValue     int64  `json:"depositValue"`
	DepositDueDays   int    `json:"depositDueDays"`
	ReminderTemplate string `json:"reminderTemplate"`
	DepositTemplate  string `json:"depositTemplate"`
	FollowupTemplate string `json:"followupTemplate"`
}

type UpdateSettingsRequest struct {
	DepositType      *string `json:"depositType" validate:"omitempty,oneof=fixed percent"`
	DepositValue     *int64  `json:"depositValue" validate:"omitempty,min=0"`
	DepositDueDays   *int    `json:"depositDueDays"`
	ReminderTemplate *string `json:"reminderTemplate" validate:"omitempty,max=2000"`
	DepositTemplate  *string `json:"depositTemplate" validate:"omitempty,max=2000"`
	FollowupTemplate *string `json:"followupTemplate" validate:"omitempty,max=2000"`
}
