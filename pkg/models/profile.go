package models

import (
	"time"

	"github.com/nightshade-io/nightshade/pkg/database"
)

// SocialMediaLink is a single social account attached to a profile
type SocialMediaLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Username string `json:"username,omitempty"`
}

// Profile is a person of interest within an investigation
type Profile struct {
	ID              string                            `json:"id" db:"id"`
	InvestigationID string                            `json:"investigation_id" db:"investigation_id"`
	Name            string                            `json:"name,omitempty" db:"name"`
	Email           string                            `json:"email,omitempty" db:"email"`
	Phone           string                            `json:"phone,omitempty" db:"phone"`
	Address         string                            `json:"address,omitempty" db:"address"`
	SocialMedia     database.JSONB[[]SocialMediaLink] `json:"social_media" db:"social_media"`
	Confidence      int                               `json:"confidence" db:"confidence"`
	CreatedAt       time.Time                         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time                         `json:"updated_at" db:"updated_at"`
	DeletedAt       *time.Time                        `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CreateProfileRequest is the request body for creating a profile
type CreateProfileRequest struct {
	InvestigationID string            `json:"investigation_id" validate:"required"`
	Name            string            `json:"name,omitempty"`
	Email           string            `json:"email,omitempty" validate:"omitempty,email"`
	Phone           string            `json:"phone,omitempty"`
	Address         string            `json:"address,omitempty"`
	SocialMedia     []SocialMediaLink `json:"social_media,omitempty"`
}

// UpdateProfileRequest is the request body for updating a profile
type UpdateProfileRequest struct {
	Name        *string            `json:"name,omitempty"`
	Email       *string            `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string            `json:"phone,omitempty"`
	Address     *string            `json:"address,omitempty"`
	SocialMedia *[]SocialMediaLink `json:"social_media,omitempty"`
	Confidence  *int               `json:"confidence,omitempty" validate:"omitempty,min=0,max=100"`
}

// ProfileListResponse is the API response for listing profiles
type ProfileListResponse struct {
	Items      []Profile `json:"items"`
	TotalCount int       `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
}
