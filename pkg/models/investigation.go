package models

import "time"

// InvestigationStatus represents the workflow state of an investigation
type InvestigationStatus string

const (
	InvestigationStatusPending  InvestigationStatus = "pending"
	InvestigationStatusActive   InvestigationStatus = "active"
	InvestigationStatusClosed   InvestigationStatus = "closed"
	InvestigationStatusArchived InvestigationStatus = "archived"
)

// Investigation is a case grouping related profiles and discovered entities
type Investigation struct {
	ID          string              `json:"id" db:"id"`
	OwnerID     string              `json:"owner_id" db:"owner_id"`
	Title       string              `json:"title" db:"title" validate:"required"`
	Description string              `json:"description,omitempty" db:"description"`
	Status      InvestigationStatus `json:"status" db:"status"`
	Priority    string              `json:"priority" db:"priority"`
	Profiles    int                 `json:"profiles" db:"profiles"`
	Confidence  int                 `json:"confidence" db:"confidence"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" db:"updated_at"`
	DeletedAt   *time.Time          `json:"deleted_at,omitempty" db:"deleted_at"`
}

// CreateInvestigationRequest is the request body for creating an investigation
type CreateInvestigationRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
}

// UpdateInvestigationRequest is the request body for updating an investigation
type UpdateInvestigationRequest struct {
	Title       *string              `json:"title,omitempty"`
	Description *string              `json:"description,omitempty"`
	Status      *InvestigationStatus `json:"status,omitempty"`
	Priority    *string              `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
}

// InvestigationFilter narrows investigation list queries
type InvestigationFilter struct {
	Status   string
	Priority string
	Search   string
}

// InvestigationListResponse is the API response for listing investigations
type InvestigationListResponse struct {
	Items      []Investigation `json:"items"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}
