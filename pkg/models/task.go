package models

import (
	"encoding/json"
	"time"
)

// TaskStatus represents the lifecycle state of a scan task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether the status is a final state that can never change
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// TaskKind identifies which scan provider handles a task
type TaskKind string

const (
	TaskKindEmailScan  TaskKind = "email_scan"
	TaskKindPhoneScan  TaskKind = "phone_scan"
	TaskKindSocialScan TaskKind = "social_scan"
	TaskKindImageScan  TaskKind = "image_scan"
	TaskKindGeneric    TaskKind = "generic"
)

// Task tracks a single asynchronous scan from submission to completion
type Task struct {
	ID              string          `json:"id"`
	Kind            TaskKind        `json:"type"`
	Status          TaskStatus      `json:"status"`
	Progress        int             `json:"progress"`
	Target          string          `json:"target"`
	InvestigationID string          `json:"investigation_id,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// Clone returns a deep copy so callers can't mutate stored state
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Result != nil {
		cp.Result = make(json.RawMessage, len(t.Result))
		copy(cp.Result, t.Result)
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		cp.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		cp.CompletedAt = &completed
	}
	return &cp
}

// SubmitScanRequest is the request body for starting a scan
type SubmitScanRequest struct {
	Target          string `json:"target" validate:"required"`
	InvestigationID string `json:"investigation_id,omitempty"`
}

// TaskListResponse is the API response for listing tasks
type TaskListResponse struct {
	Items      []*Task `json:"items"`
	TotalCount int     `json:"total_count"`
}
