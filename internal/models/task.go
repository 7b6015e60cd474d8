package models

import (
	"strings"
	"time"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskDeclined   TaskStatus = "declined"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskDeclined:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// ParsePriority maps a submitted priority onto the closed set; empty means
// medium.
func ParsePriority(s string) (TaskPriority, bool) {
	p := TaskPriority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return PriorityMedium, true
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	}
	return p, false
}

// Task is work an admin assigns to a member of the same company.
// AssigneeName is read-only, joined from the assignee's profile.
type Task struct {
	ID           string       `json:"id"`
	CompanyID    string       `json:"company_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Status       TaskStatus   `json:"status"`
	Priority     TaskPriority `json:"priority"`
	AssignedTo   string       `json:"assigned_to"`
	AssignedBy   string       `json:"assigned_by"`
	AssigneeName string       `json:"assignee_name"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
