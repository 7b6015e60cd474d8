package models

import (
	"errors"
	"time"
)

// ErrNoTenant is returned when a tenant-scoped operation runs for a user that
// is not linked to a company yet.
var ErrNoTenant = errors.New("user is not linked to a company")

type CampaignType string

const (
	CampaignEmail  CampaignType = "email"
	CampaignSMS    CampaignType = "sms"
	CampaignSocial CampaignType = "social"
)

func (t CampaignType) Valid() bool {
	switch t {
	case CampaignEmail, CampaignSMS, CampaignSocial:
		return true
	}
	return false
}

type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignRunning   CampaignStatus = "running"
	CampaignCompleted CampaignStatus = "completed"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignDraft, CampaignScheduled, CampaignRunning, CampaignCompleted:
		return true
	}
	return false
}

// Editable reports whether the campaign content may still change.
func (s CampaignStatus) Editable() bool {
	return s == CampaignDraft || s == CampaignScheduled
}

// CanMoveTo reports whether a campaign in s may move to next.
func (s CampaignStatus) CanMoveTo(next CampaignStatus) bool {
	switch s {
	case CampaignDraft:
		return next == CampaignScheduled || next == CampaignRunning
	case CampaignScheduled:
		return next == CampaignDraft || next == CampaignRunning
	case CampaignRunning:
		return next == CampaignCompleted
	}
	return false
}

// Campaign is a tenant's email, SMS or social message. Subject is used by
// email campaigns only.
type Campaign struct {
	ID          string         `json:"id"`
	CompanyID   string         `json:"company_id"`
	Name        string         `json:"name"`
	Type        CampaignType   `json:"type"`
	Status      CampaignStatus `json:"status"`
	Subject     string         `json:"subject,omitempty"`
	Content     string         `json:"content"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	Audience    []string       `json:"target_audience"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
