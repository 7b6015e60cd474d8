// Package campaign manages a tenant's marketing campaigns.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

var (
	ErrInvalidCampaign   = errors.New("invalid campaign")
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("campaign status change not allowed")
)

// Repository stores campaigns. Every call is scoped to one company; a
// campaign of another company is models.ErrNotFound.
type Repository interface {
	ListCampaigns(ctx context.Context, companyID string) ([]models.Campaign, error)
	GetCampaign(ctx context.Context, companyID, id string) (*models.Campaign, error)
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	UpdateCampaign(ctx context.Context, c *models.Campaign) error
	DeleteCampaign(ctx context.Context, companyID, id string) error
}

// Input is the campaign form.
type Input struct {
	Name        string
	Type        models.CampaignType
	Subject     string
	Content     string
	ScheduledAt *time.Time
	Audience    []string
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns the company's campaigns, newest first.
func (s *Service) List(ctx context.Context, companyID string) ([]models.Campaign, error) {
	if companyID == "" {
		return nil, models.ErrNoTenant
	}
	out, err := s.repo.ListCampaigns(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, companyID, id string) (*models.Campaign, error) {
	if companyID == "" {
		return nil, models.ErrNoTenant
	}
	c, err := s.repo.GetCampaign(ctx, companyID, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

// Create stores a new campaign by actorID. It starts scheduled when a send
// time is given and as a draft otherwise.
func (s *Service) Create(ctx context.Context, companyID, actorID string, in Input) (*models.Campaign, error) {
	if companyID == "" {
		return nil, models.ErrNoTenant
	}
	in, err := normalize(in)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	c := &models.Campaign{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		CreatedBy: actorID,
		Status:    models.CampaignDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(c, in)
	if c.ScheduledAt != nil {
		c.Status = models.CampaignScheduled
	}
	if err := s.repo.CreateCampaign(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return c, nil
}

// Update replaces the content of a draft or scheduled campaign.
func (s *Service) Update(ctx context.Context, companyID, id string, in Input) (*models.Campaign, error) {
	c, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.Editable() {
		return nil, fmt.Errorf("%w: %s campaigns cannot be edited", ErrInvalidTransition, c.Status)
	}
	if in, err = normalize(in); err != nil {
		return nil, err
	}
	apply(c, in)
	switch {
	case c.Status == models.CampaignDraft && c.ScheduledAt != nil:
		c.Status = models.CampaignScheduled
	case c.Status == models.CampaignScheduled && c.ScheduledAt == nil:
		c.Status = models.CampaignDraft
	}
	c.UpdatedAt = s.now().UTC()
	return c, s.save(ctx, c)
}

// SetStatus moves a campaign along draft, scheduled, running, completed.
func (s *Service) SetStatus(ctx context.Context, companyID, id string, status models.CampaignStatus) (*models.Campaign, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidCampaign, status)
	}
	c, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if c.Status == status {
		return c, nil
	}
	if !c.Status.CanMoveTo(status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, status)
	}
	if status == models.CampaignScheduled && c.ScheduledAt == nil {
		return nil, fmt.Errorf("%w: a send time is required to schedule", ErrInvalidCampaign)
	}
	c.Status = status
	c.UpdatedAt = s.now().UTC()
	return c, s.save(ctx, c)
}

// Duplicate copies a campaign into a new unscheduled draft owned by actorID.
func (s *Service) Duplicate(ctx context.Context, companyID, actorID, id string) (*models.Campaign, error) {
	src, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	dup := *src
	dup.ID = uuid.NewString()
	dup.Name = src.Name + " (Copy)"
	dup.Status = models.CampaignDraft
	dup.ScheduledAt = nil
	dup.Audience = append([]string{}, src.Audience...)
	dup.CreatedBy = actorID
	dup.CreatedAt = now
	dup.UpdatedAt = now
	if err := s.repo.CreateCampaign(ctx, &dup); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return &dup, nil
}

func (s *Service) Delete(ctx context.Context, companyID, id string) error {
	if companyID == "" {
		return models.ErrNoTenant
	}
	if err := s.repo.DeleteCampaign(ctx, companyID, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete campaign: %w", err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, c *models.Campaign) error {
	if err := s.repo.UpdateCampaign(ctx, c); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update campaign: %w", err)
	}
	return nil
}

func normalize(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Content = strings.TrimSpace(in.Content)
	in.Type = models.CampaignType(strings.ToLower(strings.TrimSpace(string(in.Type))))
	switch {
	case in.Name == "":
		return in, fmt.Errorf("%w: name is required", ErrInvalidCampaign)
	case !in.Type.Valid():
		return in, fmt.Errorf("%w: unknown type %q", ErrInvalidCampaign, in.Type)
	case in.Content == "":
		return in, fmt.Errorf("%w: content is required", ErrInvalidCampaign)
	case in.Type == models.CampaignEmail && in.Subject == "":
		return in, fmt.Errorf("%w: email campaigns need a subject", ErrInvalidCampaign)
	}
	if in.Type != models.CampaignEmail {
		in.Subject = ""
	}
	if in.ScheduledAt != nil {
		if in.ScheduledAt.IsZero() {
			in.ScheduledAt = nil
		} else {
			at := in.ScheduledAt.UTC()
			in.ScheduledAt = &at
		}
	}

	seen := make(map[string]bool, len(in.Audience))
	audience := make([]string, 0, len(in.Audience))
	for _, a := range in.Audience {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		audience = append(audience, a)
	}
	in.Audience = audience
	return in, nil
}

func apply(c *models.Campaign, in Input) {
	c.Name = in.Name
	c.Type = in.Type
	c.Subject = in.Subject
	c.Content = in.Content
	c.ScheduledAt = in.ScheduledAt
	c.Audience = in.Audience
}
