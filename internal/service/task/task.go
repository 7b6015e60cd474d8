// Package task assigns work to team members. Admins create tasks for members
// of their own company; assignees move them through their status.
package task

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
	ErrInvalidTask = errors.New("invalid task")
	ErrNotFound    = errors.New("task not found")
	ErrForbidden   = errors.New("task operation not permitted")
)

// Repository stores tasks. Every call is scoped to one company.
type Repository interface {
	// ListTasks returns the company's tasks newest first, all of them when
	// assignee is empty. AssigneeName is filled from the assignee's profile.
	ListTasks(ctx context.Context, companyID, assignee string) ([]models.Task, error)
	GetTask(ctx context.Context, companyID, id string) (*models.Task, error)
	CreateTask(ctx context.Context, t *models.Task) error
	UpdateTaskStatus(ctx context.Context, companyID, id string, status models.TaskStatus, at time.Time) error
	DeleteTask(ctx context.Context, companyID, id string) error
}

// Profiles looks up the assignee. directory.Service satisfies it.
type Profiles interface {
	GetProfile(ctx context.Context, principalID string) (*models.Profile, *models.Company, error)
}

// Actor is the signed-in user a call runs for.
type Actor struct {
	ID        string
	CompanyID string
	Role      models.Role
}

func (a Actor) admin() bool { return a.Role == models.RoleAdmin }

type Input struct {
	Title       string
	Description string
	Priority    string
	AssignedTo  string
	DueDate     *time.Time
}

type Service struct {
	repo     Repository
	profiles Profiles
	now      func() time.Time
}

func NewService(repo Repository, profiles Profiles) *Service {
	return &Service{repo: repo, profiles: profiles, now: time.Now}
}

// List returns every task of the company to admins and only their own tasks
// to everyone else.
func (s *Service) List(ctx context.Context, actor Actor) ([]models.Task, error) {
	if actor.CompanyID == "" {
		return nil, models.ErrNoTenant
	}
	assignee := actor.ID
	if actor.admin() {
		assignee = ""
	}
	out, err := s.repo.ListTasks(ctx, actor.CompanyID, assignee)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

// Create assigns a new pending task. Only admins create tasks, and only for
// members of their company.
func (s *Service) Create(ctx context.Context, actor Actor, in Input) (*models.Task, error) {
	if actor.CompanyID == "" {
		return nil, models.ErrNoTenant
	}
	if !actor.admin() {
		return nil, fmt.Errorf("%w: only admins assign tasks", ErrForbidden)
	}
	title := strings.TrimSpace(in.Title)
	priority, ok := models.ParsePriority(in.Priority)
	switch {
	case title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidTask)
	case !ok:
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, in.Priority)
	case in.AssignedTo == "":
		return nil, fmt.Errorf("%w: assignee is required", ErrInvalidTask)
	}

	assignee, _, err := s.profiles.GetProfile(ctx, in.AssignedTo)
	if err != nil {
		return nil, fmt.Errorf("get assignee: %w", err)
	}
	if assignee == nil || assignee.CompanyID != actor.CompanyID {
		return nil, fmt.Errorf("%w: assignee is not a member of this company", ErrInvalidTask)
	}

	now := s.now().UTC()
	t := &models.Task{
		ID:           uuid.NewString(),
		CompanyID:    actor.CompanyID,
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Status:       models.TaskPending,
		Priority:     priority,
		AssignedTo:   assignee.ID,
		AssignedBy:   actor.ID,
		AssigneeName: assignee.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.DueDate != nil && !in.DueDate.IsZero() {
		due := in.DueDate.UTC()
		t.DueDate = &due
	}
	if err := s.repo.CreateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// SetStatus is open to admins and to the assignee. Tasks of other members are
// reported as not found.
func (s *Service) SetStatus(ctx context.Context, actor Actor, id string, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTask, status)
	}
	t, err := s.get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.repo.UpdateTaskStatus(ctx, actor.CompanyID, id, status, now); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	t.Status = status
	t.UpdatedAt = now
	return t, nil
}

func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	if actor.CompanyID == "" {
		return models.ErrNoTenant
	}
	if !actor.admin() {
		return fmt.Errorf("%w: only admins delete tasks", ErrForbidden)
	}
	if err := s.repo.DeleteTask(ctx, actor.CompanyID, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, actor Actor, id string) (*models.Task, error) {
	if actor.CompanyID == "" {
		return nil, models.ErrNoTenant
	}
	t, err := s.repo.GetTask(ctx, actor.CompanyID, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	if !actor.admin() && t.AssignedTo != actor.ID {
		return nil, ErrNotFound
	}
	return t, nil
}
