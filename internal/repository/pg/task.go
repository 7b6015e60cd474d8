// internal/repository/pg/task.go
package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

const taskSelect = `
	SELECT t.id, t.company_id, t.title, COALESCE(t.description, ''), t.status, t.priority,
	       t.assigned_to, t.assigned_by, COALESCE(p.name, 'Unknown'), t.due_date, t.created_at, t.updated_at
	FROM tasks t
	LEFT JOIN profiles p ON p.id = t.assigned_to`

func (r *Repository) ListTasks(ctx context.Context, companyID, assignee string) ([]models.Task, error) {
	rows, err := r.db.Query(ctx, taskSelect+`
		WHERE t.company_id = $1 AND ($2::text = '' OR t.assigned_to = $2)
		ORDER BY t.created_at DESC, t.id`, companyID, assignee)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *Repository) GetTask(ctx context.Context, companyID, id string) (*models.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx, taskSelect+`
		WHERE t.company_id = $1 AND t.id = $2`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *Repository) CreateTask(ctx context.Context, t *models.Task) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO tasks (id, company_id, title, description, status, priority,
			assigned_to, assigned_by, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.CompanyID, t.Title, t.Description, string(t.Status), string(t.Priority),
		t.AssignedTo, t.AssignedBy, t.DueDate, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *Repository) UpdateTaskStatus(ctx context.Context, companyID, id string, status models.TaskStatus, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tasks SET status = $3, updated_at = $4 WHERE company_id = $1 AND id = $2`,
		companyID, id, string(status), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteTask(ctx context.Context, companyID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		t                models.Task
		status, priority string
	)
	err := row.Scan(&t.ID, &t.CompanyID, &t.Title, &t.Description, &status, &priority,
		&t.AssignedTo, &t.AssignedBy, &t.AssigneeName, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.Priority = models.TaskPriority(priority)
	return &t, nil
}
