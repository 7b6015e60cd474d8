package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

const taskSelect = `
	SELECT t.id, t.company_id, t.title, t.description, t.status, t.priority,
	       t.assigned_to, t.assigned_by, COALESCE(p.name, 'Unknown'), t.due_date, t.created_at, t.updated_at
	FROM tasks t
	LEFT JOIN profiles p ON p.id = t.assigned_to`

func (r *Repository) ListTasks(ctx context.Context, companyID, assignee string) ([]models.Task, error) {
	rows, err := r.db.QueryContext(ctx, taskSelect+`
		WHERE t.company_id = ? AND (? = '' OR t.assigned_to = ?)
		ORDER BY t.created_at DESC, t.id`, companyID, assignee, assignee)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

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
	t, err := scanTask(r.db.QueryRowContext(ctx, taskSelect+`
		WHERE t.company_id = ? AND t.id = ?`, companyID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *Repository) CreateTask(ctx context.Context, t *models.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, company_id, title, description, status, priority,
			assigned_to, assigned_by, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.CompanyID, t.Title, nullString(t.Description), string(t.Status), string(t.Priority),
		t.AssignedTo, t.AssignedBy, nullTime(t.DueDate), t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	return err
}

func (r *Repository) UpdateTaskStatus(ctx context.Context, companyID, id string, status models.TaskStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE company_id = ? AND id = ?`,
		string(status), at.UTC(), companyID, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *Repository) DeleteTask(ctx context.Context, companyID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE company_id = ? AND id = ?`, companyID, id)
	if err != nil {
		return err
	}
	return affected(res)
}

func scanTask(row scanner) (*models.Task, error) {
	var (
		t                models.Task
		status, priority string
		description      sql.NullString
		due              sql.NullTime
	)
	err := row.Scan(&t.ID, &t.CompanyID, &t.Title, &description, &status, &priority,
		&t.AssignedTo, &t.AssignedBy, &t.AssigneeName, &due, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Description = description.String
	t.Status = models.TaskStatus(status)
	t.Priority = models.TaskPriority(priority)
	if due.Valid {
		d := due.Time.UTC()
		t.DueDate = &d
	}
	return &t, nil
}
