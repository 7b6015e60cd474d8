package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

const campaignColumns = `id, company_id, name, type, status, subject, content,
	scheduled_at, target_audience, created_by, created_at, updated_at`

func (r *Repository) ListCampaigns(ctx context.Context, companyID string) ([]models.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+campaignColumns+`
		FROM campaigns WHERE company_id = ?
		ORDER BY created_at DESC, id`, companyID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *Repository) GetCampaign(ctx context.Context, companyID, id string) (*models.Campaign, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+campaignColumns+`
		FROM campaigns WHERE company_id = ? AND id = ?`, companyID, id)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *Repository) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	aud, err := marshalAudience(c.Audience)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO campaigns (id, company_id, name, type, status, subject, content,
			scheduled_at, target_audience, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.CompanyID, c.Name, string(c.Type), string(c.Status), nullString(c.Subject), c.Content,
		nullTime(c.ScheduledAt), aud, c.CreatedBy, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	return err
}

func (r *Repository) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	aud, err := marshalAudience(c.Audience)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET name = ?, type = ?, status = ?, subject = ?, content = ?,
			scheduled_at = ?, target_audience = ?, updated_at = ?
		WHERE company_id = ? AND id = ?`,
		c.Name, string(c.Type), string(c.Status), nullString(c.Subject), c.Content,
		nullTime(c.ScheduledAt), aud, c.UpdatedAt.UTC(), c.CompanyID, c.ID)
	if err != nil {
		return err
	}
	return affected(res)
}

func (r *Repository) DeleteCampaign(ctx context.Context, companyID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE company_id = ? AND id = ?`, companyID, id)
	if err != nil {
		return err
	}
	return affected(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row scanner) (*models.Campaign, error) {
	var (
		c           models.Campaign
		typ, status string
		subject     sql.NullString
		scheduled   sql.NullTime
		aud         string
	)
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &typ, &status, &subject, &c.Content,
		&scheduled, &aud, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Type = models.CampaignType(typ)
	c.Status = models.CampaignStatus(status)
	c.Subject = subject.String
	if scheduled.Valid {
		at := scheduled.Time.UTC()
		c.ScheduledAt = &at
	}
	c.Audience = []string{}
	if aud != "" {
		if err := json.Unmarshal([]byte(aud), &c.Audience); err != nil {
			return nil, fmt.Errorf("unmarshal audience: %w", err)
		}
	}
	return &c, nil
}

func marshalAudience(a []string) (string, error) {
	if a == nil {
		a = []string{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal audience: %w", err)
	}
	return string(b), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// affected maps an update or delete that matched nothing to models.ErrNotFound.
func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}
