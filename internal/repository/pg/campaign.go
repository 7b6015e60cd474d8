// internal/repository/pg/campaign.go
package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/r2r72/x-mkt-v1/internal/models"
)

const campaignColumns = `id, company_id, name, type, status, COALESCE(subject, ''), content,
	scheduled_at, target_audience, created_by, created_at, updated_at`

func (r *Repository) ListCampaigns(ctx context.Context, companyID string) ([]models.Campaign, error) {
	rows, err := r.db.Query(ctx, `SELECT `+campaignColumns+`
		FROM campaigns WHERE company_id = $1
		ORDER BY created_at DESC, id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

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
	row := r.db.QueryRow(ctx, `SELECT `+campaignColumns+`
		FROM campaigns WHERE company_id = $1 AND id = $2`, companyID, id)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (r *Repository) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO campaigns (id, company_id, name, type, status, subject, content,
			scheduled_at, target_audience, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12)`,
		c.ID, c.CompanyID, c.Name, string(c.Type), string(c.Status), c.Subject, c.Content,
		c.ScheduledAt, audience(c.Audience), c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *Repository) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE campaigns SET name = $3, type = $4, status = $5, subject = NULLIF($6, ''),
			content = $7, scheduled_at = $8, target_audience = $9, updated_at = $10
		WHERE company_id = $1 AND id = $2`,
		c.CompanyID, c.ID, c.Name, string(c.Type), string(c.Status), c.Subject,
		c.Content, c.ScheduledAt, audience(c.Audience), c.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteCampaign(ctx context.Context, companyID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM campaigns WHERE company_id = $1 AND id = $2`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func scanCampaign(row pgx.Row) (*models.Campaign, error) {
	var (
		c           models.Campaign
		typ, status string
	)
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &typ, &status, &c.Subject, &c.Content,
		&c.ScheduledAt, &c.Audience, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Type = models.CampaignType(typ)
	c.Status = models.CampaignStatus(status)
	if c.Audience == nil {
		c.Audience = []string{}
	}
	return &c, nil
}

// audience keeps the column NOT NULL for empty lists.
func audience(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}
