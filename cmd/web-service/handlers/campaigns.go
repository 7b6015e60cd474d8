package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/service/campaign"
)

// === Request types ===

type CampaignRequest struct {
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Subject     string     `json:"subject"`
	Content     string     `json:"content"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Audience    []string   `json:"target_audience"`
}

func (c CampaignRequest) input() campaign.Input {
	return campaign.Input{
		Name:        c.Name,
		Type:        models.CampaignType(c.Type),
		Subject:     c.Subject,
		Content:     c.Content,
		ScheduledAt: c.ScheduledAt,
		Audience:    c.Audience,
	}
}

type StatusRequest struct {
	Status string `json:"status"`
}

// actor is the resolved user behind the request. Routes using it sit behind
// RequireRoles, so the user is always resolved there.
func actor(r *http.Request) *models.User {
	if u := snapshotFrom(r).User; u != nil {
		return u
	}
	return &models.User{}
}

// === Handlers ===

func (h *handler) listCampaigns(w http.ResponseWriter, r *http.Request) error {
	list, err := h.Campaigns.List(r.Context(), actor(r).CompanyID)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Campaign{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": list})
	return nil
}

func (h *handler) getCampaign(w http.ResponseWriter, r *http.Request) error {
	c, err := h.Campaigns.Get(r.Context(), actor(r).CompanyID, chi.URLParam(r, "campaignID"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, c)
	return nil
}

func (h *handler) createCampaign(w http.ResponseWriter, r *http.Request) error {
	var req CampaignRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	u := actor(r)
	c, err := h.Campaigns.Create(r.Context(), u.CompanyID, u.ID, req.input())
	if err != nil {
		return err
	}
	h.Log.InfoContext(r.Context(), "campaign created", "company_id", c.CompanyID, "campaign_id", c.ID, "status", string(c.Status))
	writeJSON(w, http.StatusCreated, c)
	return nil
}

func (h *handler) updateCampaign(w http.ResponseWriter, r *http.Request) error {
	var req CampaignRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	c, err := h.Campaigns.Update(r.Context(), actor(r).CompanyID, chi.URLParam(r, "campaignID"), req.input())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, c)
	return nil
}

func (h *handler) setCampaignStatus(w http.ResponseWriter, r *http.Request) error {
	var req StatusRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	c, err := h.Campaigns.SetStatus(r.Context(), actor(r).CompanyID, chi.URLParam(r, "campaignID"), models.CampaignStatus(req.Status))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, c)
	return nil
}

func (h *handler) duplicateCampaign(w http.ResponseWriter, r *http.Request) error {
	u := actor(r)
	c, err := h.Campaigns.Duplicate(r.Context(), u.CompanyID, u.ID, chi.URLParam(r, "campaignID"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, c)
	return nil
}

func (h *handler) deleteCampaign(w http.ResponseWriter, r *http.Request) error {
	if err := h.Campaigns.Delete(r.Context(), actor(r).CompanyID, chi.URLParam(r, "campaignID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
