package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/session"
)

type AddMemberRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *handler) listMembers(w http.ResponseWriter, r *http.Request) error {
	members, err := storeFrom(r).Members(r.Context())
	if err != nil {
		return err
	}
	if members == nil {
		members = []models.Member{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
	return nil
}

func (h *handler) addMember(w http.ResponseWriter, r *http.Request) error {
	var req AddMemberRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	role, _ := models.ParseRole(req.Role)
	m, err := storeFrom(r).AddMember(r.Context(), session.MemberInput{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, m)
	return nil
}

func (h *handler) removeMember(w http.ResponseWriter, r *http.Request) error {
	if err := storeFrom(r).RemoveMember(r.Context(), chi.URLParam(r, "memberID")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
