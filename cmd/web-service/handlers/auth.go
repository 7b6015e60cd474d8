package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/r2r72/x-mkt-v1/internal/access"
	"github.com/r2r72/x-mkt-v1/internal/backend"
	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/session"
)

// === Request and response types ===

// SessionResponse is the useSession surface.
type SessionResponse struct {
	User            *models.User    `json:"user"`
	Company         *models.Company `json:"company"`
	IsAuthenticated bool            `json:"is_authenticated"`
	Loading         bool            `json:"loading"`
	Home            string          `json:"home,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

type SignupRequest struct {
	CompanyName  string `json:"company_name"`
	BusinessType string `json:"business_type"`
	Location     string `json:"location"`
	CompanyEmail string `json:"company_email"`
	CompanyPhone string `json:"company_phone"`
	AdminName    string `json:"admin_name"`
	AdminEmail   string `json:"admin_email"`
	Password     string `json:"password"`
}

type RedirectResponse struct {
	Redirect string          `json:"redirect"`
	User     *models.User    `json:"user,omitempty"`
	Company  *models.Company `json:"company,omitempty"`
}

// === Handlers ===

func sessionResponse(snap session.Snapshot) SessionResponse {
	resp := SessionResponse{
		User:            snap.User,
		Company:         snap.Company,
		IsAuthenticated: snap.IsAuthenticated,
		Loading:         snap.Loading,
	}
	if snap.User != nil {
		resp.Home = access.HomePath(snap.Role())
	}
	return resp
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, sessionResponse(snapshotFrom(r)))
	return nil
}

// login: 200 {redirect}, 400, 401, 403 (inactive), 429, 503 (unresolved).
func (h *handler) login(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return nil
	}

	ip := clientIP(r)
	if h.Limiter != nil {
		key := fmt.Sprintf("login:%s:%s", ip, strings.ToLower(strings.TrimSpace(req.Email)))
		ok, err := h.Limiter.Allow(r.Context(), key)
		if err != nil {
			h.Log.WarnContext(r.Context(), "rate limiter unavailable", "err", err)
		} else if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(h.LimitPolicy.RetryAfter().Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many login attempts"})
			return nil
		}
	}

	store, err := h.ensureStore(w, r)
	if err != nil {
		return err
	}
	ctx := backend.WithClientInfo(r.Context(), ip, r.UserAgent())
	if _, err := store.Login(ctx, req.Email, req.Password); err != nil {
		return err
	}
	snap := store.Snapshot()
	writeJSON(w, http.StatusOK, RedirectResponse{
		Redirect: h.Routes.LandingPath(snap.Role(), req.Next),
		User:     snap.User,
		Company:  snap.Company,
	})
	return nil
}

// signup: 201 {redirect}, 400, 409, 502 (workspace setup failed).
func (h *handler) signup(w http.ResponseWriter, r *http.Request) error {
	var req SignupRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	store, err := h.ensureStore(w, r)
	if err != nil {
		return err
	}
	home, err := store.Signup(r.Context(), session.SignupInput{
		CompanyName:  req.CompanyName,
		BusinessType: models.BusinessType(strings.ToLower(strings.TrimSpace(req.BusinessType))),
		Location:     req.Location,
		CompanyEmail: req.CompanyEmail,
		CompanyPhone: req.CompanyPhone,
		AdminName:    req.AdminName,
		AdminEmail:   req.AdminEmail,
		Password:     req.Password,
	})
	if err != nil {
		return err
	}
	snap := store.Snapshot()
	writeJSON(w, http.StatusCreated, RedirectResponse{Redirect: home, User: snap.User, Company: snap.Company})
	return nil
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) error {
	redirect := access.LoginPath
	if store := storeFrom(r); store != nil {
		redirect = store.Logout(r.Context())
	}
	writeJSON(w, http.StatusOK, RedirectResponse{Redirect: redirect})
	return nil
}
