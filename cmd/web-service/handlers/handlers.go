// Package handlers contains the HTTP surface of the web service.
//
// Endpoints:
//
//	GET    /health
//	GET    /api/session        current session snapshot
//	POST   /api/auth/login     sign in, returns the landing path
//	POST   /api/auth/signup    create tenant and admin
//	POST   /api/auth/logout    sign out, always succeeds
//	GET    /api/team           admin: list members
//	POST   /api/team           admin: add a member
//	DELETE /api/team/{id}      admin: remove a member
//	GET    /api/campaigns                   marketer, admin: list
//	POST   /api/campaigns                   create
//	GET    /api/campaigns/{id}              read
//	PUT    /api/campaigns/{id}              edit a draft or scheduled campaign
//	PATCH  /api/campaigns/{id}/status       move along its lifecycle
//	POST   /api/campaigns/{id}/duplicate    copy into a new draft
//	DELETE /api/campaigns/{id}              delete
//	GET    /api/tasks                       admin: all tasks, others: their own
//	POST   /api/tasks                       admin: assign a task
//	PATCH  /api/tasks/{id}/status           admin or assignee
//	DELETE /api/tasks/{id}                  admin
//	GET    <route table>       gated view descriptors
//
// A browser is identified by an opaque client cookie that selects its session
// store. The cookie and store are created by login or signup; until then the
// client is anonymous.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/r2r72/x-mkt-v1/internal/access"
	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/ratelimit"
	"github.com/r2r72/x-mkt-v1/internal/service/campaign"
	"github.com/r2r72/x-mkt-v1/internal/service/task"
	"github.com/r2r72/x-mkt-v1/internal/session"
)

// ClientCookie names the cookie carrying the client id.
const ClientCookie = "mkt_client"

type Deps struct {
	Sessions      *session.Registry
	Campaigns     *campaign.Service
	Tasks         *task.Service
	Routes        *access.RouteTable
	Limiter       ratelimit.Limiter
	LimitPolicy   ratelimit.Policy
	Log           *slog.Logger
	SecureCookies bool
	// Ready reports backing store health for /health; nil means always ready.
	Ready func(ctx context.Context) error
}

// Register mounts every route on r.
func Register(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	h := &handler{Deps: d}

	r.Get("/health", h.withError(h.health))

	r.Group(func(r chi.Router) {
		r.Use(h.session)

		r.Get("/api/session", h.withError(h.getSession))
		r.Post("/api/auth/login", h.withError(h.login))
		r.Post("/api/auth/signup", h.withError(h.signup))
		r.Post("/api/auth/logout", h.withError(h.logout))

		r.Route("/api/team", func(r chi.Router) {
			r.Use(access.RequireRoles(h.subject, models.RoleAdmin))
			r.Get("/", h.withError(h.listMembers))
			r.Post("/", h.withError(h.addMember))
			r.Delete("/{memberID}", h.withError(h.removeMember))
		})

		r.Route("/api/campaigns", func(r chi.Router) {
			r.Use(access.RequireRoles(h.subject, models.RoleMarketer, models.RoleAdmin))
			r.Get("/", h.withError(h.listCampaigns))
			r.Post("/", h.withError(h.createCampaign))
			r.Route("/{campaignID}", func(r chi.Router) {
				r.Get("/", h.withError(h.getCampaign))
				r.Put("/", h.withError(h.updateCampaign))
				r.Delete("/", h.withError(h.deleteCampaign))
				r.Patch("/status", h.withError(h.setCampaignStatus))
				r.Post("/duplicate", h.withError(h.duplicateCampaign))
			})
		})

		r.Route("/api/tasks", func(r chi.Router) {
			r.Use(access.RequireRoles(h.subject, models.RoleAdmin, models.RoleMarketer, models.RoleSales))
			r.Get("/", h.withError(h.listTasks))
			r.Post("/", h.withError(h.createTask))
			r.Patch("/{taskID}/status", h.withError(h.setTaskStatus))
			r.Delete("/{taskID}", h.withError(h.deleteTask))
		})

		r.Group(func(r chi.Router) {
			r.Use(access.Gate(d.Routes, h.subject, d.Log))
			for _, route := range d.Routes.Routes() {
				r.Get(route.Pattern, h.withError(h.view))
				if prefix, ok := strings.CutSuffix(route.Pattern, "/*"); ok {
					r.Get(prefix, h.withError(h.view))
				}
			}
		})
	})
}

type handler struct {
	Deps
}

// withError turns a returned error into a JSON response. Known errors map to
// their status; everything else is logged and becomes 500.
func (h *handler) withError(fn func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.Log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		}
		writeJSON(w, status, errorResponse{Error: msg})
	}
}

type storeKey struct{}

// session attaches the store of a known client and revalidates it. Clients
// without a store browse anonymously; one is opened only by ensureStore.
func (h *handler) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := clientID(r)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		store, ok := h.Sessions.Lookup(id)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if err := store.Revalidate(r.Context()); err != nil {
			h.Log.WarnContext(r.Context(), "session revalidation failed", "err", err)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), storeKey{}, store)))
	})
}

// ensureStore returns the request's store, opening one and issuing the client
// cookie when the client has none yet.
func (h *handler) ensureStore(w http.ResponseWriter, r *http.Request) (*session.Store, error) {
	if s := storeFrom(r); s != nil {
		return s, nil
	}
	id := clientID(r)
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     ClientCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			Secure:   h.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
	store, err := h.Sessions.Get(r.Context(), id)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return store, nil
}

func clientID(r *http.Request) string {
	c, err := r.Cookie(ClientCookie)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// storeFrom returns the client's store, nil for anonymous clients.
func storeFrom(r *http.Request) *session.Store {
	s, _ := r.Context().Value(storeKey{}).(*session.Store)
	return s
}

// snapshotFrom is the anonymous snapshot when the client has no store.
func snapshotFrom(r *http.Request) session.Snapshot {
	if s := storeFrom(r); s != nil {
		return s.Snapshot()
	}
	return session.Snapshot{}
}

func (h *handler) subject(r *http.Request) access.Subject {
	return snapshotFrom(r).Subject()
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) error {
	if h.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ready(ctx); err != nil {
			h.Log.WarnContext(r.Context(), "health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return nil
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

var errBadJSON = errors.New("invalid json")

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		return errBadJSON
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
