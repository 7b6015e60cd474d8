package handlers

import (
	"net/http"

	"github.com/r2r72/x-mkt-v1/internal/access"
	"github.com/r2r72/x-mkt-v1/internal/views"
)

// view renders the descriptor of a route the gate let through. Signed-in
// users with a dashboard skip the login and signup pages.
func (h *handler) view(w http.ResponseWriter, r *http.Request) error {
	route, ok := access.RouteFrom(r.Context())
	if !ok {
		http.NotFound(w, r)
		return nil
	}
	snap := snapshotFrom(r)
	if (route.Pattern == access.LoginPath || route.Pattern == access.SignupPath) &&
		snap.IsAuthenticated && snap.Role().Valid() {
		http.Redirect(w, r, access.HomePath(snap.Role()), http.StatusSeeOther)
		return nil
	}
	writeJSON(w, http.StatusOK, views.Describe(route, r.URL.Path, snap.User, snap.Company))
	return nil
}
