package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/r2r72/x-mkt-v1/internal/backend"
	"github.com/r2r72/x-mkt-v1/internal/models"
	"github.com/r2r72/x-mkt-v1/internal/service/auth"
	"github.com/r2r72/x-mkt-v1/internal/service/campaign"
	"github.com/r2r72/x-mkt-v1/internal/service/directory"
	"github.com/r2r72/x-mkt-v1/internal/service/task"
	"github.com/r2r72/x-mkt-v1/internal/session"
)

// statusFor maps domain errors to a status and a message safe to show.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errBadJSON):
		return http.StatusBadRequest, "invalid json"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, auth.ErrUserInactive):
		return http.StatusForbidden, "user account is inactive"
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, "user already exists"
	case errors.Is(err, session.ErrSignupIncomplete):
		return http.StatusBadGateway, session.ErrSignupIncomplete.Error()
	case errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, directory.ErrInvalidTenant),
		errors.Is(err, directory.ErrInvalidProfile),
		errors.Is(err, directory.ErrInvalidRole),
		errors.Is(err, session.ErrInvalidMember),
		errors.Is(err, campaign.ErrInvalidCampaign),
		errors.Is(err, task.ErrInvalidTask):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, campaign.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, campaign.ErrNotFound):
		return http.StatusNotFound, "campaign not found"
	case errors.Is(err, task.ErrNotFound):
		return http.StatusNotFound, "task not found"
	case errors.Is(err, backend.ErrNoSession):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, session.ErrForbidden),
		errors.Is(err, task.ErrForbidden),
		errors.Is(err, models.ErrNoTenant):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, session.ErrMemberNotFound):
		return http.StatusNotFound, "team member not found"
	case errors.Is(err, session.ErrResolution):
		return http.StatusServiceUnavailable, "your account could not be loaded, please sign in again"
	case errors.Is(err, session.ErrRegistryFull), errors.Is(err, session.ErrRegistryClosed):
		return http.StatusServiceUnavailable, "session unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
