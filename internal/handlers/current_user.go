package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-account-service/internal/models"
)

// CurrentUserGetter defines the interface that the account service must implement.
type CurrentUserGetter interface {
	GetCurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// NewCurrentUserHandler returns an HTTP handler for the authenticated user's profile.
// @Summary Current user
// @Description Returns the authenticated user without credentials.
// @Tags account
// @Produce json
// @Success 200 {object} handlers.Response{data=models.User} "User fetched successfully"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized request"
// @Failure 404 {object} handlers.ErrorResponse "User not found"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /current-user [get]
// @Security BearerAuth
func NewCurrentUserHandler(svc CurrentUserGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromRequest(w, r)
		if !ok {
			return
		}

		user, err := svc.GetCurrentUser(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, user, "User fetched successfully")
	}
}
