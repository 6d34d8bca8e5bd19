package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-account-service/internal/middlewares"
)

// Logouter defines the interface that the logout service must implement.
type Logouter interface {
	Logout(ctx context.Context, userID uuid.UUID) error
}

// NewLogoutHandler returns an HTTP handler that revokes the stored refresh token.
// @Summary User logout
// @Description Clears the stored refresh token and both auth cookies.
// @Tags auth
// @Produce json
// @Success 200 {object} handlers.Response{data=handlers.Empty} "User logged out"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized request"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /logout [post]
// @Security BearerAuth
func NewLogoutHandler(svc Logouter, cookieSecure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromRequest(w, r)
		if !ok {
			return
		}

		if err := svc.Logout(r.Context(), userID); err != nil {
			writeError(w, r, err)
			return
		}

		clearAuthCookies(w, cookieSecure)
		writeJSON(w, http.StatusOK, Empty{}, "User logged out")
	}
}

// userIDFromRequest returns the id AuthMiddleware stored, answering 401 when it is absent.
func userIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middlewares.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, nil, "unauthorized request")
		return uuid.Nil, false
	}
	return userID, true
}
