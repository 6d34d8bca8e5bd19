package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-account-service/internal/models"
)

// TokenRefresher defines the interface that the token rotation service must implement.
type TokenRefresher interface {
	RefreshTokens(ctx context.Context, incoming string) (*models.TokenPair, error)
}

// RefreshTokenRequest is the optional body used when the cookie is absent.
// swagger:model RefreshTokenRequest
type RefreshTokenRequest struct {
	// Refresh token
	// default: REFRESH_TOKEN
	RefreshToken string `json:"refreshToken"`
}

// NewRefreshTokenHandler returns an HTTP handler that rotates the refresh token.
// @Summary Refresh access token
// @Description Exchanges the current refresh token, read from the refreshToken cookie or the JSON body, for a new token pair. A superseded token is rejected.
// @Tags auth
// @Accept json
// @Produce json
// @Param refreshTokenRequest body handlers.RefreshTokenRequest false "Refresh token when no cookie is sent"
// @Success 200 {object} handlers.Response{data=models.TokenPair} "Access token refreshed"
// @Failure 401 {object} handlers.ErrorResponse "Invalid, expired or used refresh token"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /refresh-token [get]
// @Router /refresh-token [post]
func NewRefreshTokenHandler(svc TokenRefresher, cookieSecure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pair, err := svc.RefreshTokens(r.Context(), refreshTokenFromRequest(r))
		if err != nil {
			writeError(w, r, err)
			return
		}

		setAuthCookies(w, *pair, cookieSecure)
		writeJSON(w, http.StatusOK, pair, "Access token refreshed")
	}
}

func refreshTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(RefreshTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}

	var req RefreshTokenRequest
	if r.Body != nil {
		// An absent or malformed body means no token; the service answers 401.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	return req.RefreshToken
}
