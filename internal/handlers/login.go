package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-account-service/internal/models"
)

// Loginer defines the interface that the login service must implement.
type Loginer interface {
	Login(ctx context.Context, username, email, password string) (*models.LoginResult, error)
}

// LoginRequest represents the JSON body for user login
// swagger:model LoginRequest
type LoginRequest struct {
	// Username, optional when email is given
	// default: john_doe
	Username string `json:"username"`

	// Email, optional when username is given
	// default: john@example.com
	Email string `json:"email"`

	// Password
	// required: true
	// default: secret123
	Password string `json:"password"`
}

// NewLoginHandler returns an HTTP handler for user login.
// @Summary User login
// @Description Authenticates by username and/or email and returns an access and refresh token pair, also set as HTTP-only cookies.
// @Tags auth
// @Accept json
// @Produce json
// @Param loginRequest body handlers.LoginRequest true "Login Request"
// @Success 200 {object} handlers.Response{data=models.LoginResult} "User logged in successfully"
// @Failure 400 {object} handlers.ErrorResponse "Invalid request body or missing fields"
// @Failure 401 {object} handlers.ErrorResponse "Invalid user credentials"
// @Failure 404 {object} handlers.ErrorResponse "User does not exist"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /login [post]
func NewLoginHandler(svc Loginer, cookieSecure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, nil, "invalid request body")
			return
		}

		res, err := svc.Login(r.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}

		setAuthCookies(w, res.TokenPair, cookieSecure)
		writeJSON(w, http.StatusOK, res, "User logged in successfully")
	}
}
