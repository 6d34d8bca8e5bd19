package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-account-service/internal/models"
)

// AccountUpdater defines the interface that the account service must implement.
type AccountUpdater interface {
	UpdateAccount(ctx context.Context, userID uuid.UUID, fullName, email string) (*models.User, error)
}

// UpdateAccountRequest represents the JSON body for an account update
// swagger:model UpdateAccountRequest
type UpdateAccountRequest struct {
	// New display name, unchanged when empty
	// default: John Doe
	FullName string `json:"fullName"`

	// New email, unchanged when empty
	// default: john@example.com
	Email string `json:"email"`
}

// NewUpdateAccountHandler returns an HTTP handler that updates display name and email.
// @Summary Update account details
// @Description Updates the full name and/or email of the authenticated user.
// @Tags account
// @Accept json
// @Produce json
// @Param updateAccountRequest body handlers.UpdateAccountRequest true "Account fields"
// @Success 200 {object} handlers.Response{data=models.User} "Account details updated successfully"
// @Failure 400 {object} handlers.ErrorResponse "No field to update"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized request"
// @Failure 409 {object} handlers.ErrorResponse "Email is already in use"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /update-account [patch]
// @Security BearerAuth
func NewUpdateAccountHandler(svc AccountUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromRequest(w, r)
		if !ok {
			return
		}

		var req UpdateAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, nil, "invalid request body")
			return
		}

		user, err := svc.UpdateAccount(r.Context(), userID, req.FullName, req.Email)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, user, "Account details updated successfully")
	}
}
