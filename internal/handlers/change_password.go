package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

// PasswordChanger defines the interface that the password service must implement.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword, confPassword string) error
}

// ChangePasswordRequest represents the JSON body for a password change
// swagger:model ChangePasswordRequest
type ChangePasswordRequest struct {
	// Current password
	// required: true
	OldPassword string `json:"oldPassword"`

	// New password
	// required: true
	NewPassword string `json:"newPassword"`

	// Must equal newPassword
	// required: true
	ConfPassword string `json:"confPassword"`
}

// NewChangePasswordHandler returns an HTTP handler that changes the current user's password.
// @Summary Change password
// @Description Verifies the old password and stores a new one. Issued tokens stay valid.
// @Tags account
// @Accept json
// @Produce json
// @Param changePasswordRequest body handlers.ChangePasswordRequest true "Passwords"
// @Success 200 {object} handlers.Response{data=handlers.Empty} "Password changed successfully"
// @Failure 400 {object} handlers.ErrorResponse "Missing or mismatched new password"
// @Failure 401 {object} handlers.ErrorResponse "Invalid old password"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /change-password [post]
// @Security BearerAuth
func NewChangePasswordHandler(svc PasswordChanger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromRequest(w, r)
		if !ok {
			return
		}

		var req ChangePasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, nil, "invalid request body")
			return
		}

		if err := svc.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword, req.ConfPassword); err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, Empty{}, "Password changed successfully")
	}
}
