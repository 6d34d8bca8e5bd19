package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-account-service/internal/middlewares"
	"github.com/sbilibin2017/gw-account-service/internal/models"
)

// AvatarUpdater defines the interface that the account service must implement.
type AvatarUpdater interface {
	UpdateAvatar(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error)
}

// CoverImageUpdater defines the interface that the account service must implement.
type CoverImageUpdater interface {
	UpdateCoverImage(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error)
}

// NewAvatarHandler returns an HTTP handler that replaces the avatar.
// @Summary Update avatar
// @Description Uploads a new avatar and replaces the stored URL.
// @Tags account
// @Accept multipart/form-data
// @Produce json
// @Param avatar formData file true "Avatar image"
// @Success 200 {object} handlers.Response{data=models.User} "Avatar image updated successfully"
// @Failure 400 {object} handlers.ErrorResponse "Avatar file is missing or upload failed"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized request"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /avatar [patch]
// @Security BearerAuth
func NewAvatarHandler(svc AvatarUpdater) http.HandlerFunc {
	return newImageHandler(AvatarField, svc.UpdateAvatar, "Avatar image updated successfully")
}

// NewCoverImageHandler returns an HTTP handler that replaces the cover image.
// @Summary Update cover image
// @Description Uploads a new cover image and replaces the stored URL.
// @Tags account
// @Accept multipart/form-data
// @Produce json
// @Param coverImage formData file true "Cover image"
// @Success 200 {object} handlers.Response{data=models.User} "Cover image updated successfully"
// @Failure 400 {object} handlers.ErrorResponse "Cover image file is missing or upload failed"
// @Failure 401 {object} handlers.ErrorResponse "Unauthorized request"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /cover-image [patch]
// @Security BearerAuth
func NewCoverImageHandler(svc CoverImageUpdater) http.HandlerFunc {
	return newImageHandler(CoverImageField, svc.UpdateCoverImage, "Cover image updated successfully")
}

func newImageHandler(
	field string,
	update func(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error),
	message string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromRequest(w, r)
		if !ok {
			return
		}

		user, err := update(r.Context(), userID, middlewares.GetUploadedFile(r.Context(), field))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, user, message)
	}
}
