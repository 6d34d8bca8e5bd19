package handlers

import (
	"context"
	"net/http"

	"github.com/sbilibin2017/gw-account-service/internal/middlewares"
	"github.com/sbilibin2017/gw-account-service/internal/models"
)

// Registerer defines the interface that the service must implement.
type Registerer interface {
	Register(ctx context.Context, in models.RegisterInput) (*models.User, error)
}

// NewRegisterHandler returns an HTTP handler for user registration.
// It expects UploadMiddleware to have stored the avatar and cover image.
// @Summary Register a new user
// @Description Creates a new user account with an avatar and an optional cover image. Username and email must be unique. The username is stored lower-cased and the password is hashed.
// @Tags auth
// @Accept multipart/form-data
// @Produce json
// @Param fullName formData string true "Full name"
// @Param email formData string true "Email"
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Param avatar formData file true "Avatar image"
// @Param coverImage formData file false "Cover image"
// @Success 201 {object} handlers.Response{data=models.User} "User registered successfully"
// @Failure 400 {object} handlers.ErrorResponse "Missing fields or avatar"
// @Failure 409 {object} handlers.ErrorResponse "User with email or username already exists"
// @Failure 500 {object} handlers.ErrorResponse "Internal server error"
// @Router /register [post]
func NewRegisterHandler(svc Registerer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, err := svc.Register(ctx, models.RegisterInput{
			FullName:       r.FormValue("fullName"),
			Email:          r.FormValue("email"),
			Username:       r.FormValue("username"),
			Password:       r.FormValue("password"),
			AvatarPath:     middlewares.GetUploadedFile(ctx, AvatarField),
			CoverImagePath: middlewares.GetUploadedFile(ctx, CoverImageField),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, user, "User registered successfully")
	}
}
