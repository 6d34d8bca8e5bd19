package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbilibin2017/gw-account-service/internal/middlewares"
	"github.com/sbilibin2017/gw-account-service/internal/models"
	"github.com/sbilibin2017/gw-account-service/internal/repositories"
	"github.com/sbilibin2017/gw-account-service/internal/services"
)

func TestLogoutHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	userID := uuid.New()

	t.Run("success clears cookies", func(t *testing.T) {
		mockSvc := NewMockLogouter(ctrl)
		mockSvc.EXPECT().Logout(gomock.Any(), userID).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/logout", nil)
		rr := serveAuthorized(t, NewLogoutHandler(mockSvc, true), userID, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.JSONEq(t, `{}`, string(env.Data))
		assert.Equal(t, "User logged out", env.Message)

		for _, name := range []string{"accessToken", RefreshTokenCookie} {
			c := cookieByName(rr, name)
			require.NotNil(t, c, name)
			assert.Equal(t, "", c.Value)
			assert.Less(t, c.MaxAge, 0)
		}
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc := NewMockLogouter(ctrl)
		mockSvc.EXPECT().Logout(gomock.Any(), userID).Return(errors.New("db error"))

		rr := serveAuthorized(t, NewLogoutHandler(mockSvc, true), userID, httptest.NewRequest(http.MethodPost, "/logout", nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("without auth middleware", func(t *testing.T) {
		mockSvc := NewMockLogouter(ctrl)
		rr := httptest.NewRecorder()
		NewLogoutHandler(mockSvc, true).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/logout", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		mockSvc := NewMockLogouter(ctrl)
		rr := httptest.NewRecorder()
		middlewares.AuthMiddleware(testTokens)(NewLogoutHandler(mockSvc, true)).
			ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/logout", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestChangePasswordHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	userID := uuid.New()

	tests := []struct {
		name         string
		body         any
		mockSetup    func(m *MockPasswordChanger)
		expectedCode int
		expectedMsg  string
	}{
		{
			name: "success",
			body: ChangePasswordRequest{OldPassword: "p1", NewPassword: "p2", ConfPassword: "p2"},
			mockSetup: func(m *MockPasswordChanger) {
				m.EXPECT().ChangePassword(gomock.Any(), userID, "p1", "p2", "p2").Return(nil)
			},
			expectedCode: http.StatusOK,
			expectedMsg:  "Password changed successfully",
		},
		{
			name:         "invalid JSON",
			body:         "{",
			mockSetup:    func(m *MockPasswordChanger) {},
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "invalid request body",
		},
		{
			name: "mismatch",
			body: ChangePasswordRequest{OldPassword: "p1", NewPassword: "p2", ConfPassword: "p3"},
			mockSetup: func(m *MockPasswordChanger) {
				m.EXPECT().ChangePassword(gomock.Any(), userID, "p1", "p2", "p3").Return(services.ErrPasswordMismatch)
			},
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "new password and confirmation do not match",
		},
		{
			name: "wrong old password",
			body: ChangePasswordRequest{OldPassword: "x", NewPassword: "p2", ConfPassword: "p2"},
			mockSetup: func(m *MockPasswordChanger) {
				m.EXPECT().ChangePassword(gomock.Any(), userID, "x", "p2", "p2").Return(services.ErrInvalidOldPassword)
			},
			expectedCode: http.StatusUnauthorized,
			expectedMsg:  "invalid old password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := NewMockPasswordChanger(ctrl)
			tt.mockSetup(mockSvc)

			req := httptest.NewRequest(http.MethodPost, "/change-password", jsonBody(t, tt.body))
			rr := serveAuthorized(t, NewChangePasswordHandler(mockSvc), userID, req)

			assert.Equal(t, tt.expectedCode, rr.Code)
			assert.Equal(t, tt.expectedMsg, decodeEnvelope(t, rr).Message)
		})
	}
}

func TestCurrentUserHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	userID := uuid.New()

	t.Run("success", func(t *testing.T) {
		mockSvc := NewMockCurrentUserGetter(ctrl)
		mockSvc.EXPECT().GetCurrentUser(gomock.Any(), userID).
			Return(&models.User{ID: userID, Username: "alice", Email: "alice@x.com"}, nil)

		rr := serveAuthorized(t, NewCurrentUserHandler(mockSvc), userID, httptest.NewRequest(http.MethodGet, "/current-user", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "User fetched successfully", env.Message)
		assert.Contains(t, string(env.Data), `"username":"alice"`)
		assert.NotContains(t, string(env.Data), "password")
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc := NewMockCurrentUserGetter(ctrl)
		mockSvc.EXPECT().GetCurrentUser(gomock.Any(), userID).Return(nil, services.ErrUserNotFound)

		rr := serveAuthorized(t, NewCurrentUserHandler(mockSvc), userID, httptest.NewRequest(http.MethodGet, "/current-user", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestUpdateAccountHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	userID := uuid.New()

	t.Run("success", func(t *testing.T) {
		mockSvc := NewMockAccountUpdater(ctrl)
		mockSvc.EXPECT().UpdateAccount(gomock.Any(), userID, "Alice B", "b@x.com").
			Return(&models.User{ID: userID, FullName: "Alice B", Email: "b@x.com"}, nil)

		req := httptest.NewRequest(http.MethodPatch, "/update-account", jsonBody(t, UpdateAccountRequest{FullName: "Alice B", Email: "b@x.com"}))
		rr := serveAuthorized(t, NewUpdateAccountHandler(mockSvc), userID, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "Account details updated successfully", env.Message)
		assert.Contains(t, string(env.Data), `"fullName":"Alice B"`)
	})

	t.Run("email taken", func(t *testing.T) {
		mockSvc := NewMockAccountUpdater(ctrl)
		mockSvc.EXPECT().UpdateAccount(gomock.Any(), userID, "", "b@x.com").Return(nil, services.ErrEmailTaken)

		req := httptest.NewRequest(http.MethodPatch, "/update-account", jsonBody(t, UpdateAccountRequest{Email: "b@x.com"}))
		rr := serveAuthorized(t, NewUpdateAccountHandler(mockSvc), userID, req)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("raw duplicate is internal", func(t *testing.T) {
		mockSvc := NewMockAccountUpdater(ctrl)
		mockSvc.EXPECT().UpdateAccount(gomock.Any(), userID, "", "b@x.com").Return(nil, repositories.ErrDuplicateUser)

		req := httptest.NewRequest(http.MethodPatch, "/update-account", jsonBody(t, UpdateAccountRequest{Email: "b@x.com"}))
		rr := serveAuthorized(t, NewUpdateAccountHandler(mockSvc), userID, req)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "Internal server error", decodeEnvelope(t, rr).Message)
	})
}

func TestImageHandlers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	userID := uuid.New()

	t.Run("avatar", func(t *testing.T) {
		mockSvc := NewMockAvatarUpdater(ctrl)
		mockSvc.EXPECT().UpdateAvatar(gomock.Any(), userID, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ uuid.UUID, localPath string) (*models.User, error) {
				assert.FileExists(t, localPath)
				return &models.User{ID: userID, Avatar: "https://cdn/new.png"}, nil
			})

		dir := t.TempDir()
		handler := middlewares.UploadMiddleware(dir, 1<<20, AvatarField)(NewAvatarHandler(mockSvc))
		body, contentType := multipartBody(t, nil, map[string]string{"avatar": "new.png"})
		req := httptest.NewRequest(http.MethodPatch, "/avatar", body)
		req.Header.Set("Content-Type", contentType)

		rr := serveAuthorized(t, handler, userID, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Avatar image updated successfully", decodeEnvelope(t, rr).Message)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("cover image missing", func(t *testing.T) {
		mockSvc := NewMockCoverImageUpdater(ctrl)
		mockSvc.EXPECT().UpdateCoverImage(gomock.Any(), userID, "").Return(nil, services.ErrCoverImageMissing)

		handler := middlewares.UploadMiddleware(t.TempDir(), 1<<20, CoverImageField)(NewCoverImageHandler(mockSvc))
		body, contentType := multipartBody(t, map[string]string{"note": "no file"}, nil)
		req := httptest.NewRequest(http.MethodPatch, "/cover-image", body)
		req.Header.Set("Content-Type", contentType)

		rr := serveAuthorized(t, handler, userID, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "cover image file is missing", decodeEnvelope(t, rr).Message)
	})
}
