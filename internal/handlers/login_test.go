package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbilibin2017/gw-account-service/internal/models"
	"github.com/sbilibin2017/gw-account-service/internal/services"
)

func TestLoginHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockLoginer(ctrl)
	userID := uuid.New()

	tests := []struct {
		name         string
		inputBody    interface{}
		mockSetup    func()
		expectedCode int
		expectedMsg  string
	}{
		{
			name: "success",
			inputBody: LoginRequest{
				Username: "john",
				Password: "pass123",
			},
			mockSetup: func() {
				mockSvc.EXPECT().
					Login(gomock.Any(), "john", "", "pass123").
					Return(&models.LoginResult{
						User:      &models.User{ID: userID, Username: "john"},
						TokenPair: models.TokenPair{AccessToken: "ACCESS", RefreshToken: "REFRESH"},
					}, nil)
			},
			expectedCode: http.StatusOK,
			expectedMsg:  "User logged in successfully",
		},
		{
			name:         "invalid JSON",
			inputBody:    "{invalid json}",
			mockSetup:    func() {},
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "invalid request body",
		},
		{
			name:      "missing identifier",
			inputBody: LoginRequest{Password: "pass123"},
			mockSetup: func() {
				mockSvc.EXPECT().
					Login(gomock.Any(), "", "", "pass123").
					Return(nil, services.ErrIdentifierRequired)
			},
			expectedCode: http.StatusBadRequest,
			expectedMsg:  "username or email is required",
		},
		{
			name:      "user does not exist",
			inputBody: LoginRequest{Email: "nobody@x.com", Password: "pass123"},
			mockSetup: func() {
				mockSvc.EXPECT().
					Login(gomock.Any(), "", "nobody@x.com", "pass123").
					Return(nil, services.ErrUserDoesNotExist)
			},
			expectedCode: http.StatusNotFound,
			expectedMsg:  "user does not exist",
		},
		{
			name:      "wrong credentials",
			inputBody: LoginRequest{Username: "john", Password: "wrong"},
			mockSetup: func() {
				mockSvc.EXPECT().
					Login(gomock.Any(), "john", "", "wrong").
					Return(nil, services.ErrInvalidCredentials)
			},
			expectedCode: http.StatusUnauthorized,
			expectedMsg:  "invalid user credentials",
		},
		{
			name:      "internal error",
			inputBody: LoginRequest{Username: "john", Password: "pass123"},
			mockSetup: func() {
				mockSvc.EXPECT().
					Login(gomock.Any(), "john", "", "pass123").
					Return(nil, errors.New("database error"))
			},
			expectedCode: http.StatusInternalServerError,
			expectedMsg:  "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			req := httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, tt.inputBody))
			rr := httptest.NewRecorder()

			NewLoginHandler(mockSvc, true).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedCode, rr.Code)
			env := decodeEnvelope(t, rr)
			assert.Equal(t, tt.expectedMsg, env.Message)

			if tt.expectedCode != http.StatusOK {
				assert.Equal(t, "null", string(env.Data))
				assert.Nil(t, cookieByName(rr, RefreshTokenCookie))
				return
			}

			var data map[string]any
			require.NoError(t, json.Unmarshal(env.Data, &data))
			assert.Equal(t, "ACCESS", data["accessToken"])
			assert.Equal(t, "REFRESH", data["refreshToken"])
			user := data["user"].(map[string]any)
			assert.Equal(t, userID.String(), user["id"])
			assert.NotContains(t, user, "password")
			assert.NotContains(t, user, "refreshToken")

			access := cookieByName(rr, "accessToken")
			require.NotNil(t, access)
			assert.Equal(t, "ACCESS", access.Value)
			assert.True(t, access.HttpOnly)
			assert.True(t, access.Secure)
			assert.Equal(t, "/", access.Path)

			refresh := cookieByName(rr, RefreshTokenCookie)
			require.NotNil(t, refresh)
			assert.Equal(t, "REFRESH", refresh.Value)
		})
	}
}
