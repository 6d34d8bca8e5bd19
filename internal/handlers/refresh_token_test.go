package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbilibin2017/gw-account-service/internal/models"
	"github.com/sbilibin2017/gw-account-service/internal/services"
)

func TestRefreshTokenHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pair := &models.TokenPair{AccessToken: "A2", RefreshToken: "R2"}

	t.Run("token from cookie", func(t *testing.T) {
		mockSvc := NewMockTokenRefresher(ctrl)
		mockSvc.EXPECT().RefreshTokens(gomock.Any(), "R1").Return(pair, nil)

		req := httptest.NewRequest(http.MethodGet, "/refresh-token", jsonBody(t, RefreshTokenRequest{RefreshToken: "ignored"}))
		req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "R1"})
		rr := httptest.NewRecorder()

		NewRefreshTokenHandler(mockSvc, false).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "Access token refreshed", env.Message)
		assert.JSONEq(t, `{"accessToken":"A2","refreshToken":"R2"}`, string(env.Data))

		c := cookieByName(rr, RefreshTokenCookie)
		require.NotNil(t, c)
		assert.Equal(t, "R2", c.Value)
		assert.False(t, c.Secure)
	})

	t.Run("token from body", func(t *testing.T) {
		mockSvc := NewMockTokenRefresher(ctrl)
		mockSvc.EXPECT().RefreshTokens(gomock.Any(), "R1").Return(pair, nil)

		req := httptest.NewRequest(http.MethodGet, "/refresh-token", jsonBody(t, RefreshTokenRequest{RefreshToken: "R1"}))
		rr := httptest.NewRecorder()

		NewRefreshTokenHandler(mockSvc, false).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("no token", func(t *testing.T) {
		mockSvc := NewMockTokenRefresher(ctrl)
		mockSvc.EXPECT().RefreshTokens(gomock.Any(), "").Return(nil, services.ErrUnauthorized)

		req := httptest.NewRequest(http.MethodGet, "/refresh-token", nil)
		rr := httptest.NewRecorder()

		NewRefreshTokenHandler(mockSvc, false).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "unauthorized request", env.Message)
		assert.False(t, env.Success)
	})

	t.Run("stale token", func(t *testing.T) {
		mockSvc := NewMockTokenRefresher(ctrl)
		mockSvc.EXPECT().RefreshTokens(gomock.Any(), "R0").Return(nil, services.ErrRefreshTokenUsed)

		req := httptest.NewRequest(http.MethodGet, "/refresh-token", nil)
		req.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: "R0"})
		rr := httptest.NewRecorder()

		NewRefreshTokenHandler(mockSvc, false).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		env := decodeEnvelope(t, rr)
		assert.Equal(t, "refresh token is expired or used", env.Message)
		assert.Nil(t, cookieByName(rr, RefreshTokenCookie))
	})
}
