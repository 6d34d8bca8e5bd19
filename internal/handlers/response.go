package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sbilibin2017/gw-account-service/internal/apperr"
	"github.com/sbilibin2017/gw-account-service/internal/jwt"
	"github.com/sbilibin2017/gw-account-service/internal/logger"
	"github.com/sbilibin2017/gw-account-service/internal/middlewares"
	"github.com/sbilibin2017/gw-account-service/internal/models"
)

//go:generate mockgen -destination=mock.go -package=handlers github.com/sbilibin2017/gw-account-service/internal/handlers Registerer,Loginer,Logouter,TokenRefresher,PasswordChanger,CurrentUserGetter,AccountUpdater,AvatarUpdater,CoverImageUpdater

// Multipart field names read by the upload middleware.
const (
	AvatarField     = "avatar"
	CoverImageField = "coverImage"
)

// RefreshTokenCookie holds the refresh token on the client.
const RefreshTokenCookie = "refreshToken"

const internalErrorMessage = "Internal server error"

// Response is the envelope every endpoint returns.
// swagger:model Response
type Response struct {
	// HTTP status code
	// default: 200
	Status int `json:"status"`

	// Payload, null on errors
	Data any `json:"data"`

	// Human-readable message
	// default: Success
	Message string `json:"message"`

	// True for 2xx responses
	// default: true
	Success bool `json:"success"`
}

// ErrorResponse documents the envelope returned on failures.
// swagger:model ErrorResponse
type ErrorResponse struct {
	// default: 400
	Status int `json:"status"`

	// always null
	Data any `json:"data"`

	// default: all fields are required
	Message string `json:"message"`

	// default: false
	Success bool `json:"success"`
}

// Empty is the payload of operations that return nothing.
// swagger:model Empty
type Empty struct{}

func writeJSON(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		Status:  status,
		Data:    data,
		Message: message,
		Success: status < http.StatusBadRequest,
	})
}

// writeError maps an error onto its status. Internal causes are logged, never sent.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	message := apperr.MessageOf(err)
	if kind == apperr.KindInternal || message == "" {
		logger.Log.Errorw("internal server error",
			"request_id", middlewares.GetRequestIDFromContext(r.Context()),
			"err", err,
		)
		writeJSON(w, http.StatusInternalServerError, nil, internalErrorMessage)
		return
	}
	writeJSON(w, kind.HTTPStatus(), nil, message)
}

func setAuthCookies(w http.ResponseWriter, pair models.TokenPair, secure bool) {
	http.SetCookie(w, authCookie(jwt.AccessTokenCookie, pair.AccessToken, secure))
	http.SetCookie(w, authCookie(RefreshTokenCookie, pair.RefreshToken, secure))
}

func clearAuthCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{jwt.AccessTokenCookie, RefreshTokenCookie} {
		c := authCookie(name, "", secure)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func authCookie(name, value string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
	}
}
