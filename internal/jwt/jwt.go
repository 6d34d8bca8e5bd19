package jwt

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sbilibin2017/gw-account-service/internal/models"
)

// Token types carried in the token_type claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AccessTokenCookie is the cookie GetTokenFromRequest reads first.
const AccessTokenCookie = "accessToken"

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrWrongTokenType   = errors.New("unexpected token type")
	ErrMissingToken     = errors.New("token missing")
	ErrInvalidAuthFmt   = errors.New("invalid authorization header format")
	ErrUnexpectedMethod = errors.New("unexpected signing method")
)

// Claims are the JWT claims issued by this service.
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	TokenType string    `json:"token_type"`
	jwt.RegisteredClaims
}

// JWT issues and validates access and refresh tokens.
// Each token type is signed with its own secret and expires on its own schedule.
type JWT struct {
	accessSecret  []byte
	accessExp     time.Duration
	refreshSecret []byte
	refreshExp    time.Duration
}

// Opt configures a JWT.
type Opt func(*JWT)

// WithAccessSecret sets the access token signing key.
func WithAccessSecret(secret string) Opt {
	return func(j *JWT) { j.accessSecret = []byte(secret) }
}

// WithAccessExpiration sets the access token lifetime.
func WithAccessExpiration(d time.Duration) Opt {
	return func(j *JWT) { j.accessExp = d }
}

// WithRefreshSecret sets the refresh token signing key.
func WithRefreshSecret(secret string) Opt {
	return func(j *JWT) { j.refreshSecret = []byte(secret) }
}

// WithRefreshExpiration sets the refresh token lifetime.
func WithRefreshExpiration(d time.Duration) Opt {
	return func(j *JWT) { j.refreshExp = d }
}

// New creates a new JWT instance
func New(opts ...Opt) *JWT {
	j := &JWT{
		accessSecret:  []byte("access_secret"),
		accessExp:     15 * time.Minute,
		refreshSecret: []byte("refresh_secret"),
		refreshExp:    10 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// GenerateAccessToken creates a short-lived token carrying the user's identity.
func (j *JWT) GenerateAccessToken(ctx context.Context, user *models.UserDB) (string, error) {
	claims := Claims{
		UserID:           user.ID,
		Username:         user.Username,
		Email:            user.Email,
		FullName:         user.FullName,
		TokenType:        TokenTypeAccess,
		RegisteredClaims: registered(j.accessExp),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.accessSecret)
}

// GenerateRefreshToken creates a long-lived token carrying only the user id.
func (j *JWT) GenerateRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	claims := Claims{
		UserID:           userID,
		TokenType:        TokenTypeRefresh,
		RegisteredClaims: registered(j.refreshExp),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.refreshSecret)
}

// ParseAccessToken validates signature, expiry and type of an access token.
func (j *JWT) ParseAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	return parse(tokenString, j.accessSecret, TokenTypeAccess)
}

// ParseRefreshToken validates signature, expiry and type of a refresh token.
// It does not consult the store.
func (j *JWT) ParseRefreshToken(ctx context.Context, tokenString string) (*Claims, error) {
	return parse(tokenString, j.refreshSecret, TokenTypeRefresh)
}

// GetTokenFromRequest returns the access token from the accessToken cookie,
// falling back to the Authorization header.
func (j *JWT) GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error) {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", ErrInvalidAuthFmt
	}

	return parts[1], nil
}

// registered fills the standard claims; jti keeps tokens issued within
// the same second distinct.
func registered(exp time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(exp)),
	}
}

func parse(tokenString string, secret []byte, tokenType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnexpectedMethod
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != tokenType {
		return nil, ErrWrongTokenType
	}
	if claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
