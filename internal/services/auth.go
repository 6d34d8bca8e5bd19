package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sbilibin2017/gw-account-service/internal/apperr"
	"github.com/sbilibin2017/gw-account-service/internal/jwt"
	"github.com/sbilibin2017/gw-account-service/internal/logger"
	"github.com/sbilibin2017/gw-account-service/internal/models"
	"github.com/sbilibin2017/gw-account-service/internal/repositories"
)

// Error variables
var (
	ErrFieldsRequired      = apperr.New(apperr.KindValidation, "all fields are required")
	ErrUserAlreadyExists   = apperr.New(apperr.KindConflict, "user with email or username already exists")
	ErrAvatarRequired      = apperr.New(apperr.KindMedia, "avatar file is required")
	ErrIdentifierRequired  = apperr.New(apperr.KindValidation, "username or email is required")
	ErrPasswordRequired    = apperr.New(apperr.KindValidation, "password is required")
	ErrPasswordTooLong     = apperr.New(apperr.KindValidation, "password must be at most 72 bytes")
	ErrUserDoesNotExist    = apperr.New(apperr.KindNotFound, "user does not exist")
	ErrInvalidCredentials  = apperr.New(apperr.KindAuth, "invalid user credentials")
	ErrUnauthorized        = apperr.New(apperr.KindAuth, "unauthorized request")
	ErrInvalidRefreshToken = apperr.New(apperr.KindAuth, "invalid refresh token")
	ErrRefreshTokenUsed    = apperr.New(apperr.KindAuth, "refresh token is expired or used")
)

//go:generate mockgen -destination=mock.go -package=services github.com/sbilibin2017/gw-account-service/internal/services UserReader,UserWriter,TokenIssuer,MediaStore,UserCache,KafkaWriter

// passwordCost is the bcrypt cost used for new hashes.
var passwordCost = bcrypt.DefaultCost

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// hashPassword hashes a password, reporting over-long input as a validation error.
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		logger.Log.Errorw("failed to hash password", "err", err)
		return "", apperr.Wrap(apperr.KindInternal, "failed to hash password", err)
	}
	return string(hash), nil
}

// UserReader defines read-only operations for users.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserDB, error)
	GetByUsernameOrEmail(ctx context.Context, username *string, email *string) (*models.UserDB, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
}

// UserWriter defines write operations for users.
type UserWriter interface {
	Create(ctx context.Context, user *models.UserDB) error
	SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error
	SwapRefreshToken(ctx context.Context, id uuid.UUID, presented, next string) (bool, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateAccount(ctx context.Context, id uuid.UUID, fullName, email *string) (*models.UserDB, error)
	UpdateAvatar(ctx context.Context, id uuid.UUID, url string) (*models.UserDB, error)
	UpdateCoverImage(ctx context.Context, id uuid.UUID, url string) (*models.UserDB, error)
}

// TokenIssuer issues and verifies JWT tokens.
type TokenIssuer interface {
	GenerateAccessToken(ctx context.Context, user *models.UserDB) (string, error)
	GenerateRefreshToken(ctx context.Context, userID uuid.UUID) (string, error)
	ParseRefreshToken(ctx context.Context, tokenString string) (*jwt.Claims, error)
}

// MediaStore turns local files into durable URLs.
type MediaStore interface {
	Upload(ctx context.Context, localPath string) (string, error)
	Delete(ctx context.Context, url string) error
}

// AuthService handles registration, login, token rotation and logout.
type AuthService struct {
	reader UserReader
	writer UserWriter
	tokens TokenIssuer
	media  MediaStore
	events eventPublisher
}

// NewAuthService creates a new AuthService instance. kafka may be nil.
func NewAuthService(reader UserReader, writer UserWriter, tokens TokenIssuer, media MediaStore, kafka KafkaWriter) *AuthService {
	return &AuthService{
		reader: reader,
		writer: writer,
		tokens: tokens,
		media:  media,
		events: eventPublisher{writer: kafka},
	}
}

// Register creates a user with an uploaded avatar and optional cover image.
func (svc *AuthService) Register(ctx context.Context, in models.RegisterInput) (*models.User, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := strings.TrimSpace(in.Email)
	username := strings.ToLower(strings.TrimSpace(in.Username))
	password := strings.TrimSpace(in.Password)

	if fullName == "" || email == "" || username == "" || password == "" {
		return nil, ErrFieldsRequired
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	exists, err := svc.reader.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		logger.Log.Errorw("failed to check user exists", "err", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to check user exists", err)
	}
	if exists {
		logger.Log.Errorw("user already exists", "username", username, "email", email)
		return nil, ErrUserAlreadyExists
	}

	if in.AvatarPath == "" {
		return nil, ErrAvatarRequired
	}

	avatarURL, err := uploadMedia(ctx, svc.media, in.AvatarPath, "avatar")
	if err != nil {
		return nil, err
	}
	uploaded := []string{avatarURL}

	var coverImageURL string
	if in.CoverImagePath != "" {
		coverImageURL, err = uploadMedia(ctx, svc.media, in.CoverImagePath, "cover image")
		if err != nil {
			svc.discardMedia(ctx, uploaded)
			return nil, err
		}
		uploaded = append(uploaded, coverImageURL)
	}

	hashedPassword, err := hashPassword(in.Password)
	if err != nil {
		svc.discardMedia(ctx, uploaded)
		return nil, err
	}

	user := &models.UserDB{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		FullName:     fullName,
		PasswordHash: hashedPassword,
		Avatar:       avatarURL,
		CoverImage:   coverImageURL,
	}

	if err := svc.writer.Create(ctx, user); err != nil {
		logger.Log.Errorw("failed to save user", "err", err)
		svc.discardMedia(ctx, uploaded)
		if errors.Is(err, repositories.ErrDuplicateUser) {
			return nil, ErrUserAlreadyExists
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to save user", err)
	}

	created, err := svc.reader.GetByID(ctx, user.ID)
	if err != nil || created == nil {
		logger.Log.Errorw("failed to read back registered user", "userID", user.ID, "err", err)
		return nil, apperr.Wrap(apperr.KindInternal, "something went wrong while registering the user", err)
	}

	svc.events.publish(ctx, models.EventUserRegistered, created.ID)

	return created.Sanitize(), nil
}

// Login authenticates a user by username and/or email and issues a token pair.
func (svc *AuthService) Login(ctx context.Context, username, email, password string) (*models.LoginResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.TrimSpace(email)

	if username == "" && email == "" {
		return nil, ErrIdentifierRequired
	}
	if password == "" {
		return nil, ErrPasswordRequired
	}

	var usernameFilter, emailFilter *string
	if username != "" {
		usernameFilter = &username
	}
	if email != "" {
		emailFilter = &email
	}

	user, err := svc.reader.GetByUsernameOrEmail(ctx, usernameFilter, emailFilter)
	if err != nil {
		logger.Log.Errorw("failed to get user", "err", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to get user", err)
	}
	if user == nil {
		logger.Log.Errorw("user does not exist", "username", username, "email", email)
		return nil, ErrUserDoesNotExist
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Log.Errorw("invalid credentials", "username", user.Username)
		return nil, ErrInvalidCredentials
	}

	user, pair, err := svc.issueTokenPair(ctx, user.ID, nil)
	if err != nil {
		return nil, err
	}

	svc.events.publish(ctx, models.EventUserLoggedIn, user.ID)

	return &models.LoginResult{User: user.Sanitize(), TokenPair: pair}, nil
}

// RefreshTokens exchanges the current refresh token for a new token pair.
// The presented token must equal the stored one; the new refresh token
// replaces it only if no concurrent rotation got there first.
func (svc *AuthService) RefreshTokens(ctx context.Context, incoming string) (*models.TokenPair, error) {
	if incoming == "" {
		return nil, ErrUnauthorized
	}

	claims, err := svc.tokens.ParseRefreshToken(ctx, incoming)
	if err != nil {
		logger.Log.Errorw("invalid refresh token", "err", err)
		return nil, apperr.Wrap(apperr.KindAuth, ErrInvalidRefreshToken.Message, err)
	}

	user, err := svc.reader.GetByID(ctx, claims.UserID)
	if err != nil {
		logger.Log.Errorw("failed to get user for refresh", "userID", claims.UserID, "err", err)
		return nil, apperr.Wrap(apperr.KindAuth, ErrInvalidRefreshToken.Message, err)
	}
	if user == nil {
		logger.Log.Errorw("refresh token user does not exist", "userID", claims.UserID)
		return nil, ErrInvalidRefreshToken
	}

	if user.RefreshToken == nil || *user.RefreshToken != incoming {
		logger.Log.Errorw("refresh token is expired or used", "userID", user.ID)
		return nil, ErrRefreshTokenUsed
	}

	_, pair, err := svc.issueTokenPair(ctx, user.ID, &incoming)
	if err != nil {
		return nil, err
	}

	svc.events.publish(ctx, models.EventUserTokensRefreshed, user.ID)

	return &pair, nil
}

// Logout clears the stored refresh token.
func (svc *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := svc.writer.SetRefreshToken(ctx, userID, nil); err != nil {
		logger.Log.Errorw("failed to clear refresh token", "userID", userID, "err", err)
		return apperr.Wrap(apperr.KindInternal, "failed to log out", err)
	}

	svc.events.publish(ctx, models.EventUserLoggedOut, userID)

	return nil
}

// issueTokenPair loads the user, signs a new access/refresh pair and
// persists the refresh token. With presented == nil the write is
// unconditional; otherwise it only succeeds while the stored token still
// equals *presented.
func (svc *AuthService) issueTokenPair(ctx context.Context, userID uuid.UUID, presented *string) (*models.UserDB, models.TokenPair, error) {
	const msg = "something went wrong while generating refresh and access token"

	user, err := svc.reader.GetByID(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to load user for token issue", "userID", userID, "err", err)
		return nil, models.TokenPair{}, apperr.Wrap(apperr.KindInternal, msg, err)
	}
	if user == nil {
		logger.Log.Errorw("user vanished before token issue", "userID", userID)
		return nil, models.TokenPair{}, apperr.Wrap(apperr.KindInternal, msg, ErrUserDoesNotExist)
	}

	accessToken, err := svc.tokens.GenerateAccessToken(ctx, user)
	if err != nil {
		logger.Log.Errorw("failed to generate access token", "userID", userID, "err", err)
		return nil, models.TokenPair{}, apperr.Wrap(apperr.KindInternal, msg, err)
	}

	refreshToken, err := svc.tokens.GenerateRefreshToken(ctx, user.ID)
	if err != nil {
		logger.Log.Errorw("failed to generate refresh token", "userID", userID, "err", err)
		return nil, models.TokenPair{}, apperr.Wrap(apperr.KindInternal, msg, err)
	}

	if presented == nil {
		err = svc.writer.SetRefreshToken(ctx, user.ID, &refreshToken)
	} else {
		var swapped bool
		swapped, err = svc.writer.SwapRefreshToken(ctx, user.ID, *presented, refreshToken)
		if err == nil && !swapped {
			logger.Log.Errorw("refresh token superseded by concurrent rotation", "userID", userID)
			return nil, models.TokenPair{}, ErrRefreshTokenUsed
		}
	}
	if err != nil {
		logger.Log.Errorw("failed to persist refresh token", "userID", userID, "err", err)
		return nil, models.TokenPair{}, apperr.Wrap(apperr.KindInternal, msg, err)
	}

	user.RefreshToken = &refreshToken

	return user, models.TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// uploadMedia stores a local file and requires a usable URL back.
func uploadMedia(ctx context.Context, media MediaStore, localPath, what string) (string, error) {
	url, err := media.Upload(ctx, localPath)
	if err != nil {
		logger.Log.Errorw("failed to upload "+what, "err", err)
		return "", apperr.Wrap(apperr.KindMedia, "failed to upload "+what, err)
	}
	if url == "" {
		logger.Log.Errorw("media store returned no URL for " + what)
		return "", apperr.New(apperr.KindMedia, "failed to upload "+what)
	}
	return url, nil
}

// discardMedia deletes objects uploaded for a registration that did not complete.
func (svc *AuthService) discardMedia(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := svc.media.Delete(ctx, url); err != nil {
			logger.Log.Errorw("failed to discard orphaned upload", "url", url, "err", err)
		}
	}
}
