package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sbilibin2017/gw-account-service/internal/apperr"
	"github.com/sbilibin2017/gw-account-service/internal/logger"
	"github.com/sbilibin2017/gw-account-service/internal/models"
	"github.com/sbilibin2017/gw-account-service/internal/repositories"
)

var (
	ErrNewPasswordRequired = apperr.New(apperr.KindValidation, "new password is required")
	ErrPasswordMismatch    = apperr.New(apperr.KindValidation, "new password and confirmation do not match")
	ErrInvalidOldPassword  = apperr.New(apperr.KindAuth, "invalid old password")
	ErrUserNotFound        = apperr.New(apperr.KindNotFound, "user not found")
	ErrNothingToUpdate     = apperr.New(apperr.KindValidation, "full name or email is required")
	ErrEmailTaken          = apperr.New(apperr.KindConflict, "email is already in use")
	ErrAvatarMissing       = apperr.New(apperr.KindMedia, "avatar file is missing")
	ErrCoverImageMissing   = apperr.New(apperr.KindMedia, "cover image file is missing")
)

// UserCache caches sanitized user profiles. Set stores the profile only if
// Delete has not run since version was read.
type UserCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	Version(ctx context.Context, id uuid.UUID) (int64, error)
	Set(ctx context.Context, user *models.User, version int64) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AccountService handles operations on an authenticated user's account.
type AccountService struct {
	reader UserReader
	writer UserWriter
	media  MediaStore
	cache  UserCache
	events eventPublisher
}

// NewAccountService creates a new AccountService. cache and kafka may be nil.
func NewAccountService(reader UserReader, writer UserWriter, media MediaStore, cache UserCache, kafka KafkaWriter) *AccountService {
	return &AccountService{
		reader: reader,
		writer: writer,
		media:  media,
		cache:  cache,
		events: eventPublisher{writer: kafka},
	}
}

// ChangePassword replaces the password after verifying the old one.
// Stored refresh tokens are left untouched.
func (svc *AccountService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword, confPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return ErrNewPasswordRequired
	}
	if newPassword != confPassword {
		return ErrPasswordMismatch
	}
	if len(newPassword) > maxPasswordBytes {
		return ErrPasswordTooLong
	}

	user, err := svc.getUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		logger.Log.Errorw("invalid old password", "userID", userID)
		return ErrInvalidOldPassword
	}

	hashedPassword, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := svc.writer.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		logger.Log.Errorw("failed to update password", "userID", userID, "err", err)
		return apperr.Wrap(apperr.KindInternal, "failed to update password", err)
	}

	svc.invalidate(ctx, userID)
	svc.events.publish(ctx, models.EventUserPasswordChanged, userID)

	return nil
}

// GetCurrentUser returns the sanitized user, served from cache when possible.
func (svc *AccountService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var (
		version int64
		fill    bool
	)
	if svc.cache != nil {
		cached, err := svc.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repositories.ErrCacheMiss) {
			logger.Log.Warnw("profile cache read failed", "userID", userID, "err", err)
		}

		// The version is read before the row, so an invalidation that lands
		// in between voids the fill below.
		version, err = svc.cache.Version(ctx, userID)
		if err != nil {
			logger.Log.Warnw("profile cache version read failed", "userID", userID, "err", err)
		} else {
			fill = true
		}
	}

	user, err := svc.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sanitized := user.Sanitize()
	if fill {
		if err := svc.cache.Set(ctx, sanitized, version); err != nil {
			logger.Log.Warnw("profile cache write failed", "userID", userID, "err", err)
		}
	}

	return sanitized, nil
}

// UpdateAccount updates the display name and/or email. Empty arguments are left unchanged.
func (svc *AccountService) UpdateAccount(ctx context.Context, userID uuid.UUID, fullName, email string) (*models.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)

	if fullName == "" && email == "" {
		return nil, ErrNothingToUpdate
	}

	var fullNamePtr, emailPtr *string
	if fullName != "" {
		fullNamePtr = &fullName
	}
	if email != "" {
		emailPtr = &email
	}

	user, err := svc.writer.UpdateAccount(ctx, userID, fullNamePtr, emailPtr)
	if err != nil {
		logger.Log.Errorw("failed to update account", "userID", userID, "err", err)
		if errors.Is(err, repositories.ErrDuplicateUser) {
			return nil, ErrEmailTaken
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update account", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	svc.invalidate(ctx, userID)
	svc.events.publish(ctx, models.EventUserProfileUpdated, userID)

	return user.Sanitize(), nil
}

// UpdateAvatar uploads a new avatar, stores its URL and discards the previous one.
func (svc *AccountService) UpdateAvatar(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error) {
	if localPath == "" {
		return nil, ErrAvatarMissing
	}
	return svc.replaceImage(ctx, userID, localPath, "avatar",
		func(u *models.UserDB) string { return u.Avatar },
		svc.writer.UpdateAvatar,
	)
}

// UpdateCoverImage uploads a new cover image, stores its URL and discards the previous one.
func (svc *AccountService) UpdateCoverImage(ctx context.Context, userID uuid.UUID, localPath string) (*models.User, error) {
	if localPath == "" {
		return nil, ErrCoverImageMissing
	}
	return svc.replaceImage(ctx, userID, localPath, "cover image",
		func(u *models.UserDB) string { return u.CoverImage },
		svc.writer.UpdateCoverImage,
	)
}

func (svc *AccountService) replaceImage(
	ctx context.Context,
	userID uuid.UUID,
	localPath, what string,
	current func(*models.UserDB) string,
	update func(ctx context.Context, id uuid.UUID, url string) (*models.UserDB, error),
) (*models.User, error) {
	user, err := svc.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	previous := current(user)

	url, err := uploadMedia(ctx, svc.media, localPath, what)
	if err != nil {
		return nil, err
	}

	updated, err := update(ctx, userID, url)
	if err != nil || updated == nil {
		logger.Log.Errorw("failed to update "+what, "userID", userID, "err", err)
		svc.discard(ctx, url)
		if err == nil {
			return nil, ErrUserNotFound
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to update "+what, err)
	}

	if previous != "" && previous != url {
		svc.discard(ctx, previous)
	}

	svc.invalidate(ctx, userID)
	svc.events.publish(ctx, models.EventUserProfileUpdated, userID)

	return updated.Sanitize(), nil
}

func (svc *AccountService) getUser(ctx context.Context, userID uuid.UUID) (*models.UserDB, error) {
	user, err := svc.reader.GetByID(ctx, userID)
	if err != nil {
		logger.Log.Errorw("failed to get user", "userID", userID, "err", err)
		return nil, apperr.Wrap(apperr.KindInternal, "failed to get user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (svc *AccountService) discard(ctx context.Context, url string) {
	if err := svc.media.Delete(ctx, url); err != nil {
		logger.Log.Warnw("failed to delete media object", "url", url, "err", err)
	}
}

func (svc *AccountService) invalidate(ctx context.Context, userID uuid.UUID) {
	if svc.cache == nil {
		return
	}
	if err := svc.cache.Delete(ctx, userID); err != nil {
		logger.Log.Warnw("profile cache invalidation failed", "userID", userID, "err", err)
	}
}
