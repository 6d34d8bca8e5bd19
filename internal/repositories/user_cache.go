package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sbilibin2017/gw-account-service/internal/logger"
	"github.com/sbilibin2017/gw-account-service/internal/models"
)

// ErrCacheMiss is returned when no profile is cached for a user.
var ErrCacheMiss = errors.New("profile not found in cache")

// UserCacheRepository caches sanitized user profiles in Redis
type UserCacheRepository struct {
	client redis.Cmdable
	exp    time.Duration
}

// NewUserCacheRepository creates a cache with the given entry TTL
func NewUserCacheRepository(client redis.Cmdable, expiration time.Duration) *UserCacheRepository {
	return &UserCacheRepository{
		client: client,
		exp:    expiration,
	}
}

func versionKey(id uuid.UUID) string {
	return fmt.Sprintf("user_profile_version:%s", id)
}

func profileKey(id uuid.UUID) string {
	return fmt.Sprintf("user_profile:%s", id)
}

// Get returns the cached profile or ErrCacheMiss.
func (r *UserCacheRepository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	key := profileKey(id)

	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		logger.Log.Infow("profile cache get",
			"key", key,
			"result", nil,
			"error", err,
		)
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(val, &user); err != nil {
		logger.Log.Infow("profile cache get",
			"key", key,
			"result", nil,
			"error", err,
		)
		return nil, err
	}

	logger.Log.Infow("profile cache get",
		"key", key,
		"result", user.ID,
		"error", nil,
	)

	return &user, nil
}

// fillScript stores a profile only while the version key still holds the
// generation read before the row was loaded.
var fillScript = redis.NewScript(`
local current = redis.call("GET", KEYS[2])
if (current or "0") ~= ARGV[1] then
	return 0
end
if ARGV[3] == "0" then
	redis.call("SET", KEYS[1], ARGV[2])
else
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
end
return 1
`)

// Version returns the profile generation. Delete advances it.
func (r *UserCacheRepository) Version(ctx context.Context, id uuid.UUID) (int64, error) {
	v, err := r.client.Get(ctx, versionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// Set stores a profile with the configured TTL, unless the profile was
// invalidated after version was read.
func (r *UserCacheRepository) Set(ctx context.Context, user *models.User, version int64) error {
	key := profileKey(user.ID)

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}

	stored, err := fillScript.Run(ctx, r.client,
		[]string{key, versionKey(user.ID)},
		strconv.FormatInt(version, 10), data, r.exp.Milliseconds(),
	).Int()

	logger.Log.Infow("profile cache set",
		"key", key,
		"ttl", r.exp,
		"version", version,
		"stored", stored == 1,
		"error", err,
	)

	return err
}

// Delete removes the cached profile, if any, and advances its version so
// that fills started before the call are dropped.
func (r *UserCacheRepository) Delete(ctx context.Context, id uuid.UUID) error {
	key := profileKey(id)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		pipe.Del(ctx, key)
		return nil
	})

	logger.Log.Infow("profile cache delete",
		"key", key,
		"result", "deleted",
		"error", err,
	)

	return err
}
