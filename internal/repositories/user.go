package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/sbilibin2017/gw-account-service/internal/logger"
	"github.com/sbilibin2017/gw-account-service/internal/models"
)

// ErrDuplicateUser is returned when a write violates the username or email unique constraint.
var ErrDuplicateUser = errors.New("user with this username or email already exists")

const pgUniqueViolation = "23505"

const userColumns = `id, username, email, full_name, password_hash, avatar, cover_image, refresh_token, created_at, updated_at`

// TxGetter returns the transaction bound to ctx, or nil.
type TxGetter func(ctx context.Context) *sqlx.Tx

func executor(ctx context.Context, db *sqlx.DB, txGetter TxGetter) sqlx.ExtContext {
	if txGetter != nil {
		if tx := txGetter(ctx); tx != nil {
			return tx
		}
	}
	return db
}

// logQuery logs a statement on a single line.
func logQuery(query string, args []any, result any, err error) {
	logger.Log.Infow("query executed",
		"query", strings.Join(strings.Fields(query), " "),
		"args", args,
		"result", result,
		"error", err,
	)
}

// UserReadRepository handles user read operations
type UserReadRepository struct {
	db       *sqlx.DB
	txGetter TxGetter
}

func NewUserReadRepository(db *sqlx.DB, txGetter TxGetter) *UserReadRepository {
	return &UserReadRepository{db: db, txGetter: txGetter}
}

// GetByID returns the user with the given id, or nil if there is none.
func (r *UserReadRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserDB, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByUsernameOrEmail returns the user matching every non-nil filter, or nil.
// At least one filter must be set.
func (r *UserReadRepository) GetByUsernameOrEmail(ctx context.Context, username, email *string) (*models.UserDB, error) {
	if username == nil && email == nil {
		return nil, nil
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1::VARCHAR IS NULL OR username = $1)
		  AND ($2::VARCHAR IS NULL OR email = $2)
		LIMIT 1
	`
	return r.getOne(ctx, query, username, email)
}

// ExistsByUsernameOrEmail reports whether any user has the given username or the given email.
func (r *UserReadRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`
	args := []any{username, email}

	var exists bool
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &exists, query, args...)

	logQuery(query, args, exists, err)

	return exists, err
}

func (r *UserReadRepository) getOne(ctx context.Context, query string, args ...any) (*models.UserDB, error) {
	var user models.UserDB
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &user, query, args...)

	logQuery(query, args, user.ID, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UserWriteRepository handles user write operations
type UserWriteRepository struct {
	db       *sqlx.DB
	txGetter TxGetter
}

func NewUserWriteRepository(db *sqlx.DB, txGetter TxGetter) *UserWriteRepository {
	return &UserWriteRepository{db: db, txGetter: txGetter}
}

// Create inserts a new user. A unique violation is reported as ErrDuplicateUser.
func (r *UserWriteRepository) Create(ctx context.Context, user *models.UserDB) error {
	query := `
		INSERT INTO users (id, username, email, full_name, password_hash, avatar, cover_image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	`
	args := []any{user.ID, user.Username, user.Email, user.FullName, user.PasswordHash, user.Avatar, user.CoverImage}

	_, err := executor(ctx, r.db, r.txGetter).ExecContext(ctx, query, args...)

	logQuery(query, []any{user.ID, user.Username, user.Email}, nil, err)

	return translate(err)
}

// SetRefreshToken overwrites the stored refresh token. A nil token clears it.
func (r *UserWriteRepository) SetRefreshToken(ctx context.Context, id uuid.UUID, token *string) error {
	query := `UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE id = $1`

	rows, err := r.exec(ctx, query, id, token)

	logQuery(query, []any{id, token != nil}, rows, err)

	return err
}

// SwapRefreshToken replaces the stored refresh token only if it still equals presented.
// It reports whether the swap happened.
func (r *UserWriteRepository) SwapRefreshToken(ctx context.Context, id uuid.UUID, presented, next string) (bool, error) {
	query := `
		UPDATE users
		SET refresh_token = $3, updated_at = NOW()
		WHERE id = $1 AND refresh_token = $2
	`

	rows, err := r.exec(ctx, query, id, presented, next)

	logQuery(query, []any{id}, rows, err)

	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// UpdatePassword stores a new password hash.
func (r *UserWriteRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`

	rows, err := r.exec(ctx, query, id, passwordHash)

	logQuery(query, []any{id}, rows, err)

	return err
}

// UpdateAccount sets the non-nil fields and returns the updated user, or nil if there is none.
func (r *UserWriteRepository) UpdateAccount(ctx context.Context, id uuid.UUID, fullName, email *string) (*models.UserDB, error) {
	query := `
		UPDATE users
		SET full_name = COALESCE($2, full_name),
		    email = COALESCE($3, email),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return r.returning(ctx, query, id, fullName, email)
}

// UpdateAvatar overwrites the avatar URL and returns the updated user, or nil if there is none.
func (r *UserWriteRepository) UpdateAvatar(ctx context.Context, id uuid.UUID, url string) (*models.UserDB, error) {
	query := `UPDATE users SET avatar = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	return r.returning(ctx, query, id, url)
}

// UpdateCoverImage overwrites the cover image URL and returns the updated user, or nil if there is none.
func (r *UserWriteRepository) UpdateCoverImage(ctx context.Context, id uuid.UUID, url string) (*models.UserDB, error) {
	query := `UPDATE users SET cover_image = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns
	return r.returning(ctx, query, id, url)
}

func (r *UserWriteRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := executor(ctx, r.db, r.txGetter).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *UserWriteRepository) returning(ctx context.Context, query string, args ...any) (*models.UserDB, error) {
	var user models.UserDB
	err := sqlx.GetContext(ctx, executor(ctx, r.db, r.txGetter), &user, query, args...)

	logQuery(query, []any{args[0]}, user.ID, err)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateUser
	}
	return err
}
