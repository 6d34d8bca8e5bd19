package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sbilibin2017/gw-account-service/internal/migrations"
	"github.com/sbilibin2017/gw-account-service/internal/models"
)

func setupUserPostgresContainer(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in short mode")
	}

	ctx := context.Background()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "password", "POSTGRES_DB": "testdb", "POSTGRES_USER": "postgres"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	var db *sqlx.DB
	for i := 0; i < 10; i++ {
		db, err = sqlx.Connect("pgx", dsn)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err)

	require.NoError(t, migrations.Up(ctx, db.DB))

	teardown := func() {
		db.Close()
		container.Terminate(ctx)
	}

	return db, teardown
}

func newUser(username, email string) *models.UserDB {
	return &models.UserDB{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		FullName:     username,
		PasswordHash: "$2a$10$hash",
		Avatar:       "http://media/" + username + ".png",
	}
}

func TestUserRepositories_Postgres(t *testing.T) {
	db, teardown := setupUserPostgresContainer(t)
	defer teardown()

	ctx := context.Background()
	reader := NewUserReadRepository(db, nil)
	writer := NewUserWriteRepository(db, nil)

	alice := newUser("alice", "alice@x.com")
	require.NoError(t, writer.Create(ctx, alice))
	require.NoError(t, writer.Create(ctx, newUser("bob", "bob@x.com")))

	t.Run("DuplicateUsername", func(t *testing.T) {
		err := writer.Create(ctx, newUser("alice", "other@x.com"))
		assert.ErrorIs(t, err, ErrDuplicateUser)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		err := writer.Create(ctx, newUser("alice2", "alice@x.com"))
		assert.ErrorIs(t, err, ErrDuplicateUser)

		var count int
		require.NoError(t, db.Get(&count, "SELECT COUNT(*) FROM users WHERE email = $1", "alice@x.com"))
		assert.Equal(t, 1, count)
	})

	t.Run("Exists", func(t *testing.T) {
		exists, err := reader.ExistsByUsernameOrEmail(ctx, "nobody", "alice@x.com")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = reader.ExistsByUsernameOrEmail(ctx, "nobody", "nobody@x.com")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("ByUsername", func(t *testing.T) {
		username := "alice"
		user, err := reader.GetByUsernameOrEmail(ctx, &username, nil)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, alice.ID, user.ID)
		assert.Nil(t, user.RefreshToken)
		assert.Equal(t, "", user.CoverImage)
	})

	t.Run("ByEmail", func(t *testing.T) {
		email := "bob@x.com"
		user, err := reader.GetByUsernameOrEmail(ctx, nil, &email)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "bob", user.Username)
	})

	t.Run("ByUsernameAndMismatchedEmail", func(t *testing.T) {
		username, email := "alice", "bob@x.com"
		user, err := reader.GetByUsernameOrEmail(ctx, &username, &email)
		assert.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("RefreshTokenLifecycle", func(t *testing.T) {
		first := "token-1"
		require.NoError(t, writer.SetRefreshToken(ctx, alice.ID, &first))

		ok, err := writer.SwapRefreshToken(ctx, alice.ID, "token-1", "token-2")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = writer.SwapRefreshToken(ctx, alice.ID, "token-1", "token-3")
		require.NoError(t, err)
		assert.False(t, ok)

		user, err := reader.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, user.RefreshToken)
		assert.Equal(t, "token-2", *user.RefreshToken)

		require.NoError(t, writer.SetRefreshToken(ctx, alice.ID, nil))
		user, err = reader.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Nil(t, user.RefreshToken)

		ok, err = writer.SwapRefreshToken(ctx, alice.ID, "token-2", "token-4")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ConcurrentSwapHasSingleWinner", func(t *testing.T) {
		start := "race-0"
		require.NoError(t, writer.SetRefreshToken(ctx, alice.ID, &start))

		const attempts = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := writer.SwapRefreshToken(ctx, alice.ID, start, fmt.Sprintf("race-%d", i+1))
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})

	t.Run("UpdateAccount", func(t *testing.T) {
		name := "Alice Liddell"
		user, err := writer.UpdateAccount(ctx, alice.ID, &name, nil)
		require.NoError(t, err)
		assert.Equal(t, "Alice Liddell", user.FullName)
		assert.Equal(t, "alice@x.com", user.Email)

		taken := "bob@x.com"
		_, err = writer.UpdateAccount(ctx, alice.ID, nil, &taken)
		assert.ErrorIs(t, err, ErrDuplicateUser)

		user, err = writer.UpdateAccount(ctx, uuid.New(), &name, nil)
		assert.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("UpdateImages", func(t *testing.T) {
		user, err := writer.UpdateAvatar(ctx, alice.ID, "http://media/new.png")
		require.NoError(t, err)
		assert.Equal(t, "http://media/new.png", user.Avatar)

		user, err = writer.UpdateCoverImage(ctx, alice.ID, "http://media/cover.png")
		require.NoError(t, err)
		assert.Equal(t, "http://media/cover.png", user.CoverImage)
	})

	t.Run("UpdatePassword", func(t *testing.T) {
		require.NoError(t, writer.UpdatePassword(ctx, alice.ID, "$2a$10$other"))

		user, err := reader.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "$2a$10$other", user.PasswordHash)
	})
}
