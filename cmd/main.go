package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	_ "github.com/jackc/pgx/v5/stdlib"

	_ "github.com/sbilibin2017/gw-account-service/docs"
	"github.com/sbilibin2017/gw-account-service/internal/config"
	"github.com/sbilibin2017/gw-account-service/internal/facades"
	"github.com/sbilibin2017/gw-account-service/internal/handlers"
	"github.com/sbilibin2017/gw-account-service/internal/jwt"
	"github.com/sbilibin2017/gw-account-service/internal/logger"
	"github.com/sbilibin2017/gw-account-service/internal/middlewares"
	"github.com/sbilibin2017/gw-account-service/internal/migrations"
	"github.com/sbilibin2017/gw-account-service/internal/repositories"
	"github.com/sbilibin2017/gw-account-service/internal/services"
)

// Build info variables, set via ldflags at build time.
var (
	buildVersion = "N/A" // Version of the service
	buildDate    = "N/A" // Build date
	buildCommit  = "N/A" // Git commit hash
)

// @title gw-account-service API
// @version 1.0.0
// @description User account service: registration, login, token rotation and profile management
// @host localhost:8080
// @BasePath /api/v1/users
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	printBuildInfo()
	configPath := parseFlags()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	if err := run(context.Background(), cfg); err != nil {
		log.Fatalf("application stopped with error: %v", err)
	}
}

// printBuildInfo prints the build version, commit hash, and build date.
func printBuildInfo() {
	fmt.Printf("Version: %s\nCommit: %s\nBuild: %s\n", buildVersion, buildCommit, buildDate)
}

// parseFlags parses command-line flags and returns the config file path.
func parseFlags() string {
	c := flag.String("c", "config.env", "Path to configuration file")
	flag.Parse()
	return *c
}

// run initializes the logger, database, Redis, Kafka, S3 and both servers.
// It sets up routes, applies middleware, and handles graceful shutdown.
func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.Initialize(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Println("failed to initialize logger:", err)
		return err
	}
	defer logger.Log.Sync()
	logger.Log.Infof("Logger initialized with level %s", cfg.LogLevel)

	// Connect to PostgreSQL
	logger.Log.Infof("Connecting to PostgreSQL at %s:%d/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
	db, err := sqlx.ConnectContext(ctx, "pgx", cfg.PostgresDSN())
	if err != nil {
		return fmt.Errorf("PostgreSQL connection error: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.PostgresMaxOpenConns)
	db.SetMaxIdleConns(cfg.PostgresMaxIdleConns)

	if err := migrations.Up(ctx, db.DB); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis connection error: %w", err)
	}
	defer rdb.Close()

	// Kafka is optional
	var kafkaWriter services.KafkaWriter
	if len(cfg.KafkaBrokers) > 0 {
		w := newKafkaWriter(cfg)
		defer w.Close()
		kafkaWriter = w
		logger.Log.Infof("Publishing account events to %s", cfg.KafkaTopic)
	} else {
		logger.Log.Info("KAFKA_BROKERS is empty, account events are disabled")
	}

	// Media store
	s3Client, err := facades.NewS3Client(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	media := facades.NewMediaS3Facade(s3Client, cfg.S3Bucket, cfg.S3PublicURL)

	tokens := jwt.New(
		jwt.WithAccessSecret(cfg.AccessTokenSecret),
		jwt.WithAccessExpiration(cfg.AccessTokenExp),
		jwt.WithRefreshSecret(cfg.RefreshTokenSecret),
		jwt.WithRefreshExpiration(cfg.RefreshTokenExp),
	)

	// Initialize repositories
	userReadRepo := repositories.NewUserReadRepository(db, middlewares.GetTxFromContext)
	userWriteRepo := repositories.NewUserWriteRepository(db, middlewares.GetTxFromContext)
	userCacheRepo := repositories.NewUserCacheRepository(rdb, cfg.ProfileCacheTTL)

	// Initialize services
	authService := services.NewAuthService(userReadRepo, userWriteRepo, tokens, media, kafkaWriter)
	accountService := services.NewAccountService(userReadRepo, userWriteRepo, media, userCacheRepo, kafkaWriter)

	router := newRouter(cfg, routerDeps{
		db:      db,
		tokens:  tokens,
		auth:    authService,
		account: accountService,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// gRPC health
	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.AppHost, cfg.GRPCHealthPort))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC health: %w", err)
	}
	grpcServer, healthServer := newHealthServer()

	// Graceful shutdown
	errChan := make(chan error, 2)
	ctxShutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	go func() {
		logger.Log.Infof("gRPC health server listening on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			errChan <- fmt.Errorf("gRPC health server failed: %w", err)
		}
	}()

	go func() {
		logger.Log.Infof("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctxShutdown.Done():
		logger.Log.Info("Shutdown signal received, stopping servers...")
	case serveErr = <-errChan:
		logger.Log.Errorw("server failed, shutting down", "error", serveErr)
	}

	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorw("HTTP server shutdown error", "error", err)
	}
	grpcServer.GracefulStop()

	logger.Log.Info("Servers stopped gracefully")
	return serveErr
}

type routerDeps struct {
	db      *sqlx.DB
	tokens  *jwt.JWT
	auth    *services.AuthService
	account *services.AccountService
}

// newRouter mounts the account API under /api/v1/users and the Swagger UI.
func newRouter(cfg *config.Config, d routerDeps) http.Handler {
	tx := middlewares.TxMiddleware(d.db)
	auth := middlewares.AuthMiddleware(d.tokens)
	upload := func(fields ...string) func(http.Handler) http.Handler {
		return middlewares.UploadMiddleware(cfg.UploadDir, cfg.UploadMax, fields...)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middlewares.LoggingMiddleware(logger.Log))

	r.Route("/api/v1/users", func(r chi.Router) {
		// Public routes
		r.With(upload(handlers.AvatarField, handlers.CoverImageField), tx).
			Post("/register", handlers.NewRegisterHandler(d.auth))
		r.Post("/login", handlers.NewLoginHandler(d.auth, cfg.CookieSecure))

		refresh := handlers.NewRefreshTokenHandler(d.auth, cfg.CookieSecure)
		r.Get("/refresh-token", refresh)
		r.Post("/refresh-token", refresh)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/logout", handlers.NewLogoutHandler(d.auth, cfg.CookieSecure))
			r.With(tx).Post("/change-password", handlers.NewChangePasswordHandler(d.account))
			r.Get("/current-user", handlers.NewCurrentUserHandler(d.account))
			r.Patch("/update-account", handlers.NewUpdateAccountHandler(d.account))
			r.With(upload(handlers.AvatarField)).Patch("/avatar", handlers.NewAvatarHandler(d.account))
			r.With(upload(handlers.CoverImageField)).Patch("/cover-image", handlers.NewCoverImageHandler(d.account))
		})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://%s/swagger/doc.json", cfg.HTTPAddr())),
	))

	return r
}

func newKafkaWriter(cfg *config.Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers...),
		Topic:    cfg.KafkaTopic,
		Balancer: &kafka.Hash{},
		Async:    true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Log.Errorw("Failed to deliver account events", "count", len(messages), "error", err)
			}
		},
	}
}

// newHealthServer returns a gRPC server exposing the standard health service,
// reporting SERVING until the health server is shut down.
func newHealthServer() (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return grpcServer, healthServer
}
