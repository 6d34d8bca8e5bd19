// Package config builds the immutable service configuration from a dotenv
// file and the process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime settings for the account service.
// It is built once by Load and passed by value or pointer to constructors;
// nothing mutates it after startup.
type Config struct {
	AppHost      string
	AppPort      string
	LogLevel     string
	LogFormat    string
	UploadDir    string
	UploadMax    int64
	CookieSecure bool

	PostgresHost         string
	PostgresPort         int
	PostgresUser         string
	PostgresPassword     string
	PostgresDB           string
	PostgresMaxOpenConns int
	PostgresMaxIdleConns int

	RedisHost         string
	RedisPort         int
	RedisDB           int
	RedisPassword     string
	RedisPoolSize     int
	RedisMinIdleConns int
	ProfileCacheTTL   time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	GRPCHealthPort string

	AccessTokenSecret  string
	AccessTokenExp     time.Duration
	RefreshTokenSecret string
	RefreshTokenExp    time.Duration

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

// PostgresDSN returns the pgx connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

// RedisAddr returns host:port of the Redis server.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// HTTPAddr returns host:port the HTTP server binds to.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%s", c.AppHost, c.AppPort)
}

// Load reads the dotenv file at path (a missing file is not an error),
// then builds a Config from the environment, falling back to defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(path)

	var (
		c   Config
		err error
	)

	// Application
	c.AppHost = getEnv("APP_HOST", "localhost")
	c.AppPort = getEnv("APP_PORT", "8080")
	c.LogLevel = getEnv("APP_LOG_LEVEL", "info")
	c.LogFormat = getEnv("APP_LOG_FORMAT", "json")
	c.UploadDir = getEnv("UPLOAD_DIR", os.TempDir())
	if c.UploadMax, err = strconv.ParseInt(getEnv("UPLOAD_MAX_BYTES", "10485760"), 10, 64); err != nil {
		return nil, fmt.Errorf("UPLOAD_MAX_BYTES: %w", err)
	}
	if c.CookieSecure, err = strconv.ParseBool(getEnv("COOKIE_SECURE", "true")); err != nil {
		return nil, fmt.Errorf("COOKIE_SECURE: %w", err)
	}

	// PostgreSQL
	c.PostgresHost = getEnv("POSTGRES_HOST", "localhost")
	c.PostgresUser = getEnv("POSTGRES_USER", "user")
	c.PostgresPassword = getEnv("POSTGRES_PASSWORD", "password")
	c.PostgresDB = getEnv("POSTGRES_DB", "database")
	if c.PostgresPort, err = getInt("POSTGRES_PORT", 5432); err != nil {
		return nil, err
	}
	if c.PostgresMaxOpenConns, err = getInt("POSTGRES_MAX_OPEN_CONNS", 16); err != nil {
		return nil, err
	}
	if c.PostgresMaxIdleConns, err = getInt("POSTGRES_MAX_IDLE_CONNS", 8); err != nil {
		return nil, err
	}

	// Redis
	c.RedisHost = getEnv("REDIS_HOST", "localhost")
	c.RedisPassword = getEnv("REDIS_PASSWORD", "")
	if c.RedisPort, err = getInt("REDIS_PORT", 6379); err != nil {
		return nil, err
	}
	if c.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if c.RedisPoolSize, err = getInt("REDIS_POOL_SIZE", 10); err != nil {
		return nil, err
	}
	if c.RedisMinIdleConns, err = getInt("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return nil, err
	}
	if c.ProfileCacheTTL, err = getSeconds("PROFILE_CACHE_TTL_SECOND", 300); err != nil {
		return nil, err
	}

	// Kafka
	c.KafkaBrokers = splitList(getEnv("KAFKA_BROKERS", ""))
	c.KafkaTopic = getEnv("KAFKA_TOPIC", "account-events")

	// gRPC health
	c.GRPCHealthPort = getEnv("GRPC_HEALTH_PORT", "50052")

	// Tokens
	c.AccessTokenSecret = getEnv("ACCESS_TOKEN_SECRET", "access_secret")
	if c.AccessTokenExp, err = getSeconds("ACCESS_TOKEN_EXP_SECOND", 900); err != nil {
		return nil, err
	}
	c.RefreshTokenSecret = getEnv("REFRESH_TOKEN_SECRET", "refresh_secret")
	if c.RefreshTokenExp, err = getSeconds("REFRESH_TOKEN_EXP_SECOND", 864000); err != nil {
		return nil, err
	}

	// Media store
	c.S3Endpoint = getEnv("S3_ENDPOINT", "http://localhost:9000")
	c.S3Region = getEnv("S3_REGION", "us-east-1")
	c.S3Bucket = getEnv("S3_BUCKET", "media")
	c.S3AccessKey = getEnv("S3_ACCESS_KEY", "admin")
	c.S3SecretKey = getEnv("S3_SECRET_KEY", "secretpassword")
	c.S3PublicURL = getEnv("S3_PUBLIC_URL",
		strings.TrimRight(c.S3Endpoint, "/")+"/"+c.S3Bucket)

	return &c, nil
}

func getEnv(key, defaultValue string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getSeconds(key string, defaultValue int) (time.Duration, error) {
	v, err := getInt(key, defaultValue)
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
