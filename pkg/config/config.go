package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Remote store drivers.
const (
	RemoteDriverRedis    = "redis"
	RemoteDriverPostgres = "postgres"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	CORS           CORSConfig
	Log            LogConfig
	Audit          AuditConfig
	RemoteStore    RemoteStoreConfig
	LocalCache     LocalCacheConfig
	Sync           SyncConfig
	ChangeRequests ChangeRequestConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Enabled bool
	Secret  string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuditConfig toggles the Postgres-backed decision audit trail.
type AuditConfig struct {
	Enabled bool
}

// RemoteStoreConfig selects the authoritative key/value backend shared by every client.
type RemoteStoreConfig struct {
	Driver    string
	KeyPrefix string
}

// LocalCacheConfig points at the per-process SQLite cache file.
type LocalCacheConfig struct {
	Path string
}

// SyncConfig tunes the pull/push loop.
type SyncConfig struct {
	ClientID           string
	Interval           time.Duration
	Timeout            time.Duration
	PushWorkers        int
	PushRetries        int
	RetryDelay         time.Duration
	TombstoneRetention time.Duration
}

// ChangeRequestConfig governs workflow policy knobs.
type ChangeRequestConfig struct {
	UniquePending bool
	RecencyWindow time.Duration
	ExportMaxRows int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Enabled: v.GetBool("AUTH_ENABLED"),
		Secret:  v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Audit = AuditConfig{Enabled: v.GetBool("ENABLE_AUDIT_LOG")}

	driver := strings.ToLower(strings.TrimSpace(v.GetString("REMOTE_STORE_DRIVER")))
	if driver != RemoteDriverPostgres {
		driver = RemoteDriverRedis
	}
	cfg.RemoteStore = RemoteStoreConfig{
		Driver:    driver,
		KeyPrefix: v.GetString("REMOTE_KEY_PREFIX"),
	}

	cfg.LocalCache = LocalCacheConfig{Path: v.GetString("LOCAL_CACHE_PATH")}

	cfg.Sync = SyncConfig{
		ClientID:           v.GetString("CLIENT_ID"),
		Interval:           parseDuration(v.GetString("SYNC_INTERVAL"), 5*time.Second),
		Timeout:            parseDuration(v.GetString("SYNC_TIMEOUT"), 5*time.Second),
		PushWorkers:        v.GetInt("SYNC_PUSH_WORKERS"),
		PushRetries:        v.GetInt("SYNC_PUSH_RETRIES"),
		RetryDelay:         parseDuration(v.GetString("SYNC_PUSH_RETRY_DELAY"), time.Second),
		TombstoneRetention: parseDuration(v.GetString("SYNC_TOMBSTONE_RETENTION"), 720*time.Hour),
	}

	cfg.ChangeRequests = ChangeRequestConfig{
		UniquePending: v.GetBool("CHANGE_REQUEST_UNIQUE_PENDING"),
		RecencyWindow: parseDuration(v.GetString("NOTIFICATION_RECENCY_WINDOW"), 5*time.Minute),
		ExportMaxRows: v.GetInt("EXPORT_MAX_ROWS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "apotikme")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_AUDIT_LOG", false)

	v.SetDefault("REMOTE_STORE_DRIVER", RemoteDriverRedis)
	v.SetDefault("REMOTE_KEY_PREFIX", "apotikme")
	v.SetDefault("LOCAL_CACHE_PATH", "./data/local-cache.db")

	v.SetDefault("CLIENT_ID", "")
	v.SetDefault("SYNC_INTERVAL", "5s")
	v.SetDefault("SYNC_TIMEOUT", "5s")
	v.SetDefault("SYNC_PUSH_WORKERS", 1)
	v.SetDefault("SYNC_PUSH_RETRIES", 3)
	v.SetDefault("SYNC_PUSH_RETRY_DELAY", "1s")
	v.SetDefault("SYNC_TOMBSTONE_RETENTION", "720h")

	v.SetDefault("CHANGE_REQUEST_UNIQUE_PENDING", true)
	v.SetDefault("NOTIFICATION_RECENCY_WINDOW", "5m")
	v.SetDefault("EXPORT_MAX_ROWS", 5000)
}

// viper reports an explicit but absent config file as a path error, not ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
