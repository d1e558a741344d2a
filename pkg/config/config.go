package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	SiteRoot  string

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Log      LogConfig
	OBF      OBFConfig
	Tasks    TasksConfig
	Notify   NotifyConfig
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

// AuthConfig secures the admin API surface.
type AuthConfig struct {
	JWTSecret  string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// OBFConfig tunes the Open Badge Factory API client.
type OBFConfig struct {
	DefaultURL     string
	LegacyClientID string
	RequestTimeout time.Duration
	PageSize       int
	PageLimit      int
	PageDelay      time.Duration
	BadgeCacheTTL  time.Duration
}

// TasksConfig sets scheduler cadences for the background jobs.
type TasksConfig struct {
	Enabled              bool
	ReconcileInterval    time.Duration
	EmailChangeInterval  time.Duration
	CertReminderInterval time.Duration
	ErrorGrace           time.Duration
}

// NotifyConfig tunes the in-process notification queue.
type NotifyConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.SiteRoot = v.GetString("SITE_ROOT")

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

	cfg.Auth = AuthConfig{
		JWTSecret:  v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.OBF = OBFConfig{
		DefaultURL:     v.GetString("OBF_API_URL"),
		LegacyClientID: v.GetString("OBF_LEGACY_CLIENT_ID"),
		RequestTimeout: parseDuration(v.GetString("OBF_REQUEST_TIMEOUT"), 30*time.Second),
		PageSize:       v.GetInt("OBF_PAGE_SIZE"),
		PageLimit:      v.GetInt("OBF_PAGE_LIMIT"),
		PageDelay:      parseDuration(v.GetString("OBF_PAGE_DELAY"), 100*time.Millisecond),
		BadgeCacheTTL:  parseDuration(v.GetString("OBF_BADGE_CACHE_TTL"), time.Minute),
	}

	cfg.Tasks = TasksConfig{
		Enabled:              v.GetBool("ENABLE_TASKS"),
		ReconcileInterval:    parseDuration(v.GetString("TASK_RECONCILE_INTERVAL"), time.Hour),
		EmailChangeInterval:  parseDuration(v.GetString("TASK_EMAIL_CHANGE_INTERVAL"), 24*time.Hour),
		CertReminderInterval: parseDuration(v.GetString("TASK_CERT_REMINDER_INTERVAL"), 24*time.Hour),
		ErrorGrace:           parseDuration(v.GetString("TASK_ERROR_GRACE"), 24*time.Hour),
	}

	cfg.Notify = NotifyConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		MaxRetries: v.GetInt("NOTIFY_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("NOTIFY_RETRY_DELAY"), time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("SITE_ROOT", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "obf_issuer")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("OBF_API_URL", "https://openbadgefactory.com")
	v.SetDefault("OBF_LEGACY_CLIENT_ID", "")
	v.SetDefault("OBF_REQUEST_TIMEOUT", "30s")
	v.SetDefault("OBF_PAGE_SIZE", 1000)
	v.SetDefault("OBF_PAGE_LIMIT", 5000)
	v.SetDefault("OBF_PAGE_DELAY", "100ms")
	v.SetDefault("OBF_BADGE_CACHE_TTL", "1m")

	v.SetDefault("ENABLE_TASKS", true)
	v.SetDefault("TASK_RECONCILE_INTERVAL", "1h")
	v.SetDefault("TASK_EMAIL_CHANGE_INTERVAL", "24h")
	v.SetDefault("TASK_CERT_REMINDER_INTERVAL", "24h")
	v.SetDefault("TASK_ERROR_GRACE", "24h")

	v.SetDefault("NOTIFY_WORKERS", 1)
	v.SetDefault("NOTIFY_MAX_RETRIES", 3)
	v.SetDefault("NOTIFY_RETRY_DELAY", "1s")
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
