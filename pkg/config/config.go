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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Ledger        LedgerConfig
	Progress      ProgressConfig
	Collaborators CollaboratorsConfig
	Events        EventsConfig
	Cache         CacheConfig
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
	AutoMigrate  bool

	// ConnectAttempts bounds the startup ping loop.
	ConnectAttempts int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// LedgerConfig seeds the enrollment ledger settings on first start.
type LedgerConfig struct {
	PlatformFee    int64
	MaxEnrollments int64
	BurnAddress    string
}

// ProgressConfig seeds the progress tracker settings on first start.
type ProgressConfig struct {
	CompletionThreshold int64
	MaxMilestones       int64
	RewardAmount        int64
	CourseHistoryLimit  int
}

// CollaboratorsConfig points at the external services the ledger calls.
type CollaboratorsConfig struct {
	AuthorityRegistryURL string
	TokenServiceURL      string
	CredentialServiceURL string
	CourseRegistryURL    string
	UserRegistryURL      string
	APIKey               string
	Timeout              time.Duration
}

// EventsConfig controls the post-commit ledger event feed.
type EventsConfig struct {
	Enabled    bool
	Channel    string
	Workers    int
	BufferSize int
	MaxRetries int
}

// CacheConfig governs read-through caching of course metrics.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
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
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),

		ConnectAttempts: v.GetInt("DB_CONNECT_ATTEMPTS"),
		ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Ledger = LedgerConfig{
		PlatformFee:    v.GetInt64("LEDGER_PLATFORM_FEE"),
		MaxEnrollments: v.GetInt64("LEDGER_MAX_ENROLLMENTS"),
		BurnAddress:    v.GetString("LEDGER_BURN_ADDRESS"),
	}

	cfg.Progress = ProgressConfig{
		CompletionThreshold: v.GetInt64("PROGRESS_COMPLETION_THRESHOLD"),
		MaxMilestones:       v.GetInt64("PROGRESS_MAX_MILESTONES"),
		RewardAmount:        v.GetInt64("PROGRESS_REWARD_AMOUNT"),
		CourseHistoryLimit:  v.GetInt("PROGRESS_COURSE_HISTORY_LIMIT"),
	}

	cfg.Collaborators = CollaboratorsConfig{
		AuthorityRegistryURL: v.GetString("AUTHORITY_REGISTRY_URL"),
		TokenServiceURL:      v.GetString("TOKEN_SERVICE_URL"),
		CredentialServiceURL: v.GetString("CREDENTIAL_SERVICE_URL"),
		CourseRegistryURL:    v.GetString("COURSE_REGISTRY_URL"),
		UserRegistryURL:      v.GetString("USER_REGISTRY_URL"),
		APIKey:               v.GetString("COLLABORATOR_API_KEY"),
		Timeout:              parseDuration(v.GetString("COLLABORATOR_TIMEOUT"), 5*time.Second),
	}

	cfg.Events = EventsConfig{
		Enabled:    v.GetBool("ENABLE_EVENTS"),
		Channel:    v.GetString("EVENTS_CHANNEL"),
		Workers:    v.GetInt("EVENTS_WORKERS"),
		BufferSize: v.GetInt("EVENTS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("EVENTS_MAX_RETRIES"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), time.Minute),
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
	v.SetDefault("DB_NAME", "course_ledger")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("DB_CONNECT_ATTEMPTS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LEDGER_PLATFORM_FEE", 500)
	v.SetDefault("LEDGER_MAX_ENROLLMENTS", 10000)
	v.SetDefault("LEDGER_BURN_ADDRESS", "SP000000000000000000002Q6VF78")

	v.SetDefault("PROGRESS_COMPLETION_THRESHOLD", 5)
	v.SetDefault("PROGRESS_MAX_MILESTONES", 10)
	v.SetDefault("PROGRESS_REWARD_AMOUNT", 100)
	v.SetDefault("PROGRESS_COURSE_HISTORY_LIMIT", 20)

	v.SetDefault("AUTHORITY_REGISTRY_URL", "http://localhost:9101")
	v.SetDefault("TOKEN_SERVICE_URL", "http://localhost:9102")
	v.SetDefault("CREDENTIAL_SERVICE_URL", "http://localhost:9103")
	v.SetDefault("COURSE_REGISTRY_URL", "http://localhost:9104")
	v.SetDefault("USER_REGISTRY_URL", "http://localhost:9105")
	v.SetDefault("COLLABORATOR_API_KEY", "")
	v.SetDefault("COLLABORATOR_TIMEOUT", "5s")

	v.SetDefault("ENABLE_EVENTS", false)
	v.SetDefault("EVENTS_CHANNEL", "ledger.events")
	v.SetDefault("EVENTS_WORKERS", 1)
	v.SetDefault("EVENTS_BUFFER_SIZE", 64)
	v.SetDefault("EVENTS_MAX_RETRIES", 3)

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "1m")
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
