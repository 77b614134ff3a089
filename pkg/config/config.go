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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Analytics AnalyticsConfig
	Dashboard DashboardConfig
	Snapshot  SnapshotConfig
	Reports   ReportsConfig
	Insights  InsightsConfig
	Weather   WeatherConfig
	Events    EventsConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AnalyticsConfig governs cache behaviour and monitoring windows for course analytics.
type AnalyticsConfig struct {
	CacheTTL          time.Duration
	SilentWindow      time.Duration
	DefaultWindowDays int
}

// DashboardConfig governs dashboard cache tuning.
type DashboardConfig struct {
	CacheTTL           time.Duration
	LowHealthThreshold int
}

// SnapshotConfig controls how long loaded store snapshots stay cached.
type SnapshotConfig struct {
	CacheTTL time.Duration
}

// ReportsConfig configures asynchronous report generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// InsightsConfig points the insight generator at a chat-completion endpoint.
type InsightsConfig struct {
	Enabled  bool
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// WeatherConfig configures the weather widget upstream.
type WeatherConfig struct {
	Enabled     bool
	BaseURL     string
	APIKey      string
	DefaultCity string
	Timeout     time.Duration
	CacheTTL    time.Duration
}

// EventsConfig toggles domain event publishing to Kafka.
type EventsConfig struct {
	Enabled     bool
	Brokers     []string
	TopicPrefix string
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

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheTTL:          parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
		SilentWindow:      parseDuration(v.GetString("SILENT_STUDENT_WINDOW"), 7*24*time.Hour),
		DefaultWindowDays: v.GetInt("ANALYTICS_DEFAULT_DAYS"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL:           parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
		LowHealthThreshold: v.GetInt("DASHBOARD_LOW_HEALTH_THRESHOLD"),
	}

	cfg.Snapshot = SnapshotConfig{
		CacheTTL: parseDuration(v.GetString("SNAPSHOT_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
	}

	cfg.Insights = InsightsConfig{
		Enabled:  v.GetBool("ENABLE_INSIGHTS"),
		BaseURL:  v.GetString("INSIGHTS_BASE_URL"),
		APIKey:   v.GetString("INSIGHTS_API_KEY"),
		Model:    v.GetString("INSIGHTS_MODEL"),
		Timeout:  parseDuration(v.GetString("INSIGHTS_TIMEOUT"), 30*time.Second),
		CacheTTL: parseDuration(v.GetString("INSIGHTS_CACHE_TTL"), 6*time.Hour),
	}

	cfg.Weather = WeatherConfig{
		Enabled:     v.GetBool("ENABLE_WEATHER"),
		BaseURL:     v.GetString("WEATHER_BASE_URL"),
		APIKey:      v.GetString("WEATHER_API_KEY"),
		DefaultCity: v.GetString("WEATHER_DEFAULT_CITY"),
		Timeout:     parseDuration(v.GetString("WEATHER_TIMEOUT"), 5*time.Second),
		CacheTTL:    parseDuration(v.GetString("WEATHER_CACHE_TTL"), 30*time.Minute),
	}

	cfg.Events = EventsConfig{
		Enabled:     v.GetBool("ENABLE_EVENTS"),
		Brokers:     splitAndTrim(v.GetString("KAFKA_BROKERS")),
		TopicPrefix: v.GetString("KAFKA_TOPIC_PREFIX"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "lecture_intel")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "lecture-intel-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")
	v.SetDefault("SILENT_STUDENT_WINDOW", "168h")
	v.SetDefault("ANALYTICS_DEFAULT_DAYS", 7)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("DASHBOARD_LOW_HEALTH_THRESHOLD", 50)
	v.SetDefault("SNAPSHOT_CACHE_TTL", "2m")

	v.SetDefault("ENABLE_REPORTS", false)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)

	v.SetDefault("ENABLE_INSIGHTS", false)
	v.SetDefault("INSIGHTS_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("INSIGHTS_API_KEY", "")
	v.SetDefault("INSIGHTS_MODEL", "gpt-4o-mini")
	v.SetDefault("INSIGHTS_TIMEOUT", "30s")
	v.SetDefault("INSIGHTS_CACHE_TTL", "6h")

	v.SetDefault("ENABLE_WEATHER", false)
	v.SetDefault("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5")
	v.SetDefault("WEATHER_API_KEY", "")
	v.SetDefault("WEATHER_DEFAULT_CITY", "Lisbon")
	v.SetDefault("WEATHER_TIMEOUT", "5s")
	v.SetDefault("WEATHER_CACHE_TTL", "30m")

	v.SetDefault("ENABLE_EVENTS", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC_PREFIX", "lecture-intel")
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
