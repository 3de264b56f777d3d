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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Matching MatchingConfig
	Realtime RealtimeConfig
	SMS      SMSConfig
	Exports  ExportsConfig
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

// MatchingConfig tunes donor eligibility matching. RadiusKm > 0 switches the
// matcher from exact location-label equality to haversine-radius filtering.
type MatchingConfig struct {
	RadiusKm    float64
	CacheTTL    time.Duration
	MaxPageSize int
}

// RealtimeConfig controls the websocket fan-out hub.
type RealtimeConfig struct {
	SendBufferSize  int
	PingInterval    time.Duration
	PongWait        time.Duration
	MaxMessageBytes int64
}

// SMSConfig configures the best-effort outbound SMS collaborator. Delivery is
// disabled when AccountSID is empty.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	APIBaseURL string
	Timeout    time.Duration
	Workers    int
	Retries    int
}

// ExportsConfig caps donation-history export size.
type ExportsConfig struct {
	MaxRows int
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
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 7*24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Matching = MatchingConfig{
		RadiusKm:    v.GetFloat64("MATCHING_RADIUS_KM"),
		CacheTTL:    parseDuration(v.GetString("MATCHING_CACHE_TTL"), time.Minute),
		MaxPageSize: v.GetInt("MATCHING_MAX_PAGE_SIZE"),
	}

	cfg.Realtime = RealtimeConfig{
		SendBufferSize:  v.GetInt("REALTIME_SEND_BUFFER"),
		PingInterval:    parseDuration(v.GetString("REALTIME_PING_INTERVAL"), 30*time.Second),
		PongWait:        parseDuration(v.GetString("REALTIME_PONG_WAIT"), 60*time.Second),
		MaxMessageBytes: v.GetInt64("REALTIME_MAX_MESSAGE_BYTES"),
	}

	cfg.SMS = SMSConfig{
		AccountSID: v.GetString("SMS_ACCOUNT_SID"),
		AuthToken:  v.GetString("SMS_AUTH_TOKEN"),
		FromNumber: v.GetString("SMS_FROM_NUMBER"),
		APIBaseURL: v.GetString("SMS_API_BASE_URL"),
		Timeout:    parseDuration(v.GetString("SMS_TIMEOUT"), 10*time.Second),
		Workers:    v.GetInt("SMS_WORKERS"),
		Retries:    v.GetInt("SMS_RETRIES"),
	}

	cfg.Exports = ExportsConfig{
		MaxRows: v.GetInt("EXPORTS_MAX_ROWS"),
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
	v.SetDefault("DB_NAME", "bloodlink")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "bloodlink-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MATCHING_RADIUS_KM", 0)
	v.SetDefault("MATCHING_CACHE_TTL", "1m")
	v.SetDefault("MATCHING_MAX_PAGE_SIZE", 50)

	v.SetDefault("REALTIME_SEND_BUFFER", 32)
	v.SetDefault("REALTIME_PING_INTERVAL", "30s")
	v.SetDefault("REALTIME_PONG_WAIT", "60s")
	v.SetDefault("REALTIME_MAX_MESSAGE_BYTES", 1024)

	v.SetDefault("SMS_ACCOUNT_SID", "")
	v.SetDefault("SMS_AUTH_TOKEN", "")
	v.SetDefault("SMS_FROM_NUMBER", "")
	v.SetDefault("SMS_API_BASE_URL", "https://api.twilio.com")
	v.SetDefault("SMS_TIMEOUT", "10s")
	v.SetDefault("SMS_WORKERS", 1)
	v.SetDefault("SMS_RETRIES", 3)

	v.SetDefault("EXPORTS_MAX_ROWS", 1000)
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
