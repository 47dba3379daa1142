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

// Kiosk check-in policies.
const (
	CheckInPolicyFirst = "first"
	CheckInPolicyAll   = "all"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Schedule     ScheduleConfig
	Board        BoardConfig
	Regeneration RegenerationConfig
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
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ScheduleConfig governs materialization and check-in behaviour.
type ScheduleConfig struct {
	Timezone             string
	HorizonYears         int
	InsertChunkSize      int
	KioskCheckInPolicy   string
	ReadingSessionLength time.Duration
}

// Location resolves the academy timezone, falling back to UTC when unknown.
func (c ScheduleConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BoardConfig controls caching of teacher day boards.
type BoardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// RegenerationConfig tunes the retry queue used after partial regeneration failures.
type RegenerationConfig struct {
	Workers    int
	Retries    int
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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	policy := strings.ToLower(strings.TrimSpace(v.GetString("KIOSK_CHECKIN_POLICY")))
	if policy != CheckInPolicyAll {
		policy = CheckInPolicyFirst
	}
	horizon := v.GetInt("MATERIALIZE_HORIZON_YEARS")
	if horizon <= 0 {
		horizon = 7
	}
	chunk := v.GetInt("LESSON_INSERT_CHUNK_SIZE")
	if chunk <= 0 {
		chunk = 500
	}
	cfg.Schedule = ScheduleConfig{
		Timezone:             v.GetString("ACADEMY_TIMEZONE"),
		HorizonYears:         horizon,
		InsertChunkSize:      chunk,
		KioskCheckInPolicy:   policy,
		ReadingSessionLength: parseDuration(v.GetString("READING_SESSION_LENGTH"), 90*time.Minute),
	}

	cfg.Board = BoardConfig{
		CacheEnabled: v.GetBool("ENABLE_BOARD_CACHE"),
		CacheTTL:     parseDuration(v.GetString("BOARD_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Regeneration = RegenerationConfig{
		Workers:    v.GetInt("REGENERATION_RETRY_WORKERS"),
		Retries:    v.GetInt("REGENERATION_RETRIES"),
		RetryDelay: parseDuration(v.GetString("REGENERATION_RETRY_DELAY"), 5*time.Second),
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
	v.SetDefault("DB_NAME", "academy_schedule")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ACADEMY_TIMEZONE", "Asia/Seoul")
	v.SetDefault("MATERIALIZE_HORIZON_YEARS", 7)
	v.SetDefault("LESSON_INSERT_CHUNK_SIZE", 500)
	v.SetDefault("KIOSK_CHECKIN_POLICY", CheckInPolicyFirst)
	v.SetDefault("READING_SESSION_LENGTH", "90m")

	v.SetDefault("ENABLE_BOARD_CACHE", false)
	v.SetDefault("BOARD_CACHE_TTL", "2m")

	v.SetDefault("REGENERATION_RETRY_WORKERS", 1)
	v.SetDefault("REGENERATION_RETRIES", 3)
	v.SetDefault("REGENERATION_RETRY_DELAY", "5s")
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
