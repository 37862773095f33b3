package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Mirror backends supported by the local fallback store.
const (
	MirrorDriverFile     = "file"
	MirrorDriverRedis    = "redis"
	MirrorDriverPostgres = "postgres"
	MirrorDriverSQLite   = "sqlite"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Gateway  GatewayConfig
	Mirror   MirrorConfig
	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Roster   RosterConfig
	Exports  ExportsConfig
}

// GatewayConfig points at the external roster backend.
type GatewayConfig struct {
	BaseURL     string
	Timeout     time.Duration
	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration
}

// MirrorConfig selects and tunes the local fallback store.
type MirrorConfig struct {
	Driver     string
	Dir        string
	KeyPrefix  string
	SQLitePath string
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

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RosterConfig carries view-model defaults.
type RosterConfig struct {
	DefaultSort          string
	DefaultClassLevel    string
	DefaultClassCapacity int
	SearchDebounce       time.Duration
}

// ExportsConfig configures asynchronous export generation.
type ExportsConfig struct {
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
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

	cfg.Gateway = GatewayConfig{
		BaseURL:     strings.TrimRight(strings.TrimSpace(v.GetString("GATEWAY_BASE_URL")), "/"),
		Timeout:     parseDuration(v.GetString("GATEWAY_TIMEOUT"), 10*time.Second),
		TokenSecret: v.GetString("GATEWAY_TOKEN_SECRET"),
		TokenIssuer: v.GetString("GATEWAY_TOKEN_ISSUER"),
		TokenTTL:    parseDuration(v.GetString("GATEWAY_TOKEN_TTL"), 5*time.Minute),
	}

	cfg.Mirror = MirrorConfig{
		Driver:     strings.ToLower(v.GetString("MIRROR_DRIVER")),
		Dir:        v.GetString("MIRROR_DIR"),
		KeyPrefix:  v.GetString("MIRROR_KEY_PREFIX"),
		SQLitePath: v.GetString("MIRROR_SQLITE_PATH"),
	}

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

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Roster = RosterConfig{
		DefaultSort:          v.GetString("ROSTER_DEFAULT_SORT"),
		DefaultClassLevel:    v.GetString("ROSTER_DEFAULT_CLASS_LEVEL"),
		DefaultClassCapacity: v.GetInt("ROSTER_DEFAULT_CLASS_CAPACITY"),
		SearchDebounce:       parseDuration(v.GetString("ROSTER_SEARCH_DEBOUNCE"), 300*time.Millisecond),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), 30*time.Minute),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	if err := validateStorageDirs(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateStorageDirs keeps export cleanup away from the mirror files.
func validateStorageDirs(cfg *Config) error {
	var mirrorDir string
	switch cfg.Mirror.Driver {
	case MirrorDriverFile:
		mirrorDir = cfg.Mirror.Dir
	case MirrorDriverSQLite:
		mirrorDir = filepath.Dir(cfg.Mirror.SQLitePath)
	default:
		return nil
	}
	overlap, err := dirsOverlap(mirrorDir, cfg.Exports.StorageDir)
	if err != nil {
		return err
	}
	if overlap {
		return fmt.Errorf("EXPORTS_STORAGE_DIR %q overlaps mirror directory %q", cfg.Exports.StorageDir, mirrorDir)
	}
	return nil
}

func dirsOverlap(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return within(absA, absB) || within(absB, absA), nil
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8081)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("GATEWAY_BASE_URL", "")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("GATEWAY_TOKEN_SECRET", "")
	v.SetDefault("GATEWAY_TOKEN_ISSUER", "sma-roster")
	v.SetDefault("GATEWAY_TOKEN_TTL", "5m")

	v.SetDefault("MIRROR_DRIVER", MirrorDriverFile)
	v.SetDefault("MIRROR_DIR", "./mirror")
	v.SetDefault("MIRROR_KEY_PREFIX", "")
	v.SetDefault("MIRROR_SQLITE_PATH", "./mirror/roster.db")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "gestao_escolar")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 2)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ROSTER_DEFAULT_SORT", "nome")
	v.SetDefault("ROSTER_DEFAULT_CLASS_LEVEL", "Fundamental")
	v.SetDefault("ROSTER_DEFAULT_CLASS_CAPACITY", 30)
	v.SetDefault("ROSTER_SEARCH_DEBOUNCE", "300ms")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "1h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "30m")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 2)
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
