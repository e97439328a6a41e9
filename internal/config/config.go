package config

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageDriverFile     = "file"
	StorageDriverPostgres = "postgres"

	// DefaultUploadMaxBytes is the per-request upload ceiling (150 MiB).
	DefaultUploadMaxBytes = 150 * 1024 * 1024
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	StaticDir      string
	AllowedOrigins []string
}

type StorageConfig struct {
	Driver         string
	DataFile       string
	UploadsDir     string
	UploadMaxBytes int64
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// IsDevelopment reports whether the server runs outside production.
func (c ServerConfig) IsDevelopment() bool {
	return c.Env != "production"
}

func Load() *Config {
	// Values already present in the environment win over .env entries.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Could not read .env file: %v", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "3000")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("STATIC_DIR", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("STORAGE_DRIVER", StorageDriverFile)
	v.SetDefault("DATA_FILE", "data/cars.json")
	v.SetDefault("UPLOADS_DIR", "uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", DefaultUploadMaxBytes)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SCHEMA", "public")
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_REQUESTS", 60)
	v.SetDefault("RATE_LIMIT_WINDOW", time.Minute)

	env := v.GetString("SERVER_ENV")
	logLevel := v.GetString("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "debug"
		if env == "production" {
			logLevel = "info"
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            env,
			LogLevel:       logLevel,
			StaticDir:      v.GetString("STATIC_DIR"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Storage: StorageConfig{
			Driver:         strings.ToLower(v.GetString("STORAGE_DRIVER")),
			DataFile:       v.GetString("DATA_FILE"),
			UploadsDir:     v.GetString("UPLOADS_DIR"),
			UploadMaxBytes: v.GetInt64("UPLOAD_MAX_BYTES"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_DATABASE"),
			Schema:   v.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("REDIS_ENABLED"),
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
