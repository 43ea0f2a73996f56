package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the marking API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NatsURL             string
	EventSubjectBase    string
	JWTSecret           string
	StorageCloudName    string
	StorageAPIKey       string
	StorageAPISecret    string
	StorageUploadFolder string
	IntakeLockTTL       time.Duration
	IntakeLockWait      time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MARKING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Marking API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.subject_base", "marking")
	v.SetDefault("storage.folder", "marking/submissions")
	v.SetDefault("intake.lock_ttl", "10s")
	v.SetDefault("intake.lock_wait", "3s")

	lockTTL, err := time.ParseDuration(v.GetString("intake.lock_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid intake lock ttl: %w", err)
	}

	lockWait, err := time.ParseDuration(v.GetString("intake.lock_wait"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid intake lock wait: %w", err)
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NatsURL:             v.GetString("nats.url"),
		EventSubjectBase:    v.GetString("events.subject_base"),
		JWTSecret:           v.GetString("jwt.secret"),
		StorageCloudName:    v.GetString("storage.cloud_name"),
		StorageAPIKey:       v.GetString("storage.api_key"),
		StorageAPISecret:    v.GetString("storage.api_secret"),
		StorageUploadFolder: v.GetString("storage.folder"),
		IntakeLockTTL:       lockTTL,
		IntakeLockWait:      lockWait,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}
