package config

import (
	"errors"
	"time"

	jlconfig "github.com/JeremyLoy/config"
)

const (
	BackendDynamo = "dynamo"
	BackendMemory = "memory"
)

const (
	EnvDev       = "dev"
	DevJWTSecret = "dev-secret-change-me"
)

var ErrDefaultJWTSecret = errors.New("JWT_SECRET must be set outside the dev environment")

type Config struct {
	Port     string `config:"PORT"`
	Env      string `config:"APP_ENV"`
	LogLevel string `config:"LOG_LEVEL"`

	StoreBackend   string `config:"STORE_BACKEND"`
	AWSRegion      string `config:"AWS_REGION"`
	DynamoEndpoint string `config:"DYNAMO_ENDPOINT"`
	TablePrefix    string `config:"TABLE_PREFIX"`

	RoomTTLHours         int `config:"ROOM_TTL_HOURS"`
	IndexProbeTTLSeconds int `config:"INDEX_PROBE_TTL_SECONDS"`

	JWTSecret string `config:"JWT_SECRET"`
	RedisURL  string `config:"REDIS_URL"`

	CatalogBucket string `config:"CATALOG_BUCKET"`
	CatalogPrefix string `config:"CATALOG_PREFIX"`
	PosterBucket  string `config:"POSTER_BUCKET"`

	RateLimitPerSecond float64 `config:"RATE_LIMIT_PER_SECOND"`
	RateLimitBurst     int     `config:"RATE_LIMIT_BURST"`
}

// Defaults returns the configuration used when no environment overrides are set.
func Defaults() Config {
	return Config{
		Port:                 "8080",
		Env:                  EnvDev,
		LogLevel:             "info",
		StoreBackend:         BackendDynamo,
		AWSRegion:            "us-east-1",
		RoomTTLHours:         24,
		IndexProbeTTLSeconds: 30,
		JWTSecret:            DevJWTSecret,
		RateLimitPerSecond:   20,
		RateLimitBurst:       40,
	}
}

// Load overlays matching environment variables on top of Defaults. The
// built-in JWT secret is only accepted in dev.
func Load() (Config, error) {
	cfg := Defaults()
	if err := jlconfig.FromEnv().To(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Env != EnvDev && (cfg.JWTSecret == "" || cfg.JWTSecret == DevJWTSecret) {
		return Config{}, ErrDefaultJWTSecret
	}
	return cfg, nil
}

func (c Config) RoomTTL() time.Duration {
	return time.Duration(c.RoomTTLHours) * time.Hour
}

func (c Config) IndexProbeTTL() time.Duration {
	return time.Duration(c.IndexProbeTTLSeconds) * time.Second
}
