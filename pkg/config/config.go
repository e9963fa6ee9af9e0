// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Licensing LicensingConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// LicensingConfig carries the jurisdiction-specific knobs the application
// engine needs. Country code scopes application numbers and fee schedules.
type LicensingConfig struct {
	CountryCode         string
	MedicalAgeThreshold int
	MedicalValidityDays int
	SequenceBackend     string // "postgres" or "redis"
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "change-this-secret"),
			Expiration: getDurationEnv("JWT_EXPIRATION", 15*time.Minute),
		},
		Licensing: LicensingConfig{
			CountryCode:         getEnv("LICENSING_COUNTRY_CODE", "MW"),
			MedicalAgeThreshold: getIntEnv("LICENSING_MEDICAL_AGE_THRESHOLD", 60),
			MedicalValidityDays: getIntEnv("LICENSING_MEDICAL_VALIDITY_DAYS", 180),
			SequenceBackend:     getEnv("LICENSING_SEQUENCE_BACKEND", "postgres"),
		},
	}
}

// ValidateCore checks the settings without which the service cannot run.
func (c *Config) ValidateCore() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(c.Licensing.CountryCode) != 2 {
		return fmt.Errorf("LICENSING_COUNTRY_CODE must be a 2-letter ISO code, got %q", c.Licensing.CountryCode)
	}
	if c.Licensing.SequenceBackend != "postgres" && c.Licensing.SequenceBackend != "redis" {
		return fmt.Errorf("LICENSING_SEQUENCE_BACKEND must be postgres or redis, got %q", c.Licensing.SequenceBackend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
