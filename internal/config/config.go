package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds the full service configuration, loaded from the environment.
type Config struct {
	Service  ServiceConfig
	Server   ServerConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	Import   ImportConfig
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `validate:"required"`
	Version     string `validate:"required"`
	Environment string `validate:"required,oneof=development staging production"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int           `validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `validate:"min=1s"`
	WriteTimeout    time.Duration `validate:"min=1s"`
	IdleTimeout     time.Duration `validate:"min=1s"`
	ShutdownTimeout time.Duration `validate:"min=1s"`
}

// DatabaseConfig controls the postgres connection pool.
type DatabaseConfig struct {
	Host        string `validate:"required"`
	Port        int    `validate:"min=1,max=65535"`
	User        string `validate:"required"`
	Password    string
	Database    string `validate:"required"`
	SSLMode     string `validate:"oneof=disable require verify-ca verify-full"`
	MaxConns    int32  `validate:"min=1"`
	MinConns    int32  `validate:"min=0"`
	MaxConnTime time.Duration
	MaxIdleTime time.Duration
}

// SMTPConfig controls outgoing anomaly notification mail.
type SMTPConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"min=1,max=65535"`
	From     string `validate:"required,email"`
	Username string
	Password string
}

// ImportConfig controls report import behaviour.
type ImportConfig struct {
	// PlaceholderEmailDomain is the domain used when synthesizing addresses
	// for employees imported without one.
	PlaceholderEmailDomain string `validate:"required,fqdn"`
	// AutoSendDefault enables synchronous notification after import when the
	// caller does not say otherwise. Normally false: dispatch is deferred.
	AutoSendDefault bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Service: ServiceConfig{
			Name:        getEnv("SERVICE_NAME", "be-hr-attendance"),
			Version:     getEnv("SERVICE_VERSION", "0.1.0"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Server: ServerConfig{
			Port:            getEnvInt("PORT", 8090),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "postgres"),
			Password:    os.Getenv("DB_PASSWORD"),
			Database:    getEnv("DB_NAME", "hr_attendance"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			MaxConns:    int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns:    int32(getEnvInt("DB_MIN_CONNS", 2)),
			MaxConnTime: getEnvDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxIdleTime: getEnvDuration("DB_MAX_CONN_IDLE", 30*time.Minute),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvInt("SMTP_PORT", 25),
			From:     getEnv("SMTP_FROM", "rh-pointage@orange.com"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		Import: ImportConfig{
			PlaceholderEmailDomain: getEnv("IMPORT_PLACEHOLDER_EMAIL_DOMAIN", "orange.com"),
			AutoSendDefault:        getEnvBool("IMPORT_AUTO_SEND", false),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
