package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Env       string
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	OTEL      OTELConfig
	Auth      AuthConfig
	Matching  MatchingConfig
	Sweep     SweepConfig
	OTP       OTPConfig
	WhatsApp  WhatsAppConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL     string
	APIKey  string
	Enabled bool
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	SigningKey      string
	Issuer          string
	PatientTokenTTL time.Duration
}

// MatchingConfig holds the doctor matcher weights and assignment policy
type MatchingConfig struct {
	AreaBonus                 float64
	SpecializationBonus       float64
	LoadPenaltyPerAppointment float64
	AllowForcedAssignment     bool
	AutoAssignOnBooking       bool
}

// SweepConfig controls the pending appointment sweep
type SweepConfig struct {
	Interval  time.Duration
	BatchSize int
}

// OTPConfig controls one-time password verification
type OTPConfig struct {
	Length      int
	TTL         time.Duration
	MaxAttempts int
	VerifiedTTL time.Duration
	Required    bool
}

// WhatsAppConfig holds WhatsApp Cloud API credentials
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
}

// Load loads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		Env: v.GetString("APP_ENV"),
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetInt("SERVER_PORT"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Database: v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Typesense: TypesenseConfig{
			URL:     v.GetString("TYPESENSE_URL"),
			APIKey:  v.GetString("TYPESENSE_API_KEY"),
			Enabled: v.GetBool("TYPESENSE_ENABLED"),
		},
		OTEL: OTELConfig{
			ServiceName:    v.GetString("OTEL_SERVICE_NAME"),
			ServiceVersion: v.GetString("OTEL_SERVICE_VERSION"),
			Endpoint:       v.GetString("OTEL_ENDPOINT"),
			Enabled:        v.GetBool("OTEL_ENABLED"),
		},
		Auth: AuthConfig{
			SigningKey:      v.GetString("AUTH_SIGNING_KEY"),
			Issuer:          v.GetString("AUTH_ISSUER"),
			PatientTokenTTL: v.GetDuration("AUTH_PATIENT_TOKEN_TTL"),
		},
		Matching: MatchingConfig{
			AreaBonus:                 v.GetFloat64("MATCHING_AREA_BONUS"),
			SpecializationBonus:       v.GetFloat64("MATCHING_SPECIALIZATION_BONUS"),
			LoadPenaltyPerAppointment: v.GetFloat64("MATCHING_LOAD_PENALTY"),
			AllowForcedAssignment:     v.GetBool("MATCHING_ALLOW_FORCED_ASSIGNMENT"),
			AutoAssignOnBooking:       v.GetBool("MATCHING_AUTO_ASSIGN_ON_BOOKING"),
		},
		Sweep: SweepConfig{
			Interval:  v.GetDuration("SWEEP_INTERVAL"),
			BatchSize: v.GetInt("SWEEP_BATCH_SIZE"),
		},
		OTP: OTPConfig{
			Length:      v.GetInt("OTP_LENGTH"),
			TTL:         v.GetDuration("OTP_TTL"),
			MaxAttempts: v.GetInt("OTP_MAX_ATTEMPTS"),
			VerifiedTTL: v.GetDuration("OTP_VERIFIED_TTL"),
			Required:    v.GetBool("OTP_REQUIRED"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   v.GetString("WHATSAPP_ACCESS_TOKEN"),
			PhoneNumberID: v.GetString("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       v.GetString("WHATSAPP_BASE_URL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "sociodent")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TYPESENSE_URL", "http://localhost:8108")
	v.SetDefault("TYPESENSE_API_KEY", "xyz")
	v.SetDefault("TYPESENSE_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "sociodent-matcher")
	v.SetDefault("OTEL_SERVICE_VERSION", "1.0.0")
	v.SetDefault("OTEL_ENDPOINT", "")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("AUTH_SIGNING_KEY", "")
	v.SetDefault("AUTH_ISSUER", "sociodent")
	v.SetDefault("AUTH_PATIENT_TOKEN_TTL", "720h")
	v.SetDefault("MATCHING_AREA_BONUS", 10.0)
	v.SetDefault("MATCHING_SPECIALIZATION_BONUS", 5.0)
	v.SetDefault("MATCHING_LOAD_PENALTY", 1.0)
	v.SetDefault("MATCHING_ALLOW_FORCED_ASSIGNMENT", false)
	v.SetDefault("MATCHING_AUTO_ASSIGN_ON_BOOKING", true)
	v.SetDefault("SWEEP_INTERVAL", "5m")
	v.SetDefault("SWEEP_BATCH_SIZE", 100)
	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_VERIFIED_TTL", "30m")
	v.SetDefault("OTP_REQUIRED", false)
	v.SetDefault("WHATSAPP_ACCESS_TOKEN", "")
	v.SetDefault("WHATSAPP_PHONE_NUMBER_ID", "")
	v.SetDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com/v18.0")
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	if c.Sweep.BatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be positive")
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.OTP.Length < 4 || c.OTP.Length > 10 {
		return fmt.Errorf("OTP_LENGTH must be between 4 and 10")
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if c.Matching.LoadPenaltyPerAppointment < 0 {
		return fmt.Errorf("MATCHING_LOAD_PENALTY must not be negative")
	}
	if !c.IsDevelopment() && c.Auth.SigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required outside development")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
