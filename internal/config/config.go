// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Authentication modes for the deployment.
const (
	// AuthModeLocal authenticates against the local user store only.
	AuthModeLocal = "local"
	// AuthModeDirectory prefers the enterprise directory, with local auth on explicit request.
	AuthModeDirectory = "directory"
	// AuthModeOTP authenticates locally and then requires an SMS one-time code.
	AuthModeOTP = "otp"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for the user and audit stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AuthMode is the deployment authentication mode: local, directory, or otp.
	AuthMode string `mapstructure:"AUTH_MODE"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// SessionSecret is the HMAC secret for signed session tokens. Required when APP_ENV=production.
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	// SessionTTL is the authenticated session lifetime (e.g. "8h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// OTPTTL is the one-time code validity window (e.g. "5m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// OTPMaxAttempts is the number of code submissions allowed per challenge; default 5.
	OTPMaxAttempts int `mapstructure:"OTP_MAX_ATTEMPTS"`
	// OTPReturnToClient when true enables dev OTP mode: no SMS, the issued code is retrievable
	// via GET /dev/otp. Must not be true when Env is production (startup error).
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// SMSLocalAPIKey is the API key for SMS Local OTP delivery. Required in otp mode without dev OTP.
	SMSLocalAPIKey string `mapstructure:"SMS_LOCAL_API_KEY"`
	// SMSLocalSender is the optional sender ID for SMS Local.
	SMSLocalSender string `mapstructure:"SMS_LOCAL_SENDER"`
	// SMSLocalBaseURL is the SMS Local API base URL.
	SMSLocalBaseURL string `mapstructure:"SMS_LOCAL_BASE_URL"`
	// DirectoryURL is the enterprise directory gateway base URL. Required in directory mode.
	DirectoryURL string `mapstructure:"DIRECTORY_URL"`
	// DirectoryTimeout bounds a single directory authentication call (e.g. "10s").
	DirectoryTimeout string `mapstructure:"DIRECTORY_TIMEOUT"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint for telemetry (empty disables export).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTH_MODE", AuthModeLocal)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_TTL", "8h")
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("SMS_LOCAL_API_KEY", "")
	v.SetDefault("SMS_LOCAL_SENDER", "")
	v.SetDefault("SMS_LOCAL_BASE_URL", "https://www.smslocal.com/dev/bulkV2")
	v.SetDefault("DIRECTORY_URL", "")
	v.SetDefault("DIRECTORY_TIMEOUT", "10s")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	switch cfg.AuthMode {
	case AuthModeLocal, AuthModeDirectory, AuthModeOTP:
	default:
		return nil, fmt.Errorf("config: AUTH_MODE must be %s, %s, or %s", AuthModeLocal, AuthModeDirectory, AuthModeOTP)
	}

	if cfg.AuthMode == AuthModeDirectory && cfg.DirectoryURL == "" {
		return nil, errors.New("config: DIRECTORY_URL must be set when AUTH_MODE=directory")
	}
	if cfg.AuthMode == AuthModeOTP && !cfg.OTPReturnToClient && cfg.SMSLocalAPIKey == "" {
		return nil, errors.New("config: SMS_LOCAL_API_KEY must be set when AUTH_MODE=otp")
	}
	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}
	if cfg.SessionSecret == "" {
		if cfg.Env == "production" {
			return nil, errors.New("config: SESSION_SECRET must be set when APP_ENV=production")
		}
		cfg.SessionSecret = "dev-only-session-secret"
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.OTPMaxAttempts <= 0 {
		return nil, errors.New("config: OTP_MAX_ATTEMPTS must be positive")
	}

	return &cfg, nil
}

// SessionLifetime parses SessionTTL as a time.Duration. Returns 8h if unset or invalid.
func (c *Config) SessionLifetime() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 8 * time.Hour
	}
	return d
}

// OTPLifetime parses OTPTTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) OTPLifetime() time.Duration {
	d, err := time.ParseDuration(c.OTPTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// DirectoryCallTimeout parses DirectoryTimeout as a time.Duration. Returns 10s if unset or invalid.
func (c *Config) DirectoryCallTimeout() time.Duration {
	d, err := time.ParseDuration(c.DirectoryTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
