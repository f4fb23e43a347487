package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.AuthMode != AuthModeLocal {
		t.Errorf("AuthMode = %q, want %q", cfg.AuthMode, AuthModeLocal)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.SessionTTL != "8h" {
		t.Errorf("SessionTTL = %q, want %q", cfg.SessionTTL, "8h")
	}
	if cfg.OTPTTL != "5m" {
		t.Errorf("OTPTTL = %q, want %q", cfg.OTPTTL, "5m")
	}
	if cfg.OTPMaxAttempts != 5 {
		t.Errorf("OTPMaxAttempts = %d, want 5", cfg.OTPMaxAttempts)
	}
	if cfg.OTPReturnToClient {
		t.Error("OTPReturnToClient should default to false")
	}
	if cfg.SessionSecret == "" {
		t.Error("SessionSecret should get a dev default outside production")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("AUTH_MODE", "otp")
	os.Setenv("OTP_MAX_ATTEMPTS", "3")
	os.Setenv("SMS_LOCAL_API_KEY", "key-123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.AuthMode != AuthModeOTP {
		t.Errorf("AuthMode = %q, want %q", cfg.AuthMode, AuthModeOTP)
	}
	if cfg.OTPMaxAttempts != 3 {
		t.Errorf("OTPMaxAttempts = %d, want 3", cfg.OTPMaxAttempts)
	}
}

func TestLoad_InvalidAuthMode(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_MODE", "ldap")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail for unknown AUTH_MODE")
	}
}

func TestLoad_DirectoryModeRequiresURL(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_MODE", "directory")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail when AUTH_MODE=directory and DIRECTORY_URL is empty")
	}

	os.Setenv("DIRECTORY_URL", "http://directory.internal:9000")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with DIRECTORY_URL: %v", err)
	}
}

func TestLoad_OTPModeRequiresSMSKey(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_MODE", "otp")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail when AUTH_MODE=otp without SMS key or dev OTP")
	}

	os.Setenv("OTP_RETURN_TO_CLIENT", "true")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with dev OTP enabled: %v", err)
	}
}

func TestLoad_DevOTPRejectedInProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "production")
	os.Setenv("SESSION_SECRET", "prod-secret")
	os.Setenv("OTP_RETURN_TO_CLIENT", "true")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject OTP_RETURN_TO_CLIENT in production")
	}
}

func TestLoad_SessionSecretRequiredInProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("APP_ENV", "production")

	if _, err := Load(); err == nil {
		t.Fatal("Load should fail without SESSION_SECRET in production")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{SessionTTL: "2h", OTPTTL: "90s", DirectoryTimeout: "3s"}
	if got := cfg.SessionLifetime(); got != 2*time.Hour {
		t.Errorf("SessionLifetime = %v, want 2h", got)
	}
	if got := cfg.OTPLifetime(); got != 90*time.Second {
		t.Errorf("OTPLifetime = %v, want 90s", got)
	}
	if got := cfg.DirectoryCallTimeout(); got != 3*time.Second {
		t.Errorf("DirectoryCallTimeout = %v, want 3s", got)
	}

	bad := &Config{SessionTTL: "nope", OTPTTL: "", DirectoryTimeout: "-1s"}
	if got := bad.SessionLifetime(); got != 8*time.Hour {
		t.Errorf("SessionLifetime fallback = %v, want 8h", got)
	}
	if got := bad.OTPLifetime(); got != 5*time.Minute {
		t.Errorf("OTPLifetime fallback = %v, want 5m", got)
	}
	if got := bad.DirectoryCallTimeout(); got != 10*time.Second {
		t.Errorf("DirectoryCallTimeout fallback = %v, want 10s", got)
	}
}
