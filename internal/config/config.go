package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Authentication mode constants
const (
	AuthModeTrustedHeader = "trusted_header"
	AuthModePassword      = "password"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	// Server settings
	ServerAddr string
	BaseURL    string

	// Environment: "development" or "production"
	Environment string

	// API version reported in the X-Api-Version response header
	APIVersion string

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string // Database connection string (DSN or path)

	// Authentication
	AuthMode string // "trusted_header" or "password"

	// Trusted-header authentication
	TrustedHeader      string // header carrying the upstream-verified login
	TrustedEmailHeader string // companion header carrying the caller's email
	TrustedSimulate    bool   // test-only: substitute a fixed login when the header is absent
	TrustedTestUser    string // login substituted in simulate mode

	// LDAP (password mode only)
	LDAPEnabled      bool
	LDAPURL          string // e.g. "ldaps://ldap.example.com:636"
	LDAPBaseDN       string
	LDAPBindDN       string // search account; empty means anonymous search
	LDAPBindPassword string
	LDAPUserFilter   string // e.g. "(uid=%s)"
	LDAPTimeout      time.Duration
	LDAPSkipVerify   bool

	// Backend (source server) defaults; users may override per account
	SourceHost string
	SourcePort int

	// Backend HTTP client
	BackendTimeout time.Duration

	// Error notification sink (webhook)
	NotifyURL        string
	NotifyAuthMode   string // "none", "simple", or "hmac"
	NotifyAuthSecret string
	NotifyAuthHeader string
	NotifyTimeout    time.Duration
	NotifyMaxRetries int
	NotifyRetryDelay time.Duration

	// Audit logging
	EnableAuditLogging bool
	AuditLogBufferSize int

	// Metrics
	MetricsEnabled bool
	MetricsToken   string
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Determine database driver and DSN
	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "buildgate.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr:  getEnv("SERVER_ADDR", ":8080"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		Environment: getEnv("ENVIRONMENT", EnvDevelopment),
		APIVersion:  getEnv("API_VERSION", "1.0"),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		// Authentication
		AuthMode: getEnv("AUTH_MODE", AuthModePassword),

		// Trusted-header authentication
		TrustedHeader:      getEnv("TRUSTED_HEADER", "X-Username"),
		TrustedEmailHeader: getEnv("TRUSTED_EMAIL_HEADER", "X-Email"),
		TrustedSimulate:    getEnvBool("TRUSTED_SIMULATE", false),
		TrustedTestUser:    getEnv("TRUSTED_TEST_USER", ""),

		// LDAP
		LDAPEnabled:      getEnvBool("LDAP_ENABLED", false),
		LDAPURL:          getEnv("LDAP_URL", ""),
		LDAPBaseDN:       getEnv("LDAP_BASE_DN", ""),
		LDAPBindDN:       getEnv("LDAP_BIND_DN", ""),
		LDAPBindPassword: getEnv("LDAP_BIND_PASSWORD", ""),
		LDAPUserFilter:   getEnv("LDAP_USER_FILTER", "(uid=%s)"),
		LDAPTimeout:      getEnvDuration("LDAP_TIMEOUT", 10*time.Second),
		LDAPSkipVerify:   getEnvBool("LDAP_INSECURE_SKIP_VERIFY", false),

		// Backend defaults
		SourceHost:     getEnv("SOURCE_HOST", "localhost"),
		SourcePort:     getEnvInt("SOURCE_PORT", 5352),
		BackendTimeout: getEnvDuration("BACKEND_TIMEOUT", 60*time.Second),

		// Notification sink
		NotifyURL:        getEnv("NOTIFY_URL", ""),
		NotifyAuthMode:   getEnv("NOTIFY_AUTH_MODE", "none"),
		NotifyAuthSecret: getEnv("NOTIFY_AUTH_SECRET", ""),
		NotifyAuthHeader: getEnv("NOTIFY_AUTH_HEADER", "X-API-Secret"),
		NotifyTimeout:    getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		NotifyMaxRetries: getEnvInt("NOTIFY_MAX_RETRIES", 3),
		NotifyRetryDelay: getEnvDuration("NOTIFY_RETRY_DELAY", 1*time.Second),

		// Audit logging
		EnableAuditLogging: getEnvBool("ENABLE_AUDIT_LOGGING", true),
		AuditLogBufferSize: getEnvInt("AUDIT_LOG_BUFFER_SIZE", 1000),

		// Metrics
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeTrustedHeader, AuthModePassword:
	default:
		return fmt.Errorf("invalid AUTH_MODE %q: must be %q or %q",
			c.AuthMode, AuthModeTrustedHeader, AuthModePassword)
	}

	if c.AuthMode == AuthModeTrustedHeader && c.TrustedHeader == "" {
		return fmt.Errorf("TRUSTED_HEADER must not be empty in trusted_header mode")
	}

	if c.TrustedSimulate && c.TrustedTestUser == "" {
		return fmt.Errorf("TRUSTED_SIMULATE requires TRUSTED_TEST_USER")
	}

	if c.LDAPEnabled {
		if c.AuthMode != AuthModePassword {
			return fmt.Errorf("LDAP_ENABLED requires AUTH_MODE=password")
		}
		if c.LDAPURL == "" {
			return fmt.Errorf("LDAP_ENABLED requires LDAP_URL")
		}
		if c.LDAPBaseDN == "" {
			return fmt.Errorf("LDAP_ENABLED requires LDAP_BASE_DN")
		}
		if !strings.Contains(c.LDAPUserFilter, "%s") {
			return fmt.Errorf("LDAP_USER_FILTER must contain a %%s placeholder")
		}
	}

	if c.SourceHost == "" {
		return fmt.Errorf("SOURCE_HOST must not be empty")
	}
	if c.SourcePort <= 0 || c.SourcePort > 65535 {
		return fmt.Errorf("SOURCE_PORT %d out of range", c.SourcePort)
	}

	if c.DatabaseDriver == "postgres" && c.DatabaseDSN == "" {
		return fmt.Errorf("DATABASE_DSN is required for the postgres driver")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
