// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const devJWTSecret = "dev-secret-change-in-production"

const insecureEncryptionKey = "0000000000000000000000000000000000000000000000000000000000000000"

// AuthConfig holds authentication and identity provider configuration.
type AuthConfig struct {
	IssuerURL      string   // OIDC issuer URL
	JWKSURL        string   // Override JWKS URL (if no .well-known discovery)
	JWTSecret      string   // HS256 shared secret for local/dev JWT auth
	Audience       string   // Required JWT audience claim
	AllowedIssuers []string // Accepted issuers (defaults to [IssuerURL])
}

// OIDCEnabled returns true when an external identity provider is configured.
func (a *AuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != "" || a.JWKSURL != ""
}

// Validate checks that the auth configuration is internally consistent.
func (a *AuthConfig) Validate() error {
	if a.IssuerURL == "" && a.JWKSURL == "" && a.JWTSecret == "" {
		return fmt.Errorf("one of AUTH_ISSUER_URL, AUTH_JWKS_URL or JWT_SECRET must be set")
	}
	if a.IssuerURL != "" && a.Audience == "" {
		return fmt.Errorf("AUTH_AUDIENCE is required when AUTH_ISSUER_URL is set")
	}
	return nil
}

// TenantConfig holds the connection defaults shared by every tenant database.
type TenantConfig struct {
	Driver      string // mysql or sqlite3 (default mysql)
	Host        string
	Port        int
	User        string
	Password    string
	SQLiteDir   string // directory of <tenant>.sqlite files for the sqlite3 driver
	TenantsFile string // optional YAML file with per-tenant overrides and allow-list
	MaxOpen     int    // max open connections per tenant pool (default 10)
}

// ExportConfig holds CSV export storage and notification settings.
type ExportConfig struct {
	Storage    string // s3, gcs, azure or local (default local)
	LinkExpiry time.Duration

	S3KeyID    *string
	S3Secret   *string
	S3Endpoint *string
	S3Region   *string
	S3Bucket   *string

	GCSBucket  string
	GCSKeyFile string

	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string

	LocalDir      string
	PublicBaseURL string // base of `/document/...` links

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	NotifyFrom   string
}

// SMTPEnabled returns true when notifications go out by mail.
func (e *ExportConfig) SMTPEnabled() bool {
	return e.SMTPHost != ""
}

// HasS3Config returns true if all required S3 fields are set.
func (e *ExportConfig) HasS3Config() bool {
	return e.S3KeyID != nil && e.S3Secret != nil &&
		e.S3Endpoint != nil && e.S3Region != nil && e.S3Bucket != nil
}

// Config holds the configuration of the query service.
type Config struct {
	CatalogPath           string        // schema catalog file (YAML or JSON)
	CatalogReloadSchedule string        // cron spec for catalog reloads, empty disables
	SourceTZOffset        time.Duration // shift applied to normalized datetime filters (default 2h)
	RegistryBackend       string        // memory or sqlite (default memory)
	MetaDBPath            string        // path to SQLite metastore
	ListenAddr            string        // HTTP listen address (default ":8080")
	TLSCertFile           string        // TLS certificate file path (optional)
	TLSKeyFile            string        // TLS private key file path (optional)
	AllowInsecureHTTP     bool          // allow non-TLS listener in production (for trusted TLS termination)
	EncryptionKey         string        // 64-char hex string (32-byte AES key) for sealed tenant passwords
	LogLevel              string        // log level: debug, info, warn, error (default "info")
	Env                   string        // environment: "development" (default) or "production"

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	Auth   AuthConfig
	Tenant TenantConfig
	Export ExportConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		CatalogPath:           os.Getenv("CATALOG_PATH"),
		CatalogReloadSchedule: os.Getenv("CATALOG_RELOAD_SCHEDULE"),
		RegistryBackend:       strings.ToLower(os.Getenv("REGISTRY_BACKEND")),
		MetaDBPath:            os.Getenv("META_DB_PATH"),
		ListenAddr:            os.Getenv("LISTEN_ADDR"),
		TLSCertFile:           os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:            os.Getenv("TLS_KEY_FILE"),
		EncryptionKey:         os.Getenv("ENCRYPTION_KEY"),
		LogLevel:              os.Getenv("LOG_LEVEL"),
		Env:                   os.Getenv("ENV"),
		AllowInsecureHTTP:     parseBoolEnvDefault("ALLOW_INSECURE_HTTP", false),
	}

	var err error
	if cfg.SourceTZOffset, err = parseDurationEnv("SOURCE_TZ_OFFSET", 2*time.Hour); err != nil {
		return nil, err
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	// Auth config
	cfg.Auth = AuthConfig{
		IssuerURL: os.Getenv("AUTH_ISSUER_URL"),
		JWKSURL:   os.Getenv("AUTH_JWKS_URL"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		Audience:  os.Getenv("AUTH_AUDIENCE"),
	}
	if v := os.Getenv("AUTH_ALLOWED_ISSUERS"); v != "" {
		cfg.Auth.AllowedIssuers = splitList(v)
	}

	// Tenant databases
	cfg.Tenant = TenantConfig{
		Driver:      strings.ToLower(os.Getenv("TENANT_DRIVER")),
		Host:        os.Getenv("TENANT_HOST"),
		User:        os.Getenv("TENANT_USER"),
		Password:    os.Getenv("TENANT_PASSWORD"),
		SQLiteDir:   os.Getenv("TENANT_SQLITE_DIR"),
		TenantsFile: os.Getenv("TENANTS_FILE"),
	}
	if cfg.Tenant.Port, err = parseIntEnv("TENANT_PORT", 3306); err != nil {
		return nil, err
	}
	if cfg.Tenant.MaxOpen, err = parseIntEnv("TENANT_MAX_OPEN_CONNS", 10); err != nil {
		return nil, err
	}

	// Export storage and notifications. S3 fields are optional and only set if present.
	cfg.Export = ExportConfig{
		Storage:          strings.ToLower(os.Getenv("EXPORT_STORAGE")),
		GCSBucket:        os.Getenv("GCS_BUCKET"),
		GCSKeyFile:       os.Getenv("GCS_KEY_FILE"),
		AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
		AzureContainer:   os.Getenv("AZURE_CONTAINER"),
		LocalDir:         os.Getenv("EXPORT_LOCAL_DIR"),
		PublicBaseURL:    os.Getenv("PUBLIC_BASE_URL"),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPUser:         os.Getenv("SMTP_USER"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		NotifyFrom:       os.Getenv("NOTIFY_FROM"),
	}
	if v := os.Getenv("KEY_ID"); v != "" {
		cfg.Export.S3KeyID = &v
	}
	if v := os.Getenv("SECRET"); v != "" {
		cfg.Export.S3Secret = &v
	}
	if v := os.Getenv("ENDPOINT"); v != "" {
		cfg.Export.S3Endpoint = &v
	}
	if v := os.Getenv("REGION"); v != "" {
		cfg.Export.S3Region = &v
	}
	if v := os.Getenv("BUCKET"); v != "" {
		cfg.Export.S3Bucket = &v
	}
	if cfg.Export.LinkExpiry, err = parseDurationEnv("EXPORT_LINK_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.Export.SMTPPort, err = parseIntEnv("SMTP_PORT", 587); err != nil {
		return nil, err
	}

	// Defaults
	if cfg.CatalogPath == "" {
		cfg.CatalogPath = "catalog.yaml"
	}
	if cfg.RegistryBackend == "" {
		cfg.RegistryBackend = "memory"
	}
	if cfg.RegistryBackend != "memory" && cfg.RegistryBackend != "sqlite" {
		return nil, fmt.Errorf("REGISTRY_BACKEND must be \"memory\" or \"sqlite\", got %q", cfg.RegistryBackend)
	}
	if cfg.MetaDBPath == "" {
		cfg.MetaDBPath = "dynquery_meta.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Tenant.Driver == "" {
		cfg.Tenant.Driver = "mysql"
	}
	if cfg.Tenant.Driver == "sqlite3" && cfg.Tenant.SQLiteDir == "" {
		cfg.Tenant.SQLiteDir = "tenants"
	}
	if cfg.Export.Storage == "" {
		cfg.Export.Storage = "local"
	}
	if cfg.Export.Storage == "local" && cfg.Export.LocalDir == "" {
		cfg.Export.LocalDir = "media"
	}
	if cfg.Export.Storage == "s3" && !cfg.Export.HasS3Config() {
		return nil, fmt.Errorf("EXPORT_STORAGE=s3 requires KEY_ID, SECRET, ENDPOINT, REGION and BUCKET")
	}
	if cfg.Export.NotifyFrom == "" {
		cfg.Export.NotifyFrom = "no-reply@localhost"
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return nil, fmt.Errorf("both TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if !cfg.Auth.OIDCEnabled() && cfg.Auth.JWTSecret == "" && !cfg.IsProduction() {
		cfg.Auth.JWTSecret = devJWTSecret
		cfg.Warnings = append(cfg.Warnings, "no authentication configured — accepting HS256 tokens signed with the dev secret")
	}
	if !cfg.Export.SMTPEnabled() {
		cfg.Warnings = append(cfg.Warnings, "SMTP_HOST not set — export notifications are only logged")
	}
	if cfg.EncryptionKey == "" {
		cfg.EncryptionKey = insecureEncryptionKey
		cfg.Warnings = append(cfg.Warnings, "ENCRYPTION_KEY not set — using insecure default. Set ENCRYPTION_KEY in production!")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if err := cfg.Auth.Validate(); err != nil {
			return nil, fmt.Errorf("production auth: %w", err)
		}
		if cfg.EncryptionKey == insecureEncryptionKey {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be set in production (ENV=production)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if cfg.TLSCertFile == "" && !cfg.AllowInsecureHTTP {
			return nil, fmt.Errorf("TLS_CERT_FILE/TLS_KEY_FILE must be set in production unless ALLOW_INSECURE_HTTP=true")
		}
	}

	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func parseIntEnv(key string, defaultVal int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func parseDurationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Environment variables take precedence.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
