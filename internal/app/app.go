// Package app provides application-level wiring and dependency injection
// for the query service.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"dynquery/internal/api"
	"dynquery/internal/catalog"
	"dynquery/internal/config"
	internaldb "dynquery/internal/db"
	"dynquery/internal/db/crypto"
	"dynquery/internal/db/repository"
	"dynquery/internal/domain"
	"dynquery/internal/export"
	"dynquery/internal/middleware"
	"dynquery/internal/notify"
	"dynquery/internal/service/query"
	"dynquery/internal/storage"
	"dynquery/internal/tenant"
)

// App holds the fully-wired application.
type App struct {
	Catalog  *catalog.Holder
	Reloader *catalog.Reloader
	Tenants  *tenant.Router
	Query    *query.Service
	Handler  http.Handler

	meta   *sql.DB
	logger *slog.Logger
}

// New wires the catalog, tenant router, export pipeline, query service and
// HTTP router from cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	holder, err := catalog.NewHolder(cfg.CatalogPath, logger.With("component", "catalog"))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	a.Catalog = holder
	a.Reloader = catalog.NewReloader(holder, cfg.CatalogReloadSchedule, logger.With("component", "catalog-reloader"))

	// === Metastore (sqlite registry and export jobs) ===
	var registry domain.ConnectionRegistry = tenant.NewMemoryRegistry()
	var jobs domain.ExportJobRepository = export.NewMemoryJobStore()
	if cfg.RegistryBackend == "sqlite" {
		a.meta, err = internaldb.OpenMetastore(cfg.MetaDBPath)
		if err != nil {
			return nil, fmt.Errorf("open metastore: %w", err)
		}
		registry = repository.NewConnectionRepo(a.meta)
		jobs = repository.NewExportJobRepo(a.meta)
	}

	// === Tenants ===
	router, err := NewTenantRouter(cfg, registry, logger)
	if err != nil {
		return nil, err
	}
	a.Tenants = router

	// === Export pipeline ===
	exporter, err := NewExporter(ctx, cfg, jobs, logger)
	if err != nil {
		return nil, err
	}

	a.Query = query.NewService(holder, router, exporter, cfg.SourceTZOffset, logger)

	// === HTTP ===
	validator, err := NewValidator(ctx, cfg.Auth)
	if err != nil {
		return nil, err
	}
	opts := api.RouterOptions{
		Validator: validator,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		CORSOrigins: cfg.CORSAllowedOrigins,
	}
	if cfg.Export.Storage == "local" {
		opts.DocumentsDir = cfg.Export.LocalDir
	}
	a.Handler = api.NewRouter(api.NewHandler(a.Query, logger), opts)

	ok = true
	return a, nil
}

// NewTenantRouter builds the tenant router from the tenant settings.
func NewTenantRouter(cfg *config.Config, registry domain.ConnectionRegistry, logger *slog.Logger) (*tenant.Router, error) {
	dialect, err := tenant.DialectFor(cfg.Tenant.Driver, cfg.Tenant.SQLiteDir, cfg.Tenant.MaxOpen)
	if err != nil {
		return nil, err
	}
	var tenants []tenant.Config
	if cfg.Tenant.TenantsFile != "" {
		enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		if tenants, err = tenant.LoadTenants(cfg.Tenant.TenantsFile, enc); err != nil {
			return nil, err
		}
	}
	defaults := tenant.Config{
		Host:     cfg.Tenant.Host,
		Port:     cfg.Tenant.Port,
		User:     cfg.Tenant.User,
		Password: cfg.Tenant.Password,
	}
	return tenant.NewRouter(dialect, tenant.NewDirectory(defaults, tenants), registry, logger), nil
}

// NewExporter builds the export store, notifier and exporter.
func NewExporter(ctx context.Context, cfg *config.Config, jobs domain.ExportJobRepository, logger *slog.Logger) (*export.Exporter, error) {
	e := cfg.Export
	opts := storage.Options{
		Backend:          e.Storage,
		LinkExpiry:       e.LinkExpiry,
		GCSBucket:        e.GCSBucket,
		GCSKeyFile:       e.GCSKeyFile,
		AzureAccountName: e.AzureAccountName,
		AzureAccountKey:  e.AzureAccountKey,
		AzureContainer:   e.AzureContainer,
		LocalDir:         e.LocalDir,
		LocalBaseURL:     e.PublicBaseURL,
	}
	if e.HasS3Config() {
		opts.S3KeyID = *e.S3KeyID
		opts.S3Secret = *e.S3Secret
		opts.S3Endpoint = *e.S3Endpoint
		opts.S3Region = *e.S3Region
		opts.S3Bucket = *e.S3Bucket
	}
	store, err := storage.New(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("export storage: %w", err)
	}

	var notifier domain.Notifier = notify.NewLogNotifier(logger.With("component", "notify"))
	if e.SMTPEnabled() {
		notifier = notify.NewSMTPNotifier(e.SMTPHost, e.SMTPPort, e.SMTPUser, e.SMTPPassword)
	}

	var linkBase string
	if e.Storage == "local" {
		linkBase = e.PublicBaseURL
	}
	return export.NewExporter(store, notifier, jobs, export.Options{
		From:     e.NotifyFrom,
		LinkBase: linkBase,
	}, logger.With("component", "export")), nil
}

// NewValidator builds the token validator: the OIDC provider when one is
// configured, followed by the HS256 secret when one is set.
func NewValidator(ctx context.Context, auth config.AuthConfig) (middleware.JWTValidator, error) {
	var chain middleware.ChainValidator
	switch {
	case auth.JWKSURL != "":
		v, err := middleware.NewOIDCValidatorFromJWKS(ctx, auth.JWKSURL, auth.IssuerURL, auth.Audience, auth.AllowedIssuers)
		if err != nil {
			return nil, fmt.Errorf("jwks validator: %w", err)
		}
		chain = append(chain, v)
	case auth.IssuerURL != "":
		v, err := middleware.NewOIDCValidator(ctx, auth.IssuerURL, auth.Audience, auth.AllowedIssuers)
		if err != nil {
			return nil, fmt.Errorf("oidc validator: %w", err)
		}
		chain = append(chain, v)
	}
	if auth.JWTSecret != "" {
		v, err := middleware.NewHS256Validator(auth.JWTSecret)
		if err != nil {
			return nil, err
		}
		chain = append(chain, v)
	}
	switch len(chain) {
	case 0:
		return nil, errors.New("no token validator configured")
	case 1:
		return chain[0], nil
	default:
		return chain, nil
	}
}

// Close releases tenant pools and the metastore.
func (a *App) Close() error {
	var errs []error
	if a.Reloader != nil {
		a.Reloader.Stop()
	}
	if a.Tenants != nil {
		errs = append(errs, a.Tenants.Close())
	}
	if a.meta != nil {
		errs = append(errs, a.meta.Close())
	}
	return errors.Join(errs...)
}
