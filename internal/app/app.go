// Package app provides application-level wiring and dependency injection.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"authbridge/internal/cache"
	"authbridge/internal/config"
	"authbridge/internal/db/repository"
	"authbridge/internal/middleware"
	"authbridge/internal/service/security"
)

// Deps holds the external dependencies that main() must provide: database
// handles, config, and the logger.
type Deps struct {
	Cfg     *config.Config
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// Services groups the service pointers the API handler needs.
type Services struct {
	Resolver  *security.IdentityResolver
	Identity  *security.IdentityService
	Grant     *security.GrantService
	Retention *security.RetentionScheduler
}

// App holds the fully-wired application.
type App struct {
	Services Services
	AttrCfg  middleware.AttributeConfig
}

// New wires repositories, the identity cache, services, and the attribute
// middleware configuration from the provided deps.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg

	identityRepo := repository.NewIdentityRepo(deps.WriteDB, deps.ReadDB)
	authzRepo := repository.NewAuthorizationRepo(deps.WriteDB, deps.ReadDB)
	auditRepo := repository.NewAuditRepo(deps.WriteDB, deps.ReadDB)

	// One cache instance is shared by the resolver and the identity service:
	// provisioning and lookup must collapse on the same durable-key entry.
	identityCache, err := cache.New[string](cfg.CacheCapacity, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("identity cache: %w", err)
	}

	resolver := security.NewIdentityResolver(identityRepo, identityCache, cfg.PrivilegedAffiliation,
		deps.Logger.With("component", "resolver"))
	identitySvc := security.NewIdentityService(identityRepo, identityCache, auditRepo,
		deps.Logger.With("component", "identity"))
	grantSvc := security.NewGrantService(authzRepo, auditRepo,
		deps.Logger.With("component", "grants"))
	retention := security.NewRetentionScheduler(auditRepo, identityCache, cfg.AuditRetention,
		deps.Logger.With("component", "retention"))

	attrCfg := middleware.AttributeConfig{
		TrustHeaders: cfg.Auth.TrustHeaders,
		Logger:       deps.Logger.With("component", "auth"),
	}
	validator, err := buildValidator(ctx, cfg, deps.Logger)
	if err != nil {
		return nil, err
	}
	attrCfg.Validator = validator

	return &App{
		Services: Services{
			Resolver:  resolver,
			Identity:  identitySvc,
			Grant:     grantSvc,
			Retention: retention,
		},
		AttrCfg: attrCfg,
	}, nil
}

// buildValidator picks the JWT validator for the configured identity
// provider: OIDC discovery, a raw JWKS URL, or a shared HS256 secret.
// Returns nil when only trusted headers are configured.
func buildValidator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (middleware.JWTValidator, error) {
	auth := cfg.Auth
	switch {
	case auth.IssuerURL != "":
		v, err := middleware.NewOIDCValidator(ctx, auth.IssuerURL, auth.Audience, auth.AllowedIssuers)
		if err != nil {
			return nil, fmt.Errorf("oidc validator: %w", err)
		}
		logger.Info("using OIDC token validation", "issuer", auth.IssuerURL)
		return v, nil
	case auth.JWKSURL != "":
		v, err := middleware.NewOIDCValidatorFromJWKS(ctx, auth.JWKSURL, auth.IssuerURL, auth.Audience, auth.AllowedIssuers)
		if err != nil {
			return nil, fmt.Errorf("jwks validator: %w", err)
		}
		logger.Info("using JWKS token validation", "jwks_url", auth.JWKSURL)
		return v, nil
	case auth.JWTSecret != "":
		v, err := middleware.NewHS256Validator(auth.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("hs256 validator: %w", err)
		}
		logger.Info("using HS256 token validation")
		return v, nil
	default:
		return nil, nil
	}
}
