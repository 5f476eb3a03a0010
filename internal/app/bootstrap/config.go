// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// devSigningKey is the default token key for local development. It is
// refused outside dev mode.
const devSigningKey = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for VolunteerHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, auth_signing_key, etc.
//   - Environment variables: VOLUNTEERHUB_MONGO_URI, VOLUNTEERHUB_AUTH_SIGNING_KEY, etc.
//   - Command-line flags: --mongo_uri, --auth_signing_key, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "volunteerhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "auth_signing_key", Default: devSigningKey, Desc: "Bearer token signing key (must be strong in production)"},
	{Name: "auth_issuer", Default: "volunteerhub", Desc: "Issuer claim for service tokens"},
	{Name: "auth_token_ttl", Default: "24h", Desc: "Service token lifetime (e.g., 24h, 90m)"},

	{Name: "timeout_short", Default: "", Desc: "Timeout for simple reads (blank keeps the default)"},
	{Name: "timeout_medium", Default: "", Desc: "Timeout for list queries and writes (blank keeps the default)"},
	{Name: "timeout_long", Default: "", Desc: "Timeout for transactions and rebuilds (blank keeps the default)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, VOLUNTEERHUB_* for app),
// and command-line flags, merged with precedence flags > env > files >
// defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "VOLUNTEERHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		AuthSigningKey: appValues.String("auth_signing_key"),
		AuthIssuer:     appValues.String("auth_issuer"),
		AuthTokenTTL:   appValues.Duration("auth_token_ttl", 24*time.Hour),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation before any
// backend is touched.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if len(appCfg.AuthSigningKey) < 32 {
		return fmt.Errorf("auth_signing_key too short: %d bytes, need 32", len(appCfg.AuthSigningKey))
	}
	if coreCfg.Env != "dev" && appCfg.AuthSigningKey == devSigningKey {
		return fmt.Errorf("auth_signing_key must be changed from the dev default outside dev mode")
	}

	return nil
}
