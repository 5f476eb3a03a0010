// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	adminfeature "github.com/commonweal/volunteerhub/internal/app/features/admin"
	authapifeature "github.com/commonweal/volunteerhub/internal/app/features/authapi"
	eventsfeature "github.com/commonweal/volunteerhub/internal/app/features/events"
	healthfeature "github.com/commonweal/volunteerhub/internal/app/features/health"
	registrationsfeature "github.com/commonweal/volunteerhub/internal/app/features/registrations"
	usersfeature "github.com/commonweal/volunteerhub/internal/app/features/users"
	userstore "github.com/commonweal/volunteerhub/internal/app/store/users"
	"github.com/commonweal/volunteerhub/internal/app/system/auth"
	"github.com/commonweal/volunteerhub/internal/app/system/ratelimit"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed. The bearer-token middleware runs
// on every /api route: it verifies a token when one is presented and
// leaves the request anonymous otherwise, so public reads and gated
// writes share one router.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	authn, err := auth.NewJWT(appCfg.AuthSigningKey, appCfg.AuthIssuer, appCfg.AuthTokenTTL)
	if err != nil {
		logger.Error("token authenticator init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	db := deps.MongoDatabase
	limiter := ratelimit.New(300, time.Minute)
	r.Route("/api", func(r chi.Router) {
		r.Use(ratelimit.Middleware(limiter))
		r.Use(auth.Middleware(authn, logger))

		authHandler := authapifeature.NewHandler(userstore.New(db), authn, logger)
		r.Mount("/auth", authapifeature.Routes(authHandler))

		eventsHandler := eventsfeature.NewHandler(db, logger)
		r.Mount("/events", eventsfeature.Routes(eventsHandler))

		registrationsHandler := registrationsfeature.NewHandler(db, logger)
		r.Mount("/registrations", registrationsfeature.Routes(registrationsHandler))

		usersHandler := usersfeature.NewHandler(db, logger)
		r.Mount("/users", usersfeature.Routes(usersHandler))

		adminHandler := adminfeature.NewHandler(db, logger)
		r.Mount("/admin", adminfeature.Routes(adminHandler))
	})

	return r, nil
}
