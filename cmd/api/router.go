package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/loci-pubmap/pkg/interceptors"
	"github.com/FACorreiaa/loci-pubmap/pkg/observability"
)

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// JSON endpoints are documented through huma, utility routes stay on the mux
	humaConfig := huma.DefaultConfig("Pub map API", "1.0.0")
	humaConfig.Info.Description = "Viewport driven pub map with level of detail statistics and markers."
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	api := humago.New(mux, humaConfig)

	deps.MapHandler.RegisterRoutes(api)
	deps.Logger.Info("registered map routes", "prefix", "/api/v1", "docs", "/docs")

	registerUtilityRoutes(mux, deps)

	var rateLimiter func(http.Handler) http.Handler
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		rateLimiter = interceptors.NewRateLimitMiddleware(limiter)
	}

	// the metrics middleware reads the matched pattern, so it must sit right on the mux
	handler := interceptors.Chain(mux,
		interceptors.NewRecoveryMiddleware(deps.Logger),
		interceptors.NewRequestIDMiddleware("X-Request-ID"),
		rateLimiter,
		interceptors.NewLoggingMiddleware(deps.Logger),
		observability.NewMetricsMiddleware(),
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})

	return corsHandler.Handler(handler)
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unhealthy"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	deps.Logger.Info("registered health check", "path", "/health")

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", observability.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}
