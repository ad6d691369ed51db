package controller

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	checkoutApp "github.com/verionlabs/directory-billing/internal/application/checkout"
	provisioningApp "github.com/verionlabs/directory-billing/internal/application/provisioning"
	webhookApp "github.com/verionlabs/directory-billing/internal/application/webhook"
	"github.com/verionlabs/directory-billing/internal/domain/attempt"
	"github.com/verionlabs/directory-billing/internal/domain/subscription"
	"github.com/verionlabs/directory-billing/internal/infrastructure/config"
	"github.com/verionlabs/directory-billing/internal/infrastructure/observability"
	customMW "github.com/verionlabs/directory-billing/internal/middleware"
)

type RouterDeps struct {
	Pool             *pgxpool.Pool
	RedisClient      *redis.Client
	SubscriptionRepo subscription.Repository
	AttemptRepo      attempt.Repository
	HandleEventUC    *webhookApp.HandleEventUseCase
	StartCheckoutUC  *checkoutApp.StartCheckoutUseCase
	ForceRetryUC     *provisioningApp.ForceRetryUseCase
	Metrics          *observability.Metrics
	Config           *config.Config
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(customMW.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: deps.Config.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(deps.Pool, deps.RedisClient)
	webhookH := NewWebhookController(deps.HandleEventUC, deps.Metrics)
	checkoutH := NewCheckoutController(deps.StartCheckoutUC,
		deps.Config.Checkout.SuccessURL, deps.Config.Checkout.CancelURL)
	adminH := NewAdminController(deps.SubscriptionRepo, deps.AttemptRepo, deps.ForceRetryUC)

	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	r.Handle("/metrics", promhttp.Handler())

	// Processor deliveries bypass the browser rate limit; the signature is
	// the gate.
	r.Post("/webhooks/payment", webhookH.Receive)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(customMW.RateLimit(deps.Config.Server.RateLimitPerMin))

		r.Post("/checkout", checkoutH.Start)

		r.Route("/admin", func(r chi.Router) {
			r.Use(customMW.RequireAdmin(deps.Config.Auth.JWTSecret))
			r.Get("/subscriptions/{id}", adminH.GetSubscription)
			r.Post("/subscriptions/{id}/retry", adminH.RetryProvisioning)
		})
	})

	return r
}
