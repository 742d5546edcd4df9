package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mesa-pos/mesa-backend/api/controllers"
	"github.com/mesa-pos/mesa-backend/api/middleware"
	checkoutsvc "github.com/mesa-pos/mesa-backend/internal/checkout"
	"github.com/mesa-pos/mesa-backend/internal/hub"
	ordersvc "github.com/mesa-pos/mesa-backend/internal/orders"
	"github.com/mesa-pos/mesa-backend/internal/voice"
	pkgauth "github.com/mesa-pos/mesa-backend/pkg/auth"
	"github.com/mesa-pos/mesa-backend/pkg/config"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
	pkgredis "github.com/mesa-pos/mesa-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	Authorizer *pkgauth.Authorizer
	Tenants    middleware.TenantResolver
	Redis      pkgredis.IdempotencyStore
	Orders     ordersvc.Service
	Checkouts  checkoutsvc.Service
	Hub        *hub.Hub
	Resync     *hub.Resync
	Voice      *voice.Channel
	Health     map[string]controllers.Pinger
	Registry   prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Health))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	requireScope := func(scope string) func(http.Handler) http.Handler {
		return middleware.Capability(deps.Authorizer, deps.Tenants, scope, logg)
	}
	idempotent := middleware.Idempotency(deps.Redis, logg)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.With(requireScope(pkgauth.ScopeOrdersCreate), idempotent).
				Post("/", controllers.CreateOrder(deps.Orders, logg))
			r.With(requireScope(pkgauth.ScopeOrdersRead)).
				Get("/", controllers.ListOrders(deps.Orders, logg))
			r.With(requireScope(pkgauth.ScopeOrdersRead)).
				Get("/{orderId}", controllers.GetOrder(deps.Orders, logg))
			r.With(requireScope(pkgauth.ScopeOrdersRead)).
				Get("/{orderId}/history", controllers.OrderHistory(deps.Orders, logg))
			r.With(requireScope(pkgauth.ScopeOrdersUpdate), idempotent).
				Post("/{orderId}/transition", controllers.TransitionOrder(deps.Orders, logg))
			r.With(requireScope(pkgauth.ScopePaymentsRead)).
				Get("/{orderId}/payments", controllers.OrderPaymentAudits(deps.Checkouts, logg))
		})

		r.Route("/checkouts", func(r chi.Router) {
			r.With(requireScope(pkgauth.ScopePaymentsCreate), idempotent).
				Post("/", controllers.CreateCheckout(deps.Checkouts, logg))
			r.With(requireScope(pkgauth.ScopePaymentsRead)).
				Get("/{checkoutId}", controllers.GetCheckout(deps.Checkouts, logg))
			r.With(requireScope(pkgauth.ScopePaymentsUpdate), idempotent).
				Post("/{checkoutId}/complete", controllers.CompleteCheckout(deps.Checkouts, logg))
			r.With(requireScope(pkgauth.ScopePaymentsUpdate), idempotent).
				Post("/{checkoutId}/cancel", controllers.CancelCheckout(deps.Checkouts, logg))
		})

		r.With(requireScope(pkgauth.ScopeEventsRead)).
			Get("/events", controllers.ListEvents(deps.Resync, logg))
		r.With(requireScope(pkgauth.ScopeEventsRead)).
			Get("/stream", controllers.StreamEvents(deps.Hub, deps.Resync, logg))
		r.With(requireScope(pkgauth.ScopeOrdersCreate)).
			Get("/voice/stream", controllers.VoiceSession(deps.Voice, logg))
	})

	return r
}
