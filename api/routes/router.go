package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medicart/pos-backend/api/controllers"
	"github.com/medicart/pos-backend/api/middleware"
	catalogsvc "github.com/medicart/pos-backend/internal/catalog"
	invoicesvc "github.com/medicart/pos-backend/internal/invoices"
	salesvc "github.com/medicart/pos-backend/internal/sales"
	stocksvc "github.com/medicart/pos-backend/internal/stock"
	"github.com/medicart/pos-backend/pkg/config"
	"github.com/medicart/pos-backend/pkg/db"
	"github.com/medicart/pos-backend/pkg/logger"
	pkgredis "github.com/medicart/pos-backend/pkg/redis"
)

// RedisStore is the redis surface the router wires into its middleware and
// health checks. *redis.Client satisfies it.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	catalogService catalogsvc.Service,
	stockService stocksvc.Service,
	salesService salesvc.Service,
	invoiceService invoicesvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisStore))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	rateLimitPolicy := middleware.NewRateLimitPolicy(cfg.RateLimit.Window, cfg.RateLimit.Limit)

	r.Route("/api/v1", func(r chi.Router) {
		if redisStore != nil {
			r.Use(middleware.Idempotency(redisStore, logg))
			r.Use(middleware.RateLimit(rateLimitPolicy, redisStore, logg))
		}

		r.Route("/items", func(r chi.Router) {
			r.Post("/", controllers.CreateItem(catalogService, logg))
			r.Get("/", controllers.ListItems(catalogService, logg))
			r.Get("/{itemId}", controllers.GetItem(catalogService, logg))
			r.Patch("/{itemId}", controllers.UpdateItem(catalogService, logg))
			r.Delete("/{itemId}", controllers.DeactivateItem(catalogService, logg))
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/reorder", controllers.ListReorderCandidates(stockService, logg))
			r.Get("/{itemId}", controllers.GetStock(stockService, logg))
			r.Put("/{itemId}", controllers.SetStock(stockService, logg))
			r.Post("/{itemId}/restock", controllers.Restock(stockService, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Post("/preview", controllers.PreviewSale(salesService, logg))
			r.Post("/", controllers.FinalizeSale(salesService, logg))
			r.Get("/", controllers.ListSales(invoiceService, logg))
			r.Get("/{invoiceNumber}", controllers.GetSale(invoiceService, logg))
		})
	})

	return r
}
