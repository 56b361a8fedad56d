package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/medicart/pos-backend/api/routes"
	"github.com/medicart/pos-backend/internal/catalog"
	"github.com/medicart/pos-backend/internal/invoices"
	"github.com/medicart/pos-backend/internal/sales"
	"github.com/medicart/pos-backend/internal/stock"
	"github.com/medicart/pos-backend/pkg/config"
	"github.com/medicart/pos-backend/pkg/db"
	"github.com/medicart/pos-backend/pkg/logger"
	"github.com/medicart/pos-backend/pkg/metrics"
	"github.com/medicart/pos-backend/pkg/migrate"
	"github.com/medicart/pos-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	catalogService := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	stockService := stock.NewService(stock.NewRepository(dbClient.DB()))
	invoiceRepo := invoices.NewRepository(dbClient.DB())
	invoiceService := invoices.NewService(invoiceRepo)

	salesMetrics := metrics.NewSalesMetrics(prometheus.DefaultRegisterer)
	policy := sales.NewLinearPolicy(cfg.Sales.TaxRatePercent, cfg.Sales.DiscountRatePercent)
	salesService, err := sales.NewService(catalogService, stockService, invoiceRepo, policy, logg, salesMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create sales service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			catalogService,
			stockService,
			salesService,
			invoiceService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
