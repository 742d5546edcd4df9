package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesa-pos/mesa-backend/api/controllers"
	"github.com/mesa-pos/mesa-backend/api/routes"
	"github.com/mesa-pos/mesa-backend/internal/checkout"
	"github.com/mesa-pos/mesa-backend/internal/hub"
	"github.com/mesa-pos/mesa-backend/internal/orders"
	"github.com/mesa-pos/mesa-backend/internal/tenant"
	"github.com/mesa-pos/mesa-backend/internal/voice"
	pkgauth "github.com/mesa-pos/mesa-backend/pkg/auth"
	"github.com/mesa-pos/mesa-backend/pkg/config"
	"github.com/mesa-pos/mesa-backend/pkg/db"
	"github.com/mesa-pos/mesa-backend/pkg/logger"
	"github.com/mesa-pos/mesa-backend/pkg/metrics"
	"github.com/mesa-pos/mesa-backend/pkg/migrate"
	"github.com/mesa-pos/mesa-backend/pkg/outbox"
	"github.com/mesa-pos/mesa-backend/pkg/outbox/idempotency"
	"github.com/mesa-pos/mesa-backend/pkg/pubsub"
	"github.com/mesa-pos/mesa-backend/pkg/redis"
	"github.com/mesa-pos/mesa-backend/pkg/square"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap square", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	streamMetrics := metrics.NewStreamMetrics(registry)
	voiceMetrics := metrics.NewVoiceMetrics(registry)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	outboxService := outbox.NewService(outboxRepo, logg)
	tenantResolver, err := tenant.NewResolver(tenant.NewRepository(gormDB))
	if err != nil {
		logg.Error(ctx, "failed to create tenant resolver", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.NewRepository(gormDB), dbClient, outboxService, tenantResolver)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutRepo := checkout.NewRepository(gormDB)
	checkoutService, err := checkout.NewService(
		checkoutRepo,
		dbClient,
		outboxService,
		ordersService,
		squareClient,
		cfg.Checkout,
		logg,
		checkoutMetrics,
	)
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	eventHub := hub.NewHub(cfg.Hub, logg, streamMetrics)
	resync, err := hub.NewResync(outboxRepo)
	if err != nil {
		logg.Error(ctx, "failed to create event resync", err)
		os.Exit(1)
	}
	dedupe, err := idempotency.NewManager(redisClient, cfg.Outbox.IdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "failed to create event idempotency manager", err)
		os.Exit(1)
	}
	bridge, err := hub.NewBridge(eventHub, pubsubClient.EventsSubscription(), dedupe, logg)
	if err != nil {
		logg.Error(ctx, "failed to create event bridge", err)
		os.Exit(1)
	}
	go func() {
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "event bridge stopped", err)
		}
	}()

	var voiceChannel *voice.Channel
	if cfg.Voice.NLUEndpoint != "" {
		recognizer, recErr := voice.NewHTTPRecognizer(cfg.Voice, logg)
		if recErr != nil {
			logg.Error(ctx, "failed to create voice recognizer", recErr)
			os.Exit(1)
		}
		voiceChannel, err = voice.NewChannel(cfg.Voice, recognizer, ordersService, logg, voiceMetrics)
		if err != nil {
			logg.Error(ctx, "failed to create voice channel", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(ctx, "voice nlu endpoint unset, voice ordering disabled")
	}

	router := routes.NewRouter(routes.Deps{
		Config:     cfg,
		Logger:     logg,
		Authorizer: pkgauth.NewAuthorizer(cfg.JWT),
		Tenants:    tenantResolver,
		Redis:      redisClient,
		Orders:     ordersService,
		Checkouts:  checkoutService,
		Hub:        eventHub,
		Resync:     resync,
		Voice:      voiceChannel,
		Health: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
			"pubsub":   pubsubClient,
		},
		Registry: registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "api server stopped")
}
