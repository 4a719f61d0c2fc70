package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"craftfolio/analytics/aggregate"
	"craftfolio/analytics/alerts"
	"craftfolio/analytics/config"
	"craftfolio/analytics/database"
	"craftfolio/analytics/funnel"
	"craftfolio/analytics/handlers"
	"craftfolio/analytics/ingest"
	"craftfolio/analytics/logger"
	"craftfolio/analytics/metrics"
	"craftfolio/analytics/report"
	"craftfolio/analytics/store"
	"craftfolio/analytics/stream"
	"craftfolio/analytics/tracker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Initialize(cfg.LogLevel, cfg.ReleaseMode)

	analyticsCfg, err := config.LoadAnalytics(os.Getenv("ANALYTICS_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load analytics configuration")
	}

	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Event store: ClickHouse in production, in-memory when unset ---
	var events store.EventStore
	if cfg.ClickHouse.Host != "" {
		chClient, err := database.NewClickHouseDB(cfg.ClickHouse)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize ClickHouse")
		}
		defer chClient.Close()
		events = store.NewClickHouseStore(chClient)
	} else {
		log.Warn().Msg("CLICKHOUSE_HOST not set, using in-memory event store")
		events = store.NewMemoryStore()
	}

	// --- Report store (Postgres) ---
	dbClient, err := database.NewPostgresDB(cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL")
	}
	defer dbClient.Close()
	reports := store.NewReportStore(dbClient.DB)

	// --- Redis: realtime feed + latest-report cache, optional ---
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = database.NewRedisClient(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize Redis")
		}
		defer rdb.Close()
	} else {
		log.Warn().Msg("REDIS_ADDR not set, realtime feed disabled")
	}

	// --- Session tracking ---
	tr := tracker.New(cfg.Session)
	tr.SetAnomalyHook(metrics.SessionAnomalies.Inc)
	tr.Start()
	defer tr.Stop()

	// --- Ingestion ---
	var realtime *ingest.Realtime
	if rdb != nil {
		realtime = ingest.NewRealtime(rdb, 100)
	}
	pipeline := ingest.NewPipeline(events, tr, realtime, cfg.Ingest)
	pipeline.Start()
	defer pipeline.Stop()

	// --- Aggregation, alerting, scheduling ---
	engine := aggregate.NewEngine(events, funnel.NewAnalyzer(events), analyticsCfg, cfg.Session)

	sinks := []alerts.Sink{alerts.LogSink{}}
	if cfg.Alerting.WebhookURL != "" {
		sinks = append(sinks, alerts.NewWebhookSink(cfg.Alerting.WebhookURL, cfg.Alerting.WebhookTimeout))
	}
	notifier := alerts.NewNotifier(sinks...)
	notifier.SetFailureHook(metrics.AlertDeliveryFailures.Inc)

	scheduler := report.NewScheduler(engine, reports, events, notifier, analyticsCfg.Thresholds, cfg.Retention)
	var cache *report.Cache
	if rdb != nil {
		cache = report.NewCache(rdb)
		scheduler.SetCache(cache)
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start report scheduler")
	}
	defer scheduler.Stop()

	// --- Optional Kafka source ---
	if len(cfg.Kafka.Brokers) > 0 {
		consumer := stream.NewConsumer(cfg.Kafka, pipeline)
		consumer.Start()
		defer func() {
			if err := consumer.Stop(); err != nil {
				log.Error().Err(err).Msg("error stopping kafka consumer")
			}
		}()
	}

	// --- HTTP ---
	h := handlers.NewAnalyticsHandlers(pipeline, tr, realtime, engine, reports, cache, report.NewExporter(events))
	router := handlers.NewRouter(h, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("analytics server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exiting")
}
