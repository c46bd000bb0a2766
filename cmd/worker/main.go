package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devpulse.app/syncd/common/id"
	"devpulse.app/syncd/common/logger"
	"devpulse.app/syncd/common/otel"
	"devpulse.app/syncd/core/config"
	"devpulse.app/syncd/core/db"
	"devpulse.app/syncd/internal/breaker"
	"devpulse.app/syncd/internal/fanout"
	"devpulse.app/syncd/internal/http/admin"
	"devpulse.app/syncd/internal/jobstate"
	"devpulse.app/syncd/internal/lock"
	"devpulse.app/syncd/internal/metrics"
	"devpulse.app/syncd/internal/provider"
	"devpulse.app/syncd/internal/queue"
	"devpulse.app/syncd/internal/store"
	"devpulse.app/syncd/internal/syncer"
	"devpulse.app/syncd/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		slog.ErrorContext(ctx, "failed to setup telemetry", "error", err)
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "sync worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer)

	// Initialize snowflake ID generator (use different node ID than sweeper)
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	if err := db.RunMigrations(cfg.DB.DSN); err != nil {
		slog.ErrorContext(ctx, "failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "migrations applied")

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	stores := store.New(database.Pool())

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())
	defer producer.Close()

	scrapeProducer := queue.NewRedisProducer(redisClient, cfg.Pipeline.ScrapeStream, slog.Default())
	defer scrapeProducer.Close()

	ingestor := syncer.NewIngestor(stores.Timeline, producer, collector)
	deps := provider.Deps{
		Stores:   stores,
		Ingestor: ingestor,
		Scrapes:  syncer.NewScrapeRequestQueue(scrapeProducer),
		Metrics:  collector,
	}

	providers := provider.NewRegistry(
		provider.NewGitLab(deps, provider.GitLabConfig{
			BaseURL:  cfg.GitLab.BaseURL,
			PageSize: cfg.Sync.PageSize,
			RPS:      float64(cfg.Sync.ProviderRPS),
		}),
		provider.NewStackOverflow(deps, provider.StackOverflowConfig{
			MinScore: cfg.Sync.MinAnswerScore,
		}),
		provider.NewYouTube(deps, provider.YouTubeConfig{
			MinViews: cfg.Sync.MinVideoViews,
		}),
	)

	orchestrator := syncer.NewOrchestrator(
		providers,
		stores.Connections,
		lock.NewRedisLocker(redisClient),
		jobstate.NewRedisStore(redisClient, cfg.Sync.JobStateTTL),
		breaker.New(stores.Connections, int32(cfg.Sync.ErrorCeiling)),
		producer,
		collector,
		syncer.OrchestratorConfig{LockTTL: cfg.Sync.LockTTL},
	)

	feedWriter := fanout.NewWriter(stores.Timeline, stores.Followers, stores.Feed, collector)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    1, // Process one task at a time
		Block:        5 * time.Second,
		MaxAttempts:  3,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	w := worker.New(consumer, orchestrator, feedWriter, worker.Config{
		MaxAttempts: 3,
	})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  1 * time.Minute,
		BatchSize: 10,
	}, consumer, w.ProcessMessage)

	adminServer := setupAdminServer(cfg, stores.Connections, registry)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()
	go func() {
		slog.InfoContext(ctx, "admin server starting", "port", cfg.AdminPort)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "admin server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop reclaimer first (quick)
	reclaimer.Stop()

	// Stop worker (may be processing)
	w.Stop()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "admin server shutdown error", "error", err)
	}

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

func setupAdminServer(cfg config.Config, connections store.ConnectionStore, registry *prometheus.Registry) *http.Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	admin.SetupRoutes(router, admin.NewHandler(connections, registry))

	return &http.Server{
		Addr:              ":" + cfg.AdminPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

const banner = `
███████╗██╗   ██╗███╗   ██╗ ██████╗██████╗     ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝██╔══██╗    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
███████╗ ╚████╔╝ ██╔██╗ ██║██║     ██║  ██║    ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
╚════██║  ╚██╔╝  ██║╚██╗██║██║     ██║  ██║    ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
███████║   ██║   ██║ ╚████║╚██████╗██████╔╝    ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝╚═════╝      ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
