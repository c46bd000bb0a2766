package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"devpulse.app/syncd/common/id"
	"devpulse.app/syncd/common/logger"
	"devpulse.app/syncd/common/otel"
	"devpulse.app/syncd/core/config"
	"devpulse.app/syncd/core/db"
	"devpulse.app/syncd/internal/jobstate"
	"devpulse.app/syncd/internal/queue"
	"devpulse.app/syncd/internal/store"
	"devpulse.app/syncd/internal/syncer"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeSweeper)
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

	slog.InfoContext(ctx, "sweeper starting",
		"env", cfg.Env,
		"timeline_interval", cfg.Sync.TimelineInterval,
		"milestone_interval", cfg.Sync.MilestoneInterval)

	// Initialize snowflake ID generator (use different node ID than worker)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

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

	stores := store.New(database.Pool())

	producer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, slog.Default())
	defer producer.Close()

	sweeper := syncer.NewSweeper(
		stores.Connections,
		jobstate.NewRedisStore(redisClient, cfg.Sync.JobStateTTL),
		producer,
		int32(cfg.Sync.ErrorCeiling),
	)

	// Sweep once on startup so a fresh deploy doesn't wait a full interval.
	if err := sweeper.SweepTimeline(ctx); err != nil {
		slog.ErrorContext(ctx, "initial timeline sweep failed", "error", err)
	}
	if err := sweeper.SweepMilestones(ctx); err != nil {
		slog.ErrorContext(ctx, "initial milestone sweep failed", "error", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go runTicker(runCtx, cfg.Sync.TimelineInterval, "timeline", sweeper.SweepTimeline)
	go runTicker(runCtx, cfg.Sync.MilestoneInterval, "milestones", sweeper.SweepMilestones)

	slog.InfoContext(ctx, "sweeper initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down sweeper...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "sweeper shutdown complete")
}

func runTicker(ctx context.Context, interval time.Duration, name string, sweep func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sweep(ctx); err != nil {
				slog.ErrorContext(ctx, "sweep failed", "sweep", name, "error", err)
			}
		}
	}
}

const banner = `
███████╗██╗   ██╗███╗   ██╗ ██████╗██████╗     ███████╗██╗    ██╗███████╗███████╗██████╗ ███████╗██████╗
██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝██╔══██╗    ██╔════╝██║    ██║██╔════╝██╔════╝██╔══██╗██╔════╝██╔══██╗
███████╗ ╚████╔╝ ██╔██╗ ██║██║     ██║  ██║    ███████╗██║ █╗ ██║█████╗  █████╗  ██████╔╝█████╗  ██████╔╝
╚════██║  ╚██╔╝  ██║╚██╗██║██║     ██║  ██║    ╚════██║██║███╗██║██╔══╝  ██╔══╝  ██╔═══╝ ██╔══╝  ██╔══██╗
███████║   ██║   ██║ ╚████║╚██████╗██████╔╝    ███████║╚███╔███╔╝███████╗███████╗██║     ███████╗██║  ██║
╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝╚═════╝     ╚══════╝ ╚══╝╚══╝ ╚══════╝╚══════╝╚═╝     ╚══════╝╚═╝  ╚═╝
`
