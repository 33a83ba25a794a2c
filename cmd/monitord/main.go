package main

import (
	"context"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pulsewatch/pulsewatch/internal/config"
	monapi "github.com/pulsewatch/pulsewatch/internal/monitoring/api"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/database"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/metrics"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/service/aggregator"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/service/alerting"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/service/probe"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/service/scheduler"
	"github.com/pulsewatch/pulsewatch/internal/monitoring/service/status"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// engineStore joins the repositories behind the alert engine's surface.
type engineStore struct {
	*database.AlertRepo
	*database.CheckRepo
}

// rollupStore joins the repositories behind the aggregator's surface.
type rollupStore struct {
	*database.EndpointRepo
	*database.CheckRepo
	*database.MetricRepo
}

// schedulerRepo joins the repositories behind the scheduler's surface.
type schedulerRepo struct {
	*database.EndpointRepo
	*database.CheckRepo
}

func main() {
	log.Info().Msg("Starting pulsewatch monitor")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.New(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("database init failed")
	}
	defer db.Close()

	endpoints := database.NewEndpointRepo(db)
	checks := database.NewCheckRepo(db)
	metricRows := database.NewMetricRepo(db)
	alerts := database.NewAlertRepo(db)
	configRows := database.NewConfigRepo(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := alerting.SeedDefaults(ctx, configRows, cfg.Monitoring.ThresholdsFile); err != nil {
		log.Error().Err(err).Msg("seed alert tunables failed")
	}

	metricsSet := metrics.NewSet()

	var notifier alerting.Notifier = alerting.NopNotifier{}
	if cfg.Notifier.WebhookURL != "" {
		notifier = alerting.NewWebhookNotifier(cfg.Notifier.WebhookURL, parseDuration(cfg.Notifier.Timeout, 10*time.Second))
	}
	notifier = metrics.InstrumentNotifier(notifier, metricsSet)

	thresholds := alerting.LoadThresholds(ctx, configRows)
	engine := alerting.NewEngine(engineStore{alerts, checks}, notifier, thresholds)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	cache := status.NewCache(rdb, 0)

	agg := aggregator.New(rollupStore{endpoints, checks, metricRows}, parseDuration(cfg.Monitoring.RollupInterval, 5*time.Minute))
	agg.OnRollup = metricsSet.RollupRecorded
	go agg.Start(ctx)

	sched := scheduler.New(scheduler.Deps{
		Repo:    schedulerRepo{endpoints, checks},
		Prober:  probe.New(),
		Sinks:   []scheduler.ResultSink{engine, cache},
		Metrics: metricsSet,
		Config: scheduler.Config{
			TickInterval:    parseDuration(cfg.Monitoring.TickInterval, time.Second),
			RefreshInterval: parseDuration(cfg.Monitoring.RefreshInterval, 30*time.Second),
			Workers:         cfg.Monitoring.Workers,
			ShutdownGrace:   parseDuration(cfg.Monitoring.ShutdownGrace, 10*time.Second),
		},
	})
	schedDone := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(schedDone)
	}()

	reloadThresholds := func(ctx context.Context) {
		engine.ReloadThresholds(alerting.LoadThresholds(ctx, configRows))
	}
	go func() {
		t := time.NewTicker(thresholds.ReloadInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				reloadThresholds(ctx)
			}
		}
	}()

	statusSvc := status.NewService(endpoints, checks, agg, alerts, engine, cache)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	monapi.NewApi(router, monapi.Deps{
		Endpoints:      endpoints,
		Checks:         checks,
		Metrics:        metricRows,
		Alerts:         alerts,
		Config:         configRows,
		Status:         statusSvc,
		Stats:          agg,
		BearerToken:    cfg.Auth.Bearer,
		MetricsHandler: metricsSet.Handler(),
		OnConfigChange: reloadThresholds,
	})

	srv := &http.Server{Addr: cfg.Server.BindAddr, Handler: router}
	go func() {
		log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("start pulsewatch api server failed.")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), parseDuration(cfg.Monitoring.ShutdownGrace, 10*time.Second))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
	<-schedDone
	log.Info().Msg("pulsewatch monitor exit...")
}

func parseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}
