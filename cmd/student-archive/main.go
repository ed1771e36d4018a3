// main is the entry point of the student archive server.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file (plus env overrides)
//  2. Initialise the logger
//  3. Open the configured store (sqlite, postgres, local, redis or mongo)
//  4. Wire the snapshot feed, optional photo storage and metrics
//  5. Register all HTTP routes behind the middleware chain
//  6. Serve until an OS signal (Ctrl+C / kill) arrives
//  7. Gracefully shut down: finish in-flight requests, then exit
//
// RUNNING THE SERVER:
//
//	go run ./cmd/student-archive --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/student-archive
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/aanand-mishra/student-archive/internal/config"
	"github.com/aanand-mishra/student-archive/internal/http/handlers/student"
	"github.com/aanand-mishra/student-archive/internal/http/middleware"
	"github.com/aanand-mishra/student-archive/internal/metrics"
	"github.com/aanand-mishra/student-archive/internal/photos"
	"github.com/aanand-mishra/student-archive/internal/realtime"
)

const version = "1.0.0"

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// Installed as the default so packages can log through slog directly.
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting student-archive",
		slog.String("env", cfg.Env),
		slog.String("version", version),
		slog.String("backend", cfg.Storage.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	// Redis is shared by the redis backend and the snapshot relay.
	var rdb *redis.Client
	if cfg.Storage.Backend == config.BackendRedis || cfg.Realtime.Redis {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		defer rdb.Close()
	}

	base, err := openStore(ctx, cfg, rdb)
	if err != nil {
		log.Error("failed to initialise storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer base.Close()

	log.Info("storage initialised", slog.String("backend", cfg.Storage.Backend))

	// ── 4. Snapshot Feed ──────────────────────────────────────────────────
	// Every mutation publishes the full list. With Redis, the snapshot
	// goes through the channel and comes back to this process's hub via
	// the relay, so all instances see the same feed.
	hub := realtime.NewHub()
	var pub realtime.Publisher = hub
	if cfg.Realtime.Redis {
		relay, err := realtime.NewRedisRelay(ctx, rdb, cfg.Realtime.Channel, hub)
		if err != nil {
			log.Error("failed to subscribe to snapshots", slog.String("error", err.Error()))
			os.Exit(1)
		}
		go relay.Run(ctx)
		pub = realtime.NewRedisPublisher(rdb, cfg.Realtime.Channel)
		log.Info("snapshot relay started", slog.String("channel", cfg.Realtime.Channel))
	}
	store := realtime.NewNotifying(base, pub)

	// ── 5. Photo Storage (optional) ───────────────────────────────────────
	// Left as a nil interface when disabled; the photo route answers 501.
	var uploader photos.Uploader
	if cfg.Photos.Enabled {
		minioStore, err := photos.NewMinIOStore(ctx, photos.Config{
			Endpoint:  cfg.Photos.Endpoint,
			AccessKey: cfg.Photos.AccessKey,
			SecretKey: cfg.Photos.SecretKey,
			Bucket:    cfg.Photos.Bucket,
			UseSSL:    cfg.Photos.UseSSL,
			URLTTL:    cfg.Photos.URLTTL,
		})
		if err != nil {
			log.Error("failed to initialise photo storage", slog.String("error", err.Error()))
			os.Exit(1)
		}
		uploader = minioStore
		log.Info("photo storage initialised", slog.String("bucket", cfg.Photos.Bucket))
	}

	// ── 6. Register HTTP Routes ───────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterCollectors(reg)

	router := http.NewServeMux()
	student.Register(router, student.Deps{
		Store:         store,
		Hub:           hub,
		Photos:        uploader,
		MaxPhotoBytes: cfg.Photos.MaxBytes,
	})
	router.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// The limiter rejects before any handler work. Recover sits inside
	// RequestLog, so a panicking request is still logged and counted as a
	// 500 under its route pattern.
	mws := []func(http.Handler) http.Handler{middleware.RequestID}
	if cfg.HTTPServer.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTPServer.RateLimit, cfg.HTTPServer.RateBurst)
		mws = append(mws, limiter.Middleware)
	}
	mws = append(mws, middleware.RequestLog, middleware.Recover)

	server := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      middleware.Chain(router, mws...),
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}
	// event streams never go idle on their own
	server.RegisterOnShutdown(hub.Close)

	// ── 7. Serve ──────────────────────────────────────────────────────────
	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, stopping server...")

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	// Shutdown stops accepting connections and waits for active requests,
	// up to the deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server gracefully", slog.String("error", err.Error()))
		return
	}

	log.Info("server stopped gracefully")
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	case "staging":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
