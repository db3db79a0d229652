package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ali090-acme/TOVE-Leads-sub001/internal/changebus"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/config"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/infra"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/repository"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/router"
	"github.com/ali090-acme/TOVE-Leads-sub001/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty console in dev, JSON in production
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = infra.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
	}

	// Each process stamps its own origin so the bridge can drop echoes.
	hub := changebus.NewHub(uuid.NewString(), cfg.ChangeLogSize)
	if rdb != nil {
		go changebus.NewRedisBridge(rdb, cfg.ChangeBusChannel, hub).Run(ctx)
	}

	var locker infra.Locker = infra.NewLocalLocker()
	if rdb != nil {
		locker = infra.NewLocker(cfg.LockBackend, rdb, time.Duration(cfg.LockTTLSeconds)*time.Second)
	}
	mailer := infra.NewMailer(cfg)

	deps := router.Deps{DB: db, Redis: rdb, Hub: hub, Locker: locker, MailBreaker: mailer.Breaker()}

	photos, err := infra.NewMinIOStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to object storage")
	}
	if photos != nil {
		deps.Photos = photos
	} else {
		log.Warn().Msg("MINIO_ENDPOINT not set, job-order photos are dropped")
	}

	// E-mail delivery runs on the redis worker pool; without redis,
	// notifications are stored in-app only.
	scheduler := worker.NewScheduler()
	if err := scheduler.AddRefresh(cfg.RefreshSchedule, hub); err != nil {
		log.Fatal().Err(err).Str("spec", cfg.RefreshSchedule).Msg("invalid refresh schedule")
	}
	if rdb != nil && mailer.Enabled() {
		notificationRepo := repository.NewNotificationRepository(db)
		emailWorker := worker.NewEmailWorker(notificationRepo, repository.NewUserRepository(db), mailer, rdb)

		deps.Emails = worker.NewDispatcher(rdb)
		pool := worker.NewPool(rdb)
		pool.Register(worker.QueueNotificationEmail, worker.JobNotificationEmail, emailWorker)
		pool.Start(ctx, cfg.WorkerPoolSize)

		breakerOpen := func() bool { return mailer.Breaker().State() == infra.CBOpen }
		if err := scheduler.AddEmailRetry(ctx, cfg.NotificationRetrySpec, notificationRepo, emailWorker, breakerOpen); err != nil {
			log.Fatal().Err(err).Str("spec", cfg.NotificationRetrySpec).Msg("invalid retry schedule")
		}
	} else {
		log.Warn().Msg("redis or SMTP not configured, notification e-mails disabled")
	}
	scheduler.Start()

	r := router.New(cfg, deps)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// No write timeout: /v1/changes/stream stays open.
		IdleTimeout: 60 * time.Second,
		// Cancelling ctx ends open change streams so Shutdown can finish.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("compliance API listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	scheduler.Stop()
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
