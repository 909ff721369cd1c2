package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/pong-arena/internal/config"
	"github.com/AdamBeresnev/pong-arena/internal/db"
	"github.com/AdamBeresnev/pong-arena/internal/logging"
	"github.com/AdamBeresnev/pong-arena/internal/notify"
	"github.com/AdamBeresnev/pong-arena/internal/service"
	"github.com/AdamBeresnev/pong-arena/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, dotenvLoaded, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	if !dotenvLoaded {
		logger.Debug("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Store = sqlite3store.New(database.DB)

	sender, closeSender, err := newSender(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSender()
	dispatcher := notify.NewDispatcher(logger.Named("notify"), sender,
		cfg.NotifyQueueSize, cfg.NotifyWorkers, cfg.NotifyTimeout)

	userStore := store.NewUserStore(database)
	games := service.NewGameRegistry(logger.Named("games"), userStore, dispatcher)
	tournaments := service.NewTournamentRegistry(logger.Named("tournaments"), userStore, dispatcher, games)
	a := &app{
		logger:         logger.Named("http"),
		sessionManager: sessionManager,
		userStore:      userStore,
		users:          service.NewUserService(userStore),
		games:          games,
		tournaments:    tournaments,
		results: service.NewResultService(logger.Named("results"), database,
			store.NewResultStore(database), games, tournaments),
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return dispatcher.Run(ctx)
	})
	eg.Go(func() error {
		logger.Info("server starting", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

// newSender publishes notifications through Redis when it is configured and logs
// them otherwise.
func newSender(ctx context.Context, cfg config.Config, logger *zap.Logger) (notify.Sender, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info("no redis configured, notifications are only logged")
		return notify.NewLogSender(logger.Named("notify")), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	closeClient := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close redis client", zap.Error(err))
		}
	}
	return notify.NewRedisSender(client, cfg.RedisChannelPrefix), closeClient, nil
}
