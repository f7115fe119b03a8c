package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"tally/internal/amqp"
	"tally/internal/backend"
	"tally/internal/bot"
	"tally/internal/cache"
	"tally/internal/cli"
	"tally/internal/config"
	"tally/internal/core"
	apphttp "tally/internal/http"
	"tally/internal/lock"
	tlog "tally/internal/log"
	"tally/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateBot)

	logger.Info("Starting tally", "backend", cfg.DataBackend, "port", cfg.Port)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", tlog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", tlog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Failed to close backend", tlog.FieldError, err)
		}
	}()

	// Locks: Redis when several replicas share a store, in-process otherwise.
	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Error("Failed to connect to Redis", tlog.FieldError, err, "address", cfg.RedisAddress)
			os.Exit(1)
		}
		locker = lock.NewRedis(rdb, cfg.LockTTL, logger.WithComponent(tlog.ComponentLock).Logger)
		logger.Info("Redis locks enabled", "address", cfg.RedisAddress)
	}

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", tlog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
		logger.Info("Journal events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	cacheManager := cache.NewManager(logger.WithComponent(tlog.ComponentCache).Logger)
	var settingsCache cache.Cache[int64, core.ChatConfig]
	if ttl := cfg.SettingsCacheTTL(); ttl > 0 {
		lru := cache.NewLRU[int64, core.ChatConfig](cfg.ConfigCacheSize, ttl)
		cacheManager.Register(lru)
		settingsCache = lru
	} else {
		logger.Info("Chat config cache disabled")
	}
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	roles := services.NewRoleResolver(result.Store, locker, cfg.RootUserID)
	settings := services.NewSettings(result.Store, locker, settingsCache)
	journal := services.NewJournal(result.Store, locker, publisher)

	handler := bot.NewHandler(roles, settings, journal, bot.WithReportLimit(cfg.ReportLimit))
	telegram, err := bot.NewTelegram(cfg.TelegramToken, handler, cfg.BotWorkers)
	if err != nil {
		logger.Error("Failed to initialize Telegram bot", tlog.FieldError, err)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:           ":" + cfg.Port,
		Store:          result.Store,
		Settings:       settings,
		Journal:        journal,
		Token:          cfg.OpsAPIToken,
		RateLimit:      cfg.RateLimit,
		TrustedProxies: cfg.TrustedProxies,
		ReportLimit:    cfg.ReportLimit,
		Logger:         logger.WithComponent(tlog.ComponentHTTP),
	})
	if err != nil {
		logger.Error("Failed to configure ops server", tlog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", tlog.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegram.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting ops server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// a failing sibling stops the server too
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("tally stopped with error", tlog.FieldError, err)
		if ctx.Err() == nil {
			os.Exit(1)
		}
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("tally stopped gracefully")
}
