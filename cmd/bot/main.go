// Package main provides the registration bot entry point.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/config"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/files"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/i18n"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/infrastructure/httpserver"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/infrastructure/metrics"
	mongodbinfra "github.com/kirill-jjj/teamtalk-reg-system/internal/infrastructure/mongodb"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/infrastructure/repository/mongodb"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/infrastructure/tokenstore"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/infrastructure/ttclient"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/notify"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/service"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/tgbot"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/voice"
	"github.com/kirill-jjj/teamtalk-reg-system/internal/web"
)

const (
	redisPingTimeout = 5 * time.Second
	commandQueueSize = 64
	readyPingTimeout = 2 * time.Second
)

//nolint:funlen // Main function handles startup orchestration and is readable as-is
func main() {
	cfg, err := config.Load()
	if err != nil {
		//nolint:sloglint // No context available before logger setup
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := setupLogger(cfg)

	logger.Info("starting registration bot",
		slog.String("voice_host", cfg.Voice.Host),
		slog.Bool("web_enabled", cfg.Web.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handleShutdown(cancel, logger)

	mongoClient, err := connectMongoDB(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to MongoDB", slog.String("error", err.Error()))
		cancel()
		os.Exit(1) //nolint:gocritic // cancel() called before exit
	}
	defer func() {
		if disconnectErr := mongoClient.Disconnect(context.Background()); disconnectErr != nil {
			logger.Error("failed to disconnect from MongoDB", slog.String("error", disconnectErr.Error()))
		}
	}()

	db := mongoClient.Database(cfg.MongoDB.Database)
	if err = mongodbinfra.CreateAllIndexes(ctx, db); err != nil {
		logger.Error("failed to create MongoDB indexes", slog.String("error", err.Error()))
		os.Exit(1)
	}

	registrations := mongodb.NewMongoRegistrationRepository(db.Collection(mongodbinfra.CollectionRegistrations))
	bans := mongodb.NewMongoBanRepository(db.Collection(mongodbinfra.CollectionBans))
	pending := mongodb.NewMongoPendingRegistrationRepository(db.Collection(mongodbinfra.CollectionPendingRegistrations))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			logger.Error("failed to close Redis", slog.String("error", closeErr.Error()))
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(ctx, redisPingTimeout)
	if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
		pingCancel()
		logger.Error("failed to connect to Redis", slog.String("error", pingErr.Error()))
		os.Exit(1)
	}
	pingCancel()

	logger.InfoContext(ctx, "connected to Redis", slog.String("addr", cfg.Redis.Addr))

	tokens := tokenstore.NewStore(redisClient)

	bundle, err := i18n.New()
	if err != nil {
		logger.Error("failed to load locales", slog.String("error", err.Error()))
		os.Exit(1)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error("failed to authorize Telegram bot", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("authorized on Telegram", slog.String("bot_username", botAPI.Self.UserName))

	adminLang := domain.ParseLanguageCodeOrDefault(cfg.Telegram.AdminLang)
	notifier := notify.NewAdminNotifier(
		tgbot.NewSender(botAPI),
		bundle,
		cfg.Telegram.AdminTelegramIDs(),
		adminLang,
		notify.WithLogger(logger),
	)

	registry := service.NewVoiceRegistry(registrations, bans)
	queue := make(voice.Queue, commandQueueSize)

	broadcastTemplate := ""
	if cfg.Voice.RegistrationBroadcastEnabled {
		broadcastTemplate = bundle.T(adminLang, "tt-broadcast-registration")
	}

	voiceMetrics := metrics.NewVoiceMetrics(prometheus.DefaultRegisterer)
	worker := voice.NewWorker(
		voice.WorkerConfig{
			Host:              cfg.Voice.Host,
			TCPPort:           cfg.Voice.TCPPort,
			UDPPort:           cfg.Voice.EffectiveUDPPort(),
			Encrypted:         cfg.Voice.Encrypted,
			Nickname:          cfg.Voice.Nickname,
			Username:          cfg.Voice.Username,
			Password:          cfg.Voice.Password,
			ClientName:        cfg.Voice.ClientName,
			StatusText:        cfg.Voice.StatusText,
			Gender:            cfg.Voice.Gender,
			Rights:            files.UserRightsMask(cfg.Voice.DefaultUserRights),
			BroadcastTemplate: broadcastTemplate,
		},
		ttclient.New(),
		queue,
		notifier,
		registry,
		voice.WithLogger(logger),
		voice.WithMetrics(voiceMetrics),
	)

	regSvc := service.NewRegistrationService(queue, registrations, bans, cfg).WithRegistrationLogger(logger)
	adminSvc := service.NewAdminService(queue, registrations, bans).WithAdminLogger(logger)
	cleanup := service.NewCleanupTask(cfg.Files, pending, logger)

	bot := tgbot.New(botAPI, cfg, bundle, regSvc, adminSvc, tokens, tgbot.WithLogger(logger))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if runErr := worker.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Error("voice worker error", slog.String("error", runErr.Error()))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if runErr := bot.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Error("telegram bot error", slog.String("error", runErr.Error()))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if runErr := cleanup.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Error("cleanup task error", slog.String("error", runErr.Error()))
		}
	}()

	if cfg.Web.Enabled {
		server, serverErr := setupWebServer(cfg, bundle, regSvc, tokens, mongoClient, redisClient, logger)
		if serverErr != nil {
			logger.Error("failed to set up web server", slog.String("error", serverErr.Error()))
			os.Exit(1)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if runErr := server.Start(); runErr != nil {
				logger.Error("web server error", slog.String("error", runErr.Error()))
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-ctx.Done()
			if shutdownErr := server.Shutdown(context.Background()); shutdownErr != nil {
				logger.Error("web server shutdown error", slog.String("error", shutdownErr.Error()))
			}
		}()
	}

	wg.Wait()

	logger.Info("registration bot shutdown complete")
}

// setupWebServer wires the registration site, health and metrics endpoints.
func setupWebServer(
	cfg *config.Config,
	bundle *i18n.Bundle,
	regSvc *service.RegistrationService,
	tokens *tokenstore.Store,
	mongoClient *mongo.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
) (*httpserver.Server, error) {
	server := httpserver.NewServer(cfg.Web, logger)

	handler, err := web.NewHandler(cfg, bundle, regSvc, tokens)
	if err != nil {
		return nil, err
	}
	handler.Register(server.Root())

	server.RegisterHealthEndpoints(func(ctx context.Context) bool {
		pingCtx, pingCancel := context.WithTimeout(ctx, readyPingTimeout)
		defer pingCancel()
		if pingErr := mongoClient.Ping(pingCtx, nil); pingErr != nil {
			return false
		}
		return redisClient.Ping(pingCtx).Err() == nil
	})
	server.RegisterMetricsEndpoint()

	return server, nil
}

// setupLogger creates and configures the structured logger based on configuration.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}

	var handler slog.Handler
	switch cfg.Log.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// connectMongoDB establishes a connection to MongoDB.
func connectMongoDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mongo.Client, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.MongoDB.URI).
		SetMaxPoolSize(cfg.MongoDB.MaxPoolSize)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.MongoDB.Timeout)
	defer pingCancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		return nil, pingErr
	}

	logger.InfoContext(ctx, "connected to MongoDB",
		slog.String("database", cfg.MongoDB.Database),
	)

	return client, nil
}

// handleShutdown listens for OS signals and cancels the context.
func handleShutdown(cancel context.CancelFunc, logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigChan
	logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	cancel()
}
