package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"postpilot/domain/model"
	"postpilot/domain/repository"
	"postpilot/infrastructure/cache"
	"postpilot/infrastructure/clients/facebook"
	"postpilot/infrastructure/clients/linkedin"
	"postpilot/infrastructure/clients/reddit"
	"postpilot/infrastructure/clients/twitter"
	"postpilot/infrastructure/configuration"
	"postpilot/infrastructure/logger"
	"postpilot/infrastructure/persistence"
	"postpilot/infrastructure/pubsub"
	"postpilot/infrastructure/servicebus"
	"postpilot/infrastructure/vault"
	httpHandler "postpilot/interfaces/http"
	"postpilot/server"
	"postpilot/usecase"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")
	app := configuration.C.App
	queueCfg := configuration.C.Queue

	psqlDb, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot connect to PostgreSQL")
		os.Exit(1)
	}
	if err := persistence.EnsurePipelineSchema(psqlDb); err != nil {
		logger.GetLogger().WithField("error", err).Error("Failed ensuring pipeline schema")
		os.Exit(1)
	}
	logger.GetLogger().Info("PostgreSQL connected")

	tokenVault, err := vault.New(configuration.C.Vault.Secret)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Token vault initialization failed - set TOKEN_VAULT_SECRET or SECRET_KEY")
		os.Exit(1)
	}

	mongoDb, err := persistence.NewMongoDb(
		configuration.C.Database.Mongo.Host,
		configuration.C.Database.Mongo.Port,
		configuration.C.Database.Mongo.User,
		configuration.C.Database.Mongo.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - continuing without trend composition")
		mongoDb = nil
	} else if err := mongoDb.Ping(ctx, nil); err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB ping failed - continuing without trend composition")
		mongoDb = nil
	}

	// PKCE verifiers live in redis when available so multiple instances share
	// the state space; otherwise the in-process store covers a single node.
	stateStore := cache.NewMemoryStateStore()
	redisClient, err := cache.NewCache(
		ctx,
		fmt.Sprintf("%s:%s", configuration.C.RedisClient.Host, configuration.C.RedisClient.Port),
		configuration.C.RedisClient.Username,
		configuration.C.RedisClient.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - using in-memory state store")
	} else {
		stateStore = cache.NewRedisStateStore(redisClient)
		logger.GetLogger().Info("Redis client initialized successfully")
	}

	connRepo := persistence.NewConnectionRepository(psqlDb)
	postRepo := persistence.NewPostRepository(psqlDb)
	postingQueueRepo := persistence.NewPostingQueueRepository(psqlDb)
	refreshQueueRepo := persistence.NewTokenRefreshRepository(psqlDb)

	var trendRepo repository.ITrend
	if mongoDb != nil {
		trendRepo = persistence.NewTrendRepository(mongoDb, configuration.C.Database.Mongo.Name)
	}

	fbClient := facebook.NewClient()
	publishers := map[string]repository.IPublisher{
		"facebook": fbClient,
		"twitter":  twitter.NewClient(),
		"linkedin": linkedin.NewClient(),
		"reddit":   reddit.NewClient(),
	}

	oauthUsecase := usecase.NewOAuthUsecase(connRepo, tokenVault, stateStore, app.SecretKey, fbClient)
	refreshBuffer := time.Duration(queueCfg.RefreshBufferMinutes) * time.Minute
	refresher := usecase.NewRefreshScheduler(connRepo, refreshQueueRepo, oauthUsecase, refreshBuffer, queueCfg.BatchSize, queueCfg.MaxRetries)
	publishQueue := usecase.NewPublishQueue(
		postRepo, connRepo, postingQueueRepo, refresher, tokenVault, publishers,
		queueCfg.BatchSize, queueCfg.MaxRetries,
		time.Duration(queueCfg.JobPauseSeconds)*time.Second,
	)

	// Optional downstream notifiers; the pipeline runs fine without either.
	var postEvents pubsub.IPostEventPubSub
	if configuration.C.Pubsub.ProjectID != "" {
		pubSubClient, err := pubsub.NewPubSub(ctx, configuration.C.Pubsub.ProjectID)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Pub/Sub not available - continuing without it")
		} else {
			postEvents = pubsub.NewPostEventPubSub(pubSubClient, configuration.C.Pubsub.Topic)
		}
	}
	var busEvents servicebus.IPostEventServiceBus
	if configuration.C.ServiceBus.Namespace != "" {
		serviceBusClient, err := servicebus.NewServiceBus(configuration.C.ServiceBus.Namespace)
		if err != nil {
			logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - continuing without it")
		} else {
			busEvents = servicebus.NewPostEventServiceBus(serviceBusClient, configuration.C.ServiceBus.Queue)
		}
	}
	if postEvents != nil || busEvents != nil {
		publishQueue.WithNotifier(func(ctx context.Context, event model.PostEvent) {
			if postEvents != nil {
				if _, err := postEvents.PublishStatus(ctx, event); err != nil {
					logger.GetLogger().WithField("error", err).Warn("Pub/Sub post event publish failed")
				}
			}
			if busEvents != nil {
				if err := busEvents.SendStatus(ctx, event); err != nil {
					logger.GetLogger().WithField("error", err).Warn("Service Bus post event send failed")
				}
			}
		})
	}

	postUsecase := usecase.NewPostUsecase(postRepo, trendRepo, publishQueue)

	connectionHandler := httpHandler.NewConnectionHandler(oauthUsecase, connRepo)
	postHandler := httpHandler.NewPostHandler(postUsecase, publishQueue)
	router := server.InitiateRouter(connectionHandler, postHandler, app.SecretKey)

	// Posting queue drain loop.
	publishInterval := time.Duration(queueCfg.PublishIntervalSeconds) * time.Second
	g.Go(func() error {
		ticker := time.NewTicker(publishInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				drainCtx, cancelDrain := context.WithTimeout(ctx, publishInterval)
				if err := publishQueue.Drain(drainCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.GetLogger().WithField("error", err).Error("Posting queue drain failed")
				}
				cancelDrain()
			}
		}
	})

	// Token refresh sweep loop.
	refreshInterval := time.Duration(queueCfg.RefreshIntervalSeconds) * time.Second
	g.Go(func() error {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				sweepCtx, cancelSweep := context.WithTimeout(ctx, refreshInterval)
				if err := refresher.Sweep(sweepCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.GetLogger().WithField("error", err).Error("Token refresh sweep failed")
				}
				cancelSweep()
			}
		}
	})

	logger.GetLogger().WithField("port", app.Port).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", app.Port),
			Handler: router,
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}
