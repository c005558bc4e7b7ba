package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/carsi-commerce/api/internal/handlers"
	"github.com/carsi-commerce/api/internal/payments"
	"github.com/carsi-commerce/api/internal/platform/auth"
	"github.com/carsi-commerce/api/internal/platform/config"
	pfirestore "github.com/carsi-commerce/api/internal/platform/firestore"
	"github.com/carsi-commerce/api/internal/platform/idempotency"
	"github.com/carsi-commerce/api/internal/platform/jobs"
	"github.com/carsi-commerce/api/internal/platform/observability"
	"github.com/carsi-commerce/api/internal/platform/secrets"
	platformstorage "github.com/carsi-commerce/api/internal/platform/storage"
	"github.com/carsi-commerce/api/internal/repositories"
	firestoreRepo "github.com/carsi-commerce/api/internal/repositories/firestore"
	"github.com/carsi-commerce/api/internal/services"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx, secrets.WithLogger(logger.Named("secrets")))
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := registry.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerDeps{
		Secret: cfg.Auth.JWTSecret,
		TTL:    cfg.Auth.TokenTTL,
		Clock:  time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise token issuer", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(tokenIssuer)

	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey: cfg.PSP.StripeAPIKey,
		Logger: zapEventLogger(logger.Named("stripe")),
		Clock:  time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}

	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Provider:       stripeProvider,
		Currency:       cfg.PSP.Currency,
		GatewayTimeout: cfg.PSP.GatewayTimeout,
		Logger:         zapEventLogger(logger.Named("payments")),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}

	catalogService, err := services.NewCatalogService(services.CatalogServiceDeps{
		Repository: registry.Products(),
		Categories: registry.Categories(),
		Clock:      time.Now,
		Logger:     zapEventLogger(logger.Named("catalog")),
	})
	if err != nil {
		logger.Fatal("failed to initialise catalog service", zap.Error(err))
	}

	categoryService, err := services.NewCategoryService(services.CategoryServiceDeps{
		Repository: registry.Categories(),
		Clock:      time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise category service", zap.Error(err))
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository: registry.Carts(),
		Products:   registry.Products(),
		Clock:      time.Now,
		Logger:     zapEventLogger(logger.Named("cart")),
	})
	if err != nil {
		logger.Fatal("failed to initialise cart service", zap.Error(err))
	}

	orderEvents, pubsubClient := newOrderEventPublisher(ctx, logger, cfg)
	if pubsubClient != nil {
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logger.Warn("pubsub close error", zap.Error(err))
			}
		}()
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Repository: registry.Orders(),
		Products:   registry.Products(),
		Counters:   registry.Counters(),
		Payments:   paymentService,
		Carts:      cartService,
		Events:     orderEvents,
		Clock:      time.Now,
		Logger:     zapEventLogger(logger.Named("orders")),
	})
	if err != nil {
		logger.Fatal("failed to initialise order service", zap.Error(err))
	}

	userService, err := services.NewUserService(services.UserServiceDeps{
		Repository: registry.Users(),
		Tokens:     tokenIssuer,
		Clock:      time.Now,
		Logger:     zapEventLogger(logger.Named("users")),
	})
	if err != nil {
		logger.Fatal("failed to initialise user service", zap.Error(err))
	}

	dashboardService, err := services.NewDashboardService(services.DashboardServiceDeps{
		Orders:   registry.Orders(),
		Products: registry.Products(),
		Users:    registry.Users(),
		Clock:    time.Now,
		Logger:   zapEventLogger(logger.Named("dashboard")),
	})
	if err != nil {
		logger.Fatal("failed to initialise dashboard service", zap.Error(err))
	}

	sweeper, err := services.NewPromotionSweeper(services.PromotionSweeperDeps{
		Products: registry.Products(),
		Clock:    time.Now,
		Logger:   zapEventLogger(logger.Named("promotions")),
	})
	if err != nil {
		logger.Fatal("failed to initialise promotion sweeper", zap.Error(err))
	}

	jobsCtx, jobsCancel := context.WithCancel(context.Background())
	var jobsWG sync.WaitGroup
	jobsWG.Add(1)
	go func() {
		defer jobsWG.Done()
		sweeper.Run(jobsCtx, cfg.Catalog.SweepInterval)
	}()

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	if cfg.Idempotency.CleanupInterval > 0 {
		jobsWG.Add(1)
		go func() {
			defer jobsWG.Done()
			cleanupLogger := logger.Named("idempotency")
			ticker := time.NewTicker(cfg.Idempotency.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					runCtx, cancel := context.WithTimeout(jobsCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-jobsCtx.Done():
					return
				}
			}
		}()
	}

	uploadSigner := newUploadSigner(logger, cfg)

	healthHandlers := newHealthHandlers(logger, firestoreClient, fetcher)

	userHandlers := handlers.NewUserHandlers(authenticator, userService)
	productHandlers := handlers.NewProductHandlers(authenticator, catalogService, cartService)
	categoryHandlers := handlers.NewCategoryHandlers(authenticator, categoryService)
	orderHandlers := handlers.NewOrderHandlers(authenticator, orderService, paymentService, idempotencyMiddleware)
	uploadHandlers := handlers.NewUploadHandlers(authenticator, uploadSigner, cfg.Storage.ImagesBucket)
	adminHandlers := handlers.NewAdminHandlers(authenticator, dashboardService)
	webhookHandlers := handlers.NewWebhookHandlers(cfg.PSP.StripeWebhookSecret,
		handlers.WithWebhookLogger(zapEventLogger(logger.Named("webhooks"))),
		handlers.WithWebhookOrderReconciler(orderService))

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(cfg.Firestore.ProjectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(cfg.Firestore.ProjectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithUserRoutes(userHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithCategoryRoutes(categoryHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithUploadRoutes(uploadHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("carsi commerce api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	jobsCancel()
	jobsWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// zapEventLogger adapts a zap logger to the event/field sink the services use.
func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service log", zFields...)
	}
}

// newOrderEventPublisher wires the Pub/Sub order event topic when configured.
// Without a topic the order service simply skips event publication.
func newOrderEventPublisher(ctx context.Context, logger *zap.Logger, cfg config.Config) (services.OrderEventPublisher, *pubsub.Client) {
	topicName := strings.TrimSpace(cfg.Jobs.OrderEventsTopic)
	if topicName == "" {
		logger.Warn("order events topic not configured; order events disabled")
		return nil, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.Firestore.ProjectID)
	if err != nil {
		logger.Warn("failed to initialise pubsub client; order events disabled", zap.Error(err))
		return nil, nil
	}

	publisher, err := jobs.NewPubSubOrderEventPublisher(client.Topic(topicName), time.Now)
	if err != nil {
		logger.Warn("failed to initialise order event publisher; order events disabled", zap.Error(err))
		_ = client.Close()
		return nil, nil
	}
	return publisher, client
}

// newUploadSigner builds the signed URL client when a signer key is present.
// A nil signer leaves /uploads/sign answering 503.
func newUploadSigner(logger *zap.Logger, cfg config.Config) handlers.UploadSigner {
	signerKey := strings.TrimSpace(cfg.Storage.SignerKey)
	if signerKey == "" {
		logger.Warn("storage signer key not configured; upload signing disabled")
		return nil
	}
	signer, err := platformstorage.NewServiceAccountSignerFromJSON([]byte(signerKey))
	if err != nil {
		logger.Warn("failed to parse storage signer key; upload signing disabled", zap.Error(err))
		return nil
	}
	client, err := platformstorage.NewClient(signer)
	if err != nil {
		logger.Warn("failed to initialise signed url client; upload signing disabled", zap.Error(err))
		return nil
	}
	return client
}

func newHealthHandlers(logger *zap.Logger, client *firestore.Client, fetcher *secrets.Fetcher) *handlers.HealthHandlers {
	checks := make([]repositories.DependencyCheck, 0, 2)
	if client != nil {
		c := client
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := c.Collections(ctx)
				_, err := iter.Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			},
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.ResolveSecret(ctx, secretHealthReference)
				if err == nil {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}

	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		logger.Warn("health: dependency checks unavailable", zap.Error(err))
		return handlers.NewHealthHandlers(nil)
	}
	return handlers.NewHealthHandlers(repo)
}
