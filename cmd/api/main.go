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

	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/westroxburyframing/ops-api/internal/email"
	"github.com/westroxburyframing/ops-api/internal/handlers"
	"github.com/westroxburyframing/ops-api/internal/platform/config"
	pfirestore "github.com/westroxburyframing/ops-api/internal/platform/firestore"
	"github.com/westroxburyframing/ops-api/internal/platform/idempotency"
	"github.com/westroxburyframing/ops-api/internal/platform/observability"
	firestoreRepo "github.com/westroxburyframing/ops-api/internal/repositories/firestore"
	"github.com/westroxburyframing/ops-api/internal/services"
	"github.com/westroxburyframing/ops-api/internal/square"
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

	logger := baseLogger.Named("ops-api")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	if cfg.Square.WebhookSignatureKey == "" {
		logger.Warn("webhook signature key is not configured; event verification is disabled")
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		if err := firestoreProvider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	orderRepo, err := firestoreRepo.NewOrderRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise order repository", zap.Error(err))
	}
	activityRepo, err := firestoreRepo.NewActivityRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise activity repository", zap.Error(err))
	}

	squareLogger := logger.Named("square")
	squareClient, err := square.NewClient(square.Config{
		AccessToken: cfg.Square.AccessToken,
		BaseURL:     cfg.Square.BaseURL,
		Version:     cfg.Square.Version,
		LocationID:  cfg.Square.LocationID,
		Logger: func(ctx context.Context, event string, fields map[string]any) {
			zFields := make([]zap.Field, 0, len(fields)+1)
			zFields = append(zFields, zap.String("event", event))
			for k, v := range fields {
				zFields = append(zFields, zap.Any(k, v))
			}
			squareLogger.Debug("square log", zFields...)
		},
	})
	if err != nil {
		logger.Fatal("failed to initialise square client", zap.Error(err))
	}

	notifier := email.NewPostmarkSender(cfg.Email, logger.Named("email"))

	invoiceService, err := services.NewInvoiceService(services.InvoiceServiceDeps{
		Gateway:    squareClient,
		Orders:     orderRepo,
		Activities: activityRepo,
		Logger:     logger.Named("invoices"),
	})
	if err != nil {
		logger.Fatal("failed to initialise invoice service", zap.Error(err))
	}
	reconcileService, err := services.NewReconcileService(services.ReconcileServiceDeps{
		Gateway:    squareClient,
		Orders:     orderRepo,
		Activities: activityRepo,
		Logger:     logger.Named("reconcile"),
	})
	if err != nil {
		logger.Fatal("failed to initialise reconcile service", zap.Error(err))
	}
	refundService, err := services.NewRefundService(services.RefundServiceDeps{
		Gateway:    squareClient,
		Orders:     orderRepo,
		Activities: activityRepo,
		Logger:     logger.Named("refunds"),
	})
	if err != nil {
		logger.Fatal("failed to initialise refund service", zap.Error(err))
	}
	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Gateway:    squareClient,
		Orders:     orderRepo,
		Activities: activityRepo,
		Logger:     logger.Named("payments"),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}
	statusService, err := services.NewStatusService(services.StatusServiceDeps{
		Orders:     orderRepo,
		Activities: activityRepo,
		Notifier:   notifier,
		Logger:     logger.Named("statuses"),
	})
	if err != nil {
		logger.Fatal("failed to initialise status service", zap.Error(err))
	}
	webhookService, err := services.NewWebhookService(services.WebhookServiceDeps{
		Gateway:    squareClient,
		Orders:     orderRepo,
		Activities: activityRepo,
		Notifier:   notifier,
		Logger:     logger.Named("webhooks"),
	})
	if err != nil {
		logger.Fatal("failed to initialise webhook service", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	orderHandlers := handlers.NewOrderHandlers(invoiceService, reconcileService, refundService, paymentService, statusService, activityRepo)
	webhookHandlers := handlers.NewWebhookHandlers(webhookService, cfg.Square.WebhookSignatureKey, cfg.Square.WebhookURL)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadyCheck("firestore", func(ctx context.Context) error {
			iter := firestoreClient.Collections(ctx)
			if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
				return err
			}
			return nil
		}),
	)

	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Firestore.ProjectID),
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithOrderMiddlewares(
			handlers.RateLimitMiddleware(cfg.RateLimits.StaffPerMinute, time.Minute, time.Now),
			idempotencyMiddleware,
		),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
		handlers.WithWebhookMiddlewares(
			handlers.RateLimitMiddleware(cfg.RateLimits.WebhookPerMinute, time.Minute, time.Now),
		),
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
		serverLogger.Info("ops api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
