package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	checkoutApp "github.com/verionlabs/directory-billing/internal/application/checkout"
	provisioningApp "github.com/verionlabs/directory-billing/internal/application/provisioning"
	webhookApp "github.com/verionlabs/directory-billing/internal/application/webhook"
	"github.com/verionlabs/directory-billing/internal/bootstrap"
	"github.com/verionlabs/directory-billing/internal/controller"
	"github.com/verionlabs/directory-billing/internal/processor"
	"github.com/verionlabs/directory-billing/internal/repository/postgres"
	"github.com/verionlabs/directory-billing/internal/webhook"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.New(ctx, "billing-api", "billing")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// --- Repositories ---
	subscriptionRepo := postgres.NewSubscriptionRepository(app.Pool)
	checkoutRepo := postgres.NewCheckoutRepository(app.Pool)
	eventLedger := postgres.NewEventLedger(app.Pool)
	taskRepo := postgres.NewTaskRepository(app.Pool)
	attemptRepo := postgres.NewAttemptRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)

	// --- Application services ---
	verifier := webhook.NewVerifier(app.Config.Webhook.SigningSecret, app.Config.Webhook.Tolerance)
	processorClient := processor.NewMockClient(app.Config.Checkout.ProcessorURL)

	handleEventUC := webhookApp.NewHandleEventUseCase(
		verifier, eventLedger, checkoutRepo, subscriptionRepo, taskRepo, txManager)
	startCheckoutUC := checkoutApp.NewStartCheckoutUseCase(
		subscriptionRepo, checkoutRepo, processorClient, txManager,
		app.Config.Checkout.Currency, app.Config.Retry.MaxAttempts)
	forceRetryUC := provisioningApp.NewForceRetryUseCase(subscriptionRepo, taskRepo, txManager)

	// --- Build router ---
	router := controller.NewRouter(controller.RouterDeps{
		Pool:             app.Pool,
		RedisClient:      app.Redis,
		SubscriptionRepo: subscriptionRepo,
		AttemptRepo:      attemptRepo,
		HandleEventUC:    handleEventUC,
		StartCheckoutUC:  startCheckoutUC,
		ForceRetryUC:     forceRetryUC,
		Metrics:          app.Metrics,
		Config:           app.Config,
	})

	// --- HTTP server ---
	addr := fmt.Sprintf(":%d", app.Config.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  app.Config.Server.ReadTimeout,
		WriteTimeout: app.Config.Server.WriteTimeout,
		IdleTimeout:  app.Config.Server.IdleTimeout,
	}

	go func() {
		app.Logger.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.Logger.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	app.Logger.Info().Msg("Server exited")
}
