package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mimisupply/delivery/internal/account"
	"github.com/mimisupply/delivery/internal/driverdir"
	"github.com/mimisupply/delivery/internal/logger"
	"github.com/mimisupply/delivery/internal/matching"
	"github.com/mimisupply/delivery/internal/notify"
	"github.com/mimisupply/delivery/internal/order"
	"github.com/mimisupply/delivery/internal/payment"
	"github.com/mimisupply/delivery/internal/pricing"
	"github.com/mimisupply/delivery/internal/router"
	storage "github.com/mimisupply/delivery/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		panic(err)
	}
}

func run() error {
	cfg, err := NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewPostgresStorage(cfg.DatabaseConnection)
	if err != nil {
		log.Fatalf("Failed to initialize Postgres storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Warning: failed to close storage: %v", err)
		}
	}()

	directory := driverdir.NewRedisDirectory(cfg.RedisAddress)
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := directory.Ping(pingCtx); err != nil {
		log.Fatalf("Unable to ping driver directory: %v", err)
	}
	defer func() {
		if err := directory.Close(); err != nil {
			log.Printf("Warning: failed to close driver directory: %v", err)
		}
	}()

	httpClient := &http.Client{
		Timeout: 10 * time.Second,
	}
	payments := &payment.HTTPGateway{
		Client:  httpClient,
		Address: cfg.PaymentAddress,
	}
	notifier := &notify.HTTPNotifier{
		Client:  httpClient,
		Address: cfg.NotifyAddress,
	}

	pricingCfg := pricing.DefaultConfig()
	pricingCfg.BaseDeliveryFee = cfg.BaseDeliveryFee
	pricingCfg.PerKmRate = cfg.PerKmRate
	pricingCfg.FreeDeliveryThreshold = cfg.FreeDeliveryThreshold
	pricingCfg.PlatformRate = cfg.PlatformRate
	pricingCfg.MinPlatformFee = cfg.MinPlatformFee
	pricingCfg.LargeOrderThreshold = cfg.LargeOrderThreshold
	pricingCfg.LargeOrderFlatFee = cfg.LargeOrderFlatFee
	pricingCfg.TipSuggestionRate = cfg.TipSuggestionRate
	pricingCfg.DefaultTaxRate = cfg.DefaultTaxRate
	calc := pricing.NewCalculator(pricingCfg)

	accountSvc := account.NewService(store, []byte(cfg.JWTSecret), cfg.JWTTTL)
	accountHandler := account.NewHandler(accountSvc)

	orderSvc := order.NewService(store, calc, payments, notifier)
	orderHandler := order.NewHandler(orderSvc)

	matcher := matching.NewService(directory)
	driverHandler := driverdir.NewHandler(directory)

	r := router.NewRouter(accountHandler, orderHandler, driverHandler, []byte(cfg.JWTSecret), store)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		order.AssignmentLoop(
			ctx,
			matcher,
			directory,
			orderSvc,
			cfg.AssignWorkers,
			cfg.AssignInterval,
			order.AssignConfig{
				SearchRadiusKm:   cfg.SearchRadiusKm,
				MaxDistanceKm:    cfg.MaxDistanceKm,
				UseLoadBalancing: cfg.UseLoadBalancing,
			},
		)
	}()

	go func() {
		order.ReconcileRefundsLoop(ctx, orderSvc, cfg.RefundInterval)
	}()

	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
	return nil
}
