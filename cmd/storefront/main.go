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

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/cart-drawer/internal/config"
	"github.com/fjod/go_cart/cart-drawer/internal/storefront"
)

// requestTimeout bounds each storefront request.
const requestTimeout = 30 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("storefront failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}
	sf := cfg.Storefront

	catalog, err := storefront.LoadCatalog(sf.CatalogFile)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(sf, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	renderer, err := storefront.NewRenderer(catalog, sf.SampleThreshold)
	if err != nil {
		return err
	}
	service := storefront.NewService(store, catalog, logger.Named("service"))
	handler := storefront.NewHandler(service, renderer, logger.Named("http"))

	limiter := storefront.NewRateLimiter(sf.RateLimitRPS, sf.RateLimitBurst)
	defer limiter.Close()

	srv := &http.Server{
		Addr:         ":" + sf.HTTPPort,
		Handler:      storefront.NewRouter(handler, cfg.Engine.Routes, limiter, requestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("storefront starting", zap.String("addr", srv.Addr), zap.String("store", sf.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), sf.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}

func openStore(sf config.Storefront, logger *zap.Logger) (storefront.Store, func(), error) {
	switch sf.Store {
	case "memory", "":
		mem := storefront.NewMemoryStore(sf.CartTTL)
		return mem, func() { mem.Close() }, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     sf.RedisAddr,
			Password: sf.RedisPassword,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis %s: %w", sf.RedisAddr, err)
		}
		logger.Info("connected to redis", zap.String("addr", sf.RedisAddr))
		return storefront.NewRedisStore(client, sf.CartTTL), func() { client.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown cart store %q", sf.Store)
}
