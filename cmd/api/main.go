package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockpanel/panel/internal/api"
	"github.com/blockpanel/panel/internal/docker"
	"github.com/blockpanel/panel/internal/middleware"
	"github.com/blockpanel/panel/internal/service"
	"github.com/blockpanel/panel/internal/store"
	"github.com/blockpanel/panel/pkg/config"
	"github.com/blockpanel/panel/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	appLogger := logger.NewLogger(logger.ParseLevel(cfg.LogLevel), os.Stdout, cfg.LogJSON)
	logger.SetDefault(appLogger)

	logger.Info("Starting application", map[string]interface{}{
		"app":   cfg.AppName,
		"debug": cfg.Debug,
		"port":  cfg.Port,
	})

	// Initialize config store (runs the first-boot bootstrap if needed)
	st, err := store.New(cfg.ConfigDir, cfg.ComposeFilePath)
	if err != nil {
		logger.Fatal("Failed to initialize config store", err, nil)
	}
	logger.Info("Config store initialized", map[string]interface{}{
		"manifest": cfg.ComposeFilePath,
	})

	// Initialize container runtime
	runtime, err := docker.NewRuntime(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize Docker runtime", err, nil)
	}
	defer runtime.Close()
	logger.Info("Docker runtime initialized", nil)

	// Initialize services
	consoleService := service.NewConsoleService()
	lifecycleService := service.NewLifecycleService(st, runtime, consoleService, cfg)

	authService, err := service.NewAuthService(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize auth service", err, nil)
	}
	middleware.SetAuthService(authService)

	// Initialize handlers
	authHandler := api.NewAuthHandler(authService)
	handler := api.NewHandler(st, lifecycleService)
	consoleHandler := api.NewConsoleHandler(lifecycleService, cfg.FrontendOrigin)

	// Setup router
	router := api.SetupRouter(authHandler, handler, consoleHandler, lifecycleService, cfg)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down gracefully...", nil)

		// Leave game servers running; the panel restarting must not take
		// player-facing containers down with it
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Forced shutdown", err, nil)
		}
	}()

	logger.Info("Server starting", map[string]interface{}{
		"address":      addr,
		"api_endpoint": fmt.Sprintf("http://localhost%s/api", addr),
		"health_check": fmt.Sprintf("http://localhost%s/health", addr),
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Failed to start server", err, nil)
	}
	logger.Info("Shutdown complete", nil)
}
