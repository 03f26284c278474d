package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/article-index/app/api"
	"github.com/lysyi3m/article-index/app/article"
	"github.com/lysyi3m/article-index/app/cfg"
	"github.com/lysyi3m/article-index/app/database"
	"github.com/lysyi3m/article-index/app/feed"
	"github.com/lysyi3m/article-index/app/network"
	"github.com/lysyi3m/article-index/app/notify"
	"github.com/lysyi3m/article-index/app/tasks"
	"github.com/lysyi3m/article-index/app/urlkey"
	"github.com/lysyi3m/article-index/app/wiki"
)

func main() {
	// Load configuration from environment variables and command-line flags
	appConfig, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appConfig.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Article Index server", "version", appConfig.Version)

	// Database connection
	db, err := database.NewConnection(appConfig.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appConfig.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appConfig.DBPath, "schema_version", version, "dirty", dirty)

	index := article.NewIndex(database.NewArticleRepository(db), urlkey.NewNormalizer())

	// Network request notifications
	center := notify.NewCenter(0)
	if _, err := center.Subscribe(network.NetworkRequestBegan, func(name string, payload map[string]any) {
		if req, ok := payload[network.RequestPayloadKey].(*http.Request); ok {
			slog.Debug("Network request began", "method", req.Method, "url", req.URL.String())
		}
	}); err != nil {
		slog.Error("Failed to subscribe to network notifications", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: time.Duration(appConfig.HTTPTimeout) * time.Second}
	wikiClient := wiki.NewClient(httpClient, appConfig.UserAgent, center)

	// Load source configurations
	sourceCache := feed.NewSourceCache(appConfig.SourcesDir)
	if err := sourceCache.Run(); err != nil {
		slog.Error("Failed to load sources", "dir", appConfig.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Sources loaded", "count", sourceCache.GetSourceCount(), "dir", appConfig.SourcesDir)

	// Initialize and start scheduler
	scheduler := tasks.NewScheduler(sourceCache, index, wikiClient, feed.NewParser(), feed.NewFilterer(),
		time.Duration(appConfig.SchedulerInterval)*time.Second, appConfig.WorkerCount)
	scheduler.Start()

	// Initialize HTTP server
	apiHandler := api.NewHandler(index, wikiClient, sourceCache, scheduler)
	server := api.NewServer(apiHandler, appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	scheduler.Stop()
	slog.Info("Background scheduler stopped")

	if err := center.Close(shutdownCtx); err != nil {
		slog.Error("Notification center shutdown error", "error", err)
	}
	if dropped := center.Dropped(); dropped > 0 {
		slog.Warn("Network notifications dropped", "count", dropped)
	}

	slog.Info("Article Index server shutdown complete")
}
