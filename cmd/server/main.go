package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/sharefetch-go/api"
	"github.com/yourusername/sharefetch-go/internal/app"
	"github.com/yourusername/sharefetch-go/internal/domain"
	"github.com/yourusername/sharefetch-go/internal/infrastructure"
	"github.com/yourusername/sharefetch-go/pkg/logger"
)

var configPath = flag.String("config", "", "Config file path")

func main() {
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting sharefetch server",
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port))

	sess, err := infrastructure.NewSessionContext(config.Fetch, config.Batch, config.Browser, log)
	if err != nil {
		log.Fatal("Failed to initialize session", zap.Error(err))
	}
	defer sess.Close()

	var manifest domain.ManifestStore
	store, err := infrastructure.NewSQLiteManifestStore(config.Batch.ManifestPath)
	if err != nil {
		log.Warn("Manifest unavailable, resume disabled", zap.Error(err))
	} else {
		manifest = store
		defer store.Close()
	}

	registry := infrastructure.NewRegistry(sess, log)
	engine := app.NewEngine(config, sess, registry, manifest, log)

	router := api.SetupRouter(engine, registry, log)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
