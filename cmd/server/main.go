// Package main is the entry point for the raster overlay server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gt-overlay/server/internal/api"
	"github.com/gt-overlay/server/internal/catalog"
	"github.com/gt-overlay/server/internal/config"
	"github.com/gt-overlay/server/internal/render"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/server.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting overlay server on port %d", cfg.Server.Port)

	// Initialize the catalog backend
	backend, err := openBackend(cfg.Catalog)
	if err != nil {
		log.Fatalf("Failed to initialize catalog backend %q: %v", cfg.Catalog.Backend, err)
	}
	cat, err := catalog.Open(backend)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer cat.Close()

	log.Printf("Catalog backend %q rooted at %s", cfg.Catalog.Backend, cfg.Catalog.Root)

	// Initialize the PNG renderer (shared across all requests)
	renderer := render.New()

	// Set up HTTP router
	router := api.NewRouter(cat, renderer, cfg.Analytics.GridSize, cfg.Render.DefaultColorRamp, cfg.Server.CORSOrigins)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func openBackend(cfg config.CatalogConfig) (catalog.Backend, error) {
	switch cfg.Backend {
	case "tiledb":
		return catalog.NewTileDBBackend(cfg.Root)
	default:
		return catalog.NewFSBackend(cfg.Root)
	}
}
