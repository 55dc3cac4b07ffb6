package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"timetrack-backend/internal/auth"
	"timetrack-backend/internal/config"
	"timetrack-backend/internal/server"
	"timetrack-backend/internal/service"
	"timetrack-backend/internal/storage"

	_ "github.com/joho/godotenv/autoload"
)

func gracefulShutdown(apiServer *http.Server, store storage.Store, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Println("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The server has 5 seconds to finish the requests it is currently
	// handling.
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	if err := store.Close(); err != nil {
		log.Printf("Error closing store: %v", err)
	}

	log.Println("Server exiting")
	done <- true
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case "postgres":
		return storage.OpenPostgresStore(cfg.PostgresDSN())
	default:
		return storage.OpenFileStore(cfg.DataFile)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StorageDriver, err)
	}

	sessions := auth.NewSessions(cfg.SessionSecret)
	userService := service.NewUserService(store)
	projectService := service.NewProjectService(store)
	todoService := service.NewTodoService(store)

	apiServer := server.NewServer(cfg, userService, projectService, todoService, sessions, store)

	done := make(chan bool, 1)
	go gracefulShutdown(apiServer, store, done)

	log.Printf("Starting server on %s (storage driver: %s)", apiServer.Addr, cfg.StorageDriver)
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server ListenAndServe error: %v", err)
	}

	<-done
	log.Println("Graceful shutdown complete.")
}
