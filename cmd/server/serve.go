package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ignite/membership-api/internal/api"
	"github.com/ignite/membership-api/internal/esp"
	"github.com/ignite/membership-api/internal/notify"
	"github.com/ignite/membership-api/internal/ratelimit"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Membership API (cmd/server)                               ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	cfg, err := loadConfig(configPath, true)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender, err := esp.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create mail sender: %w", err)
	}
	log.Printf("Mail provider: %s", sender.Name())

	dispatcher := notify.NewDispatcher(sender, notify.OptionsFromConfig(cfg))
	handlers := api.NewHandlersFromConfig(cfg, dispatcher)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Disabled {
		log.Println("Rate limiting disabled")
	} else {
		limiter = ratelimit.New(cfg.RateLimit)
		defer limiter.Close()
		log.Printf("Rate limiting: %d requests per %s per client", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window())
	}

	server := api.NewServer(cfg.Server, handlers, limiter)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		addr := cfg.Server.Addr()
		log.Printf("Starting server on %s", addr)
		log.Printf("From Email: %s", cfg.Mail.FromEmail)
		log.Printf("Admin Email: %s", cfg.Mail.AdminEmail)
		log.Printf("Environment: %s", cfg.Server.Environment)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-done:
		log.Println("Shutting down...")
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	return nil
}
