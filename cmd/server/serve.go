package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/court-engine/api"
	"github.com/warp/court-engine/config"
	"github.com/warp/court-engine/court"
	"github.com/warp/court-engine/identity"
	"github.com/warp/court-engine/notify"
	"github.com/warp/court-engine/store/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().String("addr", "", "HTTP listen address (overrides http_addr)")
		cmd.Flags().String("db", "", `SQLite database path, ":memory:" for in-memory (overrides db_path)`)
		cmd.Flags().Bool("scenarios", false, "Mount the demo scenario endpoints")
		cmd.Flags().String("scenario", "", "Reset the database and load a demo scenario before serving")
	}
}

// applyServeFlags copies explicitly set flags over cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.HTTPAddr, _ = flags.GetString("addr")
	}
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("scenarios") {
		cfg.Scenarios, _ = flags.GetBool("scenarios")
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, &cfg)
	scenario, _ := cmd.Flags().GetString("scenario")
	if scenario != "" {
		cfg.Scenarios = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	// Initialize store
	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// Event publishing
	publisher, closePublisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	// Initialize handler
	tokens := identity.NewTokens(cfg.JWTSecret, cfg.TokenTTL.Duration)
	handler := api.NewHandler(store, identity.NewAuthenticator(tokens, store), api.NewMetrics(),
		court.WithPublisher(publisher))

	if scenario != "" {
		if err := handler.LoadScenarioByID(context.Background(), scenario); err != nil {
			return fmt.Errorf("load scenario %q: %w", scenario, err)
		}
		log.Printf("Loaded scenario %q (password %q)", scenario, api.DemoPassword)
	}

	// Ledger auditor
	auditor := api.NewLedgerAuditor(handler)
	auditor.Enabled = cfg.Audit.Enabled
	auditor.CheckInterval = cfg.Audit.Interval.Duration
	handler.Auditor = auditor
	auditor.Start()
	defer auditor.Stop()

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		Scenarios:   cfg.Scenarios,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s (db %s)", cfg.HTTPAddr, cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// openStore opens (and migrates) the SQLite database, creating its
// directory when needed.
func openStore(path string) (*sqlite.Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// newPublisher logs every event and, when an AMQP URL is configured, also
// sends it to the broker.
func newPublisher(cfg config.Config) (court.Publisher, func(), error) {
	if cfg.AMQP.URL == "" {
		return notify.LogPublisher{}, func() {}, nil
	}
	amqp, err := notify.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to broker: %w", err)
	}
	log.Printf("Publishing events to exchange %q", cfg.AMQP.Exchange)
	return notify.Multi{notify.LogPublisher{}, amqp}, func() { amqp.Close() }, nil
}
