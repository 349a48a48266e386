/*
main.go - Application entry point

PURPOSE:
  Initializes and runs the bucket ledger daemon and its maintenance
  commands. Handles configuration, dependency injection, and graceful
  shutdown.

COMMANDS:
  serve    Start the HTTP API server
  seed     Load a YAML fixture file through the engine
  import   Import a statement CSV into a bucket
  resync   Recompute balances for one bucket or all of them

CONFIGURATION:
  Hierarchical: defaults < config.yaml < LEDGER_-prefixed environment
  variables (a .env file is honored). See config/config.go.

GRACEFUL SHUTDOWN (serve):
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # Serve with file database
  ledgerd serve

  # Serve in-memory (demo)
  LEDGER_STORAGE_DRIVER=memory ledgerd serve

  # Seed a demo fixture
  ledgerd seed ./fixtures/demo.yaml

  # Import a bank statement
  ledgerd import --bucket <id> ./extrato.csv

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration loading
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/patrimonio/bucket-engine/api"
	"github.com/patrimonio/bucket-engine/config"
	"github.com/patrimonio/bucket-engine/ledger"
	memstore "github.com/patrimonio/bucket-engine/ledger/store"
	"github.com/patrimonio/bucket-engine/seed"
	"github.com/patrimonio/bucket-engine/statement"
	"github.com/patrimonio/bucket-engine/store/postgres"
	"github.com/patrimonio/bucket-engine/store/sqlite"
)

var (
	cfg *config.Config
	log = logrus.New()

	rootCmd = &cobra.Command{
		Use:   "ledgerd",
		Short: "Capital bucket ledger daemon",
		Long: `ledgerd tracks capital allocated across named buckets: deposits,
withdrawals, transfers, yield and inter-bucket loans with interest,
with balances re-derived from the transaction log.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			log = config.NewLogger(cfg)
			statement.SetLogger(log)
			return nil
		},
	}
)

// openStore builds the configured backend. Callers must invoke the
// returned close function.
func openStore(ctx context.Context) (ledger.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "memory":
		return memstore.NewMemory(), func() {}, nil
	case "sqlite":
		s, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	case "postgres":
		s, err := postgres.New(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func newEngine(store ledger.Store) *ledger.Engine {
	engine := ledger.NewEngine(store)
	engine.Log = log
	return engine
}

// =============================================================================
// SERVE
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer closeStore()

		handler := api.NewHandler(newEngine(store), cfg.ExchangeRate())
		server := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      api.NewRouter(handler),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			log.WithField("addr", cfg.Server.Addr).Info("server starting")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Fatal("server failed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		log.Info("server stopped")
		return nil
	},
}

// =============================================================================
// SEED
// =============================================================================

var seedCmd = &cobra.Command{
	Use:   "seed <fixture.yaml>",
	Short: "Load a YAML fixture through the engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer closeStore()

		loader := seed.NewLoader(newEngine(store), log)
		return loader.LoadFile(ctx, args[0])
	},
}

// =============================================================================
// IMPORT
// =============================================================================

var importBucketID string

var importCmd = &cobra.Command{
	Use:   "import <statement.csv>",
	Short: "Import a bank statement CSV into a bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if importBucketID == "" {
			return fmt.Errorf("--bucket is required")
		}

		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer closeStore()

		transactions, err := statement.ParseFile(args[0])
		if err != nil {
			return err
		}

		engine := newEngine(store)
		imported, err := statement.Import(ctx, engine, ledger.BucketID(importBucketID), transactions)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"parsed":   len(transactions),
			"imported": imported,
		}).Info("statement import finished")
		return nil
	},
}

// =============================================================================
// RESYNC
// =============================================================================

var resyncCmd = &cobra.Command{
	Use:   "resync [bucket-id]",
	Short: "Recompute stored balances from the transaction log",
	Long: `Replays each bucket's entries, repairs drifted per-row running
balances and rewrites the bucket's current balance. With no argument,
every bucket is resynchronized.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer closeStore()

		engine := newEngine(store)

		if len(args) == 1 {
			return engine.ResyncBucket(ctx, ledger.BucketID(args[0]))
		}

		buckets, err := store.ListBuckets(ctx)
		if err != nil {
			return err
		}
		for _, bucket := range buckets {
			if err := engine.ResyncBucket(ctx, bucket.ID); err != nil {
				return fmt.Errorf("bucket %s: %w", bucket.ID, err)
			}
		}
		log.WithField("buckets", len(buckets)).Info("resync finished")
		return nil
	},
}

func main() {
	importCmd.Flags().StringVar(&importBucketID, "bucket", "", "destination bucket id")

	rootCmd.AddCommand(serveCmd, seedCmd, importCmd, resyncCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
