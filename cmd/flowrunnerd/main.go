// Command flowrunnerd is the processor daemon: it connects to NATS, postgres
// and the auth service, wires up the template engine, context bundler, graph
// walker and task lifecycle, and runs the dispatcher until signaled to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/flowcore/runner/engine/core"
	bundler "github.com/flowcore/runner/engine/context"
	"github.com/flowcore/runner/engine/infra/authclient"
	"github.com/flowcore/runner/engine/infra/cache"
	"github.com/flowcore/runner/engine/infra/nats"
	"github.com/flowcore/runner/engine/infra/plugin"
	"github.com/flowcore/runner/engine/infra/postgres"
	"github.com/flowcore/runner/engine/processor"
	"github.com/flowcore/runner/engine/session"
	"github.com/flowcore/runner/engine/store"
	"github.com/flowcore/runner/pkg/config"
	"github.com/flowcore/runner/pkg/logger"
)

func main() {
	cmd := createRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowrunnerd",
		Short: "flowrunnerd runs the workflow processor daemon",
		Long: `flowrunnerd consumes flow-session messages off NATS JetStream and drives
each one through its workflow graph, one action at a time, persisting task
and flow-session status as it goes.`,
		RunE: runDaemon,
	}
	root.Flags().Bool("debug", false, "Enable debug logging")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("flowrunnerd (dev build)")
		},
	}
	root.AddCommand(versionCmd)
	return root
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("flowrunnerd: load config: %w", err)
	}
	logLevel := cfg.Runtime.LogLevel
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logLevel = logger.DebugLevel
	}
	log := logger.NewLogger(&logger.Config{
		Level:      logLevel,
		Output:     os.Stdout,
		JSON:       cfg.Runtime.LogJSON,
		TimeFormat: "15:04:05",
	})
	ctx := logger.ContextWithLogger(cmd.Context(), log)
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("starting flowrunnerd", "concurrency", cfg.Runtime.Concurrency)

	pgStore, err := postgres.NewStore(ctx, &postgres.Config{
		DSN:             cfg.Postgres.DSN(),
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		ConnectTimeout:  cfg.Postgres.ConnectTimeout,
		HealthCheckFreq: cfg.Postgres.HealthCheckFreq,
	})
	if err != nil {
		return fmt.Errorf("flowrunnerd: connect postgres: %w", err)
	}
	defer pgStore.Close()

	if err := postgres.ApplyMigrationsWithLock(ctx, cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("flowrunnerd: apply migrations: %w", err)
	}

	authc := authclient.New(authclient.Config{
		BaseURL: cfg.Auth.BaseURL,
		APIKey:  cfg.Auth.APIKey,
		Timeout: cfg.Auth.Timeout,
	})
	authCache, err := cache.New(authc, authc, cache.Config{
		SecretsTTL:  cfg.Cache.SecretsTTL,
		AccountsTTL: cfg.Cache.AccountsTTL,
		MaxCost:     cfg.Cache.MaxCost,
	})
	if err != nil {
		return fmt.Errorf("flowrunnerd: build auth cache: %w", err)
	}

	combined := &combinedStore{Store: pgStore, auth: authCache}

	sessions := session.NewCache()
	bn := bundler.NewBundler(authCache, authCache, sessions)
	registry := plugin.NewRegistry()

	dispatcher := processor.NewDispatcher(combined, registry, sessions, bn, processor.Config{
		MaxConcurrentSessions: int64(cfg.Runtime.Concurrency),
		BackgroundWriters:     processor.DefaultConfig().BackgroundWriters,
		BackgroundQueueSize:   processor.DefaultConfig().BackgroundQueueSize,
	}, log)

	nc, err := natsgo.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("flowrunnerd: connect nats: %w", err)
	}
	defer nc.Close()

	transport, err := nats.Connect(ctx, nc, nats.Config{
		URL:          cfg.NATS.URL,
		StreamName:   cfg.NATS.StreamName,
		ConsumerName: cfg.NATS.ConsumerName,
		Subject:      cfg.NATS.Subject,
		FetchBatch:   cfg.NATS.FetchBatch,
		FetchTimeout: cfg.NATS.FetchTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("flowrunnerd: set up nats transport: %w", err)
	}

	messages := make(chan processor.Message, cfg.Runtime.Concurrency)
	go transport.Run(ctx, messages)
	go dispatcher.Run(ctx, messages)

	<-ctx.Done()
	log.Info("shutdown signal received, draining in-flight sessions")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error("dispatcher shutdown did not complete cleanly", "error", err)
		return err
	}
	log.Info("flowrunnerd stopped")
	return nil
}

// combinedStore satisfies the full store.Store contract by pairing the
// postgres-backed workflow/task methods with the cache-wrapped auth client's
// secrets/accounts methods.
type combinedStore struct {
	*postgres.Store
	auth *cache.Cache
}

func (c *combinedStore) GetDecryptedSecrets(ctx context.Context, accountID core.ID) ([]store.Secret, error) {
	return c.auth.GetDecryptedSecrets(ctx, accountID)
}

func (c *combinedStore) FetchCachedAuthAccounts(
	ctx context.Context,
	accountID core.ID,
	refreshAuth bool,
) ([]store.Account, error) {
	return c.auth.FetchCachedAuthAccounts(ctx, accountID, refreshAuth)
}
