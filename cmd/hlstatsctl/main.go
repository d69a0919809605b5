// hlstatsctl is the operator CLI: catalog seeding, leaderboards and
// a UDP test-line sender for a running daemon.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hlstatsd/hlstatsd/internal/store"
)

var postgresURL string

var rootCmd = &cobra.Command{
	Use:   "hlstatsctl",
	Short: "hlstatsd operator tool",
	Long:  "Seed catalogs, inspect leaderboards and fire test log lines at a running hlstatsd.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&postgresURL, "postgres-url",
		os.Getenv("POSTGRES_URL"), "Postgres connection string")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(topPlayersCmd)
	rootCmd.AddCommand(topWeaponsCmd)
	rootCmd.AddCommand(playerWeaponsCmd)
	rootCmd.AddCommand(sendCmd)
}

// openStore connects to Postgres for one command invocation.
func openStore(ctx context.Context) (*store.Store, *pgxpool.Pool, error) {
	if postgresURL == "" {
		return nil, nil, fmt.Errorf("--postgres-url or POSTGRES_URL is required")
	}
	pool, err := pgxpool.New(ctx, postgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store.New(pool, cliLogger()), pool, nil
}

// cliLogger keeps the store quiet unless something goes wrong.
func cliLogger() *zap.SugaredLogger {
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	log, err := zcfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return log.Sugar()
}
