package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hlstatsd/hlstatsd/internal/store"
)

var seedGame string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the default weapon and action catalogs",
	Long:  "Installs the schema if missing and upserts the default weapon-modifier and action catalogs for a game. Safe to run repeatedly.",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedGame, "game", "cstrike", "game the catalogs belong to")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, pool, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := store.Migrate(ctx, pool); err != nil {
		return err
	}
	if err := st.SeedCatalogs(ctx, seedGame); err != nil {
		return fmt.Errorf("seed catalogs: %w", err)
	}
	fmt.Printf("seeded %s catalogs\n", seedGame)
	return nil
}
