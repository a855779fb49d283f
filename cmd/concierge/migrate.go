package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/adapters/store"
	"github.com/centralrestaurante/amigo-central/config"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

func newMigrateCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema and optionally seed the experience catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := store.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if !seed {
				return nil
			}

			inserted, err := db.SeedExperiences(ctx)
			if err != nil {
				return fmt.Errorf("seed experiences: %w", err)
			}
			log.With(zap.Int("inserted", inserted)).Info("experience catalog seeded")
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Insert the default experiences when missing")
	return cmd
}
