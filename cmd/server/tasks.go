package main

import (
	"fmt"

	"beatpost/internal/logging"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		conn, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()
		logging.Info().Str("path", cfg.Database.Path).Msg("database migrated")
		return nil
	},
}

var recomputeUser string

var recomputeCmd = &cobra.Command{
	Use:   "recompute-mojo",
	Short: "Rebuild Mojo scores from posts, ratings, comments and follows",
	Long: `Recomputes the Mojo reputation score from the stored base entities.
Without --user every account is recomputed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if recomputeUser != "" {
			m, err := a.svc.RecomputeMojo(cmd.Context(), recomputeUser)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %.2f\n", recomputeUser, m)
			return nil
		}
		n, err := a.svc.RecomputeAllMojo(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d users\n", n)
		return nil
	},
}

func init() {
	recomputeCmd.Flags().StringVar(&recomputeUser, "user", "", "recompute a single user by id")
}
