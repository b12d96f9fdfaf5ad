package cmd

import (
	"errors"
	"fmt"

	"github.com/nfrund/chorus/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply the pending schema migrations. This signs in with the root
credentials from SURREAL_USER and SURREAL_PASS.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if cfg.GetDBUser() == "" || cfg.GetDBPass() == "" {
			return errors.New("migrate needs SURREAL_USER and SURREAL_PASS")
		}

		ctx := cmd.Context()
		conn := database.NewConnection(cfg, database.WithConnectionLogger(logger))
		if err := conn.Connect(ctx); err != nil {
			return err
		}
		defer conn.Close(ctx)

		applied, err := database.ApplySchema(ctx, conn)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		}
		for _, id := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
