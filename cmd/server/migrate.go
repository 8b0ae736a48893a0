package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"limstreat/internal/app"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables and columns, then print the schema",
		Long: `Bring an existing store up to the current schema.

Tables are created when missing and missing columns are added. Nothing is
dropped or renamed, so running it repeatedly is harmless.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			st, err := app.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			if err := st.Initialize(ctx); err != nil {
				return err
			}
			for _, table := range []string{"bookmarks", "photos"} {
				cols, err := st.Columns(ctx, table)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", table, strings.Join(cols, ", "))
			}
			return nil
		},
	}
}
