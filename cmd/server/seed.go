package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"limstreat/internal/app"
	"limstreat/internal/logger"
	"limstreat/internal/seed"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file.yaml]",
		Short: "Insert bookmarks from a YAML fixture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			f, err := seed.Load(args[0])
			if err != nil {
				return err
			}

			st, err := app.OpenStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := seed.Apply(context.Background(), st, f)
			if err != nil {
				return err
			}
			log.Info("seed applied", logger.String("file", args[0]), logger.Int("bookmarks", n))
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d bookmarks\n", n)
			return nil
		},
	}
}
