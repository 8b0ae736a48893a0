package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"limstreat/internal/config"
	"limstreat/internal/logger"
)

var Version = "dev"

var configDir string

func main() {
	rootCmd := &cobra.Command{
		Use:           "limstreat",
		Short:         "Limstreat - personal restaurant map, reviews and photo album",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".", "directory containing limstreat.yaml")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.LogLevel, cfg.PrettyLog), nil
}
