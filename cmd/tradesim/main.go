// tradesim runs a synthetic market of FX, crypto, commodities and
// generated equities, and lets accounts trade against it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tradesim/config"
	"tradesim/internal/logger"
)

var (
	version    = "0.1.0"
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tradesim",
		Short: "Synthetic market simulator with paper-trading accounts",
		Long: `tradesim ticks a curated macro universe and a generated equity universe
on a fixed cadence, and keeps cash accounts that buy and sell against the
latest prices.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (environment variables override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(simulateCmd())
	rootCmd.AddCommand(accountCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tradesim version %s\n", version)
		},
	}
}

// loadConfig reads the configuration and installs the logger.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		if cfg, err = config.LoadFile(configPath); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Load()
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Init("tradesim", logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}
