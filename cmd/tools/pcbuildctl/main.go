// cmd/tools/pcbuildctl/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pcbuild-service/internal/common/config"
	"pcbuild-service/internal/common/logger"
)

var (
	configPath string
	verbose    bool

	zapLog *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pcbuildctl",
	Short: "Operations tool for the build service",
	Long: `pcbuildctl imports product catalogs into the service stores, prints
catalog statistics and maintains the task registry used by the Zeebe workers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "info"
		if verbose {
			level = "debug"
		}
		l, err := logger.New(level, "console", "stderr")
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		zapLog = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: configs/config.yaml lookup)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(catalogCmd, registryCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
