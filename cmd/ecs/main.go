// ecs estimates equilibrium climate sensitivity from local CMIP6 NetCDF files
// and prints cloud store locations of the datasets it reads.
//
// Usage:
//
//	ecs estimate --dir ./cmip6 [--forced abrupt-4xCO2] [--xlsx ecs.xlsx]
//	ecs url cmip6 --source CanESM5 --institution CCCma --variable tas ...
//	ecs url hrrr --time 2026-03-01T12:00:00Z
//	ecs url oisst --time 2026-03-01
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-ecs-etl/internal/config"
	"github.com/couchcryptid/climate-ecs-etl/internal/observability"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:   "ecs",
	Short: "Gregory-method climate sensitivity for CMIP6 ensembles",
	Long: "ecs reduces CMIP6 model output to global annual means, subtracts each\n" +
		"model's control-run baseline and regresses TOA imbalance on warming.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(urlCmd)
	rootCmd.Version = version
}

func newLogger() *slog.Logger {
	return observability.NewLogger(&config.Config{LogLevel: rootFlags.logLevel, LogFormat: "text"})
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
