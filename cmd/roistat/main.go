package main

import (
	"fmt"
	"os"

	"go-roi-inspector/internal/config"
	"go-roi-inspector/internal/container"
	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/transport"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "roistat",
	Short: "Region-of-interest colour statistics for raw and developed images",
	Long: `roistat measures mean and standard deviation of RGB values inside
rectangular, circular and polygonal regions of an image, and collects the
same statistics over every image of a folder in capture order.

Examples:
  roistat measure shot.dng --rect 10,20,30,40 --circle 100,100,25
  roistat batch ./session --template regions.json --out results.csv
  roistat template new --rect 0,0,64,64 -o regions.json
  roistat serve`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	transport.Version = version

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (TOML, YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json or text")

	rootCmd.AddCommand(measureCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and environment, then applies the
// global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

// newContainer loads the configuration, lets the command adjust it and
// builds the application.
func newContainer(cmd *cobra.Command, adjust func(*config.Config)) (*container.Container, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	return container.NewContainer(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		if hint := apperrors.Hints(err); hint != "" {
			pterm.Info.Println("Hint: " + hint)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode separates usage mistakes (2) from failures while working (1).
func exitCode(err error) int {
	switch {
	case apperrors.IsType(err, apperrors.ErrorTypeInvalidInput),
		apperrors.IsType(err, apperrors.ErrorTypeMalformedTemplate):
		return 2
	default:
		return 1
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show roistat version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "roistat %s (commit %s)\n", version, commit)
	},
}
