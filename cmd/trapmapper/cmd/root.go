package cmd

import (
	"github.com/solatis/trapmapper/internal/core/logging"
	"github.com/spf13/cobra"
)

// Version is reported by --version.
const Version = "0.1.0"

var (
	configFile string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:     "trapmapper",
	Short:   "SNMP trap to event mapper",
	Long:    `trapmapper listens for SNMP traps, matches their variable bindings against configured rules and delivers the resulting event records to an HTTP action or database command.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetDefault(logging.New(logging.ParseLevel(logLevel), logFormat))
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
