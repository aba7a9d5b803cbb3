package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/blobrescue/internal/config"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// Persistent flags shared by every command
var (
	cfgFile   string
	logLevel  string
	logFormat string
	verbose   bool
)

var errMissingStart = errors.New(`nothing to do: run "blobrescue start" to begin a rescue`)

var rootCmd = &cobra.Command{
	Use:   "blobrescue",
	Short: "Suggest repairs for mail items whose blobs are missing",
	Long: `blobrescue asks the mail server which message blobs are missing, then
looks for their content in a lost+found directory by SHA-256 digest.

For every missing blob one shell command is suggested:
  cp '<recovered file>' '<blob path>'            when the content was found
  echo 'EMAIL_EMPTY_CONTENT' > '<blob path>'     otherwise

Suggestions are printed to stdout as comments and can be written verbatim to
a file for review. Nothing is executed.

The rescue only runs when the "start" command is given.`,
	Version: Version,
	RunE:    runRoot,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Path to configuration file (optional)")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Debug logging with stack traces on errors")
}

func runRoot(cmd *cobra.Command, args []string) error {
	return errMissingStart
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig reads the configuration file and applies the persistent flags
// on top of the command specific overrides in o.
func loadConfig(o config.Overrides) (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	o.LogLevel = logLevel
	o.LogFormat = logFormat
	o.Verbose = verbose
	cfg.ApplyOverrides(o)
	return cfg, nil
}
