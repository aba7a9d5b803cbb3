package cmd

import (
	"context"
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/blobrescue/internal/config"
	"github.com/dbsmedya/blobrescue/internal/database"
	"github.com/dbsmedya/blobrescue/internal/logger"
	"github.com/dbsmedya/blobrescue/internal/zimbra"
)

var validateOffline bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and check connectivity",
	Long: `Validate checks the configuration file and, unless --offline is given,
the connections a rescue needs.

Checks performed:
  - Configuration syntax and required fields
  - Mail store database connectivity
  - Admin service authentication

Example:
  blobrescue validate --config blobrescue.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateOffline, "offline", false,
		"Only validate the configuration file")

	rootCmd.AddCommand(validateCmd)
}

type storePinger interface {
	Ping(ctx context.Context) error
}

// checkStore pings the mail store and reports the result.
func checkStore(ctx context.Context, cmd *cobra.Command, store storePinger) error {
	if err := store.Ping(ctx); err != nil {
		cmd.Printf("%s Mail store database unreachable: %v\n", color.Red.Sprint("❌"), err)
		return fmt.Errorf("database connection failed: %w", err)
	}
	cmd.Printf("%s Mail store database reachable\n", color.Green.Sprint("✅"))
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := loadConfig(config.Overrides{})
	if err != nil {
		return err
	}

	cmd.Printf("\n=== Configuration Validation ===\n")
	if configFile == "" {
		cmd.Printf("Config file: (defaults)\n")
	} else {
		cmd.Printf("Config file: %s\n", configFile)
	}
	cmd.Printf("Store:         %s@%s:%d/%s\n", cfg.Store.User, cfg.Store.Host, cfg.Store.Port, cfg.Store.Database)
	cmd.Printf("Admin service: %s\n", cfg.Admin.URL)
	cmd.Printf("Lost+found:    %s\n\n", cfg.Rescue.LostFoundDir)

	if err := cfg.Validate(); err != nil {
		cmd.Printf("%s %v\n", color.Red.Sprint("❌"), err)
		return fmt.Errorf("configuration is invalid")
	}
	cmd.Printf("%s Configuration is valid\n", color.Green.Sprint("✅"))
	cmd.SilenceUsage = true

	if validateOffline {
		return nil
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx := context.Background()

	dbManager := database.NewManager(&cfg.Store)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to mail store database: %w", err)
	}
	defer dbManager.Close()
	if err := checkStore(ctx, cmd, dbManager); err != nil {
		return err
	}

	client, err := zimbra.NewClient(&cfg.Admin, log)
	if err != nil {
		return err
	}
	if err := client.Authenticate(ctx); err != nil {
		return fmt.Errorf("failed to authenticate to admin service: %w", err)
	}
	cmd.Printf("%s Admin service authentication succeeded\n", color.Green.Sprint("✅"))

	cmd.Println("\n=== Validation Complete ===")
	return nil
}
