package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
// An empty path returns the defaults with environment substitution applied.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		cfg := DefaultConfig()
		if err := substituteEnvVars(cfg); err != nil {
			return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := substituteEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) error {
	cfg.Store.Host = expandEnvVar(cfg.Store.Host)
	cfg.Store.User = expandEnvVar(cfg.Store.User)
	cfg.Store.Password = expandEnvVar(cfg.Store.Password)
	cfg.Store.Database = expandEnvVar(cfg.Store.Database)

	cfg.Admin.URL = expandEnvVar(cfg.Admin.URL)
	cfg.Admin.User = expandEnvVar(cfg.Admin.User)
	cfg.Admin.Password = expandEnvVar(cfg.Admin.Password)

	cfg.Rescue.LostFoundDir = expandEnvVar(cfg.Rescue.LostFoundDir)
	cfg.Rescue.SuggestedRepairCommandsFile = expandEnvVar(cfg.Rescue.SuggestedRepairCommandsFile)
	cfg.Rescue.UsedBlobListFile = expandEnvVar(cfg.Rescue.UsedBlobListFile)

	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// Overrides holds CLI flag values that take precedence over the config file.
// Zero values leave the loaded configuration untouched.
type Overrides struct {
	LogLevel                    string
	LogFormat                   string
	Verbose                     bool
	LostFoundDir                string
	SuggestedRepairCommandsFile string
	UsedBlobListFile            string
	Mailboxes                   []int
	Volumes                     []int16
	SkipSizeCheck               bool
	ContinueOnError             bool
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.Verbose {
		c.Logging.Level = "debug"
		c.Logging.Stacktrace = true
	}
	if o.LostFoundDir != "" {
		c.Rescue.LostFoundDir = o.LostFoundDir
	}
	if o.SuggestedRepairCommandsFile != "" {
		c.Rescue.SuggestedRepairCommandsFile = o.SuggestedRepairCommandsFile
	}
	if o.UsedBlobListFile != "" {
		c.Rescue.UsedBlobListFile = o.UsedBlobListFile
	}
	if len(o.Mailboxes) > 0 {
		c.Rescue.Mailboxes = o.Mailboxes
	}
	if len(o.Volumes) > 0 {
		c.Rescue.Volumes = o.Volumes
	}
	if o.SkipSizeCheck {
		c.Rescue.SkipSizeCheck = true
	}
	if o.ContinueOnError {
		c.Rescue.ContinueOnError = true
	}
}
