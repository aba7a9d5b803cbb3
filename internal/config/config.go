// Package config provides configuration structures and loading for blobrescue.
package config

// Config represents the complete application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Admin   AdminConfig   `yaml:"admin" mapstructure:"admin"`
	Rescue  RescueConfig  `yaml:"rescue" mapstructure:"rescue"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// StoreConfig represents the MySQL connection to the mail store metadata.
type StoreConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"` // schema holding the mailbox table
	TLS                string `yaml:"tls" mapstructure:"tls"`           // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// AdminConfig represents the admin SOAP endpoint used for consistency checks.
type AdminConfig struct {
	URL                string `yaml:"url" mapstructure:"url"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	TimeoutSeconds     int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`
}

// RescueConfig represents the settings of a single rescue run.
type RescueConfig struct {
	LostFoundDir                string  `yaml:"lostfound_dir" mapstructure:"lostfound_dir"`
	SuggestedRepairCommandsFile string  `yaml:"suggested_repair_commands_file" mapstructure:"suggested_repair_commands_file"`
	UsedBlobListFile            string  `yaml:"used_blob_list_file" mapstructure:"used_blob_list_file"`
	Mailboxes                   []int   `yaml:"mailboxes" mapstructure:"mailboxes"` // empty means all mailboxes
	Volumes                     []int16 `yaml:"volumes" mapstructure:"volumes"`     // empty means all volumes
	SkipSizeCheck               bool    `yaml:"skip_size_check" mapstructure:"skip_size_check"`
	DigestEncoding              string  `yaml:"digest_encoding" mapstructure:"digest_encoding"` // hex, base64, base64-fssafe
	ContinueOnError             bool    `yaml:"continue_on_error" mapstructure:"continue_on_error"`
	MailboxGroupCacheSize       int     `yaml:"mailbox_group_cache_size" mapstructure:"mailbox_group_cache_size"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format     string `yaml:"format" mapstructure:"format"` // json or text
	Output     string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
	Stacktrace bool   `yaml:"stacktrace" mapstructure:"stacktrace"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Host:               "localhost",
			Port:               7306,
			User:               "zimbra",
			Database:           "zimbra",
			TLS:                "preferred",
			MaxConnections:     2,
			MaxIdleConnections: 1,
		},
		Admin: AdminConfig{
			URL:            "https://localhost:7071/service/admin/soap",
			TimeoutSeconds: 600,
		},
		Rescue: RescueConfig{
			DigestEncoding:        "base64-fssafe",
			MailboxGroupCacheSize: 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// CheckSize reports whether the consistency check should compare blob sizes.
func (r *RescueConfig) CheckSize() bool {
	return !r.SkipSizeCheck
}
