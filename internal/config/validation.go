package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// validDigestEncodings mirrors digest.Encoding values.
var validDigestEncodings = map[string]bool{"hex": true, "base64": true, "base64-fssafe": true}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateAdmin()...)
	errors = append(errors, c.validateRescue()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

// ValidateLostFound checks only the settings needed to index the recovery directory.
func (c *Config) ValidateLostFound() error {
	var errors ValidationErrors

	if c.Rescue.LostFoundDir == "" {
		errors = append(errors, ValidationError{
			Field:   "rescue.lostfound_dir",
			Message: "lostfound_dir is required",
		})
	}
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateStore() ValidationErrors {
	var errors ValidationErrors
	db := &c.Store

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "store.host",
			Message: "host is required",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "store.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   "store.user",
			Message: "user is required",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "store.database",
			Message: "database name is required",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   "store.tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateAdmin() ValidationErrors {
	var errors ValidationErrors

	if c.Admin.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "admin.url",
			Message: "url is required",
		})
	} else if u, err := url.Parse(c.Admin.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "admin.url",
			Message: "url must be an absolute http(s) URL",
		})
	}

	if c.Admin.User == "" {
		errors = append(errors, ValidationError{
			Field:   "admin.user",
			Message: "user is required",
		})
	}

	if c.Admin.TimeoutSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "admin.timeout_seconds",
			Message: "timeout_seconds cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateRescue() ValidationErrors {
	var errors ValidationErrors
	r := &c.Rescue

	if r.LostFoundDir == "" {
		errors = append(errors, ValidationError{
			Field:   "rescue.lostfound_dir",
			Message: "lostfound_dir is required",
		})
	}

	if r.SuggestedRepairCommandsFile != "" && r.SuggestedRepairCommandsFile == r.UsedBlobListFile {
		errors = append(errors, ValidationError{
			Field:   "rescue.used_blob_list_file",
			Message: "used_blob_list_file must differ from suggested_repair_commands_file",
		})
	}

	for i, id := range r.Mailboxes {
		if id <= 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("rescue.mailboxes[%d]", i),
				Message: "mailbox id must be positive",
			})
		}
	}

	for i, id := range r.Volumes {
		if id < 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("rescue.volumes[%d]", i),
				Message: "volume id cannot be negative",
			})
		}
	}

	if !validDigestEncodings[r.DigestEncoding] {
		errors = append(errors, ValidationError{
			Field:   "rescue.digest_encoding",
			Message: "digest_encoding must be 'hex', 'base64', or 'base64-fssafe'",
		})
	}

	if r.MailboxGroupCacheSize < 0 {
		errors = append(errors, ValidationError{
			Field:   "rescue.mailbox_group_cache_size",
			Message: "mailbox_group_cache_size cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
