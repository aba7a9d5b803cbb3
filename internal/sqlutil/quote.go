// Package sqlutil provides SQL helpers for addressing mail store schemas.
package sqlutil

import (
	"fmt"
	"regexp"
	"strings"
)

// QuoteIdentifier quotes a MySQL identifier with backticks, doubling any embedded backtick.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// validIdentifierRegex restricts identifiers to alphanumerics and underscore.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier checks if a name is a valid MySQL identifier.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// QuoteIdentifierSafe quotes a MySQL identifier after validating it.
// Schema names come from configuration, so they are validated before use.
func QuoteIdentifierSafe(name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return QuoteIdentifier(name), nil
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}

// MailboxGroupSchema returns the quoted schema holding the items of a mailbox group.
// Example: 12 -> "`mboxgroup12`"
func MailboxGroupSchema(groupID int) (string, error) {
	if groupID <= 0 {
		return "", fmt.Errorf("invalid mailbox group id %d", groupID)
	}
	return QuoteIdentifier(fmt.Sprintf("mboxgroup%d", groupID)), nil
}

// QualifiedTable returns schema.table with both parts quoted. The schema must already be quoted.
func QualifiedTable(quotedSchema, table string) string {
	return quotedSchema + "." + QuoteIdentifier(table)
}
