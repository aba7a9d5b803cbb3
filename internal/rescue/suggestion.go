// Package rescue turns missing-blob reports into repair suggestions.
//
// For every blob the server reports missing, the item's recorded digest is
// looked up in the lost+found index. A hit suggests copying the recovered file
// back into place; anything else suggests writing a placeholder so the item
// is readable again.
package rescue

import (
	"fmt"
	"strings"

	"github.com/dbsmedya/blobrescue/internal/types"
)

// PlaceholderContent is written in place of content that could not be recovered.
const PlaceholderContent = "EMAIL_EMPTY_CONTENT"

// Action is the kind of repair a Suggestion proposes.
type Action int

const (
	// ActionCopy restores the blob from a recovered file.
	ActionCopy Action = iota
	// ActionPlaceholder writes PlaceholderContent at the blob path.
	ActionPlaceholder
)

func (a Action) String() string {
	switch a {
	case ActionCopy:
		return "copy"
	case ActionPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Suggestion is one repair command for one missing blob.
type Suggestion struct {
	Command   string
	Action    Action
	Source    string // recovered file, only set for ActionCopy
	MailboxID int
	Blob      types.BlobInfo
}

// FormatCopy renders the command restoring dest from src.
func FormatCopy(src, dest string) string {
	return fmt.Sprintf("cp %s %s", shellQuote(src), shellQuote(dest))
}

// FormatPlaceholder renders the command writing the placeholder at dest.
func FormatPlaceholder(dest string) string {
	return fmt.Sprintf("echo %s > %s", shellQuote(PlaceholderContent), shellQuote(dest))
}

// shellQuote wraps s in single quotes. An embedded quote closes the string,
// emits an escaped quote and reopens it.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
