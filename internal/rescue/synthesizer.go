package rescue

import (
	"context"
	"fmt"

	"github.com/dbsmedya/blobrescue/internal/logger"
	"github.com/dbsmedya/blobrescue/internal/lostfound"
	"github.com/dbsmedya/blobrescue/internal/types"
)

// ItemResolver returns the digest the mail store recorded for an item.
type ItemResolver interface {
	ResolveItem(ctx context.Context, mailboxID, itemID int) (types.ResolvedItem, error)
}

// Run carries the state shared by every mailbox of one rescue run.
type Run struct {
	Index *lostfound.Index
	Sink  *Sink
}

// Synthesizer decides the repair for each missing blob.
type Synthesizer struct {
	resolver ItemResolver
	logger   *logger.Logger
}

// NewSynthesizer creates a Synthesizer resolving items through resolver.
func NewSynthesizer(resolver ItemResolver, log *logger.Logger) *Synthesizer {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Synthesizer{resolver: resolver, logger: log}
}

// Synthesize builds the suggestion for one missing blob of mailboxID.
// Only resolver failures are returned as errors.
func (s *Synthesizer) Synthesize(ctx context.Context, run *Run, mailboxID int, blob types.BlobInfo) (Suggestion, error) {
	resolved, err := s.resolver.ResolveItem(ctx, mailboxID, blob.ItemID)
	if err != nil {
		return Suggestion{}, fmt.Errorf("resolve item %d: %w", blob.ItemID, err)
	}

	s.logger.Infof("Mailbox %d, item %d, rev %d, %s: blob not found.",
		mailboxID, blob.ItemID, blob.Revision, blob.LocatorText())

	sug := Suggestion{MailboxID: mailboxID, Blob: blob}
	if !resolved.Absent {
		if src, ok := run.Index.Lookup(resolved.Digest); ok {
			sug.Action = ActionCopy
			sug.Source = src
			sug.Command = FormatCopy(src, blob.Path)
			return sug, nil
		}
		s.logger.WithFields(map[string]interface{}{
			"mailbox": mailboxID,
			"item":    blob.ItemID,
			"rev":     blob.Revision,
			"digest":  resolved.Digest,
		}).Debug("No recovered file matches item digest")
	}

	sug.Action = ActionPlaceholder
	sug.Command = FormatPlaceholder(blob.Path)
	return sug, nil
}
