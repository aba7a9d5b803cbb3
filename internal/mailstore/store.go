// Package mailstore resolves mail items to the content digest the mail store
// recorded for their blob.
package mailstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"

	"github.com/dbsmedya/blobrescue/internal/digest"
	"github.com/dbsmedya/blobrescue/internal/logger"
	"github.com/dbsmedya/blobrescue/internal/sqlutil"
	"github.com/dbsmedya/blobrescue/internal/types"
)

// ErrNoSuchMailbox is returned when the mailbox directory has no row for a mailbox id.
var ErrNoSuchMailbox = errors.New("no such mailbox")

// Options configures a Store.
type Options struct {
	// Database is the directory schema holding the mailbox table.
	Database string
	// DigestEncoding is how blob_digest values are written.
	DigestEncoding digest.Encoding
	// GroupCacheSize bounds the mailbox -> group cache. Zero disables it.
	GroupCacheSize int
}

// Store reads item metadata from the mail store database.
type Store struct {
	db       *sqlx.DB
	encoding digest.Encoding
	groupSQL string
	groups   *lru.Cache[int, int]
	logger   *logger.Logger
}

// NewStore wraps an open MySQL connection pool.
func NewStore(db *sql.DB, opts Options, log *logger.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	schema, err := sqlutil.QuoteIdentifierSafe(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("mailbox directory schema: %w", err)
	}

	enc := opts.DigestEncoding
	if enc == "" {
		enc = digest.EncodingFSSafeBase64
	}

	s := &Store{
		db:       sqlx.NewDb(db, "mysql"),
		encoding: enc,
		groupSQL: fmt.Sprintf("SELECT group_id FROM %s WHERE id = ?", sqlutil.QualifiedTable(schema, "mailbox")),
		logger:   log,
	}

	if opts.GroupCacheSize > 0 {
		cache, err := lru.New[int, int](opts.GroupCacheSize)
		if err != nil {
			return nil, fmt.Errorf("mailbox group cache: %w", err)
		}
		s.groups = cache
	}
	return s, nil
}

// ResolveItem returns the canonical digest recorded for an item.
//
// An item with no row is reported as Absent with a nil error. A missing or
// undecodable digest resolves to an empty digest, which never matches a
// recovery candidate.
func (s *Store) ResolveItem(ctx context.Context, mailboxID, itemID int) (types.ResolvedItem, error) {
	groupID, err := s.mailboxGroup(ctx, mailboxID)
	if err != nil {
		return types.ResolvedItem{}, err
	}

	schema, err := sqlutil.MailboxGroupSchema(groupID)
	if err != nil {
		return types.ResolvedItem{}, fmt.Errorf("mailbox %d: %w", mailboxID, err)
	}
	query := fmt.Sprintf("SELECT blob_digest FROM %s WHERE mailbox_id = ? AND id = ?",
		sqlutil.QualifiedTable(schema, "mail_item"))

	var stored sql.NullString
	if err := s.db.GetContext(ctx, &stored, query, mailboxID, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ResolvedItem{Absent: true}, nil
		}
		return types.ResolvedItem{}, fmt.Errorf("read item %d of mailbox %d: %w", itemID, mailboxID, err)
	}

	if !stored.Valid || stored.String == "" {
		s.logger.WithMailbox(mailboxID).WithItem(itemID).Warn("Item has no recorded blob digest")
		return types.ResolvedItem{}, nil
	}

	canonical, err := digest.Canonical(s.encoding, stored.String)
	if err != nil {
		s.logger.WithMailbox(mailboxID).WithItem(itemID).Warnw("Cannot decode recorded blob digest",
			"digest", stored.String,
			"encoding", string(s.encoding),
			"error", err,
		)
		return types.ResolvedItem{}, nil
	}
	return types.ResolvedItem{Digest: canonical}, nil
}

func (s *Store) mailboxGroup(ctx context.Context, mailboxID int) (int, error) {
	if s.groups != nil {
		if g, ok := s.groups.Get(mailboxID); ok {
			return g, nil
		}
	}

	var groupID int
	if err := s.db.GetContext(ctx, &groupID, s.groupSQL, mailboxID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %d", ErrNoSuchMailbox, mailboxID)
		}
		return 0, fmt.Errorf("read group of mailbox %d: %w", mailboxID, err)
	}

	if s.groups != nil {
		s.groups.Add(mailboxID, groupID)
	}
	return groupID, nil
}
