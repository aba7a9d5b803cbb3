// Package types contains shared types used across multiple packages to avoid import cycles.
package types

import "fmt"

// BlobInfo describes one blob reported by the consistency checker.
type BlobInfo struct {
	ItemID   int    // mail item id within the mailbox
	Revision int    // mod_content revision of the item
	Size     int64  // size recorded in the database
	VolumeID int16  // only meaningful when External is false
	Path     string // blob path as recorded by the store
	External bool   // Path is a self-contained locator, not volume relative
	Version  int    // version info version
}

// LocatorText describes where the blob lives, for log lines only.
func (b BlobInfo) LocatorText() string {
	if b.External {
		return fmt.Sprintf("locator %s", b.Path)
	}
	return fmt.Sprintf("volume %d, %s", b.VolumeID, b.Path)
}

// ResolvedItem is the outcome of looking up a live mail item.
// Absent means the item no longer exists; Digest is canonical lowercase hex
// and may be empty for items that carry no usable digest.
type ResolvedItem struct {
	Digest string
	Absent bool
}

// ConsistencyRequest asks the consistency checker about one mailbox.
type ConsistencyRequest struct {
	MailboxID       int
	VolumeIDs       []int16 // empty means all volumes
	CheckSize       bool
	ReportUsedBlobs bool
}

// MailboxReport is the checker's answer for one mailbox, in report order.
type MailboxReport struct {
	MailboxID    int
	MissingBlobs []BlobInfo
	UsedBlobs    []BlobInfo
}
