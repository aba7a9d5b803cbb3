package rescue

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/blobrescue/internal/logger"
	"github.com/dbsmedya/blobrescue/internal/lostfound"
	"github.com/dbsmedya/blobrescue/internal/types"
)

type itemKey struct {
	mailbox, item int
}

// fakeResolver resolves items from a fixed table; unknown items are absent.
type fakeResolver struct {
	items map[itemKey]string
	fail  map[itemKey]error
	calls []itemKey
}

func (f *fakeResolver) ResolveItem(_ context.Context, mailboxID, itemID int) (types.ResolvedItem, error) {
	k := itemKey{mailboxID, itemID}
	f.calls = append(f.calls, k)
	if err, ok := f.fail[k]; ok {
		return types.ResolvedItem{}, err
	}
	d, ok := f.items[k]
	if !ok {
		return types.ResolvedItem{Absent: true}, nil
	}
	return types.ResolvedItem{Digest: d}, nil
}

// fakeChecker returns canned reports per mailbox and records requests.
type fakeChecker struct {
	reports  map[int][]types.MailboxReport
	fail     map[int]error
	requests []types.ConsistencyRequest
}

func (f *fakeChecker) CheckBlobConsistency(_ context.Context, req types.ConsistencyRequest) ([]types.MailboxReport, error) {
	f.requests = append(f.requests, req)
	if err, ok := f.fail[req.MailboxID]; ok {
		return nil, err
	}
	if r, ok := f.reports[req.MailboxID]; ok {
		return r, nil
	}
	return []types.MailboxReport{{MailboxID: req.MailboxID}}, nil
}

// failingWriter fails every write.
type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, fmt.Errorf("broken pipe")
}

func newTestRun(t *testing.T, entries ...lostfound.Entry) (*Run, *bytes.Buffer) {
	t.Helper()
	var stdout bytes.Buffer
	sink, err := OpenSink(&stdout, "", "", logger.NewDefault())
	require.NoError(t, err)
	t.Cleanup(sink.Close)
	return &Run{Index: lostfound.NewIndex("/lf", entries...), Sink: sink}, &stdout
}

func missing(itemID int, path string) types.BlobInfo {
	return types.BlobInfo{ItemID: itemID, Revision: 100 + itemID, Size: 10, VolumeID: 1, Path: path, Version: 1}
}
