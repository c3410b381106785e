package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/roach88/shiftrule/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEvent creates an event with minimal required fields.
func createTestEvent(session string, seq int64, kind ir.EventKind, subject string) ir.Event {
	return ir.Event{
		Seq:     seq,
		Kind:    kind,
		Scope:   ir.ScopeApp,
		Subject: subject,
		Session: session,
	}
}

var errDiskFull = errors.New("disk full")

// failingBlobs wraps a Store and fails every PutBlob while fail is set.
type failingBlobs struct {
	*Store
	fail bool
}

func (f *failingBlobs) PutBlob(ctx context.Context, key, domain string, data []byte) error {
	if f.fail {
		return errDiskFull
	}
	return f.Store.PutBlob(ctx, key, domain, data)
}
