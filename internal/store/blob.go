package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/shiftrule/internal/ir"
)

// Blob keys for the persisted rule sets.
const (
	KeyDisabledApps = "disabledApps"
	KeyBrowserRules = "browserRules"
)

// BlobError reports a stored blob whose digest does not match its data.
type BlobError struct {
	Key      string
	Expected string
	Actual   string
}

func (e *BlobError) Error() string {
	return fmt.Sprintf("blob %q: digest mismatch: stored %s, computed %s", e.Key, e.Expected, e.Actual)
}

// PutBlob overwrites the blob under key. The digest is computed with the
// given hash domain and verified again on read.
func (s *Store) PutBlob(ctx context.Context, key, domain string, data []byte) error {
	digest := ir.Digest(domain, data)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, data, digest, seq)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			digest = excluded.digest,
			seq = blobs.seq + 1
	`, key, data, digest)
	if err != nil {
		return fmt.Errorf("put blob %q: %w", key, err)
	}

	return nil
}

// GetBlob returns the blob stored under key.
// Returns sql.ErrNoRows if not found and *BlobError if the digest does not match.
func (s *Store) GetBlob(ctx context.Context, key, domain string) ([]byte, error) {
	var (
		data   []byte
		digest string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT data, digest FROM blobs WHERE key = ?
	`, key).Scan(&data, &digest)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %q: %w", key, err)
	}

	if actual := ir.Digest(domain, data); actual != digest {
		return nil, &BlobError{Key: key, Expected: digest, Actual: actual}
	}

	return data, nil
}

// BlobSeq returns how many times key has been written, or 0 if never.
func (s *Store) BlobSeq(ctx context.Context, key string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM blobs WHERE key = ?
	`, key).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("blob seq %q: %w", key, err)
	}
	return seq, nil
}
