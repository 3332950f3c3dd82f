package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FingerprintRecord is one entry in the append-only dedup ledger.
type FingerprintRecord struct {
	Fingerprint string
	SourceURL   string
	FirstSeenAt time.Time
	SkipCount   int
}

// Seen reports whether a fingerprint is already recorded.
func (s *Store) Seen(ctx context.Context, fingerprint string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM fingerprints WHERE fingerprint = ?", fingerprint,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query fingerprint: %w", err)
	}
	return count > 0, nil
}

// RecordFingerprint inserts a fingerprint if absent and reports whether this
// call created it. Recording an existing fingerprint is a no-op, so two items
// racing on the same source resolve through the primary key: exactly one
// caller sees inserted=true and carries the item forward.
func (s *Store) RecordFingerprint(ctx context.Context, fingerprint, sourceURL string) (bool, error) {
	if fingerprint == "" {
		return false, errors.New("fingerprint must not be empty")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints (fingerprint, source_url, first_seen_at)
         VALUES (?, ?, ?)
         ON CONFLICT (fingerprint) DO NOTHING`,
		fingerprint,
		nullableString(sourceURL),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("record fingerprint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// IncrementSkip bumps the duplicate-sighting counter for a fingerprint.
func (s *Store) IncrementSkip(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE fingerprints SET skip_count = skip_count + 1 WHERE fingerprint = ?", fingerprint,
	)
	if err != nil {
		return fmt.Errorf("increment skip count: %w", err)
	}
	return nil
}

// GetFingerprint fetches a ledger entry, or nil when absent.
func (s *Store) GetFingerprint(ctx context.Context, fingerprint string) (*FingerprintRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT fingerprint, source_url, first_seen_at, skip_count FROM fingerprints WHERE fingerprint = ?",
		fingerprint,
	)

	var (
		record    FingerprintRecord
		sourceURL sql.NullString
		seenRaw   string
	)
	err := row.Scan(&record.Fingerprint, &sourceURL, &seenRaw, &record.SkipCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get fingerprint: %w", err)
	}
	record.SourceURL = sourceURL.String
	if seen, err := parseTimeString(seenRaw); err == nil {
		record.FirstSeenAt = seen
	}
	return &record, nil
}
