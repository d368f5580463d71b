package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

// Find returns the record with the given canonical ID or ErrNotFound.
func (s *Store) Find(ctx context.Context, canonicalID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE canonical_id = ?`, canonicalID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record %s: %w", canonicalID, err)
	}
	return rec, nil
}

// Insert adds rec. CreatedAt and UpdatedAt are stamped on rec.
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	if rec == nil || rec.CanonicalID == "" {
		return errors.New("insert record: canonical id is required")
	}
	now := time.Now().UTC()
	if err := retryOnBusy(ctx, func() error { return insertRecord(ctx, s.db, rec, now) }); err != nil {
		return err
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// Update overwrites every mutable column of the record keyed by
// rec.CanonicalID and stamps UpdatedAt.
func (s *Store) Update(ctx context.Context, rec *Record) error {
	if rec == nil || rec.CanonicalID == "" {
		return errors.New("update record: canonical id is required")
	}
	now := time.Now().UTC()
	if err := retryOnBusy(ctx, func() error { return updateRecord(ctx, s.db, rec, now) }); err != nil {
		return err
	}
	rec.UpdatedAt = now
	return nil
}

func insertRecord(ctx context.Context, ex execer, rec *Record, now time.Time) error {
	stamp := formatTimestamp(now)
	_, err := ex.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CanonicalID,
		rec.ShortID,
		nullableCategory(rec.Category),
		nullableString(rec.ParentID),
		nullableString(rec.Name),
		nullableString(rec.AltName),
		nullableInt64(rec.PackageID),
		nullableString(rec.LicenseToken),
		int64(rec.Locks),
		stamp,
		stamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrExists, rec.CanonicalID)
		}
		return fmt.Errorf("insert record %s: %w", rec.CanonicalID, err)
	}
	return nil
}

func updateRecord(ctx context.Context, ex execer, rec *Record, now time.Time) error {
	res, err := ex.ExecContext(ctx,
		`UPDATE records SET short_id = ?, category = ?, parent_id = ?, name = ?, alt_name = ?,
            package_id = ?, license_token = ?, field_locks = ?, updated_at = ?
         WHERE canonical_id = ?`,
		rec.ShortID,
		nullableCategory(rec.Category),
		nullableString(rec.ParentID),
		nullableString(rec.Name),
		nullableString(rec.AltName),
		nullableInt64(rec.PackageID),
		nullableString(rec.LicenseToken),
		int64(rec.Locks),
		formatTimestamp(now),
		rec.CanonicalID,
	)
	if err != nil {
		return fmt.Errorf("update record %s: %w", rec.CanonicalID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, rec.CanonicalID)
	}
	return nil
}

// Delete removes the record with the given canonical ID.
func (s *Store) Delete(ctx context.Context, canonicalID string) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM records WHERE canonical_id = ?`, canonicalID)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", canonicalID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, canonicalID)
	}
	return nil
}

// All streams every record ordered by short ID then canonical ID. Each call
// issues a fresh query, so iterating again observes the current state. The
// sequence stops after yielding the first error.
func (s *Store) All(ctx context.Context) iter.Seq2[*Record, error] {
	return s.query(ctx, `SELECT `+recordColumns+` FROM records ORDER BY short_id, canonical_id`)
}

// FindByShortID returns records sharing shortID, most recently updated first.
func (s *Store) FindByShortID(ctx context.Context, shortID string) ([]*Record, error) {
	var out []*Record
	for rec, err := range s.query(ctx,
		`SELECT `+recordColumns+` FROM records WHERE short_id = ? ORDER BY updated_at DESC, rowid DESC`,
		shortID) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, fmt.Errorf("query records: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				yield(nil, fmt.Errorf("scan record: %w", err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate records: %w", err))
		}
	}
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
