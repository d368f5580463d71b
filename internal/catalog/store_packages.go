package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// FindPackageByURL returns the package registered for url or ErrNotFound.
func (s *Store) FindPackageByURL(ctx context.Context, url string) (*Package, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE url = ?`, url)
	pkg, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find package: %w", err)
	}
	return pkg, nil
}

// GetPackage returns the package with the given id or ErrNotFound.
func (s *Store) GetPackage(ctx context.Context, id int64) (*Package, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = ?`, id)
	pkg, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get package %d: %w", id, err)
	}
	return pkg, nil
}

// InsertPackage registers pkg and sets its ID. A package whose URL is already
// registered is returned unchanged with the existing ID.
func (s *Store) InsertPackage(ctx context.Context, pkg *Package) error {
	var registered Package
	if err := retryOnBusy(ctx, func() error {
		registered = *pkg
		return insertPackage(ctx, s.db, &registered, time.Now().UTC())
	}); err != nil {
		return err
	}
	*pkg = registered
	return nil
}

// InsertWithPackage adds rec and, when pkg is not yet registered, pkg in a
// single transaction. rec.PackageID is pointed at pkg. A nil pkg makes it
// equivalent to Insert.
func (s *Store) InsertWithPackage(ctx context.Context, rec *Record, pkg *Package) error {
	if rec == nil || rec.CanonicalID == "" {
		return errors.New("insert record: canonical id is required")
	}
	return s.commitWithPackage(ctx, rec, pkg, insertRecord)
}

// UpdateWithPackage is the Update counterpart of InsertWithPackage.
func (s *Store) UpdateWithPackage(ctx context.Context, rec *Record, pkg *Package) error {
	if rec == nil || rec.CanonicalID == "" {
		return errors.New("update record: canonical id is required")
	}
	return s.commitWithPackage(ctx, rec, pkg, updateRecord)
}

func (s *Store) commitWithPackage(ctx context.Context, rec *Record, pkg *Package, write func(context.Context, execer, *Record, time.Time) error) error {
	now := time.Now().UTC()
	var registered Package
	row := *rec
	err := retryOnBusy(ctx, func() error {
		row = *rec
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if pkg != nil {
			registered = *pkg
			if registered.ID == 0 {
				if err := insertPackage(ctx, tx, &registered, now); err != nil {
					return err
				}
			}
			row.PackageID = registered.ID
		}
		if err := write(ctx, tx, &row, now); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit record %s: %w", rec.CanonicalID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if pkg != nil {
		*pkg = registered
	}
	rec.PackageID = row.PackageID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	return nil
}

func insertPackage(ctx context.Context, ex execer, pkg *Package, now time.Time) error {
	url := strings.TrimSpace(pkg.URL)
	if url == "" {
		return errors.New("insert package: url is required")
	}
	existing, err := scanPackage(ex.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE url = ?`, url))
	switch {
	case err == nil:
		*pkg = *existing
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("find package: %w", err)
	}

	res, err := ex.ExecContext(ctx,
		`INSERT INTO packages (url, content_id, size, created_at) VALUES (?, ?, ?, ?)`,
		url,
		nullableString(pkg.ContentID),
		nullableInt64(pkg.Size),
		formatTimestamp(now),
	)
	if err != nil {
		return fmt.Errorf("insert package: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	pkg.ID = id
	pkg.URL = url
	pkg.CreatedAt = now
	return nil
}
