package catalog

import (
	"database/sql"
	"time"
)

const recordColumns = "canonical_id, short_id, category, parent_id, name, alt_name, package_id, license_token, field_locks, created_at, updated_at"

const packageColumns = "id, url, content_id, size, created_at"

// timestampLayout is fixed width so stored values sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(ts time.Time) string {
	return ts.UTC().Format(timestampLayout)
}

func parseTimestamp(raw sql.NullString) time.Time {
	if !raw.Valid || raw.String == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(timestampLayout, raw.String); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw.String); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		canonicalID  string
		shortID      string
		category     sql.NullInt64
		parentID     sql.NullString
		name         sql.NullString
		altName      sql.NullString
		packageID    sql.NullInt64
		licenseToken sql.NullString
		locks        int64
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&canonicalID,
		&shortID,
		&category,
		&parentID,
		&name,
		&altName,
		&packageID,
		&licenseToken,
		&locks,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	return &Record{
		CanonicalID:  canonicalID,
		ShortID:      shortID,
		Category:     Category(category.Int64),
		ParentID:     parentID.String,
		Name:         name.String,
		AltName:      altName.String,
		PackageID:    packageID.Int64,
		LicenseToken: licenseToken.String,
		Locks:        FieldLocks(locks),
		CreatedAt:    parseTimestamp(createdRaw),
		UpdatedAt:    parseTimestamp(updatedRaw),
	}, nil
}

func scanPackage(scanner interface{ Scan(dest ...any) error }) (*Package, error) {
	var (
		id         int64
		url        string
		contentID  sql.NullString
		size       sql.NullInt64
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&id, &url, &contentID, &size, &createdRaw); err != nil {
		return nil, err
	}
	return &Package{
		ID:        id,
		URL:       url,
		ContentID: contentID.String,
		Size:      size.Int64,
		CreatedAt: parseTimestamp(createdRaw),
	}, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

// nullableCategory stores CategoryUnknown as NULL.
func nullableCategory(value Category) any {
	if value == CategoryUnknown {
		return nil
	}
	return int64(value)
}
