package persistence

import "context"

// VersionRepository stores the append-only version history. Implementations
// must assign ordinals atomically with the insert and must never modify or
// remove a stored record.
type VersionRepository interface {
	// AppendVersion stores record with the next ordinal and returns it as
	// stored. The record's Ordinal field is ignored on input. A duplicate ID
	// or label fails with ErrAlreadyExists.
	AppendVersion(ctx context.Context, record VersionRecord) (VersionRecord, error)

	// GetVersion returns the record with the given ordinal.
	GetVersion(ctx context.Context, ordinal int) (VersionRecord, error)

	// GetVersionByLabel returns the record with the given label.
	GetVersionByLabel(ctx context.Context, label string) (VersionRecord, error)

	// LatestVersion returns the record with the highest ordinal.
	LatestVersion(ctx context.Context) (VersionRecord, error)

	// ListVersions returns every version's metadata, ordered by ordinal.
	ListVersions(ctx context.Context) ([]VersionSummary, error)

	// CountVersions returns the number of stored versions.
	CountVersions(ctx context.Context) (int, error)
}
