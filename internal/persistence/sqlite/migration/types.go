package migration

import (
	"context"
	"io/fs"
	"time"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     string // numeric prefix of the file name, e.g. "001"
	Description string
	SQL         string
	FilePath    string
	Checksum    string // hex blake2b-256 of SQL
}

// Manager orchestrates scanning, comparison with the database and execution.
type Manager interface {
	// RunMigrations executes all pending migrations in version order.
	RunMigrations(ctx context.Context) error

	// PendingMigrations lists migrations not yet recorded as applied.
	PendingMigrations(ctx context.Context) ([]Migration, error)

	// Status reports the current schema version and what remains to run.
	Status(ctx context.Context) (*Status, error)
}

// Scanner reads migration files from a file system.
type Scanner interface {
	// ScanMigrations returns every migration under dir, sorted by version.
	ScanMigrations(fsys fs.FS, dir string) ([]Migration, error)

	// ValidateFileName checks the {version}_{description}.sql convention.
	ValidateFileName(filename string) error
}

// Executor runs migrations against the database and tracks applied versions.
type Executor interface {
	ExecuteMigration(ctx context.Context, migration Migration) error
	InitializeVersionTable(ctx context.Context) error
	RecordMigration(ctx context.Context, migration Migration, executionTime time.Duration) error
	AppliedMigrations(ctx context.Context) ([]AppliedMigration, error)
}

// Status describes the migration state of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}
