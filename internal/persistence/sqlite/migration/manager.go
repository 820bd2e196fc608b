package migration

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

type manager struct {
	scanner  Scanner
	executor Executor
	fsys     fs.FS
	dir      string
	logger   *slog.Logger
}

// NewManager creates a Manager reading migrations from the root of fsys.
func NewManager(scanner Scanner, executor Executor, fsys fs.FS, logger *slog.Logger) Manager {
	return NewManagerForDir(scanner, executor, fsys, ".", logger)
}

// NewManagerForDir creates a Manager reading migrations from dir within fsys.
func NewManagerForDir(scanner Scanner, executor Executor, fsys fs.FS, dir string, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &manager{
		scanner:  scanner,
		executor: executor,
		fsys:     fsys,
		dir:      dir,
		logger:   logger.With(slog.String("component", "migration")),
	}
}

// RunMigrations executes pending migrations in version order, recording each
// one after it commits. The first failure aborts the run.
func (m *manager) RunMigrations(ctx context.Context) error {
	started := time.Now()

	pending, err := m.PendingMigrations(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to determine pending migrations", slog.Any("error", err))
		return err
	}
	if len(pending) == 0 {
		m.logger.DebugContext(ctx, "schema up to date")
		return nil
	}

	for i, migration := range pending {
		logger := m.logger.With(
			slog.String("version", migration.Version),
			slog.String("description", migration.Description),
		)
		logger.InfoContext(ctx, "executing migration", slog.Int("position", i+1), slog.Int("pending", len(pending)))

		migrationStarted := time.Now()
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			logger.ErrorContext(ctx, "migration failed", slog.Any("error", err))
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
		elapsed := time.Since(migrationStarted)
		if err := m.executor.RecordMigration(ctx, migration, elapsed); err != nil {
			logger.ErrorContext(ctx, "failed to record migration", slog.Any("error", err))
			return NewMigrationError(migration.Version, migration.FilePath, "record migration", err)
		}
		logger.InfoContext(ctx, "migration applied", slog.Duration("elapsed", elapsed))
	}

	m.logger.InfoContext(ctx, "migrations complete",
		slog.Int("applied", len(pending)),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// PendingMigrations scans the file system, validates the sequence against
// the applied versions and returns what has not yet run.
func (m *manager) PendingMigrations(ctx context.Context) ([]Migration, error) {
	available, err := m.scanner.ScanMigrations(m.fsys, m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan migrations: %w", err)
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateSequence(available, applied); err != nil {
		return nil, fmt.Errorf("migration sequence validation failed: %w", err)
	}

	done := make(map[string]struct{}, len(applied))
	for _, record := range applied {
		done[record.Version] = struct{}{}
	}
	var pending []Migration
	for _, migration := range available {
		if _, ok := done[migration.Version]; !ok {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// Status reports the highest applied version plus pending work.
func (m *manager) Status(ctx context.Context) (*Status, error) {
	pending, err := m.PendingMigrations(ctx)
	if err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	status := &Status{Applied: applied, Pending: pending}
	for _, record := range applied {
		if versionNumber(record.Version) > versionNumber(status.CurrentVersion) {
			status.CurrentVersion = record.Version
		}
	}
	return status, nil
}

func (m *manager) applied(ctx context.Context) ([]AppliedMigration, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize version table: %w", err)
	}
	applied, err := m.executor.AppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied versions: %w", err)
	}
	return applied, nil
}

// validateSequence rejects gaps in the available versions, applied versions
// with no file, and applied files whose content changed.
func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for _, migration := range available {
		byVersion[versionNumber(migration.Version)] = migration
	}
	if len(available) > 0 {
		first := versionNumber(available[0].Version)
		last := versionNumber(available[len(available)-1].Version)
		for v := first; v <= last; v++ {
			if _, ok := byVersion[v]; !ok {
				return fmt.Errorf("%w: missing migration version %03d in sequence", ErrVersionConflict, v)
			}
		}
	}

	for _, record := range applied {
		migration, ok := byVersion[versionNumber(record.Version)]
		if !ok {
			return fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, record.Version)
		}
		if record.Checksum != "" && record.Checksum != migration.Checksum {
			return NewMigrationError(record.Version, migration.FilePath, "verify checksum",
				fmt.Errorf("%w: recorded %s, file %s", ErrChecksumMismatch, record.Checksum, migration.Checksum))
		}
	}
	return nil
}
