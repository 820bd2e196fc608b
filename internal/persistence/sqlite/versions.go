// Package sqlite stores the version history in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store implements persistence.VersionRepository on SQLite.
type Store struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
	logger *slog.Logger
}

// Open connects using config and applies pending schema migrations.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := migration.NewConnectionManager(config).ValidateConfig(); err != nil {
		return nil, err
	}

	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	manager := newMigrationManager(pool, logger)
	if err := manager.RunMigrations(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("migrate version store: %w", err)
	}

	return &Store{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		mapper: NewErrorMapper(),
		logger: logger.With("component", "sqlite_store"),
	}, nil
}

func newMigrationManager(pool *ConnectionPool, logger *slog.Logger) migration.Manager {
	return migration.NewManagerForDir(
		migration.NewScanner(),
		migration.NewSQLiteExecutor(pool.DB()),
		migrationFiles,
		"migrations",
		logger,
	)
}

// SchemaStatus reports the applied and pending schema migrations.
func (s *Store) SchemaStatus(ctx context.Context) (*migration.Status, error) {
	return newMigrationManager(s.pool, s.logger).Status(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// The ordinal is computed by the insert itself so concurrent writers cannot
// observe the same maximum.
const appendQuery = `
	INSERT INTO versions (ordinal, id, label, description, created_at, schedule, report, checksum, soft_total)
	SELECT COALESCE(MAX(ordinal), 0) + 1, ?, ?, ?, ?, ?, ?, ?, ?
	FROM versions
	RETURNING ordinal`

// AppendVersion stores record with the next ordinal.
func (s *Store) AppendVersion(ctx context.Context, record persistence.VersionRecord) (persistence.VersionRecord, error) {
	if record.ID == "" || record.Label == "" || len(record.Schedule) == 0 {
		return persistence.VersionRecord{}, persistence.ErrConstraintViolation
	}
	if record.Report == nil {
		record.Report = []byte{}
	}

	err := s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			return tx.QueryRowContext(ctx, appendQuery,
				record.ID,
				record.Label,
				record.Description,
				record.CreatedAt.UTC().Format(time.RFC3339Nano),
				record.Schedule,
				record.Report,
				record.Checksum,
				record.SoftTotal,
			).Scan(&record.Ordinal)
		})
	})
	if err != nil {
		return persistence.VersionRecord{}, fmt.Errorf("append version %q: %w", record.Label, err)
	}

	s.logger.DebugContext(ctx, "version stored", "ordinal", record.Ordinal, "label", record.Label)
	return record, nil
}

const selectRecord = `
	SELECT ordinal, id, label, description, created_at, schedule, report, checksum, soft_total
	FROM versions`

// GetVersion returns the record with the given ordinal.
func (s *Store) GetVersion(ctx context.Context, ordinal int) (persistence.VersionRecord, error) {
	return s.queryRecord(ctx, selectRecord+` WHERE ordinal = ?`, ordinal)
}

// GetVersionByLabel returns the record with the given label.
func (s *Store) GetVersionByLabel(ctx context.Context, label string) (persistence.VersionRecord, error) {
	return s.queryRecord(ctx, selectRecord+` WHERE label = ?`, label)
}

// LatestVersion returns the record with the highest ordinal.
func (s *Store) LatestVersion(ctx context.Context) (persistence.VersionRecord, error) {
	return s.queryRecord(ctx, selectRecord+` ORDER BY ordinal DESC LIMIT 1`)
}

func (s *Store) queryRecord(ctx context.Context, query string, args ...any) (persistence.VersionRecord, error) {
	var (
		record    persistence.VersionRecord
		createdAt string
	)
	err := s.pool.DB().QueryRowContext(ctx, query, args...).Scan(
		&record.Ordinal,
		&record.ID,
		&record.Label,
		&record.Description,
		&createdAt,
		&record.Schedule,
		&record.Report,
		&record.Checksum,
		&record.SoftTotal,
	)
	if err != nil {
		return persistence.VersionRecord{}, s.mapper.MapError(err)
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.VersionRecord{}, err
	}
	return record, nil
}

// ListVersions returns summaries ordered by ordinal.
func (s *Store) ListVersions(ctx context.Context) ([]persistence.VersionSummary, error) {
	rows, err := s.pool.DB().QueryContext(ctx, `
		SELECT ordinal, id, label, description, created_at, checksum, soft_total
		FROM versions
		ORDER BY ordinal`)
	if err != nil {
		return nil, s.mapper.MapError(err)
	}
	defer rows.Close()

	summaries := []persistence.VersionSummary{}
	for rows.Next() {
		var (
			summary   persistence.VersionSummary
			createdAt string
		)
		if err := rows.Scan(
			&summary.Ordinal,
			&summary.ID,
			&summary.Label,
			&summary.Description,
			&createdAt,
			&summary.Checksum,
			&summary.SoftTotal,
		); err != nil {
			return nil, s.mapper.MapError(err)
		}
		if summary.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, s.mapper.MapError(err)
	}
	return summaries, nil
}

// CountVersions returns the number of stored versions.
func (s *Store) CountVersions(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM versions`).Scan(&count); err != nil {
		return 0, s.mapper.MapError(err)
	}
	return count, nil
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", value, err)
	}
	return t, nil
}

var _ persistence.VersionRepository = (*Store)(nil)
