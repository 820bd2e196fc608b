// Package migration applies versioned SQL schema changes to a SQLite
// database.
//
// Migration files live in an fs.FS, usually one embedded into the binary,
// and follow the naming convention {version}_{description}.sql (for example
// "001_create_versions.sql"). Each file runs in its own transaction. Applied
// versions, their blake2b checksums and execution times are recorded in the
// schema_migrations table, so re-running the migrations is a no-op and an
// edited file that was already applied is reported instead of silently
// ignored.
//
// Example usage:
//
//	manager := migration.NewManager(migration.NewScanner(), migration.NewSQLiteExecutor(db), files, logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
