package migration

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultSQLiteConfig(t *testing.T) {
	config := DefaultSQLiteConfig("/tmp/scheduler.db")

	if config.DSN != "/tmp/scheduler.db" {
		t.Errorf("Expected DSN /tmp/scheduler.db, got %s", config.DSN)
	}
	if config.BusyTimeout != 30*time.Second {
		t.Errorf("Expected BusyTimeout 30s, got %v", config.BusyTimeout)
	}
	if !config.EnableForeignKeys {
		t.Error("Expected EnableForeignKeys to be true")
	}
	if config.JournalMode != "WAL" {
		t.Errorf("Expected JournalMode WAL, got %s", config.JournalMode)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SQLiteConfig)
		errMsg string
	}{
		{"valid", func(*SQLiteConfig) {}, ""},
		{"empty DSN", func(c *SQLiteConfig) { c.DSN = "" }, "DSN cannot be empty"},
		{"negative timeout", func(c *SQLiteConfig) { c.BusyTimeout = -time.Second }, "BusyTimeout cannot be negative"},
		{"bad journal mode", func(c *SQLiteConfig) { c.JournalMode = "FAST" }, "invalid journal mode"},
		{"bad synchronous", func(c *SQLiteConfig) { c.Synchronous = "SOMETIMES" }, "invalid synchronous mode"},
		{"negative max open", func(c *SQLiteConfig) { c.MaxOpenConns = -1 }, "MaxOpenConns cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultSQLiteConfig("/tmp/scheduler.db")
			tt.mutate(&config)
			err := NewConnectionManager(config).ValidateConfig()
			if tt.errMsg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestDriverDSN(t *testing.T) {
	cm := &sqliteConnectionManager{config: SQLiteConfig{DSN: "/data/x.db", BusyTimeout: 2 * time.Second, EnableForeignKeys: true, JournalMode: "WAL"}}
	dsn := cm.driverDSN()

	if !strings.HasPrefix(dsn, "file:/data/x.db?") {
		t.Fatalf("unexpected DSN prefix: %s", dsn)
	}
	for _, want := range []string{"busy_timeout%282000%29", "foreign_keys%281%29", "journal_mode%28WAL%29"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %s missing %s", dsn, want)
		}
	}
}

func TestGetConnection_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scheduler.db")
	db, err := NewConnectionManager(TempFileTestSQLiteConfig(path)).GetConnection()
	if err != nil {
		t.Fatalf("GetConnection failed: %v", err)
	}
	defer db.Close()

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys failed: %v", err)
	}
	if fk != 1 {
		t.Errorf("expected foreign keys enabled on pooled connection, got %d", fk)
	}
}
