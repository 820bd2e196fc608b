package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/config"
	"github.com/example/conference-scheduler/internal/domain"
	"github.com/example/conference-scheduler/internal/ingest"
	"github.com/example/conference-scheduler/internal/logging"
	"github.com/example/conference-scheduler/internal/persistence/sqlite"
	"github.com/example/conference-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/conference-scheduler/internal/scheduler"
)

// rootOptions holds the persistent flags. Empty values fall back to the
// environment configuration.
type rootOptions struct {
	dbPath         string
	gridFile       string
	sessionsFile   string
	attendanceFile string
	logLevel       string
}

// env is the wired application for one invocation.
type env struct {
	cfg       config.Config
	logger    *slog.Logger
	grid      *domain.Grid
	policy    scheduler.Policy
	catalog   *domain.Catalog
	validator *scheduler.Validator
	store     *sqlite.Store
	history   *application.HistoryService
}

// newEnv loads configuration and the grid. The catalog is loaded only when
// needCatalog is set, the store only when needStore is set.
func newEnv(ctx context.Context, opts rootOptions, stderr io.Writer, needCatalog, needStore bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.dbPath != "" {
		cfg.SQLiteDSN = opts.dbPath
	}
	if opts.gridFile != "" {
		cfg.GridFile = opts.gridFile
	}
	if opts.logLevel != "" {
		if cfg.LogLevel, err = config.ParseLogLevel(opts.logLevel); err != nil {
			return nil, err
		}
	}

	e := &env{cfg: cfg, logger: logging.New(stderr, cfg.LogLevel)}

	gridFile, err := config.ResolveGridFile(cfg)
	if err != nil {
		return nil, err
	}
	if e.grid, err = gridFile.Grid(); err != nil {
		return nil, err
	}
	e.policy = gridFile.ValidatorPolicy(cfg)

	if needCatalog {
		if e.catalog, err = loadCatalog(opts); err != nil {
			return nil, err
		}
		e.validator = scheduler.NewValidator(e.grid, e.catalog, e.policy)
	}

	if needStore {
		sqliteConfig := migration.DefaultSQLiteConfig(cfg.SQLiteDSN)
		sqliteConfig.BusyTimeout = cfg.BusyTimeout
		if e.store, err = sqlite.Open(ctx, sqliteConfig, e.logger); err != nil {
			return nil, err
		}
		e.history = application.NewHistoryService(e.store, e.validator, nil, nil, e.logger)
	}

	e.logger.DebugContext(ctx, "environment ready",
		"slots", e.grid.SlotCount(),
		"rooms", e.grid.RoomCount(),
		"catalog", needCatalog,
		"store", needStore,
	)
	return e, nil
}

func (e *env) Close() error {
	if e == nil || e.store == nil {
		return nil
	}
	return e.store.Close()
}

var errNoSessions = errors.New("a sessions CSV is required (--sessions)")

func loadCatalog(opts rootOptions) (*domain.Catalog, error) {
	if opts.sessionsFile == "" {
		return nil, errNoSessions
	}
	file, err := os.Open(opts.sessionsFile)
	if err != nil {
		return nil, fmt.Errorf("open sessions: %w", err)
	}
	defer file.Close()

	rows, err := ingest.ReadSessionsCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.sessionsFile, err)
	}

	var attendance ingest.Attendance
	if opts.attendanceFile != "" {
		af, err := os.Open(opts.attendanceFile)
		if err != nil {
			return nil, fmt.Errorf("open attendance: %w", err)
		}
		defer af.Close()
		if attendance, err = ingest.ReadAttendance(af); err != nil {
			return nil, fmt.Errorf("%s: %w", opts.attendanceFile, err)
		}
	}

	return ingest.BuildCatalog(rows, attendance)
}

// readSchedule loads a schedule from path, or stdin for "-". With generator
// set the input is unwrapped from a generator output envelope first.
func readSchedule(stdin io.Reader, path string, generator bool) (domain.Schedule, error) {
	var input io.Reader = stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return domain.Schedule{}, fmt.Errorf("open schedule: %w", err)
		}
		defer file.Close()
		input = file
	}
	if !generator {
		return ingest.ParseSchedule(input)
	}
	data, err := io.ReadAll(input)
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("read schedule: %w", err)
	}
	return ingest.DecodeGeneratorOutput(data)
}
