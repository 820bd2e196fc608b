package application

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/example/conference-scheduler/internal/diff"
	"github.com/example/conference-scheduler/internal/domain"
	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/scheduler"
	"github.com/example/conference-scheduler/internal/swap"
)

const (
	maxLabelLength       = 120
	maxDescriptionLength = 2000
)

// HistoryService is the version store of one managed schedule. It gates every
// append on the validator and keeps the history append-only.
type HistoryService struct {
	versions    persistence.VersionRepository
	validator   *scheduler.Validator
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	compares    *compareCache

	// appendMu serialises validate + insert so ordinals and default labels
	// are assigned without races.
	appendMu sync.Mutex
}

// NewHistoryService wires a history over versions. A nil idGenerator falls
// back to random UUIDs and a nil now to time.Now.
func NewHistoryService(versions persistence.VersionRepository, validator *scheduler.Validator, idGenerator func() string, now func() time.Time, logger *slog.Logger) *HistoryService {
	if idGenerator == nil {
		idGenerator = newVersionID
	}
	if now == nil {
		now = time.Now
	}
	return &HistoryService{
		versions:    versions,
		validator:   validator,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
		compares:    newCompareCache(10*time.Minute, 64, now),
	}
}

// Validator returns the validator gating appends.
func (s *HistoryService) Validator() *scheduler.Validator {
	return s.validator
}

func (s *HistoryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "HistoryService", operation, attrs...)
}

// Validate runs the validator without storing anything.
func (s *HistoryService) Validate(ctx context.Context, schedule domain.Schedule) (scheduler.Report, error) {
	if s.validator == nil {
		return scheduler.Report{}, ErrNoValidator
	}
	report, err := s.validator.Validate(schedule)
	logger := s.loggerWith(ctx, "Validate")
	if err != nil {
		logger.WarnContext(ctx, "schedule rejected as malformed", "error", err, "error_kind", ErrorKind(err))
		return scheduler.Report{}, err
	}
	logger.DebugContext(ctx, "schedule validated", "violations", len(report.Violations), "soft_total", report.Total)
	return report, nil
}

// Append validates params.Schedule and stores it as the next version. A
// schedule with any hard violation is refused with a *HardConstraintError.
func (s *HistoryService) Append(ctx context.Context, params AppendParams) (version Version, err error) {
	if s == nil {
		err = fmt.Errorf("HistoryService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Append", "label", params.Label)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to append version", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("version", version.Ordinal, "version_id", version.ID).InfoContext(ctx, "version appended")
	}()

	label := strings.TrimSpace(params.Label)
	vErr := validateMetadata(label, params.Description)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if s.validator == nil {
		err = ErrNoValidator
		return
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	return s.appendLocked(ctx, params.Schedule, label, params.Description)
}

// appendLocked validates and stores schedule. The caller holds appendMu.
func (s *HistoryService) appendLocked(ctx context.Context, schedule domain.Schedule, label, description string) (Version, error) {
	report, err := s.validator.Validate(schedule)
	if err != nil {
		return Version{}, err
	}
	if !report.Valid() {
		return Version{}, &HardConstraintError{Report: report}
	}

	if label == "" {
		if label, err = s.defaultLabel(ctx); err != nil {
			return Version{}, err
		}
	}

	scheduleJSON, err := json.Marshal(schedule)
	if err != nil {
		return Version{}, fmt.Errorf("encode schedule: %w", err)
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return Version{}, fmt.Errorf("encode report: %w", err)
	}

	stored, err := s.versions.AppendVersion(ctx, persistence.VersionRecord{
		ID:          s.idGenerator(),
		Label:       label,
		Description: description,
		CreatedAt:   s.now().UTC(),
		Schedule:    scheduleJSON,
		Report:      reportJSON,
		Checksum:    checksum(scheduleJSON),
		SoftTotal:   report.Total,
	})
	if err != nil {
		return Version{}, mapVersionRepoError(err)
	}

	return Version{
		Ordinal:     stored.Ordinal,
		ID:          stored.ID,
		Label:       stored.Label,
		Description: stored.Description,
		CreatedAt:   stored.CreatedAt,
		Schedule:    schedule.Clone(),
		Report:      report,
		Checksum:    stored.Checksum,
	}, nil
}

// defaultLabel returns "Version N" for the next ordinal N, or the first
// higher N whose label is still free.
func (s *HistoryService) defaultLabel(ctx context.Context) (string, error) {
	count, err := s.versions.CountVersions(ctx)
	if err != nil {
		return "", mapVersionRepoError(err)
	}
	for n := count + 1; ; n++ {
		label := fmt.Sprintf("Version %d", n)
		_, err := s.versions.GetVersionByLabel(ctx, label)
		if errors.Is(err, persistence.ErrNotFound) {
			return label, nil
		}
		if err != nil {
			return "", mapVersionRepoError(err)
		}
	}
}

// Latest returns the most recent version, or ErrEmptyHistory.
func (s *HistoryService) Latest(ctx context.Context) (Version, error) {
	record, err := s.versions.LatestVersion(ctx)
	if errors.Is(err, persistence.ErrNotFound) {
		return Version{}, ErrEmptyHistory
	}
	if err != nil {
		return Version{}, mapVersionRepoError(err)
	}
	return decodeVersion(record)
}

// Get returns the selected version, or ErrNotFound.
func (s *HistoryService) Get(ctx context.Context, sel Selector) (Version, error) {
	var (
		record persistence.VersionRecord
		err    error
	)
	switch {
	case sel.Ordinal > 0:
		record, err = s.versions.GetVersion(ctx, sel.Ordinal)
	case sel.Label != "":
		record, err = s.versions.GetVersionByLabel(ctx, sel.Label)
	case sel.Ordinal < 0:
		return Version{}, fmt.Errorf("%w: version %d", ErrNotFound, sel.Ordinal)
	default:
		return s.Latest(ctx)
	}
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Version{}, fmt.Errorf("%w: %s", ErrNotFound, sel)
		}
		return Version{}, mapVersionRepoError(err)
	}
	return decodeVersion(record)
}

// String renders the selector for messages.
func (sel Selector) String() string {
	switch {
	case sel.Label != "" && sel.Ordinal == 0:
		return fmt.Sprintf("version %q", sel.Label)
	case sel.Ordinal == 0:
		return "latest version"
	default:
		return fmt.Sprintf("version %d", sel.Ordinal)
	}
}

// List returns the metadata of every version in ordinal order without
// loading any schedule.
func (s *HistoryService) List(ctx context.Context) ([]VersionMeta, error) {
	summaries, err := s.versions.ListVersions(ctx)
	if err != nil {
		return nil, mapVersionRepoError(err)
	}
	metas := make([]VersionMeta, 0, len(summaries))
	for _, summary := range summaries {
		metas = append(metas, VersionMeta{
			Ordinal:     summary.Ordinal,
			ID:          summary.ID,
			Label:       summary.Label,
			Description: summary.Description,
			CreatedAt:   summary.CreatedAt,
			SoftTotal:   summary.SoftTotal,
		})
	}
	return metas, nil
}

// Compare diffs two stored versions cell by cell.
func (s *HistoryService) Compare(ctx context.Context, from, to Selector) (Comparison, error) {
	fromVersion, err := s.Get(ctx, from)
	if err != nil {
		return Comparison{}, err
	}
	toVersion, err := s.Get(ctx, to)
	if err != nil {
		return Comparison{}, err
	}

	key := compareKey(fromVersion.Ordinal, toVersion.Ordinal)
	d, ok := s.compares.Get(key)
	if !ok {
		d, err = diff.Compute(fromVersion.Schedule, toVersion.Schedule)
		if err != nil {
			return Comparison{}, err
		}
		s.compares.Store(key, d)
	}

	s.loggerWith(ctx, "Compare", "from", fromVersion.Ordinal, "to", toVersion.Ordinal).
		DebugContext(ctx, "versions compared", "changed", len(d.Changed()), "cached", ok)
	return Comparison{From: fromVersion.Meta(), To: toVersion.Meta(), Diff: d}, nil
}

// ProposeSwap validates a swap against its base version and, when accepted
// and not a dry run, stores the result as a new version. A BaseVersion of
// zero targets the latest version; any older base fails with a
// *StaleBaseError.
func (s *HistoryService) ProposeSwap(ctx context.Context, params SwapParams) (outcome SwapOutcome, err error) {
	req := params.Request
	logger := s.loggerWith(ctx, "ProposeSwap",
		"base_version", req.BaseVersion,
		"first", req.First.String(),
		"second", req.Second.String(),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to process swap", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "swap processed", "accepted", outcome.Result.Accepted, "reasons", len(outcome.Result.Reasons), "dry_run", params.DryRun)
	}()

	if s.validator == nil {
		return SwapOutcome{}, ErrNoValidator
	}
	if vErr := validateMetadata(strings.TrimSpace(params.Label), params.Description); vErr.HasErrors() {
		return SwapOutcome{}, vErr
	}

	// Base lookup and append share the lock so no version lands in between.
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	base, err := s.Get(ctx, Selector{Ordinal: req.BaseVersion})
	if err != nil {
		return SwapOutcome{}, err
	}
	latest, err := s.versions.CountVersions(ctx)
	if err != nil {
		return SwapOutcome{}, mapVersionRepoError(err)
	}
	if base.Ordinal != latest {
		return SwapOutcome{}, &StaleBaseError{Base: base.Ordinal, Latest: latest}
	}
	req.BaseVersion = base.Ordinal

	result, err := swap.Validate(s.validator, base.Schedule, req)
	if err != nil {
		return SwapOutcome{}, err
	}
	outcome.Result = result
	if !result.Accepted || params.DryRun {
		return outcome, nil
	}

	description := params.Description
	if description == "" {
		description = fmt.Sprintf("swap %s <-> %s on %s", req.First, req.Second, base.Label)
	}
	stored, err := s.appendLocked(ctx, result.Schedule, strings.TrimSpace(params.Label), description)
	if err != nil {
		return SwapOutcome{}, err
	}
	undo := req.Inverse(stored.Ordinal)
	outcome.Version = &stored
	outcome.Undo = &undo
	return outcome, nil
}

// Export loads every stored version in ordinal order.
func (s *HistoryService) Export(ctx context.Context) ([]Version, error) {
	summaries, err := s.versions.ListVersions(ctx)
	if err != nil {
		return nil, mapVersionRepoError(err)
	}

	versions := make([]Version, len(summaries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, summary := range summaries {
		g.Go(func() error {
			record, err := s.versions.GetVersion(gctx, summary.Ordinal)
			if err != nil {
				return mapVersionRepoError(err)
			}
			versions[i], err = decodeVersion(record)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return versions, nil
}

// Verify re-checks every stored version concurrently. Ordinals must run 1..N
// and each snapshot must match its checksum and decode; any such failure is
// an integrity issue and makes Verify return an InvariantBreach. With a
// validator configured, intact versions are also re-validated against the
// current catalog; failures there are reported as catalog drift without an
// error.
func (s *HistoryService) Verify(ctx context.Context) (VerifyReport, error) {
	logger := s.loggerWith(ctx, "Verify")

	summaries, err := s.versions.ListVersions(ctx)
	if err != nil {
		return VerifyReport{}, mapVersionRepoError(err)
	}

	var (
		mu     sync.Mutex
		issues []VerifyIssue
	)
	record := func(ordinal int, label string, kind IssueKind, problem string) {
		mu.Lock()
		issues = append(issues, VerifyIssue{Ordinal: ordinal, Label: label, Kind: kind, Problem: problem})
		mu.Unlock()
	}

	for i, summary := range summaries {
		if summary.Ordinal != i+1 {
			record(summary.Ordinal, summary.Label, IssueIntegrity, fmt.Sprintf("ordinal out of sequence, expected %d", i+1))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, summary := range summaries {
		g.Go(func() error {
			stored, err := s.versions.GetVersion(gctx, summary.Ordinal)
			if err != nil {
				return mapVersionRepoError(err)
			}
			version, err := decodeVersion(stored)
			if err != nil {
				record(summary.Ordinal, summary.Label, IssueIntegrity, err.Error())
				return nil
			}
			if s.validator == nil {
				return nil
			}
			report, err := s.validator.Validate(version.Schedule)
			switch {
			case err != nil:
				record(summary.Ordinal, summary.Label, IssueCatalogDrift, err.Error())
			case !report.Valid():
				record(summary.Ordinal, summary.Label, IssueCatalogDrift, (&HardConstraintError{Report: report}).Error())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return VerifyReport{}, err
	}

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].Ordinal != issues[j].Ordinal {
			return issues[i].Ordinal < issues[j].Ordinal
		}
		return issues[i].Kind < issues[j].Kind
	})
	result := VerifyReport{Checked: len(summaries), Issues: issues}
	if !result.OK() {
		broken := len(issues) - result.Drifted()
		logger.ErrorContext(ctx, "history verification failed", "checked", result.Checked, "issues", broken, "error_kind", "invariant_breach")
		return result, &domain.InvariantError{
			Check:  "history",
			Detail: fmt.Sprintf("%d integrity issues across %d versions", broken, len(summaries)),
		}
	}
	if drifted := result.Drifted(); drifted > 0 {
		logger.WarnContext(ctx, "versions no longer valid against current catalog", "checked", result.Checked, "drifted", drifted)
		return result, nil
	}
	logger.InfoContext(ctx, "history verified", "checked", result.Checked)
	return result, nil
}

func validateMetadata(label, description string) *ValidationError {
	vErr := &ValidationError{}
	if len(label) > maxLabelLength {
		vErr.add("label", fmt.Sprintf("label must be at most %d characters", maxLabelLength))
	}
	if len(description) > maxDescriptionLength {
		vErr.add("description", fmt.Sprintf("description must be at most %d characters", maxDescriptionLength))
	}
	return vErr
}

// decodeVersion checks the snapshot checksum before decoding so a corrupt
// record is never served.
func decodeVersion(record persistence.VersionRecord) (Version, error) {
	if sum := checksum(record.Schedule); sum != record.Checksum {
		return Version{}, &domain.InvariantError{
			Check:  "checksum",
			Detail: fmt.Sprintf("version %d snapshot digest %s does not match recorded %s", record.Ordinal, sum, record.Checksum),
		}
	}

	version := Version{
		Ordinal:     record.Ordinal,
		ID:          record.ID,
		Label:       record.Label,
		Description: record.Description,
		CreatedAt:   record.CreatedAt,
		Checksum:    record.Checksum,
	}
	if err := json.Unmarshal(record.Schedule, &version.Schedule); err != nil {
		return Version{}, &domain.InvariantError{Check: "snapshot", Detail: fmt.Sprintf("version %d: %v", record.Ordinal, err)}
	}
	if len(record.Report) > 0 {
		if err := json.Unmarshal(record.Report, &version.Report); err != nil {
			return Version{}, &domain.InvariantError{Check: "report", Detail: fmt.Sprintf("version %d: %v", record.Ordinal, err)}
		}
	}
	return version, nil
}

func checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func mapVersionRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyExists):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, persistence.ErrAlreadyExists):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case errors.Is(err, persistence.ErrConstraintViolation):
		return &domain.InvariantError{Check: "storage", Detail: err.Error()}
	}
	return err
}
