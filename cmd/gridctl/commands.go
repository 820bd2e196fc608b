package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/diff"
	"github.com/example/conference-scheduler/internal/domain"
	"github.com/example/conference-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/conference-scheduler/internal/swap"
)

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "gridctl",
		Short:         "Validate, version and diff conference schedules",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database path (env SCHEDULER_SQLITE_DSN)")
	flags.StringVar(&opts.gridFile, "grid", "", "grid YAML file (env SCHEDULER_GRID_FILE)")
	flags.StringVar(&opts.sessionsFile, "sessions", "", "sessions CSV")
	flags.StringVar(&opts.attendanceFile, "attendance", "", "speaker attendance YAML")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (env SCHEDULER_LOG_LEVEL)")

	root.AddCommand(
		newValidateCommand(opts, stdout, stderr),
		newAppendCommand(opts, stdout, stderr),
		newSwapCommand(opts, stdout, stderr),
		newDiffCommand(opts, stdout, stderr),
		newHistoryCommand(opts, stdout, stderr),
		newShowCommand(opts, stdout, stderr),
		newExportCommand(opts, stdout, stderr),
		newVerifyCommand(opts, stdout, stderr),
		newCatalogCommand(opts, stdout, stderr),
		newDBCommand(opts, stdout, stderr),
	)
	return root
}

func newValidateCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var generator bool
	cmd := &cobra.Command{
		Use:   "validate <schedule.json|->",
		Short: "Validate a schedule without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, *opts, stderr, true, false)
			if err != nil {
				return err
			}
			defer e.Close()

			schedule, err := readSchedule(cmd.InOrStdin(), args[0], generator)
			if err != nil {
				return err
			}
			report, err := e.validator.Validate(schedule)
			if err != nil {
				return err
			}
			if err := writeJSON(stdout, report); err != nil {
				return err
			}
			if !report.Valid() {
				return reported(exitHardViolation)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&generator, "generator", false, "input is raw generator output")
	return cmd
}

func newAppendCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		generator   bool
		label       string
		description string
	)
	cmd := &cobra.Command{
		Use:   "append <schedule.json|->",
		Short: "Validate a schedule and store it as the next version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, *opts, stderr, true, true)
			if err != nil {
				return err
			}
			defer e.Close()

			schedule, err := readSchedule(cmd.InOrStdin(), args[0], generator)
			if err != nil {
				return err
			}
			version, err := e.history.Append(ctx, application.AppendParams{
				Schedule:    schedule,
				Label:       label,
				Description: description,
			})
			var hardErr *application.HardConstraintError
			if errors.As(err, &hardErr) {
				if werr := writeJSON(stdout, hardErr.Report); werr != nil {
					return werr
				}
				fmt.Fprintln(stderr, "error:", err)
				return reported(exitHardViolation)
			}
			if err != nil {
				return err
			}
			return writeJSON(stdout, version.Meta())
		},
	}
	cmd.Flags().BoolVar(&generator, "generator", false, "input is raw generator output")
	cmd.Flags().StringVar(&label, "label", "", `version label (default "Version N")`)
	cmd.Flags().StringVar(&description, "description", "", "version description")
	return cmd
}

func newSwapCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var (
		base        int
		label       string
		description string
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "swap <slot:room> <slot:room>",
		Short: "Exchange two cells of a stored version",
		Long: "Exchange two cells of a stored version. Only the sessions that change slot are checked.\n" +
			"An accepted swap is stored as a new version unless --dry-run is set.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			first, err := domain.ParseCellRef(args[0])
			if err != nil {
				return err
			}
			second, err := domain.ParseCellRef(args[1])
			if err != nil {
				return err
			}

			e, err := newEnv(ctx, *opts, stderr, true, true)
			if err != nil {
				return err
			}
			defer e.Close()

			outcome, err := e.history.ProposeSwap(ctx, application.SwapParams{
				Request:     swap.Request{BaseVersion: base, First: first, Second: second},
				Label:       label,
				Description: description,
				DryRun:      dryRun,
			})
			if err != nil {
				return err
			}
			if err := writeJSON(stdout, swapView(e, outcome)); err != nil {
				return err
			}
			if !outcome.Result.Accepted {
				return reported(exitSwapRejected)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&base, "base", 0, "base version ordinal (default latest)")
	cmd.Flags().StringVar(&label, "label", "", "label of the stored version")
	cmd.Flags().StringVar(&description, "description", "", "description of the stored version")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the outcome without storing it")
	return cmd
}

func newDiffCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "diff <from> <to>",
		Short: "Compare two stored versions cell by cell",
		Long:  "Compare two stored versions. " + selectorHelp,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, *opts, stderr, false, true)
			if err != nil {
				return err
			}
			defer e.Close()

			from, err := parseSelector(args[0])
			if err != nil {
				return err
			}
			to, err := parseSelector(args[1])
			if err != nil {
				return err
			}

			comparison, err := e.history.Compare(ctx, from, to)
			if err != nil {
				return err
			}
			return writeJSON(stdout, diffView(e.grid, comparison, all))
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include unchanged cells")
	return cmd
}

func newHistoryCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List stored versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, *opts, stderr, false, true)
			if err != nil {
				return err
			}
			defer e.Close()

			metas, err := e.history.List(ctx)
			if err != nil {
				return err
			}
			return writeJSON(stdout, metas)
		},
	}
}

func newShowCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "show [version]",
		Short: "Print a stored version (default latest)",
		Long:  "Print a stored version. " + selectorHelp,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sel application.Selector
			if len(args) == 1 {
				var err error
				if sel, err = parseSelector(args[0]); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			e, err := newEnv(ctx, *opts, stderr, false, true)
			if err != nil {
				return err
			}
			defer e.Close()

			version, err := e.history.Get(ctx, sel)
			if err != nil {
				return err
			}
			return writeJSON(stdout, version)
		},
	}
}

func newExportCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print every stored version in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, *opts, stderr, false, true)
			if err != nil {
				return err
			}
			defer e.Close()

			versions, err := e.history.Export(ctx)
			if err != nil {
				return err
			}
			return writeJSON(stdout, versions)
		},
	}
}

func newVerifyCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Re-check the integrity of every stored version",
		Long: "Re-check ordinals and checksums of every stored version. With --sessions the versions are\n" +
			"also re-validated against the current catalog; versions that no longer pass are listed as\n" +
			"catalog_drift issues without failing the command.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, *opts, stderr, opts.sessionsFile != "", true)
			if err != nil {
				return err
			}
			defer e.Close()

			report, verr := e.history.Verify(ctx)
			if verr != nil && !errors.Is(verr, domain.ErrInvariantBreach) {
				return verr
			}
			if err := writeJSON(stdout, report); err != nil {
				return err
			}
			if verr != nil {
				fmt.Fprintln(stderr, "error:", verr)
				return reported(exitBrokenHistory)
			}
			return nil
		},
	}
}

func newCatalogCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the session catalog built from --sessions and --attendance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv(cmd.Context(), *opts, stderr, true, false)
			if err != nil {
				return err
			}
			defer e.Close()
			return writeJSON(stdout, catalogView(e.catalog))
		},
	}
}

func newDBCommand(opts *rootOptions, stdout, stderr io.Writer) *cobra.Command {
	db := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	db.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := newEnv(ctx, *opts, stderr, false, true)
			if err != nil {
				return err
			}
			defer e.Close()

			status, err := e.store.SchemaStatus(ctx)
			if err != nil {
				return err
			}
			return writeJSON(stdout, schemaView(status))
		},
	})
	return db
}

const selectorHelp = `A version is selected by ordinal, with "latest", or by label. ` +
	`Use "label:<text>" for labels that look like a number or "latest".`

// parseSelector reads "latest", a positive ordinal, "label:<text>" or a bare
// label.
func parseSelector(value string) (application.Selector, error) {
	value = strings.TrimSpace(value)
	if label, ok := strings.CutPrefix(value, "label:"); ok {
		if label = strings.TrimSpace(label); label == "" {
			return application.Selector{}, fmt.Errorf("%w: empty label selector", domain.ErrMalformedInput)
		}
		return application.Selector{Label: label}, nil
	}
	if strings.EqualFold(value, "latest") {
		return application.Selector{}, nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		if n <= 0 {
			return application.Selector{}, fmt.Errorf("%w: version ordinal must be positive, got %d", domain.ErrMalformedInput, n)
		}
		return application.Selector{Ordinal: n}, nil
	}
	if value == "" {
		return application.Selector{}, fmt.Errorf("%w: empty version selector", domain.ErrMalformedInput)
	}
	return application.Selector{Label: value}, nil
}

type swapOutput struct {
	Accepted bool              `json:"accepted"`
	DryRun   bool              `json:"dry_run"`
	Reasons  []swap.Rejection  `json:"reasons,omitempty"`
	Changes  []diff.Entry      `json:"changes,omitempty"`
	Version  *versionReference `json:"version,omitempty"`
	Undo     *swap.Request     `json:"undo,omitempty"`
}

type versionReference struct {
	Ordinal int    `json:"version"`
	Label   string `json:"label"`
}

// swapView addresses the changed cells of an accepted swap by grid reference.
func swapView(e *env, outcome application.SwapOutcome) swapOutput {
	out := swapOutput{
		Accepted: outcome.Result.Accepted,
		DryRun:   outcome.Result.Accepted && outcome.Version == nil,
		Reasons:  outcome.Result.Reasons,
		Undo:     outcome.Undo,
	}
	if outcome.Result.Accepted {
		out.Changes = outcome.Result.Diff.Entries(e.grid, true)
	}
	if outcome.Version != nil {
		out.Version = &versionReference{Ordinal: outcome.Version.Ordinal, Label: outcome.Version.Label}
	}
	return out
}

type diffOutput struct {
	From    application.VersionMeta `json:"from"`
	To      application.VersionMeta `json:"to"`
	Summary map[diff.Kind]int       `json:"summary"`
	Entries []diff.Entry            `json:"entries"`
	Lines   []string                `json:"lines"`
}

func diffView(g *domain.Grid, c application.Comparison, all bool) diffOutput {
	out := diffOutput{
		From:    c.From,
		To:      c.To,
		Summary: c.Diff.Summary(),
		Entries: c.Diff.Entries(g, !all),
		Lines:   []string{},
	}
	for _, cd := range c.Diff.Changed() {
		out.Lines = append(out.Lines, diff.Describe(g, cd))
	}
	return out
}

type catalogOutput struct {
	Sessions             []domain.Session    `json:"sessions"`
	Tracks               []domain.Track      `json:"tracks"`
	MultiSessionSpeakers map[string][]string `json:"multi_session_speakers"`
}

func catalogView(c *domain.Catalog) catalogOutput {
	out := catalogOutput{MultiSessionSpeakers: c.MultiSessionSpeakers()}
	tracks := map[string]bool{}
	for _, id := range c.SessionIDs() {
		session, _ := c.Session(id)
		out.Sessions = append(out.Sessions, session)
		if session.TrackID == "" || tracks[session.TrackID] {
			continue
		}
		tracks[session.TrackID] = true
		if track, ok := c.Track(session.TrackID); ok {
			out.Tracks = append(out.Tracks, track)
		}
	}
	return out
}

type schemaOutput struct {
	CurrentVersion string   `json:"current_version"`
	Applied        []string `json:"applied"`
	Pending        []string `json:"pending"`
}

func schemaView(status *migration.Status) schemaOutput {
	out := schemaOutput{
		CurrentVersion: status.CurrentVersion,
		Applied:        []string{},
		Pending:        []string{},
	}
	for _, applied := range status.Applied {
		out.Applied = append(out.Applied, applied.Version)
	}
	for _, pending := range status.Pending {
		out.Pending = append(out.Pending, pending.Version+"_"+pending.Description)
	}
	return out
}
