package application_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/diff"
	"github.com/example/conference-scheduler/internal/domain"
	"github.com/example/conference-scheduler/internal/persistence"
	"github.com/example/conference-scheduler/internal/persistence/memory"
	"github.com/example/conference-scheduler/internal/scheduler"
	"github.com/example/conference-scheduler/internal/swap"
	"github.com/example/conference-scheduler/internal/testfixtures"
)

func toyValidator(t *testing.T) *scheduler.Validator {
	t.Helper()
	return scheduler.NewValidator(testfixtures.ToyGrid(t), testfixtures.ToyCatalog(t), scheduler.DefaultPolicy())
}

func ref(slot int, room string) domain.CellRef {
	return domain.CellRef{Slot: slot, Room: room}
}

// repositories runs fn against every storage backend.
func repositories(t *testing.T, fn func(t *testing.T, repo persistence.VersionRepository)) {
	t.Run("memory", func(t *testing.T) { fn(t, memory.New()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, testfixtures.NewSQLiteStore(t)) })
}

func TestHistoryService_Append(t *testing.T) {
	repositories(t, func(t *testing.T, repo persistence.VersionRepository) {
		ctx := context.Background()
		h := testfixtures.NewHistory(t, repo, toyValidator(t))

		v1, err := h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyValid(t)})
		require.NoError(t, err)
		assert.Equal(t, 1, v1.Ordinal)
		assert.Equal(t, "Version 1", v1.Label)
		assert.True(t, v1.CreatedAt.Equal(testfixtures.ReferenceTime()))
		assert.True(t, v1.Report.Valid())
		assert.NotEmpty(t, v1.Checksum)

		v2, err := h.Service.Append(ctx, application.AppendParams{
			Schedule:    testfixtures.Schedule(t, []string{"S4", "S1"}, []string{"S2", "S3"}),
			Label:       " keynote moved ",
			Description: "room change",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, v2.Ordinal)
		assert.Equal(t, "keynote moved", v2.Label)
		assert.NotEqual(t, v1.ID, v2.ID)
		assert.True(t, v2.CreatedAt.After(v1.CreatedAt))

		got, err := h.Service.Get(ctx, application.Selector{Ordinal: 1})
		require.NoError(t, err)
		assert.True(t, got.Schedule.Equal(testfixtures.ToyValid(t)))
		assert.Equal(t, v1.ID, got.ID)
		assert.Equal(t, v1.Checksum, got.Checksum)
		assert.InDelta(t, v1.Report.Total, got.Report.Total, 1e-12)

		byLabel, err := h.Service.Get(ctx, application.Selector{Label: "keynote moved"})
		require.NoError(t, err)
		assert.Equal(t, 2, byLabel.Ordinal)
		assert.Equal(t, "room change", byLabel.Description)

		latest, err := h.Service.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, latest.Ordinal)

		fromZero, err := h.Service.Get(ctx, application.Selector{})
		require.NoError(t, err)
		assert.Equal(t, 2, fromZero.Ordinal)
	})
}

func TestHistoryService_AppendRefusals(t *testing.T) {
	ctx := context.Background()

	t.Run("hard violations are refused with the full report", func(t *testing.T) {
		h := testfixtures.NewHistory(t, nil, toyValidator(t))

		_, err := h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyConflicting(t)})
		require.ErrorIs(t, err, application.ErrHardConstraint)

		var hardErr *application.HardConstraintError
		require.ErrorAs(t, err, &hardErr)
		conflicts := hardErr.Report.ViolationsOf(scheduler.RuleSpeakerConflict)
		require.Len(t, conflicts, 1)
		assert.Equal(t, "A", conflicts[0].SpeakerID)
		assert.NotEmpty(t, hardErr.Report.ViolationsOf(scheduler.RuleCoverage))
		assert.NotEmpty(t, hardErr.Report.ViolationsOf(scheduler.RuleFill))

		_, err = h.Service.Latest(ctx)
		assert.ErrorIs(t, err, application.ErrNotFound)
	})

	t.Run("unknown sessions are malformed", func(t *testing.T) {
		h := testfixtures.NewHistory(t, nil, toyValidator(t))

		_, err := h.Service.Append(ctx, application.AppendParams{
			Schedule: testfixtures.Schedule(t, []string{"S1", "S9"}, []string{"S2", "S3"}),
		})
		require.ErrorIs(t, err, domain.ErrMalformedInput)
		var refErr *domain.ReferenceError
		require.ErrorAs(t, err, &refErr)
		assert.Equal(t, "S9", refErr.ID)
		assert.Equal(t, "malformed_input", application.ErrorKind(err))
	})

	t.Run("duplicate labels are refused", func(t *testing.T) {
		h := testfixtures.NewHistory(t, nil, toyValidator(t))

		_, err := h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyValid(t), Label: "final"})
		require.NoError(t, err)
		_, err = h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyValid(t), Label: "final"})
		assert.ErrorIs(t, err, application.ErrAlreadyExists)

		next, err := h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyValid(t)})
		require.NoError(t, err)
		assert.Equal(t, 2, next.Ordinal)
		assert.Equal(t, "Version 2", next.Label)
	})

	t.Run("oversized metadata is a validation error", func(t *testing.T) {
		h := testfixtures.NewHistory(t, nil, toyValidator(t))

		_, err := h.Service.Append(ctx, application.AppendParams{
			Schedule: testfixtures.ToyValid(t),
			Label:    strings.Repeat("x", 121),
		})
		var vErr *application.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "label")
	})
}

func TestHistoryService_LookupMisses(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewHistory(t, nil, toyValidator(t))

	_, err := h.Service.Latest(ctx)
	assert.ErrorIs(t, err, application.ErrEmptyHistory)

	_, err = h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyValid(t)})
	require.NoError(t, err)

	for _, sel := range []application.Selector{{Ordinal: 2}, {Ordinal: -1}, {Label: "nope"}} {
		_, err := h.Service.Get(ctx, sel)
		assert.ErrorIs(t, err, application.ErrNotFound, "selector %v", sel)
	}
}

func TestHistoryService_ConcurrentAppends(t *testing.T) {
	repositories(t, func(t *testing.T, repo persistence.VersionRepository) {
		ctx := context.Background()
		h := testfixtures.NewHistory(t, repo, toyValidator(t))

		const writers = 12
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyValid(t)})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		metas, err := h.Service.List(ctx)
		require.NoError(t, err)
		require.Len(t, metas, writers)
		for i, meta := range metas {
			assert.Equal(t, i+1, meta.Ordinal)
			assert.Equal(t, fmt.Sprintf("Version %d", i+1), meta.Label)
		}
	})
}

func TestHistoryService_Compare(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewHistory(t, nil, toyValidator(t))

	base := testfixtures.ToyValid(t)
	moved := testfixtures.Schedule(t, []string{"S1", "S3"}, []string{"S2", "S4"})
	_, err := h.Service.Append(ctx, application.AppendParams{Schedule: base})
	require.NoError(t, err)
	_, err = h.Service.Append(ctx, application.AppendParams{Schedule: moved})
	require.NoError(t, err)

	cmp, err := h.Service.Compare(ctx, application.Selector{Ordinal: 1}, application.Selector{Ordinal: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, cmp.From.Ordinal)
	assert.Equal(t, 2, cmp.To.Ordinal)
	assert.Len(t, cmp.Diff.Cells, 4)
	assert.Equal(t, map[diff.Kind]int{diff.Unchanged: 2, diff.MovedTo: 2}, cmp.Diff.Summary())

	applied, err := diff.Apply(cmp.Diff, base)
	require.NoError(t, err)
	assert.True(t, applied.Equal(moved))

	again, err := h.Service.Compare(ctx, application.Selector{Ordinal: 1}, application.Selector{Label: "Version 2"})
	require.NoError(t, err)
	assert.Equal(t, cmp.Diff.Cells, again.Diff.Cells)

	back, err := h.Service.Compare(ctx, application.Selector{Ordinal: 2}, application.Selector{Ordinal: 1})
	require.NoError(t, err)
	restored, err := diff.Apply(back.Diff, moved)
	require.NoError(t, err)
	assert.True(t, restored.Equal(base))

	_, err = h.Service.Compare(ctx, application.Selector{Ordinal: 1}, application.Selector{Ordinal: 9})
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestHistoryService_ProposeSwap(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) testfixtures.History {
		h := testfixtures.NewHistory(t, nil, toyValidator(t))
		_, err := h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyValid(t)})
		require.NoError(t, err)
		return h
	}

	t.Run("accepted swap is stored and can be undone", func(t *testing.T) {
		h := setup(t)

		outcome, err := h.Service.ProposeSwap(ctx, application.SwapParams{
			Request: swap.Request{BaseVersion: 1, First: ref(1, "room-a"), Second: ref(2, "room-a")},
		})
		require.NoError(t, err)
		require.True(t, outcome.Result.Accepted)
		require.NotNil(t, outcome.Version)
		assert.Equal(t, 2, outcome.Version.Ordinal)
		assert.Equal(t, "swap 1:room-a <-> 2:room-a on Version 1", outcome.Version.Description)
		assert.Len(t, outcome.Result.Diff.Changed(), 2)

		require.NotNil(t, outcome.Undo)
		assert.Equal(t, 2, outcome.Undo.BaseVersion)

		undone, err := h.Service.ProposeSwap(ctx, application.SwapParams{Request: *outcome.Undo, Label: "reverted"})
		require.NoError(t, err)
		require.True(t, undone.Result.Accepted)
		assert.Equal(t, "reverted", undone.Version.Label)
		assert.True(t, undone.Version.Schedule.Equal(testfixtures.ToyValid(t)))
	})

	t.Run("zero base targets the latest version", func(t *testing.T) {
		h := setup(t)

		outcome, err := h.Service.ProposeSwap(ctx, application.SwapParams{
			Request: swap.Request{First: ref(1, "room-a"), Second: ref(1, "room-b")},
		})
		require.NoError(t, err)
		require.True(t, outcome.Result.Accepted)
		assert.Equal(t, 1, outcome.Undo.Second.Slot)
		assert.Equal(t, "room-a", outcome.Undo.Second.Room)
	})

	t.Run("dry run stores nothing", func(t *testing.T) {
		h := setup(t)

		outcome, err := h.Service.ProposeSwap(ctx, application.SwapParams{
			Request: swap.Request{BaseVersion: 1, First: ref(1, "room-a"), Second: ref(1, "room-b")},
			DryRun:  true,
		})
		require.NoError(t, err)
		assert.True(t, outcome.Result.Accepted)
		assert.Nil(t, outcome.Version)

		metas, err := h.Service.List(ctx)
		require.NoError(t, err)
		assert.Len(t, metas, 1)
	})

	t.Run("rejected swap reports reasons and stores nothing", func(t *testing.T) {
		h := setup(t)

		outcome, err := h.Service.ProposeSwap(ctx, application.SwapParams{
			Request: swap.Request{BaseVersion: 1, First: ref(1, "room-b"), Second: ref(2, "room-a")},
		})
		require.NoError(t, err)
		assert.False(t, outcome.Result.Accepted)
		assert.Len(t, outcome.Result.Reasons, 2)
		assert.Nil(t, outcome.Version)

		_, err = h.Service.Get(ctx, application.Selector{Ordinal: 2})
		assert.ErrorIs(t, err, application.ErrNotFound)
	})

	t.Run("unknown base version", func(t *testing.T) {
		h := setup(t)

		_, err := h.Service.ProposeSwap(ctx, application.SwapParams{
			Request: swap.Request{BaseVersion: 5, First: ref(1, "room-a"), Second: ref(1, "room-b")},
		})
		assert.ErrorIs(t, err, application.ErrNotFound)
	})

	t.Run("older base is refused as stale", func(t *testing.T) {
		h := setup(t)
		_, err := h.Service.Append(ctx, application.AppendParams{
			Schedule: testfixtures.Schedule(t, []string{"S4", "S1"}, []string{"S2", "S3"}),
		})
		require.NoError(t, err)

		_, err = h.Service.ProposeSwap(ctx, application.SwapParams{
			Request: swap.Request{BaseVersion: 1, First: ref(2, "room-a"), Second: ref(2, "room-b")},
		})
		require.ErrorIs(t, err, application.ErrStaleBase)
		var stale *application.StaleBaseError
		require.ErrorAs(t, err, &stale)
		assert.Equal(t, 1, stale.Base)
		assert.Equal(t, 2, stale.Latest)

		latest, err := h.Service.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, latest.Ordinal)
		assert.Equal(t, []string{"S4", "S1"}, latest.Schedule.Slot(0))
	})

	t.Run("concurrent swaps on latest build on each other", func(t *testing.T) {
		h := setup(t)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = h.Service.ProposeSwap(ctx, application.SwapParams{
					Request: swap.Request{First: ref(1, "room-a"), Second: ref(1, "room-b")},
				})
			}()
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}

		latest, err := h.Service.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, latest.Ordinal)
		assert.True(t, latest.Schedule.Equal(testfixtures.ToyValid(t)), "second swap must apply to the first swap's result")
	})

	t.Run("unknown cell is malformed", func(t *testing.T) {
		h := setup(t)

		_, err := h.Service.ProposeSwap(ctx, application.SwapParams{
			Request: swap.Request{BaseVersion: 1, First: ref(1, "room-z"), Second: ref(1, "room-b")},
		})
		assert.ErrorIs(t, err, domain.ErrMalformedInput)
	})
}

func TestHistoryService_ExportAndVerify(t *testing.T) {
	repositories(t, func(t *testing.T, repo persistence.VersionRepository) {
		ctx := context.Background()
		h := testfixtures.NewHistory(t, repo, toyValidator(t))

		for i := 0; i < 3; i++ {
			_, err := h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyValid(t)})
			require.NoError(t, err)
		}

		exported, err := h.Service.Export(ctx)
		require.NoError(t, err)
		require.Len(t, exported, 3)
		for i, v := range exported {
			assert.Equal(t, i+1, v.Ordinal)
			assert.True(t, v.Schedule.Equal(testfixtures.ToyValid(t)))
		}

		report, err := h.Service.Verify(ctx)
		require.NoError(t, err)
		assert.True(t, report.OK())
		assert.Equal(t, 3, report.Checked)

		_, err = repo.AppendVersion(ctx, persistence.VersionRecord{
			ID:       "tampered",
			Label:    "tampered",
			Schedule: []byte(`{"slot_1":["S1","S4"],"slot_2":["S2","S3"]}`),
			Checksum: "0000",
		})
		require.NoError(t, err)

		report, err = h.Service.Verify(ctx)
		require.ErrorIs(t, err, domain.ErrInvariantBreach)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, 4, report.Issues[0].Ordinal)
		assert.Equal(t, application.IssueIntegrity, report.Issues[0].Kind)
		assert.Contains(t, report.Issues[0].Problem, "checksum")

		_, err = h.Service.Get(ctx, application.Selector{Ordinal: 4})
		assert.ErrorIs(t, err, domain.ErrInvariantBreach)
	})
}

func TestHistoryService_DefaultLabelSkipsTakenLabels(t *testing.T) {
	repositories(t, func(t *testing.T, repo persistence.VersionRepository) {
		ctx := context.Background()
		h := testfixtures.NewHistory(t, repo, toyValidator(t))

		_, err := h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyValid(t), Label: "Version 2"})
		require.NoError(t, err)

		second, err := h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyValid(t)})
		require.NoError(t, err)
		assert.Equal(t, 2, second.Ordinal)
		assert.Equal(t, "Version 3", second.Label)
	})
}

func TestHistoryService_VerifyAfterCatalogChange(t *testing.T) {
	repositories(t, func(t *testing.T, repo persistence.VersionRepository) {
		ctx := context.Background()
		h := testfixtures.NewHistory(t, repo, toyValidator(t))
		_, err := h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyValid(t)})
		require.NoError(t, err)

		// S4 was withdrawn and replaced by S5.
		catalog, err := domain.NewCatalog(
			[]domain.Speaker{{ID: "A", Name: "Speaker A"}, {ID: "B", Name: "Speaker B"}},
			[]domain.Track{{ID: "X", Name: "Track X"}, {ID: "Y", Name: "Track Y"}},
			[]domain.Session{
				{ID: "S1", Title: "Session 1", SpeakerIDs: []string{"A"}, TrackID: "X"},
				{ID: "S2", Title: "Session 2", SpeakerIDs: []string{"A"}, TrackID: "Y"},
				{ID: "S3", Title: "Session 3", SpeakerIDs: []string{"B"}, TrackID: "X"},
				{ID: "S5", Title: "Session 5", SpeakerIDs: []string{"B"}, TrackID: "Y"},
			},
		)
		require.NoError(t, err)
		current := scheduler.NewValidator(testfixtures.ToyGrid(t), catalog, scheduler.DefaultPolicy())
		rechecked := testfixtures.NewHistory(t, repo, current)

		report, err := rechecked.Service.Verify(ctx)
		require.NoError(t, err)
		assert.True(t, report.OK())
		assert.Equal(t, 1, report.Drifted())
		require.Len(t, report.Issues, 1)
		assert.Equal(t, application.IssueCatalogDrift, report.Issues[0].Kind)
		assert.Contains(t, report.Issues[0].Problem, "S4")

		integrityOnly := testfixtures.NewHistory(t, repo, nil)
		report, err = integrityOnly.Service.Verify(ctx)
		require.NoError(t, err)
		assert.Empty(t, report.Issues)
	})
}

func TestHistoryService_WithoutValidator(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewHistory(t, nil, nil)

	_, err := h.Service.Validate(ctx, testfixtures.ToyValid(t))
	assert.ErrorIs(t, err, application.ErrNoValidator)

	_, err = h.Service.Append(ctx, application.AppendParams{Schedule: testfixtures.ToyValid(t)})
	assert.ErrorIs(t, err, application.ErrNoValidator)

	_, err = h.Service.ProposeSwap(ctx, application.SwapParams{
		Request: swap.Request{First: ref(1, "room-a"), Second: ref(1, "room-b")},
	})
	assert.ErrorIs(t, err, application.ErrNoValidator)

	metas, err := h.Service.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, metas)
}
