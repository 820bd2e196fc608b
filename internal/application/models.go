package application

import (
	"time"

	"github.com/example/conference-scheduler/internal/diff"
	"github.com/example/conference-scheduler/internal/domain"
	"github.com/example/conference-scheduler/internal/scheduler"
	"github.com/example/conference-scheduler/internal/swap"
)

// Version is an immutable stored snapshot of a complete schedule.
type Version struct {
	Ordinal     int              `json:"version"`
	ID          string           `json:"id"`
	Label       string           `json:"label"`
	Description string           `json:"description,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	Schedule    domain.Schedule  `json:"schedule"`
	Report      scheduler.Report `json:"report"`
	Checksum    string           `json:"checksum"`
}

// VersionMeta is the listing view of a version. It never carries the
// schedule itself.
type VersionMeta struct {
	Ordinal     int       `json:"version"`
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	SoftTotal   float64   `json:"soft_total"`
}

// Meta returns the listing view of v.
func (v Version) Meta() VersionMeta {
	return VersionMeta{
		Ordinal:     v.Ordinal,
		ID:          v.ID,
		Label:       v.Label,
		Description: v.Description,
		CreatedAt:   v.CreatedAt,
		SoftTotal:   v.Report.Total,
	}
}

// AppendParams describes a schedule to store.
type AppendParams struct {
	Schedule domain.Schedule
	// Label defaults to "Version N" for the assigned ordinal N, moving to the
	// next free number when that label is taken.
	Label       string
	Description string
}

// Selector picks a stored version by ordinal or by label. An Ordinal of zero
// with an empty Label selects the latest version.
type Selector struct {
	Ordinal int
	Label   string
}

// Comparison is the cell-by-cell difference between two stored versions.
type Comparison struct {
	From VersionMeta `json:"from"`
	To   VersionMeta `json:"to"`
	Diff diff.Diff   `json:"diff"`
}

// SwapParams proposes a swap. With DryRun set the result is reported but
// nothing is stored.
type SwapParams struct {
	Request     swap.Request
	Label       string
	Description string
	DryRun      bool
}

// SwapOutcome is the result of a proposed swap. Version is set only when the
// swap was accepted and stored.
type SwapOutcome struct {
	Result  swap.Result `json:"result"`
	Version *Version    `json:"version,omitempty"`
	// Undo is the request that reverts a stored swap.
	Undo *swap.Request `json:"undo,omitempty"`
}

// IssueKind classifies a verification issue.
type IssueKind string

const (
	// IssueIntegrity marks a damaged history: an ordinal gap, a checksum
	// mismatch or an undecodable record.
	IssueIntegrity IssueKind = "integrity"
	// IssueCatalogDrift marks an intact version that no longer passes the
	// hard rules against the current catalog, e.g. after a speaker withdrew.
	IssueCatalogDrift IssueKind = "catalog_drift"
)

// VerifyIssue describes one stored version that failed re-verification.
type VerifyIssue struct {
	Ordinal int       `json:"version"`
	Label   string    `json:"label"`
	Kind    IssueKind `json:"kind"`
	Problem string    `json:"problem"`
}

// VerifyReport summarises a full history check.
type VerifyReport struct {
	Checked int           `json:"checked"`
	Issues  []VerifyIssue `json:"issues,omitempty"`
}

// OK reports whether the history is intact. Catalog drift does not count.
func (r VerifyReport) OK() bool {
	return r.count(IssueIntegrity) == 0
}

// Drifted returns the number of versions invalid against the current catalog.
func (r VerifyReport) Drifted() int {
	return r.count(IssueCatalogDrift)
}

func (r VerifyReport) count(kind IssueKind) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			n++
		}
	}
	return n
}
