package persistence

import "time"

// VersionRecord is one stored schedule version. Each record is self-contained:
// the full schedule snapshot and the validation report computed when it was
// accepted, so any version loads without replaying history.
type VersionRecord struct {
	// Ordinal is assigned by the repository on append: 1 for the first
	// version, then strictly increasing without gaps.
	Ordinal     int
	ID          string
	Label       string
	Description string
	CreatedAt   time.Time
	// Schedule is the JSON-encoded schedule snapshot.
	Schedule []byte
	// Report is the JSON-encoded validation report.
	Report []byte
	// Checksum is the hex blake2b-256 digest of Schedule.
	Checksum  string
	SoftTotal float64
}

// Summary returns the metadata of the record without its payloads.
func (r VersionRecord) Summary() VersionSummary {
	return VersionSummary{
		Ordinal:     r.Ordinal,
		ID:          r.ID,
		Label:       r.Label,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		Checksum:    r.Checksum,
		SoftTotal:   r.SoftTotal,
	}
}

// VersionSummary is the listing view of a version.
type VersionSummary struct {
	Ordinal     int
	ID          string
	Label       string
	Description string
	CreatedAt   time.Time
	Checksum    string
	SoftTotal   float64
}
