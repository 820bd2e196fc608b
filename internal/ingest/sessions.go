package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/example/conference-scheduler/internal/domain"
)

// maxDescriptionRunes bounds the description carried into the catalog.
const maxDescriptionRunes = 200

// SessionRow is one accepted session as exported from the call for papers.
type SessionRow struct {
	Line        int    `validate:"-"`
	ID          string `validate:"required"`
	Title       string `validate:"required"`
	Description string
	// Speakers lists presenters separated by commas or semicolons.
	Speakers string `validate:"required"`
	Track    string `validate:"required"`
}

// RowError reports every invalid field of one CSV line.
type RowError struct {
	Line     int
	Problems []string
}

// Error implements the error interface.
func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, strings.Join(e.Problems, "; "))
}

// Is reports ErrMalformedInput.
func (e *RowError) Is(target error) bool {
	return target == domain.ErrMalformedInput
}

var rowValidate = validator.New()

// headerAliases maps accepted column headings to SessionRow fields.
var headerAliases = map[string]string{
	"session id":  "id",
	"session_id":  "id",
	"id":          "id",
	"title":       "title",
	"description": "description",
	"speakers":    "speakers",
	"speaker":     "speakers",
	"track":       "track",
}

// ReadSessionsCSV parses a session export. The first row is the header;
// column order is free. Rows without a session id are skipped. All row
// problems are collected and returned together.
func ReadSessionsCSV(r io.Reader) ([]SessionRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: sessions csv is empty", domain.ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: sessions csv header: %v", domain.ErrMalformedInput, err)
	}

	columns := make(map[string]int)
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if field, ok := headerAliases[key]; ok {
			columns[field] = i
		}
	}
	var missing []string
	for _, field := range []string{"id", "title", "speakers", "track"} {
		if _, ok := columns[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: sessions csv is missing columns: %s", domain.ErrMalformedInput, strings.Join(missing, ", "))
	}

	value := func(record []string, field string) string {
		i, ok := columns[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var (
		rows    []SessionRow
		rowErrs []error
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: sessions csv: %v", domain.ErrMalformedInput, err)
		}

		row := SessionRow{
			Line:        line,
			ID:          value(record, "id"),
			Title:       value(record, "title"),
			Description: truncate(value(record, "description"), maxDescriptionRunes),
			Speakers:    value(record, "speakers"),
			Track:       value(record, "track"),
		}
		if row.ID == "" {
			continue
		}
		if err := validateRow(row); err != nil {
			rowErrs = append(rowErrs, err)
			continue
		}
		rows = append(rows, row)
	}

	if len(rowErrs) > 0 {
		return nil, errors.Join(rowErrs...)
	}
	return rows, nil
}

func validateRow(row SessionRow) error {
	err := rowValidate.Struct(row)
	if err == nil {
		if len(splitSpeakers(row.Speakers)) == 0 {
			return &RowError{Line: row.Line, Problems: []string{"Speakers has no names"}}
		}
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fe.Field()+" is "+fe.Tag())
	}
	return &RowError{Line: row.Line, Problems: problems}
}

// BuildCatalog derives speakers and tracks from the rows and assigns each
// session its draw from attendance. Speaker and track ids are slugs of their
// names.
func BuildCatalog(rows []SessionRow, attendance Attendance) (*domain.Catalog, error) {
	speakers := make(map[string]domain.Speaker)
	tracks := make(map[string]domain.Track)
	sessions := make([]domain.Session, 0, len(rows))

	for _, row := range rows {
		trackID := Slug(row.Track)
		tracks[trackID] = domain.Track{ID: trackID, Name: row.Track}

		names := splitSpeakers(row.Speakers)
		speakerIDs := make([]string, 0, len(names))
		for _, name := range names {
			id := Slug(name)
			if _, ok := speakers[id]; !ok {
				speakers[id] = domain.Speaker{ID: id, Name: name}
			}
			speakerIDs = append(speakerIDs, id)
		}

		sessions = append(sessions, domain.Session{
			ID:          row.ID,
			Title:       row.Title,
			Description: row.Description,
			SpeakerIDs:  speakerIDs,
			TrackID:     trackID,
			Draw:        attendance.DrawOf(names),
		})
	}

	return domain.NewCatalog(sortedValues(speakers), sortedValues(tracks), sessions)
}

// Slug lowercases name and joins its letter and digit runs with dashes.
func Slug(name string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

func splitSpeakers(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ';' })
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		if name := strings.Join(strings.Fields(field), " "); name != "" && Slug(name) != "" {
			names = append(names, name)
		}
	}
	return names
}

func truncate(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit]) + "..."
}

func sortedValues[T interface{ domain.Speaker | domain.Track }](byID map[string]T) []T {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}
