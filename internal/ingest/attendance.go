package ingest

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/conference-scheduler/internal/domain"
)

// Attendance maps a speaker name to the peak attendance of their sessions at
// an earlier edition. Names match case-insensitively.
type Attendance map[string]int

// ReadAttendance decodes a YAML mapping of speaker name to peak attendance.
func ReadAttendance(r io.Reader) (Attendance, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read attendance: %w", err)
	}
	raw := map[string]int{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: attendance: %v", domain.ErrMalformedInput, err)
		}
	}
	if err := rowValidate.Var(raw, "dive,keys,required,endkeys,min=0"); err != nil {
		return nil, fmt.Errorf("%w: attendance: names must be non-empty and counts non-negative", domain.ErrMalformedInput)
	}

	attendance := make(Attendance, len(raw))
	for name, peak := range raw {
		key := normalizeName(name)
		if key == "" {
			return nil, fmt.Errorf("%w: attendance: blank speaker name", domain.ErrMalformedInput)
		}
		if previous, dup := attendance[key]; dup && previous != peak {
			return nil, fmt.Errorf("%w: attendance: %q listed twice with different counts", domain.ErrMalformedInput, name)
		}
		attendance[key] = peak
	}
	return attendance, nil
}

// DrawOf returns the largest known attendance among names, or nil when none
// of them is known.
func (a Attendance) DrawOf(names []string) *float64 {
	var (
		best  int
		known bool
	)
	for _, name := range names {
		peak, ok := a[normalizeName(name)]
		if !ok {
			continue
		}
		if !known || peak > best {
			best, known = peak, true
		}
	}
	if !known {
		return nil
	}
	draw := float64(best)
	return &draw
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
