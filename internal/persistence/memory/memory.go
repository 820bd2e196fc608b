// Package memory provides an in-process VersionRepository.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/conference-scheduler/internal/persistence"
)

// Storage keeps versions in memory. Readers take a shared lock; append takes
// the exclusive lock, so readers never observe a partially written record.
type Storage struct {
	mu       sync.RWMutex
	versions []persistence.VersionRecord
	byID     map[string]int
	byLabel  map[string]int
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		byID:    make(map[string]int),
		byLabel: make(map[string]int),
	}
}

// AppendVersion stores the record with the next ordinal.
func (s *Storage) AppendVersion(ctx context.Context, record persistence.VersionRecord) (persistence.VersionRecord, error) {
	if err := ctx.Err(); err != nil {
		return persistence.VersionRecord{}, err
	}
	if record.ID == "" || record.Label == "" || len(record.Schedule) == 0 {
		return persistence.VersionRecord{}, persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[record.ID]; ok {
		return persistence.VersionRecord{}, fmt.Errorf("version id %s: %w", record.ID, persistence.ErrAlreadyExists)
	}
	if _, ok := s.byLabel[record.Label]; ok {
		return persistence.VersionRecord{}, fmt.Errorf("version label %q: %w", record.Label, persistence.ErrAlreadyExists)
	}

	stored := cloneVersion(record)
	stored.Ordinal = len(s.versions) + 1
	s.versions = append(s.versions, stored)
	s.byID[stored.ID] = stored.Ordinal
	s.byLabel[stored.Label] = stored.Ordinal

	return cloneVersion(stored), nil
}

// GetVersion returns the record with the given ordinal.
func (s *Storage) GetVersion(ctx context.Context, ordinal int) (persistence.VersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ordinal < 1 || ordinal > len(s.versions) {
		return persistence.VersionRecord{}, persistence.ErrNotFound
	}
	return cloneVersion(s.versions[ordinal-1]), nil
}

// GetVersionByLabel returns the record with the given label.
func (s *Storage) GetVersionByLabel(ctx context.Context, label string) (persistence.VersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ordinal, ok := s.byLabel[label]
	if !ok {
		return persistence.VersionRecord{}, persistence.ErrNotFound
	}
	return cloneVersion(s.versions[ordinal-1]), nil
}

// LatestVersion returns the last appended record.
func (s *Storage) LatestVersion(ctx context.Context) (persistence.VersionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.versions) == 0 {
		return persistence.VersionRecord{}, persistence.ErrNotFound
	}
	return cloneVersion(s.versions[len(s.versions)-1]), nil
}

// ListVersions returns summaries ordered by ordinal.
func (s *Storage) ListVersions(ctx context.Context) ([]persistence.VersionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]persistence.VersionSummary, 0, len(s.versions))
	for _, record := range s.versions {
		summaries = append(summaries, record.Summary())
	}
	return summaries, nil
}

// CountVersions returns the number of stored versions.
func (s *Storage) CountVersions(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions), nil
}

// Close releases resources held by the storage. No-op for memory.
func (s *Storage) Close() error {
	return nil
}

func cloneVersion(record persistence.VersionRecord) persistence.VersionRecord {
	clone := record
	clone.Schedule = append([]byte(nil), record.Schedule...)
	clone.Report = append([]byte(nil), record.Report...)
	return clone
}

var _ persistence.VersionRepository = (*Storage)(nil)
