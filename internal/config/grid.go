package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/example/conference-scheduler/internal/domain"
	"github.com/example/conference-scheduler/internal/scheduler"
)

// GridFile is the YAML description of the conference grid and the soft
// scoring policy.
type GridFile struct {
	Slots  []SlotSpec `yaml:"slots" validate:"required,min=1,dive"`
	Rooms  []RoomSpec `yaml:"rooms" validate:"required,min=1,unique=ID,dive"`
	Policy PolicySpec `yaml:"policy"`
}

// SlotSpec describes one time slot.
type SlotSpec struct {
	Ordinal int    `yaml:"ordinal" validate:"required,min=1"`
	Start   string `yaml:"start" validate:"omitempty,clock"`
	End     string `yaml:"end" validate:"omitempty,clock"`
}

// RoomSpec describes one room. Rooms are listed in schedule column order.
type RoomSpec struct {
	ID        string `yaml:"id" validate:"required"`
	Name      string `yaml:"name"`
	Capacity  int    `yaml:"capacity" validate:"required,min=1"`
	Live      string `yaml:"live"`
	Simulcast string `yaml:"simulcast"`
}

// PolicySpec holds the validator knobs.
type PolicySpec struct {
	Weights               scheduler.Weights `yaml:"weights"`
	EnforceTrackCollision bool              `yaml:"enforce_track_collision"`
	TopicWindow           int               `yaml:"topic_window" validate:"min=0"`
}

var (
	gridValidate *validator.Validate
	clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

func init() {
	gridValidate = validator.New()
	_ = gridValidate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})
}

// LoadGridFile reads and validates a YAML grid file.
func LoadGridFile(path string) (GridFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GridFile{}, fmt.Errorf("read grid file: %w", err)
	}
	return ParseGridFile(data)
}

// ParseGridFile decodes and validates YAML grid data. Unknown keys are
// rejected.
func ParseGridFile(data []byte) (GridFile, error) {
	var file GridFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return GridFile{}, fmt.Errorf("%w: grid file: %v", domain.ErrMalformedInput, err)
	}
	if err := file.Validate(); err != nil {
		return GridFile{}, err
	}
	return file, nil
}

// Validate checks field constraints.
func (f GridFile) Validate() error {
	err := gridValidate.Struct(f)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: grid file: %v", domain.ErrMalformedInput, err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: grid file: %s", domain.ErrMalformedInput, strings.Join(problems, "; "))
}

// Grid builds the domain grid described by the file.
func (f GridFile) Grid() (*domain.Grid, error) {
	slots := make([]domain.Slot, len(f.Slots))
	for i, spec := range f.Slots {
		slots[i] = domain.Slot{Ordinal: spec.Ordinal, Start: spec.Start, End: spec.End}
	}
	rooms := make([]domain.Room, len(f.Rooms))
	for i, spec := range f.Rooms {
		name := spec.Name
		if name == "" {
			name = spec.ID
		}
		rooms[i] = domain.Room{
			ID:        spec.ID,
			Name:      name,
			Capacity:  spec.Capacity,
			Live:      spec.Live,
			Simulcast: spec.Simulcast,
		}
	}
	return domain.NewGrid(slots, rooms)
}

// ValidatorPolicy returns the file's policy with environment overrides from
// cfg applied.
func (f GridFile) ValidatorPolicy(cfg Config) scheduler.Policy {
	policy := scheduler.Policy{
		Weights:               f.Policy.Weights,
		EnforceTrackCollision: f.Policy.EnforceTrackCollision,
		TopicWindow:           f.Policy.TopicWindow,
	}
	if cfg.EnforceTrackCollision != nil {
		policy.EnforceTrackCollision = *cfg.EnforceTrackCollision
	}
	if cfg.TopicWindow > 0 {
		policy.TopicWindow = cfg.TopicWindow
	}
	return policy
}

// ResolveGridFile returns the file named by cfg.GridFile, or the default
// conference layout when none is configured.
func ResolveGridFile(cfg Config) (GridFile, error) {
	if cfg.GridFile == "" {
		return DefaultGridFile(), nil
	}
	return LoadGridFile(cfg.GridFile)
}
