package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Schedule maps every (slot, room) cell to a session id. An empty string marks
// an explicitly empty cell. Schedules are values: every edit returns a copy.
type Schedule struct {
	cells [][]string
}

// NewSchedule returns an all-empty schedule of the given shape.
func NewSchedule(slots, rooms int) Schedule {
	cells := make([][]string, slots)
	for i := range cells {
		cells[i] = make([]string, rooms)
	}
	return Schedule{cells: cells}
}

// ScheduleFromRows builds a schedule from slot-major rows. Every row must
// have the same length.
func ScheduleFromRows(rows [][]string) (Schedule, error) {
	if len(rows) == 0 {
		return Schedule{}, malformed("schedule has no slots")
	}
	width := len(rows[0])
	cells := make([][]string, len(rows))
	for i, row := range rows {
		if len(row) != width {
			return Schedule{}, malformed("slot %d has %d rooms, expected %d", i+1, len(row), width)
		}
		cells[i] = make([]string, width)
		for j, id := range row {
			cells[i][j] = strings.TrimSpace(id)
		}
	}
	return Schedule{cells: cells}, nil
}

// SlotCount returns the number of slot rows.
func (s Schedule) SlotCount() int { return len(s.cells) }

// RoomCount returns the number of room columns.
func (s Schedule) RoomCount() int {
	if len(s.cells) == 0 {
		return 0
	}
	return len(s.cells[0])
}

// CellCount returns the number of cells.
func (s Schedule) CellCount() int { return s.SlotCount() * s.RoomCount() }

// At returns the session id at the cell, or "" when empty.
func (s Schedule) At(c Cell) string {
	return s.cells[c.Slot][c.Room]
}

// Contains reports whether the cell lies inside the schedule.
func (s Schedule) Contains(c Cell) bool {
	return c.Slot >= 0 && c.Slot < s.SlotCount() && c.Room >= 0 && c.Room < s.RoomCount()
}

// Slot returns a copy of the session ids placed in one slot, in room order.
func (s Schedule) Slot(index int) []string {
	return append([]string(nil), s.cells[index]...)
}

// Rows returns a deep copy of the slot-major cell matrix.
func (s Schedule) Rows() [][]string {
	out := make([][]string, len(s.cells))
	for i, row := range s.cells {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// Clone returns an independent copy.
func (s Schedule) Clone() Schedule {
	return Schedule{cells: s.Rows()}
}

// With returns a copy with the cell set to id.
func (s Schedule) With(c Cell, id string) Schedule {
	out := s.Clone()
	out.cells[c.Slot][c.Room] = id
	return out
}

// Swap returns a copy with the two cells exchanged. Swapping with an empty
// cell is a move.
func (s Schedule) Swap(a, b Cell) Schedule {
	out := s.Clone()
	out.cells[a.Slot][a.Room], out.cells[b.Slot][b.Room] = out.cells[b.Slot][b.Room], out.cells[a.Slot][a.Room]
	return out
}

// Equal reports whether both schedules have the same shape and placements.
func (s Schedule) Equal(other Schedule) bool {
	if s.SlotCount() != other.SlotCount() || s.RoomCount() != other.RoomCount() {
		return false
	}
	for i := range s.cells {
		for j := range s.cells[i] {
			if s.cells[i][j] != other.cells[i][j] {
				return false
			}
		}
	}
	return true
}

// Each calls fn for every cell in slot-major order.
func (s Schedule) Each(fn func(c Cell, id string)) {
	for i, row := range s.cells {
		for j, id := range row {
			fn(Cell{Slot: i, Room: j}, id)
		}
	}
}

// Placements returns where each session id occurs. Empty cells are skipped.
func (s Schedule) Placements() map[string][]Cell {
	out := make(map[string][]Cell)
	s.Each(func(c Cell, id string) {
		if id != "" {
			out[id] = append(out[id], c)
		}
	})
	return out
}

// EmptyCells lists the unoccupied cells in slot-major order.
func (s Schedule) EmptyCells() []Cell {
	var empty []Cell
	s.Each(func(c Cell, id string) {
		if id == "" {
			empty = append(empty, c)
		}
	})
	return empty
}

// MarshalJSON encodes the schedule in the generator wire format:
// {"slot_1": ["id", ...], "slot_2": [...]}, positions following room order.
func (s Schedule) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, row := range s.cells {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(slotKey(i + 1))
		buf.Write(key)
		buf.WriteByte(':')
		ids, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		buf.Write(ids)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the generator wire format. Session ids may be JSON
// strings or numbers; null marks an empty cell.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: schedule json: %v", ErrMalformedInput, err)
	}

	ordinals := make([]int, 0, len(raw))
	byOrdinal := make(map[int][]json.RawMessage, len(raw))
	for key, values := range raw {
		ordinal, ok := parseSlotKey(key)
		if !ok {
			return malformed("unexpected schedule key %q", key)
		}
		if _, dup := byOrdinal[ordinal]; dup {
			return malformed("schedule has duplicate keys for %s", slotKey(ordinal))
		}
		ordinals = append(ordinals, ordinal)
		byOrdinal[ordinal] = values
	}
	sort.Ints(ordinals)

	rows := make([][]string, len(ordinals))
	for i, ordinal := range ordinals {
		if ordinal != i+1 {
			return malformed("schedule slots must be slot_1..slot_%d, missing slot_%d", len(ordinals), i+1)
		}
		values := byOrdinal[ordinal]
		row := make([]string, len(values))
		for j, value := range values {
			id, err := decodeSessionID(value)
			if err != nil {
				return fmt.Errorf("%w: %s position %d: %v", ErrMalformedInput, slotKey(ordinal), j, err)
			}
			row[j] = id
		}
		rows[i] = row
	}

	decoded, err := ScheduleFromRows(rows)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

func decodeSessionID(value json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(value)
	if bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return strings.TrimSpace(text), nil
	}
	var number json.Number
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&number); err != nil {
		return "", fmt.Errorf("session id must be a string or number")
	}
	return number.String(), nil
}

func slotKey(ordinal int) string {
	return "slot_" + strconv.Itoa(ordinal)
}

func parseSlotKey(key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, "slot_")
	if !ok {
		return 0, false
	}
	ordinal, err := strconv.Atoi(rest)
	if err != nil || ordinal <= 0 {
		return 0, false
	}
	return ordinal, true
}
