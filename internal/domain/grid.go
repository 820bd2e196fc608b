package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Cell addresses a grid position by zero-based slot and room index.
type Cell struct {
	Slot int `json:"slot"`
	Room int `json:"room"`
}

// CellRef addresses a grid position the way external callers do: a slot
// ordinal and a room identifier.
type CellRef struct {
	Slot int    `json:"slot"`
	Room string `json:"room"`
}

// String renders the reference as "<slot>:<room>".
func (r CellRef) String() string {
	return fmt.Sprintf("%d:%s", r.Slot, r.Room)
}

// ParseCellRef parses the "<slot>:<room>" form.
func ParseCellRef(value string) (CellRef, error) {
	slotPart, roomPart, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || roomPart == "" {
		return CellRef{}, malformed("cell reference %q must look like <slot>:<room>", value)
	}
	slot, err := strconv.Atoi(slotPart)
	if err != nil || slot <= 0 {
		return CellRef{}, malformed("cell reference %q has invalid slot", value)
	}
	return CellRef{Slot: slot, Room: roomPart}, nil
}

// Grid is the configured slots × rooms layout.
type Grid struct {
	slots     []Slot
	rooms     []Room
	roomIndex map[string]int
}

// NewGrid validates the slot and room lists and computes room ranks. Slots
// are sorted by ordinal and must be numbered 1..n without gaps. Rooms keep the
// supplied order, which is also the column order of a schedule.
func NewGrid(slots []Slot, rooms []Room) (*Grid, error) {
	if len(slots) == 0 {
		return nil, malformed("grid requires at least one slot")
	}
	if len(rooms) == 0 {
		return nil, malformed("grid requires at least one room")
	}

	orderedSlots := append([]Slot(nil), slots...)
	sort.Slice(orderedSlots, func(i, j int) bool { return orderedSlots[i].Ordinal < orderedSlots[j].Ordinal })
	for i, slot := range orderedSlots {
		if slot.Ordinal != i+1 {
			return nil, malformed("slot ordinals must be 1..%d without gaps, found %d", len(orderedSlots), slot.Ordinal)
		}
	}

	g := &Grid{
		slots:     orderedSlots,
		rooms:     make([]Room, len(rooms)),
		roomIndex: make(map[string]int, len(rooms)),
	}
	for i, room := range rooms {
		if strings.TrimSpace(room.ID) == "" {
			return nil, malformed("room at position %d has no id", i+1)
		}
		if room.Capacity <= 0 {
			return nil, malformed("room %q capacity must be positive", room.ID)
		}
		if _, dup := g.roomIndex[room.ID]; dup {
			return nil, malformed("duplicate room id %q", room.ID)
		}
		g.roomIndex[room.ID] = i
		g.rooms[i] = room
	}

	byCapacity := make([]int, len(g.rooms))
	for i := range byCapacity {
		byCapacity[i] = i
	}
	sort.SliceStable(byCapacity, func(a, b int) bool {
		ra, rb := g.rooms[byCapacity[a]], g.rooms[byCapacity[b]]
		if ra.Capacity == rb.Capacity {
			return ra.ID < rb.ID
		}
		return ra.Capacity > rb.Capacity
	})
	for rank, idx := range byCapacity {
		g.rooms[idx].Rank = rank + 1
	}

	return g, nil
}

// SlotCount returns the number of slots.
func (g *Grid) SlotCount() int { return len(g.slots) }

// RoomCount returns the number of rooms.
func (g *Grid) RoomCount() int { return len(g.rooms) }

// CellCount returns slots × rooms.
func (g *Grid) CellCount() int { return len(g.slots) * len(g.rooms) }

// Slots returns a copy of the ordered slots.
func (g *Grid) Slots() []Slot { return append([]Slot(nil), g.slots...) }

// Rooms returns a copy of the rooms in column order.
func (g *Grid) Rooms() []Room { return append([]Room(nil), g.rooms...) }

// Slot returns the slot at a zero-based index.
func (g *Grid) Slot(index int) Slot { return g.slots[index] }

// Room returns the room at a zero-based column index.
func (g *Grid) Room(index int) Room { return g.rooms[index] }

// Resolve converts an external reference into a cell, failing with a
// ReferenceError when the slot or room is unknown.
func (g *Grid) Resolve(ref CellRef) (Cell, error) {
	if ref.Slot < 1 || ref.Slot > len(g.slots) {
		return Cell{}, &ReferenceError{Kind: ReferenceSlot, ID: strconv.Itoa(ref.Slot)}
	}
	room, ok := g.roomIndex[ref.Room]
	if !ok {
		return Cell{}, &ReferenceError{Kind: ReferenceRoom, ID: ref.Room}
	}
	return Cell{Slot: ref.Slot - 1, Room: room}, nil
}

// Ref converts a cell back to its external reference.
func (g *Grid) Ref(c Cell) CellRef {
	return CellRef{Slot: g.slots[c.Slot].Ordinal, Room: g.rooms[c.Room].ID}
}

// Describe renders a cell for messages, e.g. "Slot 2 / Room 5".
func (g *Grid) Describe(c Cell) string {
	room := g.rooms[c.Room]
	name := room.Name
	if name == "" {
		name = room.ID
	}
	return fmt.Sprintf("%s / %s", g.slots[c.Slot].Label(), name)
}

// CheckShape fails with a ShapeError when the schedule does not match.
func (g *Grid) CheckShape(s Schedule) error {
	if s.SlotCount() != len(g.slots) || s.RoomCount() != len(g.rooms) {
		return &ShapeError{
			WantSlots: len(g.slots), WantRooms: len(g.rooms),
			GotSlots: s.SlotCount(), GotRooms: s.RoomCount(),
		}
	}
	return nil
}

func slotLabel(ordinal int) string {
	return "Slot " + strconv.Itoa(ordinal)
}
