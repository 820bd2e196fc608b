package config

import "github.com/example/conference-scheduler/internal/scheduler"

// DefaultGridFile is the seven slot by eight room conference day with equal
// soft weights.
func DefaultGridFile() GridFile {
	return GridFile{
		Slots: []SlotSpec{
			{Ordinal: 1, Start: "08:30", End: "09:15"},
			{Ordinal: 2, Start: "09:30", End: "10:15"},
			{Ordinal: 3, Start: "10:30", End: "11:15"},
			{Ordinal: 4, Start: "11:30", End: "12:15"},
			{Ordinal: 5, Start: "14:00", End: "14:45"},
			{Ordinal: 6, Start: "15:00", End: "15:45"},
			{Ordinal: 7, Start: "16:00", End: "16:45"},
		},
		Rooms: []RoomSpec{
			{ID: "room-1", Name: "Room 1", Capacity: 388, Live: "Theater 14", Simulcast: "Theaters 12, 13"},
			{ID: "room-2", Name: "Room 2", Capacity: 314, Live: "Theater 15", Simulcast: "Theaters 10, 11"},
			{ID: "room-3", Name: "Room 3", Capacity: 228, Live: "Theater 16", Simulcast: "Theater 21"},
			{ID: "room-4", Name: "Room 4", Capacity: 234, Live: "Theater 17", Simulcast: "Theater 20"},
			{ID: "room-5", Name: "Room 5", Capacity: 340, Live: "Theater 4", Simulcast: "Theaters 5, 6, 7, 8, 9"},
			{ID: "room-6", Name: "Room 6", Capacity: 293, Live: "Theater 3", Simulcast: "Theaters 1, 2"},
			{ID: "room-7", Name: "Room 7", Capacity: 224, Live: "Theater 27", Simulcast: "Theaters 23, 24, 25, 26"},
			{ID: "room-8", Name: "Room 8", Capacity: 173, Live: "Theater 28", Simulcast: "Theaters 18, 19"},
		},
		Policy: PolicySpec{
			Weights:     scheduler.DefaultPolicy().Weights,
			TopicWindow: 1,
		},
	}
}
