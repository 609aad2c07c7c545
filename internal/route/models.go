package route

import (
	"errors"
	"time"
)

type EntryType string

const (
	EntryLocation EntryType = "location"
	EntryPhoto    EntryType = "photo"
	EntryNote     EntryType = "text"
)

var (
	ErrMissingCoords = errors.New("entry requires coordinates")
	ErrUnknownEntry  = errors.New("unknown entry type")
)

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Entry is one recorded item of a route. Type selects which fields are
// meaningful: AccuracyM for locations, Content for photos (image data) and
// notes (text).
type Entry struct {
	Type      EntryType    `json:"type"`
	Coords    *Coordinates `json:"coords,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	AccuracyM float64      `json:"accuracy_m,omitempty"`
	Content   string       `json:"content,omitempty"`
}

func NewLocation(c Coordinates, at time.Time, accuracyM float64) Entry {
	return Entry{Type: EntryLocation, Coords: &c, Timestamp: at, AccuracyM: accuracyM}
}

func NewPhoto(c Coordinates, at time.Time, content string) Entry {
	return Entry{Type: EntryPhoto, Coords: &c, Timestamp: at, Content: content}
}

// NewNote builds a text note. A nil position is allowed for notes taken
// without a GPS fix.
func NewNote(c *Coordinates, at time.Time, text string) Entry {
	e := Entry{Type: EntryNote, Timestamp: at, Content: text}
	if c != nil {
		cc := *c
		e.Coords = &cc
	}
	return e
}

func (e Entry) Validate() error {
	switch e.Type {
	case EntryLocation, EntryPhoto:
		if e.Coords == nil {
			return ErrMissingCoords
		}
	case EntryNote:
	default:
		return ErrUnknownEntry
	}
	return nil
}

func (e Entry) clone() Entry {
	if e.Coords != nil {
		c := *e.Coords
		e.Coords = &c
	}
	return e
}

type Counts struct {
	Locations int `json:"locations"`
	Photos    int `json:"photos"`
	Notes     int `json:"notes"`
}

// Session is the in-progress route.
type Session struct {
	Entries         []Entry   `json:"entries"`
	TotalDistanceKm float64   `json:"total_distance_km"`
	ElapsedTimeMs   int64     `json:"elapsed_time_ms"`
	StartTimestamp  time.Time `json:"start_timestamp"`
	IsTracking      bool      `json:"is_tracking"`
	IsPaused        bool      `json:"is_paused"`
}

func (s Session) Counts() Counts {
	var c Counts
	for _, e := range s.Entries {
		switch e.Type {
		case EntryLocation:
			c.Locations++
		case EntryPhoto:
			c.Photos++
		case EntryNote:
			c.Notes++
		}
	}
	return c
}

func (s Session) Empty() bool {
	return len(s.Entries) == 0
}

func (s Session) clone() Session {
	out := s
	out.Entries = make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		out.Entries[i] = e.clone()
	}
	return out
}

// Snapshot is the recovery copy of a Session written while recording.
type Snapshot struct {
	Session          Session   `json:"session"`
	CaptureTimestamp time.Time `json:"capture_timestamp"`
}

// LocalSession is a completed session kept in local storage.
type LocalSession struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	SavedAt         time.Time `json:"saved_at"`
	TotalDistanceKm float64   `json:"total_distance_km"`
	ElapsedTimeMs   int64     `json:"elapsed_time_ms"`
	Counts          Counts    `json:"counts"`
	Data            Session   `json:"data"`
}
