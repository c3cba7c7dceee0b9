package model

// EventType is the fixed category set an event can belong to.
type EventType string

const (
	TypeMain       EventType = "main"
	TypeWorkshop   EventType = "workshop"
	TypePanel      EventType = "panel"
	TypeNetworking EventType = "networking"
	TypeBreakout   EventType = "breakout"
	TypeOther      EventType = "other"
)

// EventTypes lists every category in display order.
var EventTypes = []EventType{
	TypeMain,
	TypeWorkshop,
	TypePanel,
	TypeNetworking,
	TypeBreakout,
	TypeOther,
}

// Valid reports whether t is one of the known categories.
func (t EventType) Valid() bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Keys used in Event.AdditionalData.
const (
	DataAction      = "action"
	DataActionLink  = "actionLink"
	DataDetailsLink = "detailsLink"
	DataSponsors    = "sponsors"
)

// RawRow is one source record keyed by column name. Several rows (a "Main"
// and a "Side" variant) may describe a single logical event.
type RawRow map[string]string

// Event is the canonical conference event produced by the normalizer.
// Events are built once per load and must not be mutated afterwards.
type Event struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`       // YYYY-MM-DD
	StartTime   string    `json:"start_time"` // HH:MM, 24-hour
	EndTime     string    `json:"end_time"`   // HH:MM, 24-hour
	Location    string    `json:"location"`
	Type        EventType `json:"type"`
	Speakers    []string  `json:"speakers"`

	// AdditionalData carries side-channel fields (action, links, sponsors).
	// It is nil when the source row had none of them.
	AdditionalData map[string]string `json:"additional_data,omitempty"`
}

// Selection is a point-in-time copy of the user's ratings.
type Selection struct {
	Interested    []int `json:"interested"`
	NotInterested []int `json:"not_interested"`
}

// ConflictAnnotatedEvent is an Event with its same-day overlaps. It is
// recomputed on every schedule request and never persisted.
type ConflictAnnotatedEvent struct {
	Event
	HasConflict       bool    `json:"has_conflict"`
	ConflictingEvents []Event `json:"conflicting_events"`
}

// Day is one date of the agenda, events sorted by start time.
type Day struct {
	Date   string                   `json:"date"`
	Events []ConflictAnnotatedEvent `json:"events"`
}

// Agenda is the user's schedule ordered by ascending date.
type Agenda []Day

// Dates returns the agenda dates in order.
func (a Agenda) Dates() []string {
	out := make([]string, 0, len(a))
	for _, d := range a {
		out = append(out, d.Date)
	}
	return out
}

// Day looks up the agenda entry for date.
func (a Agenda) Day(date string) (Day, bool) {
	for _, d := range a {
		if d.Date == date {
			return d, true
		}
	}
	return Day{}, false
}

// ConflictCount returns the number of events flagged as conflicting
// across all days.
func (a Agenda) ConflictCount() int {
	n := 0
	for _, d := range a {
		for _, ev := range d.Events {
			if ev.HasConflict {
				n++
			}
		}
	}
	return n
}
