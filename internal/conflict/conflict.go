// Package conflict flags overlapping events within a single day.
package conflict

import (
	"confsched/internal/model"
	"confsched/internal/timeutil"
)

// Annotate marks every event that overlaps another event in the slice.
// All events are expected to share one date; no date check is made and the
// input order is kept.
func Annotate(events []model.Event) []model.ConflictAnnotatedEvent {
	out := make([]model.ConflictAnnotatedEvent, 0, len(events))
	for i, ev := range events {
		conflicts := []model.Event{}
		for j, other := range events {
			if i == j {
				continue
			}
			if timeutil.TimesOverlap(ev.StartTime, ev.EndTime, other.StartTime, other.EndTime) {
				conflicts = append(conflicts, other)
			}
		}
		out = append(out, model.ConflictAnnotatedEvent{
			Event:             ev,
			HasConflict:       len(conflicts) > 0,
			ConflictingEvents: conflicts,
		})
	}
	return out
}
