// Package agenda assembles the user's interested events into a per-day,
// conflict-annotated schedule.
package agenda

import (
	"sort"

	"confsched/internal/conflict"
	"confsched/internal/model"
	"confsched/internal/timeutil"
)

// Build keeps the events whose ID is in interested, groups them by date,
// orders each day by start time and annotates overlaps per day. Days are
// returned in ascending date order. Events on different dates are never
// compared with each other.
func Build(all []model.Event, interested map[int]struct{}) model.Agenda {
	byDate := make(map[string][]model.Event)
	for _, ev := range all {
		if _, ok := interested[ev.ID]; !ok {
			continue
		}
		byDate[ev.Date] = append(byDate[ev.Date], ev)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make(model.Agenda, 0, len(dates))
	for _, d := range dates {
		events := byDate[d]
		sort.SliceStable(events, func(i, j int) bool {
			return timeutil.ToMinutes(events[i].StartTime) < timeutil.ToMinutes(events[j].StartTime)
		})
		out = append(out, model.Day{
			Date:   d,
			Events: conflict.Annotate(events),
		})
	}
	return out
}

// Deck returns the events still waiting for a rating, in catalog order.
// When types is non-empty only events of those types are included.
func Deck(all []model.Event, types []model.EventType, isRated func(id int) bool) []model.Event {
	allowed := typeSet(types)
	out := make([]model.Event, 0, len(all))
	for _, ev := range all {
		if allowed != nil {
			if _, ok := allowed[ev.Type]; !ok {
				continue
			}
		}
		if isRated != nil && isRated(ev.ID) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func typeSet(types []model.EventType) map[model.EventType]struct{} {
	if len(types) == 0 {
		return nil
	}
	set := make(map[model.EventType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}
