package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "confsched/internal/log"
	"confsched/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 500
	defaultRecurrenceHorizon      = 366 * 24 * time.Hour
)

// ExpandConfig controls how recurring events become concrete rows.
type ExpandConfig struct {
	// DisplayLocation is the zone whose wall clock becomes Date/StartTime.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound recurrence expansion. When both are zero,
	// single events are always kept and recurring events are expanded for
	// a year from their first start.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means the default.
	MaxOccurrencesPerEvent int
}

func (c ExpandConfig) bounded() bool {
	return !c.RangeStart.IsZero() || !c.RangeEnd.IsZero()
}

// occurrence is one concrete instance ready for row conversion.
type occurrence struct {
	ev    ParsedEvent
	start time.Time
	end   time.Time
}

// ExpandRows expands RRULE/EXDATE/RECURRENCE-ID and converts every instance
// into a raw row using the same column names as the CSV feed, so both
// formats share one normalizer.
func ExpandRows(events []ParsedEvent, cfg ExpandConfig) ([]model.RawRow, error) {
	if cfg.bounded() {
		// A one-sided window extends by the default horizon.
		switch {
		case cfg.RangeEnd.IsZero():
			cfg.RangeEnd = cfg.RangeStart.Add(defaultRecurrenceHorizon)
		case cfg.RangeStart.IsZero():
			cfg.RangeStart = cfg.RangeEnd.Add(-defaultRecurrenceHorizon)
		}
		if cfg.RangeEnd.Before(cfg.RangeStart) {
			return nil, errors.New("expand: RangeEnd is before RangeStart")
		}
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and overrides by UID, remembering first-seen order
	// so the output is stable.
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	uidOrder := make([]string, 0)

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uidOrder = append(uidOrder, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	all := make([]occurrence, 0, len(events))
	for _, uid := range uidOrder {
		ov := overridesByUID[uid]
		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, ov, cfg)
			if hitCap {
				appLog.Error("expand: truncated occurrences for UID due to cap",
					errors.New("max occurrences reached"),
					"uid", uid,
					"cap", cfg.MaxOccurrencesPerEvent,
				)
			}
			all = append(all, occ...)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].start.Before(all[j].start)
	})

	rows := make([]model.RawRow, 0, len(all))
	for _, o := range all {
		rows = append(rows, toRow(o, cfg.DisplayLocation))
	}
	return rows, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []occurrence {
	if cfg.bounded() && !timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		return []occurrence{{ev: o, start: o.Start, end: o.End}}
	}
	return []occurrence{{ev: ev, start: ev.Start, end: ev.End}}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]occurrence, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart, rangeEnd := ev.Start, ev.Start.Add(defaultRecurrenceHorizon)
	if cfg.bounded() {
		rangeStart = cfg.RangeStart.In(ev.Start.Location())
		rangeEnd = cfg.RangeEnd.In(ev.Start.Location())
	}

	occTimes := set.Between(rangeStart, rangeEnd, true)
	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]occurrence, 0, len(occTimes))
	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			out = append(out, occurrence{ev: o, start: o.Start, end: o.End})
			continue
		}
		out = append(out, occurrence{ev: ev, start: occStart, end: occEnd})
	}
	return out, hitCap
}

// findOverrideForStart finds the override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// toRow renders an occurrence in displayLoc. All-day instances carry no
// times, which the normalizer turns into a zero-length 00:00 slot. An
// instance running past midnight ends at 23:59 on its start day.
func toRow(o occurrence, displayLoc *time.Location) model.RawRow {
	start := o.start.In(displayLoc)
	end := o.end.In(displayLoc)

	row := model.RawRow{
		"Event Name":  o.ev.Summary,
		"Date":        start.Format("2006-01-02"),
		"Location":    o.ev.Location,
		"Description": o.ev.Description,
		"Type":        o.ev.Category,
	}
	if o.ev.URL != "" {
		row["Details Link"] = o.ev.URL
	}
	if !o.ev.AllDay {
		row["StartTime"] = start.Format("15:04")
		if end.Format("2006-01-02") != start.Format("2006-01-02") {
			row["EndTime"] = "23:59"
		} else {
			row["EndTime"] = end.Format("15:04")
		}
	}
	return row
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
