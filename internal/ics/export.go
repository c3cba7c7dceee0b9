package ics

import (
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"confsched/internal/model"
	"confsched/internal/normalize"
)

const productID = "-//confsched//Conference Schedule//EN"

// uidNamespace seeds the name-based UUIDs used as VEVENT UIDs, so the same
// event keeps its UID across exports even though numeric IDs are
// reassigned on every load.
var uidNamespace = uuid.MustParse("5c4b0e4e-7a43-4d55-9d0c-3f1b6a2f8e21")

// EventUID returns the stable iCalendar UID for an event.
func EventUID(ev model.Event) string {
	return uuid.NewSHA1(uidNamespace, []byte(ev.Title+"\x00"+ev.Date)).String() + "@confsched"
}

// EncodeAgenda renders the agenda as a VCALENDAR. Wall-clock times are
// interpreted in loc and written in UTC. Conflicting events get a
// "CONFLICT" category so calendar clients can highlight them.
func EncodeAgenda(agenda model.Agenda, loc *time.Location, now time.Time) string {
	if loc == nil {
		loc = time.Local
	}

	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName("My conference schedule")

	for _, day := range agenda {
		for _, ev := range day.Events {
			start, ok := wallClock(ev.Date, ev.StartTime, loc)
			if !ok {
				continue
			}
			end, ok := wallClock(ev.Date, ev.EndTime, loc)
			if !ok || end.Before(start) {
				end = start
			}

			vev := cal.AddEvent(EventUID(ev.Event))
			vev.SetDtStampTime(now)
			vev.SetStartAt(start)
			vev.SetEndAt(end)
			vev.SetSummary(ev.Title)
			if ev.Description != "" && ev.Description != normalize.DefaultDescription {
				vev.SetDescription(ev.Description)
			}
			if ev.Location != "" && ev.Location != normalize.DefaultLocation {
				vev.SetLocation(ev.Location)
			}
			if link := detailsOrAction(ev.AdditionalData); link != "" {
				vev.SetURL(link)
			}

			categories := []string{strings.ToUpper(string(ev.Type))}
			if ev.HasConflict {
				categories = append(categories, "CONFLICT")
			}
			vev.SetProperty(ical.ComponentPropertyCategories, strings.Join(categories, ","))
		}
	}

	return cal.Serialize()
}

func wallClock(date, hhmm string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+hhmm, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func detailsOrAction(data map[string]string) string {
	if data == nil {
		return ""
	}
	if v := data[model.DataDetailsLink]; v != "" {
		return v
	}
	return data[model.DataActionLink]
}
