// Package normalize turns raw tabular rows into canonical events.
//
// A single logical event may be listed twice, once as a "Main" row and once
// as a "Side" row carrying extra links. Rows are grouped by (title, date)
// and merged before IDs are assigned, so the rest of the program never
// looks at raw column names.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	appLog "confsched/internal/log"
	"confsched/internal/model"
	"confsched/internal/timeutil"
)

const (
	DefaultDescription = "No description provided"
	DefaultLocation    = "TBD"
)

// Column names recognized in source rows, in lookup priority order.
var (
	colTitle       = []string{"Event Name", "title", "Title"}
	colDate        = []string{"Date", "date"}
	colStart       = []string{"StartTime", "startTime", "Start Time"}
	colEnd         = []string{"EndTime", "endTime", "End Time"}
	colTimeRange   = []string{"Time", "time"}
	colLocation    = []string{"Location", "location"}
	colType        = []string{"Type", "type"}
	colDescription = []string{"Description", "description"}
	colAction      = []string{"Action", "action"}
	colActionLink  = []string{"Action Link", "actionLink"}
	colDetailsLink = []string{"Details Link", "detailsLink"}
	colSponsors    = []string{"Sponsors", "sponsors"}
	colSpeakers    = []string{"Speakers", "speakers"}
)

// Stats describes what happened to the input rows.
type Stats struct {
	Rows    int
	Skipped int
	Merged  int
	Events  int
}

type variant int

const (
	variantOther variant = iota
	variantMain
	variantSide
)

// record is the mutable merge state for one (title, date) group.
type record struct {
	title       string
	date        string
	kind        string
	variant     variant
	start       string
	end         string
	timeRange   string
	location    string
	description string
	action      string
	actionLink  string
	detailsLink string
	sponsors    string
	speakers    string
}

type groupKey struct {
	title string
	date  string
}

// Normalize converts rows into events. It never fails: malformed rows are
// skipped and malformed fields fall back to defaults.
func Normalize(rows []model.RawRow) []model.Event {
	events, _ := NormalizeWithStats(rows)
	return events
}

// NormalizeWithStats is Normalize plus row accounting for logs and metrics.
func NormalizeWithStats(rows []model.RawRow) ([]model.Event, Stats) {
	stats := Stats{Rows: len(rows)}

	groups := make(map[groupKey]*record)
	order := make([]groupKey, 0, len(rows))

	for i, row := range rows {
		rec, ok := newRecord(row)
		if !ok {
			stats.Skipped++
			appLog.Debug("normalize: skipping row without title or valid date",
				"row", i+1,
				"title", lookup(row, colTitle...),
				"date", lookup(row, colDate...),
			)
			continue
		}

		key := groupKey{title: rec.title, date: rec.date}
		stored, exists := groups[key]
		if !exists {
			groups[key] = rec
			order = append(order, key)
			continue
		}
		merge(stored, rec)
		stats.Merged++
	}

	events := make([]model.Event, 0, len(order))
	for i, key := range order {
		events = append(events, groups[key].toEvent(i+1))
	}
	stats.Events = len(events)

	return events, stats
}

func newRecord(row model.RawRow) (*record, bool) {
	title := lookup(row, colTitle...)
	rawDate := lookup(row, colDate...)
	if title == "" || rawDate == "" {
		return nil, false
	}
	date, ok := timeutil.NormalizeDate(rawDate)
	if !ok {
		return nil, false
	}

	kind := lookup(row, colType...)
	rec := &record{
		title:       title,
		date:        date,
		kind:        kind,
		variant:     variantOf(kind),
		start:       lookup(row, colStart...),
		end:         lookup(row, colEnd...),
		timeRange:   lookup(row, colTimeRange...),
		location:    lookup(row, colLocation...),
		description: lookup(row, colDescription...),
		action:      lookup(row, colAction...),
		actionLink:  lookup(row, colActionLink...),
		detailsLink: lookup(row, colDetailsLink...),
		sponsors:    lookup(row, colSponsors...),
		speakers:    lookup(row, colSpeakers...),
	}
	return rec, true
}

func variantOf(kind string) variant {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "main":
		return variantMain
	case "side":
		return variantSide
	default:
		return variantOther
	}
}

// merge folds incoming into stored following the Main/Side precedence.
func merge(stored, in *record) {
	switch {
	case in.variant == variantMain && stored.variant == variantSide:
		if in.description != "" {
			stored.description = in.description
		}
		if in.location != "" {
			stored.location = in.location
		}
		stored.kind = in.kind
		stored.variant = variantMain
		// Side-channel fields already on the stored row win.
		fillEmpty(&stored.action, in.action)
		fillEmpty(&stored.actionLink, in.actionLink)
		fillTimingAndExtras(stored, in)

	case in.variant == variantSide && stored.variant == variantMain:
		fillEmpty(&stored.action, in.action)
		fillEmpty(&stored.actionLink, in.actionLink)
		fillTimingAndExtras(stored, in)

	default:
		fillEmpty(&stored.description, in.description)
		fillEmpty(&stored.location, in.location)
		fillEmpty(&stored.kind, in.kind)
		fillEmpty(&stored.action, in.action)
		fillEmpty(&stored.actionLink, in.actionLink)
		fillTimingAndExtras(stored, in)
		if stored.variant == variantOther {
			stored.variant = variantOf(stored.kind)
		}
	}
}

// fillTimingAndExtras gap-fills the fields that no variant rule owns.
func fillTimingAndExtras(stored, in *record) {
	fillEmpty(&stored.start, in.start)
	fillEmpty(&stored.end, in.end)
	fillEmpty(&stored.timeRange, in.timeRange)
	fillEmpty(&stored.detailsLink, in.detailsLink)
	fillEmpty(&stored.sponsors, in.sponsors)
	fillEmpty(&stored.speakers, in.speakers)
}

func fillEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func (r *record) toEvent(id int) model.Event {
	title := r.title
	if title == "" {
		title = fmt.Sprintf("Untitled Event %d", id)
	}
	description := r.description
	if description == "" && r.variant == variantSide {
		// Side rows rarely carry a description; the title stands in.
		description = title
	}
	if description == "" {
		description = DefaultDescription
	}
	start, end := r.times()

	return model.Event{
		ID:             id,
		Title:          title,
		Description:    description,
		Date:           r.date,
		StartTime:      start,
		EndTime:        end,
		Location:       SanitizeLocation(r.location),
		Type:           MapType(r.kind),
		Speakers:       splitSpeakers(r.speakers),
		AdditionalData: r.additionalData(),
	}
}

// rangeSeparators split a combined "Time" field; dashes are tried in order.
var rangeSeparators = []string{"–", "—", "-"}

func (r *record) times() (string, string) {
	if r.start != "" && r.end != "" {
		return canonical(r.start), canonical(r.end)
	}
	if r.timeRange != "" {
		for _, sep := range rangeSeparators {
			if parts := strings.SplitN(r.timeRange, sep, 2); len(parts) == 2 {
				return canonical(parts[0]), canonical(parts[1])
			}
		}
	}
	return timeutil.Midnight, timeutil.Midnight
}

// canonical normalizes a clock value and falls back to midnight when the
// result still is not HH:MM.
func canonical(raw string) string {
	t := timeutil.NormalizeTime(raw)
	if !timeutil.ValidClock(t) {
		return timeutil.Midnight
	}
	return t
}

func (r *record) additionalData() map[string]string {
	data := make(map[string]string)
	if r.action != "" {
		data[model.DataAction] = r.action
	}
	if r.actionLink != "" {
		data[model.DataActionLink] = r.actionLink
	}
	if r.detailsLink != "" {
		data[model.DataDetailsLink] = r.detailsLink
	}
	if r.sponsors != "" {
		data[model.DataSponsors] = r.sponsors
	}
	if len(data) == 0 {
		return nil
	}
	return data
}

// Time-like location values: "7PM", "9 a.m.", a bare "AM"/"PM" word.
var (
	clockSuffixRe  = regexp.MustCompile(`(?i)\d\s*[ap]\.?m\b`)
	meridiemWordRe = regexp.MustCompile(`\b(AM|PM)\b`)
)

// SanitizeLocation returns "TBD" for empty values and for values that look
// like a clock time, which happens when source columns are shifted.
func SanitizeLocation(loc string) string {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return DefaultLocation
	}
	if strings.Contains(loc, ":") || clockSuffixRe.MatchString(loc) || meridiemWordRe.MatchString(loc) {
		return DefaultLocation
	}
	return loc
}

// MapType maps a source category onto the event types. "Side" events are
// shown as networking and anything that is not Main or Side is other.
func MapType(kind string) model.EventType {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "main":
		return model.TypeMain
	case "side":
		return model.TypeNetworking
	default:
		return model.TypeOther
	}
}

func splitSpeakers(s string) []string {
	out := []string{}
	if s == "" {
		return out
	}
	sep := ","
	if strings.Contains(s, ";") {
		sep = ";"
	}
	for _, part := range strings.Split(s, sep) {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// lookup returns the first non-empty value among the given column names,
// falling back to a case-insensitive match on the row's keys.
func lookup(row model.RawRow, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(row[name]); v != "" {
			return v
		}
	}
	for key, v := range row {
		for _, name := range names {
			if strings.EqualFold(strings.TrimSpace(key), name) {
				if v = strings.TrimSpace(v); v != "" {
					return v
				}
			}
		}
	}
	return ""
}
