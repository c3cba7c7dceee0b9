package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confsched/internal/model"
	"confsched/internal/source"
)

const mainSideCSV = `Event Name,Date,Time,Location,Type,Description,Action,Action Link
Opening Party,2025-03-04,7PM - 10PM,Rooftop,Side,,RSVP,https://example.com/rsvp
Opening Party,2025-03-04,7PM - 10PM,Rooftop,Main,Drinks and music,,
Workshop,2025-03-05,10:00 AM – 11:30 AM,Room 2,workshop,Hands on,,
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCatalogQueries(t *testing.T) {
	c := New()
	c.Replace([]model.Event{
		{ID: 1, Title: "A", Type: model.TypeMain},
		{ID: 2, Title: "B", Type: model.TypePanel},
	}, nil)

	assert.Equal(t, 2, c.Len())

	ev, err := c.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "B", ev.Title)

	_, err = c.Get(42)
	assert.ErrorIs(t, err, ErrNotFound)

	filtered := c.Filter([]model.EventType{model.TypePanel})
	require.Len(t, filtered, 1)
	assert.Equal(t, 2, filtered[0].ID)
	assert.Len(t, c.Filter(nil), 2)
}

func TestCatalogAllReturnsCopy(t *testing.T) {
	c := New()
	c.Replace([]model.Event{{ID: 1, Title: "A"}}, nil)
	all := c.All()
	all[0].Title = "changed"

	ev, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "A", ev.Title)
}

func TestLoaderLoadsCSV(t *testing.T) {
	path := writeFile(t, "events.csv", mainSideCSV)
	l := &Loader{
		Fetcher: source.NewFetcher(t.TempDir()),
		Sources: []source.Source{{ID: "main", Path: path}},
	}

	c := New()
	require.NoError(t, l.Refresh(context.Background(), c))
	require.Equal(t, 2, c.Len())

	party, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Opening Party", party.Title)
	assert.Equal(t, model.TypeMain, party.Type)
	assert.Equal(t, "Drinks and music", party.Description)
	assert.Equal(t, "19:00", party.StartTime)
	assert.Equal(t, "22:00", party.EndTime)
	assert.Equal(t, "https://example.com/rsvp", party.AdditionalData[model.DataActionLink])

	ws, err := c.Get(2)
	require.NoError(t, err)
	assert.Equal(t, "10:00", ws.StartTime)
	assert.Equal(t, "11:30", ws.EndTime)

	assert.Equal(t, mainSideCSV, string(c.Raw()))
	_, loadErr := c.Status()
	assert.NoError(t, loadErr)
}

func TestLoaderSourceUnavailable(t *testing.T) {
	l := &Loader{
		Fetcher: source.NewFetcher(t.TempDir()),
		Sources: []source.Source{{ID: "gone", Path: filepath.Join(t.TempDir(), "missing.csv")}},
	}

	c := New()
	c.Replace([]model.Event{{ID: 1}}, nil)

	err := l.Refresh(context.Background(), c)
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, 0, c.Len())
	_, loadErr := c.Status()
	assert.Error(t, loadErr)
}

func TestLoaderNoSources(t *testing.T) {
	_, err := (&Loader{Fetcher: source.NewFetcher(t.TempDir())}).Load(context.Background())
	assert.True(t, IsUnavailable(err))
}

func TestLoaderMalformedTable(t *testing.T) {
	path := writeFile(t, "empty.csv", "")
	_, err := (&Loader{
		Fetcher: source.NewFetcher(t.TempDir()),
		Sources: []source.Source{{ID: "empty", Path: path}},
	}).Load(context.Background())
	assert.ErrorIs(t, err, source.ErrMalformedTable)
}

func TestLoaderMergesAcrossSources(t *testing.T) {
	mainPath := writeFile(t, "main.csv", "Event Name,Date,Type,Description\nMixer,2025-03-04,Main,Meet people\n")
	sidePath := writeFile(t, "side.csv", "Event Name,Date,Type,Action Link\nMixer,2025-03-04,Side,https://example.com/mixer\n")

	res, err := (&Loader{
		Fetcher: source.NewFetcher(t.TempDir()),
		Sources: []source.Source{
			{ID: "main", Path: mainPath},
			{ID: "missing", Path: filepath.Join(t.TempDir(), "nope.csv")},
			{ID: "side", Path: sidePath},
		},
	}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "Meet people", res.Events[0].Description)
	assert.Equal(t, "https://example.com/mixer", res.Events[0].AdditionalData[model.DataActionLink])
	assert.Equal(t, 1, res.Stats.Merged)
}

const standupICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//confsched//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:standup@example.com\r\n" +
	"DTSTART:20250304T090000Z\r\n" +
	"DTEND:20250304T093000Z\r\n" +
	"SUMMARY:Standup\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestLoaderRawKeepsOnlyCSV(t *testing.T) {
	icsPath := writeFile(t, "feed.ics", standupICS)
	csvPath := writeFile(t, "events.csv", mainSideCSV)

	res, err := (&Loader{
		Fetcher: source.NewFetcher(t.TempDir()),
		Sources: []source.Source{{ID: "feed", Path: icsPath}},
	}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Nil(t, res.Raw)

	res, err = (&Loader{
		Fetcher: source.NewFetcher(t.TempDir()),
		Sources: []source.Source{
			{ID: "feed", Path: icsPath},
			{ID: "main", Path: csvPath},
		},
	}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mainSideCSV, string(res.Raw))
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, source.FormatICS, formatOf(source.Source{Path: "/tmp/conf.ICS"}))
	assert.Equal(t, source.FormatICS, formatOf(source.Source{URL: "https://x.test/feed.ics?token=1"}))
	assert.Equal(t, source.FormatCSV, formatOf(source.Source{URL: "https://x.test/export"}))
	assert.Equal(t, source.FormatICS, formatOf(source.Source{Path: "x.csv", Format: "ICS"}))
}
