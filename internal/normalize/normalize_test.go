package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confsched/internal/model"
)

func TestNormalizeMergesMainAndSide(t *testing.T) {
	rows := []model.RawRow{
		{
			"Event Name":  "Growth Summit",
			"Date":        "2025-03-04",
			"Time":        "9:00 AM - 10:30 AM",
			"Type":        "Side",
			"Action":      "RSVP",
			"Action Link": "https://example.com/rsvp",
		},
		{
			"Event Name":  "Growth Summit",
			"Date":        "2025-03-04",
			"StartTime":   "9:00 AM",
			"EndTime":     "10:30 AM",
			"Type":        "Main",
			"Location":    "Ballroom A",
			"Description": "The main stage session.",
		},
	}

	events, stats := NormalizeWithStats(rows)
	require.Len(t, events, 1)
	assert.Equal(t, 1, stats.Merged)

	ev := events[0]
	assert.Equal(t, 1, ev.ID)
	assert.Equal(t, model.TypeMain, ev.Type)
	assert.Equal(t, "The main stage session.", ev.Description)
	assert.Equal(t, "Ballroom A", ev.Location)
	assert.Equal(t, "09:00", ev.StartTime)
	assert.Equal(t, "10:30", ev.EndTime)
	assert.Equal(t, "https://example.com/rsvp", ev.AdditionalData[model.DataActionLink])
	assert.Equal(t, "RSVP", ev.AdditionalData[model.DataAction])
}

func TestNormalizeMainKeepsDescriptionOverSide(t *testing.T) {
	rows := []model.RawRow{
		{"Event Name": "Expo", "Date": "2025-03-04", "Type": "Main", "Description": "Floor opens", "Location": "Hall 1"},
		{"Event Name": "Expo", "Date": "2025-03-04", "Type": "Side", "Description": "side copy", "Location": "Elsewhere", "Action Link": "https://x.test"},
	}

	events := Normalize(rows)
	require.Len(t, events, 1)
	assert.Equal(t, "Floor opens", events[0].Description)
	assert.Equal(t, "Hall 1", events[0].Location)
	assert.Equal(t, model.TypeMain, events[0].Type)
	assert.Equal(t, "https://x.test", events[0].AdditionalData[model.DataActionLink])
}

func TestNormalizeSideActionLinkFirstWriterWins(t *testing.T) {
	rows := []model.RawRow{
		{"Event Name": "Party", "Date": "2025-03-05", "Type": "Main", "Action Link": "https://first.test"},
		{"Event Name": "Party", "Date": "2025-03-05", "Type": "Side", "Action Link": "https://second.test"},
	}

	events := Normalize(rows)
	require.Len(t, events, 1)
	assert.Equal(t, "https://first.test", events[0].AdditionalData[model.DataActionLink])
}

func TestNormalizeSameVariantGapFills(t *testing.T) {
	rows := []model.RawRow{
		{"Event Name": "Lunch", "Date": "2025-03-05", "Type": "Main", "Description": "Food"},
		{"Event Name": "Lunch", "Date": "2025-03-05", "Type": "Main", "Description": "Other food", "Location": "Patio", "Sponsors": "Acme"},
	}

	events := Normalize(rows)
	require.Len(t, events, 1)
	assert.Equal(t, "Food", events[0].Description)
	assert.Equal(t, "Patio", events[0].Location)
	assert.Equal(t, "Acme", events[0].AdditionalData[model.DataSponsors])
}

func TestNormalizeSideWithoutDescriptionUsesTitle(t *testing.T) {
	events := Normalize([]model.RawRow{
		{"Event Name": "Afterparty", "Date": "2025-03-05", "Type": "Side"},
	})
	require.Len(t, events, 1)
	assert.Equal(t, "Afterparty", events[0].Description)
	assert.Equal(t, model.TypeNetworking, events[0].Type)
}

func TestNormalizeSideDescriptionAfterMerge(t *testing.T) {
	events := Normalize([]model.RawRow{
		{"Event Name": "Afterparty", "Date": "2025-03-05", "Type": "Side"},
		{"Event Name": "Afterparty", "Date": "2025-03-05", "Type": "Side", "Description": "Rooftop drinks"},
		{"Event Name": "Demo Night", "Date": "2025-03-05", "Type": "Side"},
		{"Event Name": "Demo Night", "Date": "2025-03-05", "Type": "Main"},
	})
	require.Len(t, events, 2)
	assert.Equal(t, "Rooftop drinks", events[0].Description)
	assert.Equal(t, model.TypeNetworking, events[0].Type)
	assert.Equal(t, DefaultDescription, events[1].Description)
	assert.Equal(t, model.TypeMain, events[1].Type)
}

func TestNormalizeDefaultsAndFiltering(t *testing.T) {
	rows := []model.RawRow{
		{"Event Name": "", "Date": "2025-03-04"},
		{"Event Name": "No date"},
		{"Event Name": "Bad date", "Date": "someday"},
		{"Event Name": "Bare", "Date": "2025-03-04"},
	}

	events, stats := NormalizeWithStats(rows)
	require.Len(t, events, 1)
	assert.Equal(t, 3, stats.Skipped)

	ev := events[0]
	assert.Equal(t, 1, ev.ID)
	assert.Equal(t, DefaultDescription, ev.Description)
	assert.Equal(t, DefaultLocation, ev.Location)
	assert.Equal(t, "00:00", ev.StartTime)
	assert.Equal(t, "00:00", ev.EndTime)
	assert.Equal(t, model.TypeOther, ev.Type)
	assert.Empty(t, ev.Speakers)
	assert.NotNil(t, ev.Speakers)
	assert.Nil(t, ev.AdditionalData)
}

func TestNormalizeTimeRangeSeparators(t *testing.T) {
	rows := []model.RawRow{
		{"Event Name": "A", "Date": "2025-03-04", "Time": "7PM – 9PM"},
		{"Event Name": "B", "Date": "2025-03-04", "Time": "10:00-11:15"},
		{"Event Name": "C", "Date": "2025-03-04", "Time": "all day"},
		{"Event Name": "D", "Date": "2025-03-04", "StartTime": "8", "EndTime": "late"},
	}

	events := Normalize(rows)
	require.Len(t, events, 4)
	assert.Equal(t, [2]string{"19:00", "21:00"}, [2]string{events[0].StartTime, events[0].EndTime})
	assert.Equal(t, [2]string{"10:00", "11:15"}, [2]string{events[1].StartTime, events[1].EndTime})
	assert.Equal(t, [2]string{"00:00", "00:00"}, [2]string{events[2].StartTime, events[2].EndTime})
	assert.Equal(t, [2]string{"08:00", "00:00"}, [2]string{events[3].StartTime, events[3].EndTime})
}

func TestNormalizeIDsFollowFirstSeenOrder(t *testing.T) {
	rows := []model.RawRow{
		{"Event Name": "Second day", "Date": "2025-03-05"},
		{"Event Name": "First day", "Date": "2025-03-04"},
		{"Event Name": "Second day", "Date": "2025-03-05", "Location": "Room 2"},
		{"Event Name": "Second day", "Date": "2025-03-06"},
	}

	events := Normalize(rows)
	require.Len(t, events, 3)
	assert.Equal(t, "Second day", events[0].Title)
	assert.Equal(t, "Room 2", events[0].Location)
	assert.Equal(t, "First day", events[1].Title)
	assert.Equal(t, "2025-03-06", events[2].Date)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.ID)
	}
}

func TestNormalizeAcceptsAlternateColumns(t *testing.T) {
	events := Normalize([]model.RawRow{
		{"title": "Keynote", "date": "6/12/2023", "startTime": "09:00", "endTime": "10:30", "type": "workshop", "speakers": "Jane Doe, John Smith"},
	})
	require.Len(t, events, 1)
	assert.Equal(t, "2023-06-12", events[0].Date)
	assert.Equal(t, model.TypeOther, events[0].Type)
	assert.Equal(t, []string{"Jane Doe", "John Smith"}, events[0].Speakers)
}

func TestSanitizeLocation(t *testing.T) {
	assert.Equal(t, "TBD", SanitizeLocation(""))
	assert.Equal(t, "TBD", SanitizeLocation("6:00"))
	assert.Equal(t, "TBD", SanitizeLocation("7 PM"))
	assert.Equal(t, "TBD", SanitizeLocation("7PM"))
	assert.Equal(t, "TBD", SanitizeLocation("9AM"))
	assert.Equal(t, "TBD", SanitizeLocation("6pm"))
	assert.Equal(t, "TBD", SanitizeLocation("Room 7PM"))
	assert.Equal(t, "TBD", SanitizeLocation("9 a.m."))
	assert.Equal(t, "Pmac Lounge", SanitizeLocation("Pmac Lounge"))
	assert.Equal(t, "Room 7", SanitizeLocation("Room 7"))
	assert.Equal(t, "Amphitheater", SanitizeLocation("Amphitheater"))
	assert.Equal(t, "Main Hall, Floor 3", SanitizeLocation(" Main Hall, Floor 3 "))
}

func TestMapType(t *testing.T) {
	assert.Equal(t, model.TypeMain, MapType("MAIN"))
	assert.Equal(t, model.TypeNetworking, MapType("side"))
	assert.Equal(t, model.TypeOther, MapType("Panel"))
	assert.Equal(t, model.TypeOther, MapType("workshop"))
	assert.Equal(t, model.TypeOther, MapType("happy hour"))
	assert.Equal(t, model.TypeOther, MapType(""))
}
