package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confsched/internal/model"
)

func ev(id int, start, end string) model.Event {
	return model.Event{ID: id, Title: "e", Date: "2025-03-04", StartTime: start, EndTime: end}
}

func TestAnnotate(t *testing.T) {
	events := []model.Event{
		ev(1, "09:00", "10:00"),
		ev(2, "09:30", "10:30"),
		ev(3, "11:00", "12:00"),
		ev(4, "10:30", "11:00"),
	}

	got := Annotate(events)
	require.Len(t, got, 4)

	assert.True(t, got[0].HasConflict)
	assert.Equal(t, []int{2}, ids(got[0].ConflictingEvents))
	assert.True(t, got[1].HasConflict)
	assert.Equal(t, []int{1}, ids(got[1].ConflictingEvents))
	assert.False(t, got[2].HasConflict)
	assert.Empty(t, got[2].ConflictingEvents)
	assert.False(t, got[3].HasConflict, "touching both neighbours is not a conflict")
}

func TestAnnotateKeepsOrder(t *testing.T) {
	events := []model.Event{ev(7, "15:00", "16:00"), ev(3, "08:00", "09:00")}
	got := Annotate(events)
	assert.Equal(t, 7, got[0].ID)
	assert.Equal(t, 3, got[1].ID)
}

func TestAnnotateEmpty(t *testing.T) {
	assert.Empty(t, Annotate(nil))
}

func ids(events []model.Event) []int {
	out := make([]int, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}
