package timeutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "canonical", in: "18:00", want: "18:00"},
		{name: "single digit hour", in: "9:05", want: "09:05"},
		{name: "pm without minutes", in: "7PM", want: "19:00"},
		{name: "midnight", in: "12AM", want: "00:00"},
		{name: "noon", in: "12PM", want: "12:00"},
		{name: "pm with minutes and space", in: "6:30 PM", want: "18:30"},
		{name: "lowercase am", in: "8:15am", want: "08:15"},
		{name: "dotted meridiem", in: "7 p.m.", want: "19:00"},
		{name: "bare hour", in: "14", want: "14:00"},
		{name: "empty", in: "", want: "00:00"},
		{name: "whitespace", in: "   ", want: "00:00"},
		{name: "padded input", in: "  10:00  ", want: "10:00"},
		{name: "garbage", in: "soonish", want: "soonish"},
		{name: "out of range meridiem", in: "13PM", want: "13PM"},
		{name: "out of range bare hour", in: "42", want: "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTime(tt.in))
		})
	}
}

func TestToMinutes(t *testing.T) {
	assert.Equal(t, 0, ToMinutes("00:00"))
	assert.Equal(t, 570, ToMinutes("09:30"))
	assert.Equal(t, 1439, ToMinutes("23:59"))
	assert.Equal(t, 1439, ToMinutes("24:30"), "clamped")
	assert.Equal(t, 0, ToMinutes("nope"))
}

func TestTimesOverlap(t *testing.T) {
	assert.False(t, TimesOverlap("09:00", "10:00", "10:00", "11:00"), "touching intervals")
	assert.True(t, TimesOverlap("09:00", "10:30", "10:00", "11:00"))
	assert.True(t, TimesOverlap("09:00", "12:00", "10:00", "11:00"), "containment")
	assert.False(t, TimesOverlap("13:00", "14:00", "09:00", "10:00"))
}

func TestTimesOverlapSymmetric(t *testing.T) {
	var slots []string
	for h := 8; h <= 12; h++ {
		slots = append(slots, fmt.Sprintf("%02d:00", h), fmt.Sprintf("%02d:30", h))
	}
	for i := range slots {
		for j := i + 1; j < len(slots); j++ {
			for k := range slots {
				for l := k + 1; l < len(slots); l++ {
					s1, e1, s2, e2 := slots[i], slots[j], slots[k], slots[l]
					if TimesOverlap(s1, e1, s2, e2) != TimesOverlap(s2, e2, s1, e1) {
						t.Fatalf("asymmetric overlap for %s-%s vs %s-%s", s1, e1, s2, e2)
					}
				}
			}
		}
	}
}

func TestFormat12h(t *testing.T) {
	assert.Equal(t, "12:00 AM", Format12h("00:00"))
	assert.Equal(t, "9:30 AM", Format12h("09:30"))
	assert.Equal(t, "12:15 PM", Format12h("12:15"))
	assert.Equal(t, "6:00 PM", Format12h("18:00"))
	assert.Equal(t, "bad", Format12h("bad"))
}

func TestDates(t *testing.T) {
	assert.True(t, ValidDate("2024-02-29"))
	assert.False(t, ValidDate("2023-02-29"))
	assert.Equal(t, "Jun 12", FormatDay("2023-06-12"))

	got, ok := NormalizeDate("6/12/2023")
	assert.True(t, ok)
	assert.Equal(t, "2023-06-12", got)

	got, ok = NormalizeDate("March 4, 2025")
	assert.True(t, ok)
	assert.Equal(t, "2025-03-04", got)

	_, ok = NormalizeDate("next tuesday")
	assert.False(t, ok)
}

func TestValidClock(t *testing.T) {
	assert.True(t, ValidClock("00:00"))
	assert.True(t, ValidClock("23:59"))
	assert.False(t, ValidClock("24:00"))
	assert.False(t, ValidClock("22:75"))
	assert.False(t, ValidClock("9:00"))
}
