package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotsFor(t *testing.T) {
	assert.Len(t, SlotsFor(time.Monday), 9)
	assert.Len(t, SlotsFor(time.Saturday), 10)
	assert.Nil(t, SlotsFor(time.Sunday))

	slots := SlotsFor(time.Friday)
	slots[0] = "mutated"
	assert.Equal(t, "16:00-16:40", SlotsFor(time.Friday)[0])
}

func TestValidSlot(t *testing.T) {
	assert.True(t, ValidSlot(time.Tuesday, "16:40-17:20"))
	assert.False(t, ValidSlot(time.Tuesday, "10:20-11:00"))
	assert.True(t, ValidSlot(time.Saturday, "10:20-11:00"))
	assert.False(t, ValidSlot(time.Saturday, "13:40-14:00"))
}

func TestParseWeekday(t *testing.T) {
	cases := map[string]time.Weekday{"Tue": time.Tuesday, "tuesday": time.Tuesday, "화": time.Tuesday, " SAT ": time.Saturday, "일요일": time.Sunday}
	for token, want := range cases {
		got, ok := ParseWeekday(token)
		require.True(t, ok, token)
		assert.Equal(t, want, got, token)
	}
	_, ok := ParseWeekday("Tues-ish")
	assert.False(t, ok)
	assert.Equal(t, "Tue", WeekdayToken(time.Tuesday))
}

func TestSlotStart(t *testing.T) {
	start, err := SlotStart("16:40-17:20")
	require.NoError(t, err)
	assert.Equal(t, "16:40", start)

	_, err = SlotStart("16:40")
	assert.Error(t, err)
}

func TestAtUsesLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	date, err := ParseDate("2024-01-09")
	require.NoError(t, err)

	at, err := At(date, "16:00", seoul)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 9, 16, 0, 0, 0, seoul), at)

	_, err = At(date, "4pm", seoul)
	assert.Error(t, err)
}

func TestDateOfKeepsLocalCalendarDay(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	late := time.Date(2024, 1, 9, 23, 30, 0, 0, seoul)
	assert.Equal(t, "2024-01-09", DateOf(late).Format(DateLayout))
}
