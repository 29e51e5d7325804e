package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tod(t *testing.T, s string) TimeOfDay {
	t.Helper()
	parsed, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return parsed
}

func TestMeetingSlotsOverlap(t *testing.T) {
	cases := []struct {
		name           string
		dayA, dayB     int
		startA, endA   string
		startB, endB   string
		expectOverlap  bool
	}{
		{"partial overlap", 1, 1, "09:00", "10:00", "09:30", "10:30", true},
		{"contained", 1, 1, "09:00", "12:00", "10:00", "11:00", true},
		{"identical", 1, 1, "09:00", "10:00", "09:00", "10:00", true},
		{"touching end to start", 1, 1, "09:00", "10:00", "10:00", "11:00", false},
		{"touching start to end", 1, 1, "10:00", "11:00", "09:00", "10:00", false},
		{"disjoint", 1, 1, "09:00", "10:00", "14:00", "15:00", false},
		{"different days same time", 1, 2, "09:00", "10:00", "09:00", "10:00", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MeetingSlotsOverlap(tc.dayA, tod(t, tc.startA), tod(t, tc.endA), tc.dayB, tod(t, tc.startB), tod(t, tc.endB))
			assert.Equal(t, tc.expectOverlap, got)
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	parsed, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(9*3600+30*60), parsed)
	assert.Equal(t, "09:30:00", parsed.String())

	parsed, err = ParseTimeOfDay("23:59:59")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(24*3600-1), parsed)

	_, err = ParseTimeOfDay("24:00")
	assert.Error(t, err)
	_, err = ParseTimeOfDay("oops")
	assert.Error(t, err)
}

func TestTimeOfDayJSONRoundTrip(t *testing.T) {
	meeting := SectionMeeting{StartTime: tod(t, "08:15"), EndTime: tod(t, "09:45")}
	raw, err := json.Marshal(meeting)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"start_time":"08:15:00"`)

	var decoded SectionMeeting
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, meeting.StartTime, decoded.StartTime)
	assert.Equal(t, meeting.EndTime, decoded.EndTime)
}
