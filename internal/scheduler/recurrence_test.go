package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestRecurrence_WeeklyCount(t *testing.T) {
	spec := RecurrenceSpec{
		TitleTemplate: "Weekly update {n}",
		Frequency:     FrequencyWeekly,
		Start:         date(2024, time.January, 1),
		Count:         12,
	}

	dates, err := spec.Dates()
	require.NoError(t, err)
	require.Len(t, dates, 12)

	// Start anchors the series; the first slot is one week after it.
	assert.Equal(t, date(2024, time.January, 8), dates[0])
	for i := 1; i < len(dates); i++ {
		assert.Equal(t, 7*24*time.Hour, dates[i].Sub(dates[i-1]))
	}
	assert.Equal(t, date(2024, time.March, 25), dates[11])
}

func TestRecurrence_EndDateTerminates(t *testing.T) {
	end := date(2024, time.January, 20)
	spec := RecurrenceSpec{
		TitleTemplate: "t",
		Frequency:     FrequencyWeekly,
		Start:         date(2024, time.January, 1),
		End:           &end,
		Count:         100,
	}

	dates, err := spec.Dates()
	require.NoError(t, err)
	// Jan 8 and 15 fit; Jan 22 is past the end.
	require.Len(t, dates, 2)
	assert.Equal(t, date(2024, time.January, 15), dates[1])
}

func TestRecurrence_Frequencies(t *testing.T) {
	start := date(2024, time.January, 1)
	tests := []struct {
		frequency string
		first     time.Time
		second    time.Time
	}{
		{FrequencyDaily, date(2024, time.January, 2), date(2024, time.January, 3)},
		{FrequencyWeekly, date(2024, time.January, 8), date(2024, time.January, 15)},
		{FrequencyBiweekly, date(2024, time.January, 15), date(2024, time.January, 29)},
		{FrequencyMonthly, date(2024, time.February, 1), date(2024, time.March, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.frequency, func(t *testing.T) {
			spec := RecurrenceSpec{TitleTemplate: "t", Frequency: tt.frequency, Start: start, Count: 2}
			dates, err := spec.Dates()
			require.NoError(t, err)
			require.Len(t, dates, 2)
			assert.Equal(t, tt.first, dates[0])
			assert.Equal(t, tt.second, dates[1])
		})
	}
}

func TestRecurrence_Validation(t *testing.T) {
	start := date(2024, time.January, 1)
	before := date(2023, time.December, 1)

	tests := []struct {
		name string
		spec RecurrenceSpec
	}{
		{"missing template", RecurrenceSpec{Frequency: FrequencyDaily, Start: start, Count: 1}},
		{"bad frequency", RecurrenceSpec{TitleTemplate: "t", Frequency: "hourly", Start: start, Count: 1}},
		{"no end or count", RecurrenceSpec{TitleTemplate: "t", Frequency: FrequencyDaily, Start: start}},
		{"end before start", RecurrenceSpec{TitleTemplate: "t", Frequency: FrequencyDaily, Start: start, End: &before}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.spec.Validate())
		})
	}
}

func TestRecurrence_EntriesSubstituteTemplate(t *testing.T) {
	spec := RecurrenceSpec{
		TitleTemplate: "Digest {n} ({date})",
		Frequency:     FrequencyWeekly,
		Start:         date(2024, time.January, 1),
		Count:         2,
	}

	entries, err := spec.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Digest 1 (2024-01-08)", entries[0].Title)
	assert.Equal(t, "Digest 2 (2024-01-15)", entries[1].Title)
	assert.Equal(t, date(2024, time.January, 15), entries[1].ScheduledFor)
}
