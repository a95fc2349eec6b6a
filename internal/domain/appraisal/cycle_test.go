package appraisal

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

var cutoff = date(2023, time.April, 1)

func TestInitialCyclePreCutoff(t *testing.T) {
	c := InitialCycle(date(2022, time.June, 15), cutoff, 7)
	assert.Equal(t, date(2023, time.March, 1), c.Start)
	assert.Equal(t, date(2023, time.March, 31), c.End)
	assert.Equal(t, date(2023, time.March, 24), c.Remind)
}

func TestInitialCyclePostCutoff(t *testing.T) {
	c := InitialCycle(date(2024, time.June, 10), cutoff, 7)
	assert.Equal(t, date(2025, time.June, 1), c.Start)
	assert.Equal(t, date(2025, time.June, 30), c.End)
	assert.Equal(t, date(2025, time.June, 15), c.Remind)
}

func TestInitialCycleOnCutoffIsProrated(t *testing.T) {
	c := InitialCycle(cutoff, cutoff, 7)
	assert.Equal(t, date(2024, time.April, 1), c.Start)
	assert.Equal(t, date(2024, time.April, 30), c.End)
}

func TestNextCycleClampsLeapDay(t *testing.T) {
	c := NextCycle(Cycle{Start: date(2024, time.February, 1), End: date(2024, time.February, 29)}, 7)
	assert.Equal(t, date(2025, time.February, 1), c.Start)
	assert.Equal(t, date(2025, time.February, 28), c.End)
	assert.Equal(t, date(2025, time.February, 21), c.Remind)
}

func TestCalendarArchiveTrigger(t *testing.T) {
	cal := testCalendar
	assert.True(t, cal.IsArchiveTrigger(time.Date(2025, time.March, 1, 0, 59, 0, 0, time.UTC)))
	assert.False(t, cal.IsArchiveTrigger(time.Date(2025, time.March, 1, 1, 0, 0, 0, time.UTC)))
	assert.False(t, cal.IsArchiveTrigger(time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)))

	kolkata := time.FixedZone("IST", 5*3600+1800)
	cal.Location = kolkata
	assert.True(t, cal.IsArchiveTrigger(time.Date(2025, time.February, 28, 18, 45, 0, 0, time.UTC)))
}

func TestInitialCycleProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("pre-cutoff joiners share the March cycle", prop.ForAll(
		func(offset int) bool {
			joining := cutoff.AddDate(0, 0, -offset)
			c := InitialCycle(joining, cutoff, 7)
			return c.Start.Month() == time.March &&
				c.Start.Day() == 1 &&
				c.Start.Year() == joining.Year()+1 &&
				c.Remind.Equal(c.End.AddDate(0, 0, -7))
		},
		gen.IntRange(1, 3650),
	))

	properties.Property("post-cutoff joiners get an anniversary cycle", prop.ForAll(
		func(offset int) bool {
			joining := cutoff.AddDate(0, 0, offset)
			c := InitialCycle(joining, cutoff, 7)
			return c.Start.Day() == 1 &&
				c.Start.Month() == joining.Month() &&
				c.End.Equal(c.Start.AddDate(0, 0, 29)) &&
				c.Remind.Equal(c.Start.AddDate(0, 0, 14))
		},
		gen.IntRange(0, 3650),
	))

	properties.TestingRun(t)
}
