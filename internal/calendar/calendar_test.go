package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLeapYear(t *testing.T) {
	assert.True(t, IsLeapYear(2020))
	assert.True(t, IsLeapYear(2000))
	assert.False(t, IsLeapYear(1900))
	assert.False(t, IsLeapYear(2019))
	assert.Equal(t, 29, DaysPerMonth(2020)[1])
	assert.Equal(t, 28, DaysPerMonth(2019)[1])
}

func TestNumBinsInDay(t *testing.T) {
	assert.Equal(t, 288, NumBinsInDay(5))
	assert.Equal(t, 96, NumBinsInDay(15))
	assert.Equal(t, 24, NumBinsInDay(60))
	assert.True(t, ValidTimeBinSize(15))
	assert.False(t, ValidTimeBinSize(7))
	assert.False(t, ValidTimeBinSize(0))
}

func TestTimeBinNumToHourTable(t *testing.T) {
	table := TimeBinNumToHourTable(15)
	require.Len(t, table, 96)
	assert.Equal(t, 0, table[3])
	assert.Equal(t, 1, table[4])
	assert.Equal(t, 23, table[95])
	assert.Equal(t, 7, HourForTimeBin(5, 84+11))
	assert.Equal(t, -1, HourForTimeBin(60, 24))
}

func TestDaylightSavingsStartDate(t *testing.T) {
	assert.Equal(t, Date{Month: 3, Day: 11}, DaylightSavingsStartDate(2018))
	assert.Equal(t, Date{Month: 3, Day: 10}, DaylightSavingsStartDate(2019))
	assert.Equal(t, Date{Month: 3, Day: 8}, DaylightSavingsStartDate(2020))
	assert.Equal(t, Date{Month: 3, Day: 14}, DaylightSavingsStartDate(2021))

	for _, year := range []int{2017, 2018, 2019, 2020, 2021, 2022, 2023} {
		d := DaylightSavingsStartDate(year)
		assert.Equal(t, time.Sunday, time.Date(year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC).Weekday())
		assert.True(t, d.Day >= 8 && d.Day <= 14)
	}
}

func TestDowTableForYear(t *testing.T) {
	table := DowTableForYear(2019)
	dow, err := table.Dow(1, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Tuesday, dow)

	dow, err = table.DowForDate("2019-12-31")
	require.NoError(t, err)
	assert.Equal(t, time.Tuesday, dow)

	leap := DowTableForYear(2020)
	dow, err = leap.DowForDate("2020-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Saturday, dow)

	_, err = table.DowForDate("2019-02-29")
	assert.Error(t, err)
	_, err = table.DowForDate("2020-01-01")
	assert.Error(t, err)
	_, err = table.DowForDate("garbage")
	assert.Error(t, err)

	assert.Same(t, table, DowTableForYear(2019))
}

func TestNumBinsForYear(t *testing.T) {
	for _, size := range []int{5, 15, 60} {
		perDay := NumBinsInDay(size)
		perHour := 60 / size
		assert.Equal(t, 365*perDay-perHour, NumBinsForYear(2019, size), "size %d", size)
		assert.Equal(t, 366*perDay-perHour, NumBinsForYear(2020, size), "size %d", size)
	}
}

type weekdayMorning struct{}

func (weekdayMorning) TimePeriod(dow time.Weekday, hour int) (string, bool) {
	if dow >= time.Monday && dow <= time.Friday && hour >= 1 && hour < 4 {
		return "EARLY", true
	}
	if dow == time.Sunday && hour >= 6 && hour < 8 {
		return "SUNDAY", true
	}
	return "", false
}

func TestNumBinsPerTimePeriodForYear(t *testing.T) {
	counts := NumBinsPerTimePeriodForYear(2019, 60, weekdayMorning{})

	// 2019 has 261 weekdays and 52 Sundays; the DST Sunday only loses hour 2.
	assert.Equal(t, 261*3, counts["EARLY"])
	assert.Equal(t, 52*2, counts["SUNDAY"])
	assert.Len(t, counts, 2)
}

func TestNumBinsPerTimePeriodSkipsDstHour(t *testing.T) {
	counts := NumBinsPerTimePeriodForYear(2019, 15, allDayClassifier{})
	assert.Equal(t, NumBinsForYear(2019, 15), counts["ALL"])
}

type allDayClassifier struct{}

func (allDayClassifier) TimePeriod(time.Weekday, int) (string, bool) { return "ALL", true }

type hourRange struct{ from, to int }

func (r hourRange) TimePeriod(_ time.Weekday, hour int) (string, bool) {
	return "PEAK", hour >= r.from && hour < r.to
}

func TestNumBinsPerTimePeriodDistinguishesWindows(t *testing.T) {
	morning := NumBinsPerTimePeriodForYear(2021, 60, hourRange{from: 6, to: 9})
	evening := NumBinsPerTimePeriodForYear(2021, 60, hourRange{from: 16, to: 20})

	assert.Equal(t, 365*3, morning["PEAK"])
	assert.Equal(t, 365*4, evening["PEAK"])
}
