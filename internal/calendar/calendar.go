// Package calendar counts NPMRDS time bins over a calendar year.
//
// Bins are numbered from local midnight. The spring-forward daylight saving
// transition removes the 02:00 hour; its bins are never counted. Fall-back
// does not produce duplicate bins in the binned data and needs no handling.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// EpochsPerDay is the number of 5-minute NPMRDS epochs in a day.
const EpochsPerDay = 288

const minutesPerEpoch = 5

// Date is a calendar date within a year.
type Date struct {
	Month int
	Day   int
}

// PeriodClassifier maps a (day-of-week, hour) to a named time period.
type PeriodClassifier interface {
	TimePeriod(dow time.Weekday, hour int) (string, bool)
}

var (
	binHourTables = xsync.NewMapOf[int, []int]()
	dowTables     = xsync.NewMapOf[int, *DowTable]()
	yearBinCounts = xsync.NewMapOf[yearBinsKey, int]()
	periodCounts  = xsync.NewMapOf[periodBinsKey, map[string]int]()
)

type yearBinsKey struct {
	Year        int
	TimeBinSize int
}

type periodBinsKey struct {
	Year        int
	TimeBinSize int
	Hours       string
}

func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysPerMonth returns the day count of each month, January first.
func DaysPerMonth(year int) [12]int {
	feb := 28
	if IsLeapYear(year) {
		feb = 29
	}
	return [12]int{31, feb, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
}

// NumBinsInDay returns how many bins of timeBinSize minutes make up a day.
func NumBinsInDay(timeBinSize int) int {
	return EpochsPerDay * minutesPerEpoch / timeBinSize
}

// ValidTimeBinSize reports whether size evenly tiles a day in whole epochs.
func ValidTimeBinSize(size int) bool {
	return size > 0 && size%minutesPerEpoch == 0 && (EpochsPerDay*minutesPerEpoch)%size == 0
}

// TimeBinNumToHourTable maps each bin number of the day to its hour,
// floor(timeBinSize*binNum/60). The returned slice is shared; do not modify.
func TimeBinNumToHourTable(timeBinSize int) []int {
	table, _ := binHourTables.LoadOrCompute(timeBinSize, func() []int {
		n := NumBinsInDay(timeBinSize)
		t := make([]int, n)
		for binNum := range t {
			t[binNum] = timeBinSize * binNum / 60
		}
		return t
	})
	return table
}

// HourForTimeBin returns the hour of day containing binNum.
func HourForTimeBin(timeBinSize, binNum int) int {
	table := TimeBinNumToHourTable(timeBinSize)
	if binNum < 0 || binNum >= len(table) {
		return -1
	}
	return table[binNum]
}

// DaylightSavingsStartDate is the second Sunday of March.
func DaylightSavingsStartDate(year int) Date {
	march7 := time.Date(year, time.March, 7, 12, 0, 0, 0, time.UTC)
	return Date{Month: 3, Day: 14 - int(march7.Weekday())}
}

// DowTable holds the day of week of every date in a year.
type DowTable struct {
	year int
	dows [12][31]time.Weekday
}

// DowTableForYear returns the cached day-of-week table for year.
func DowTableForYear(year int) *DowTable {
	table, _ := dowTables.LoadOrCompute(year, func() *DowTable {
		t := &DowTable{year: year}
		dow := time.Date(year, time.January, 1, 12, 0, 0, 0, time.UTC).Weekday()
		for m, days := range DaysPerMonth(year) {
			for d := 0; d < days; d++ {
				t.dows[m][d] = dow
				dow = (dow + 1) % 7
			}
		}
		return t
	})
	return table
}

func (t *DowTable) Year() int { return t.year }

// Dow returns the weekday of month/day (both 1-based).
func (t *DowTable) Dow(month, day int) (time.Weekday, error) {
	if month < 1 || month > 12 || day < 1 || day > DaysPerMonth(t.year)[month-1] {
		return 0, fmt.Errorf("invalid date %04d-%02d-%02d", t.year, month, day)
	}
	return t.dows[month-1][day-1], nil
}

// DowForDate parses a YYYY-MM-DD date of the table's year.
func (t *DowTable) DowForDate(date string) (time.Weekday, error) {
	var y, m, d int
	if _, err := fmt.Sscanf(date, "%4d-%2d-%2d", &y, &m, &d); err != nil {
		return 0, fmt.Errorf("parse date %q: %w", date, err)
	}
	if y != t.year {
		return 0, fmt.Errorf("date %s is outside year %d", date, t.year)
	}
	return t.Dow(m, d)
}

// forEachBin visits every valid bin of the year in order.
func forEachBin(year, timeBinSize int, fn func(date Date, dow time.Weekday, hour int)) {
	dst := DaylightSavingsStartDate(year)
	dows := DowTableForYear(year)
	binHours := TimeBinNumToHourTable(timeBinSize)

	for m, days := range DaysPerMonth(year) {
		month := m + 1
		for day := 1; day <= days; day++ {
			dow := dows.dows[m][day-1]
			for _, hour := range binHours {
				if month == dst.Month && day == dst.Day && hour == 2 {
					continue
				}
				fn(Date{Month: month, Day: day}, dow, hour)
			}
		}
	}
}

// NumBinsForYear counts the valid bins of the year.
func NumBinsForYear(year, timeBinSize int) int {
	count, _ := yearBinCounts.LoadOrCompute(yearBinsKey{Year: year, TimeBinSize: timeBinSize}, func() int {
		n := 0
		forEachBin(year, timeBinSize, func(Date, time.Weekday, int) { n++ })
		return n
	})
	return count
}

// NumBinsPerTimePeriodForYear counts the valid bins of the year that fall in
// each time period of the classifier. Periods with no bins are absent.
// The returned map is shared; do not modify.
func NumBinsPerTimePeriodForYear(year, timeBinSize int, classifier PeriodClassifier) map[string]int {
	key := periodBinsKey{Year: year, TimeBinSize: timeBinSize, Hours: hourMapping(classifier)}
	counts, _ := periodCounts.LoadOrCompute(key, func() map[string]int {
		c := make(map[string]int)
		forEachBin(year, timeBinSize, func(_ Date, dow time.Weekday, hour int) {
			if tp, ok := classifier.TimePeriod(dow, hour); ok {
				c[tp]++
			}
		})
		return c
	})
	return counts
}

// hourMapping renders the classifier's full (day-of-week, hour) table, so two
// classifiers share cached counts only when they assign every hour alike.
func hourMapping(classifier PeriodClassifier) string {
	var b strings.Builder
	for dow := time.Sunday; dow <= time.Saturday; dow++ {
		for hour := 0; hour < 24; hour++ {
			if tp, ok := classifier.TimePeriod(dow, hour); ok {
				b.WriteString(tp)
			}
			b.WriteByte(0)
		}
	}
	return b.String()
}
