package npmrds

import (
	"fmt"

	"github.com/npmrds-measures/calculator/internal/calendar"
)

// Enricher fills the calendar-derived fields of observation rows.
type Enricher struct {
	year        int
	timeBinSize int
	dows        *calendar.DowTable
	binHours    []int
}

func NewEnricher(year, timeBinSize int) (*Enricher, error) {
	if !calendar.ValidTimeBinSize(timeBinSize) {
		return nil, fmt.Errorf("invalid time bin size %d", timeBinSize)
	}
	return &Enricher{
		year:        year,
		timeBinSize: timeBinSize,
		dows:        calendar.DowTableForYear(year),
		binHours:    calendar.TimeBinNumToHourTable(timeBinSize),
	}, nil
}

// Enrich sets Month, Dow and Hour on each row in place.
func (e *Enricher) Enrich(rows []ObservationRow) error {
	for i := range rows {
		r := &rows[i]
		var y, m, d int
		if _, err := fmt.Sscanf(r.Date, "%4d-%2d-%2d", &y, &m, &d); err != nil {
			return fmt.Errorf("row %d: parse date %q: %w", i, r.Date, err)
		}
		if y != e.year {
			return fmt.Errorf("row %d: date %s is outside year %d", i, r.Date, e.year)
		}
		dow, err := e.dows.Dow(m, d)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if r.TimeBinNum < 0 || r.TimeBinNum >= len(e.binHours) {
			return fmt.Errorf("row %d: time bin %d out of range for %d-minute bins", i, r.TimeBinNum, e.timeBinSize)
		}
		r.Month = m
		r.Dow = dow
		r.Hour = e.binHours[r.TimeBinNum]
	}
	return nil
}
