package timeperiod

import (
	"time"

	"github.com/npmrds-measures/calculator/internal/calendar"
)

// Identifier classifies observations into the time periods of a Spec.
type Identifier struct {
	spec *Spec
}

func NewIdentifier(spec *Spec) *Identifier {
	return &Identifier{spec: spec}
}

func (id *Identifier) Spec() *Spec { return id.spec }

func (id *Identifier) Name() string { return id.spec.name }

// TimePeriod returns the period containing (dow, hour), if any.
func (id *Identifier) TimePeriod(dow time.Weekday, hour int) (string, bool) {
	if dow < time.Sunday || dow > time.Saturday || hour < 0 || hour > 23 {
		return "", false
	}
	tp := id.spec.lookup[dow][hour]
	return tp, tp != ""
}

// TimePeriodForBin classifies a time bin of the given size.
func (id *Identifier) TimePeriodForBin(dow time.Weekday, timeBinNum, timeBinSize int) (string, bool) {
	return id.TimePeriod(dow, calendar.HourForTimeBin(timeBinSize, timeBinNum))
}
