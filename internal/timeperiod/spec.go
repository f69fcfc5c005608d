// Package timeperiod defines named time period specs and classifies
// observations into them.
package timeperiod

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Period names used by the federal measures.
const (
	AMP  = "AMP"
	MIDD = "MIDD"
	PMP  = "PMP"
	WE   = "WE"
	OVN  = "OVN"

	// FREEFLOW covers the off-peak hours the travel time index baseline is drawn from.
	FREEFLOW = "FREEFLOW"
)

// Spec names.
const (
	MeasureDefault = "MEASURE_DEFAULT_TIME_PERIOD_SPEC"
	PM3            = "PM3_TIME_PERIOD_SPEC"
	PM3AltPeaks    = "PM3_ALT_PEAKS_TIME_PERIOD_SPEC"
	PM3Peaks       = "PM3_PEAKS_TIME_PERIOD_SPEC"
	TTIPeaks       = "TTI_TIME_PERIOD_SPEC"
	TTIFreeflow    = "TTI_FREEFLOW_TIME_PERIOD_SPEC"
)

var (
	ErrOverlap     = errors.New("time period windows overlap")
	ErrUnknownSpec = errors.New("unknown time period spec")
)

// DaySet is a bitmask of weekdays, bit i set for time.Weekday(i).
type DaySet uint8

const (
	Weekdays DaySet = 1<<time.Monday | 1<<time.Tuesday | 1<<time.Wednesday | 1<<time.Thursday | 1<<time.Friday
	Weekends DaySet = 1<<time.Saturday | 1<<time.Sunday
	AllDays         = Weekdays | Weekends
)

// Days builds a DaySet from individual weekdays.
func Days(dows ...time.Weekday) DaySet {
	var s DaySet
	for _, d := range dows {
		s |= 1 << d
	}
	return s
}

func (s DaySet) Contains(dow time.Weekday) bool {
	return dow >= time.Sunday && dow <= time.Saturday && s&(1<<dow) != 0
}

// Window covers the hours [StartHour, EndHour) on each day of Days.
// A StartHour greater than EndHour wraps past midnight.
type Window struct {
	Days      DaySet
	StartHour int
	EndHour   int
}

func (w Window) Contains(dow time.Weekday, hour int) bool {
	if !w.Days.Contains(dow) {
		return false
	}
	if w.StartHour <= w.EndHour {
		return hour >= w.StartHour && hour < w.EndHour
	}
	return hour >= w.StartHour || hour < w.EndHour
}

// Spec is an immutable set of non-overlapping named time periods.
type Spec struct {
	name    string
	periods map[string][]Window
	// lookup[dow][hour] is the period name, or "" outside every window.
	lookup [7][24]string
}

// NewSpec validates the windows and precomputes the (dow, hour) lookup.
func NewSpec(name string, periods map[string][]Window) (*Spec, error) {
	s := &Spec{name: name, periods: make(map[string][]Window, len(periods))}
	for _, tp := range lo.Keys(periods) {
		windows := periods[tp]
		if tp == "" {
			return nil, fmt.Errorf("spec %s: empty time period name", name)
		}
		if len(windows) == 0 {
			return nil, fmt.Errorf("spec %s: time period %s has no windows", name, tp)
		}
		for _, w := range windows {
			if w.Days == 0 || w.Days&^AllDays != 0 {
				return nil, fmt.Errorf("spec %s: time period %s has an invalid day set %07b", name, tp, w.Days)
			}
			if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 24 || w.StartHour == w.EndHour {
				return nil, fmt.Errorf("spec %s: time period %s has invalid hours %d-%d", name, tp, w.StartHour, w.EndHour)
			}
		}
		s.periods[tp] = slices.Clone(windows)
	}

	for _, tp := range s.Periods() {
		for _, w := range s.periods[tp] {
			for dow := time.Sunday; dow <= time.Saturday; dow++ {
				for hour := 0; hour < 24; hour++ {
					if !w.Contains(dow, hour) {
						continue
					}
					if other := s.lookup[dow][hour]; other != "" && other != tp {
						return nil, fmt.Errorf("spec %s: %s and %s both cover %s hour %d: %w",
							name, other, tp, dow, hour, ErrOverlap)
					}
					s.lookup[dow][hour] = tp
				}
			}
		}
	}
	return s, nil
}

func mustSpec(name string, periods map[string][]Window) *Spec {
	s, err := NewSpec(name, periods)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Spec) Name() string { return s.name }

// Periods lists the time period names in sorted order.
func (s *Spec) Periods() []string {
	names := lo.Keys(s.periods)
	sort.Strings(names)
	return names
}

// Windows returns a copy of the windows of a time period.
func (s *Spec) Windows(timePeriod string) []Window {
	return slices.Clone(s.periods[timePeriod])
}

// Pick returns a new spec restricted to the named periods.
func (s *Spec) Pick(name string, timePeriods ...string) (*Spec, error) {
	picked := make(map[string][]Window, len(timePeriods))
	for _, tp := range timePeriods {
		w, ok := s.periods[tp]
		if !ok {
			return nil, fmt.Errorf("spec %s has no time period %s", s.name, tp)
		}
		picked[tp] = w
	}
	return NewSpec(name, picked)
}

var registry = map[string]*Spec{
	PM3: mustSpec(PM3, map[string][]Window{
		AMP:  {{Days: Weekdays, StartHour: 6, EndHour: 10}},
		MIDD: {{Days: Weekdays, StartHour: 10, EndHour: 16}},
		PMP:  {{Days: Weekdays, StartHour: 16, EndHour: 20}},
		WE:   {{Days: Weekends, StartHour: 6, EndHour: 20}},
		OVN:  {{Days: AllDays, StartHour: 20, EndHour: 6}},
	}),
	PM3AltPeaks: mustSpec(PM3AltPeaks, map[string][]Window{
		AMP: {{Days: Weekdays, StartHour: 6, EndHour: 10}},
		PMP: {{Days: Weekdays, StartHour: 15, EndHour: 19}},
	}),
	PM3Peaks: mustSpec(PM3Peaks, map[string][]Window{
		AMP: {{Days: Weekdays, StartHour: 6, EndHour: 10}},
		PMP: {{Days: Weekdays, StartHour: 16, EndHour: 20}},
	}),
	TTIPeaks: mustSpec(TTIPeaks, map[string][]Window{
		AMP: {{Days: Weekdays, StartHour: 6, EndHour: 9}},
		PMP: {{Days: Weekdays, StartHour: 16, EndHour: 19}},
	}),
	TTIFreeflow: mustSpec(TTIFreeflow, map[string][]Window{
		FREEFLOW: {
			{Days: Weekdays, StartHour: 9, EndHour: 16},
			{Days: Weekdays, StartHour: 19, EndHour: 22},
			{Days: Weekends, StartHour: 6, EndHour: 22},
		},
	}),
}

// Lookup returns a registered spec. MeasureDefault is not registered; each
// measure resolves it to its own default spec.
func Lookup(name string) (*Spec, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpec, name)
	}
	return s, nil
}

// Names lists the selectable spec names, MeasureDefault included.
func Names() []string {
	names := append(lo.Keys(registry), MeasureDefault)
	sort.Strings(names)
	return names
}
