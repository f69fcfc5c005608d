package trafficdist

import (
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
	"golang.org/x/sync/singleflight"

	"github.com/npmrds-measures/calculator/internal/calendar"
	"github.com/npmrds-measures/calculator/internal/npmrds"
)

const (
	numMonths   = 12
	numDaysWeek = 7
)

// FractionTable holds the fraction of daily AADT expected in each
// [month-1][dow][timeBinNum] cell.
type FractionTable [][][]float64

// Fraction looks up a cell; month is 1-based.
func (t FractionTable) Fraction(month int, dow time.Weekday, timeBinNum int) (float64, error) {
	if month < 1 || month > len(t) {
		return 0, fmt.Errorf("month %d outside traffic distribution table", month)
	}
	byDow := t[month-1]
	if int(dow) < 0 || int(dow) >= len(byDow) {
		return 0, fmt.Errorf("day of week %d outside traffic distribution table", dow)
	}
	bins := byDow[dow]
	if timeBinNum < 0 || timeBinNum >= len(bins) {
		return 0, fmt.Errorf("time bin %d outside traffic distribution table", timeBinNum)
	}
	return bins[timeBinNum], nil
}

// TableParams are the inputs that fully determine a FractionTable.
type TableParams struct {
	FunctionalClass                npmrds.FunctionalClass
	CongestionLevel                npmrds.CongestionLevel
	Directionality                 npmrds.Directionality
	ProfilesVersion                ProfilesVersion
	TrafficDistributionTimeBinSize int
	TimeBinSize                    int
}

func (p TableParams) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%d/%d", p.FunctionalClass, p.CongestionLevel, p.Directionality,
		p.ProfilesVersion, p.TrafficDistributionTimeBinSize, p.TimeBinSize)
}

type profileKey struct {
	Version     ProfilesVersion
	Name        string
	TimeBinSize int
}

// Engine computes and memoizes fraction-of-daily-AADT tables. It is safe
// for concurrent use; every cached value is a pure function of its key.
type Engine struct {
	profiles *xsync.MapOf[profileKey, []float64]
	tables   *xsync.MapOf[TableParams, FractionTable]
	group    singleflight.Group
}

func NewEngine() *Engine {
	return &Engine{
		profiles: xsync.NewMapOf[profileKey, []float64](),
		tables:   xsync.NewMapOf[TableParams, FractionTable](),
	}
}

// TimeBinnedProfile resamples a canonical profile to trafficDistributionTimeBinSize
// by summing contiguous 5-minute fractions.
func (e *Engine) TimeBinnedProfile(version ProfilesVersion, name string, trafficDistributionTimeBinSize int) ([]float64, error) {
	if !calendar.ValidTimeBinSize(trafficDistributionTimeBinSize) {
		return nil, fmt.Errorf("invalid traffic distribution time bin size %d", trafficDistributionTimeBinSize)
	}
	p5, err := Profile5Min(version, name)
	if err != nil {
		return nil, err
	}
	key := profileKey{Version: version, Name: name, TimeBinSize: trafficDistributionTimeBinSize}
	binned, _ := e.profiles.LoadOrCompute(key, func() []float64 {
		return Resample(p5[:], trafficDistributionTimeBinSize)
	})
	return binned, nil
}

// Resample sums a 5-minute profile into bins of timeBinSize minutes.
func Resample(profile5Min []float64, timeBinSize int) []float64 {
	return lo.Map(lo.Chunk(profile5Min, timeBinSize/5), func(chunk []float64, _ int) float64 {
		return lo.Sum(chunk)
	})
}

// FractionForTimeBin is the fraction of daily volume in observation bin
// timeBinNum, given a profile binned at trafficDistributionTimeBinSize.
func FractionForTimeBin(profile []float64, trafficDistributionTimeBinSize, timeBinSize, timeBinNum int) float64 {
	// Index of the profile bin containing the start of the observation bin.
	start := timeBinSize * timeBinNum / trafficDistributionTimeBinSize

	if trafficDistributionTimeBinSize >= timeBinSize {
		ratio := float64(timeBinSize) / float64(trafficDistributionTimeBinSize)
		return profile[start] * ratio
	}

	end := start + timeBinSize/trafficDistributionTimeBinSize
	return lo.Sum(profile[start:end])
}

// FractionOfDailyAadtByMonthByDowByTimeBin returns the table for params,
// computing it at most once per distinct params value.
func (e *Engine) FractionOfDailyAadtByMonthByDowByTimeBin(params TableParams) (FractionTable, error) {
	if t, ok := e.tables.Load(params); ok {
		return t, nil
	}
	v, err, _ := e.group.Do(params.String(), func() (any, error) {
		if t, ok := e.tables.Load(params); ok {
			return t, nil
		}
		t, err := e.buildTable(params)
		if err != nil {
			return nil, err
		}
		e.tables.Store(params, t)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(FractionTable), nil
}

func (e *Engine) buildTable(params TableParams) (FractionTable, error) {
	if !calendar.ValidTimeBinSize(params.TimeBinSize) {
		return nil, fmt.Errorf("invalid time bin size %d", params.TimeBinSize)
	}

	profiles := make(map[DayType][]float64, 2)
	for _, dayType := range []DayType{Weekday, Weekend} {
		name := ProfileName(dayType, params.CongestionLevel, params.Directionality, params.FunctionalClass)
		p, err := e.TimeBinnedProfile(params.ProfilesVersion, name, params.TrafficDistributionTimeBinSize)
		if err != nil {
			return nil, err
		}
		profiles[dayType] = p
	}

	numBins := calendar.NumBinsInDay(params.TimeBinSize)
	byDow := make([][]float64, numDaysWeek)
	for dow := time.Sunday; dow <= time.Saturday; dow++ {
		profile := profiles[DayTypeForDow(dow)]
		factor := DowAdjustmentFactors[dow]
		bins := make([]float64, numBins)
		for binNum := range bins {
			bins[binNum] = FractionForTimeBin(profile, params.TrafficDistributionTimeBinSize, params.TimeBinSize, binNum) * factor
		}
		byDow[dow] = bins
	}

	// The profiles carry no seasonal variation; every month shares one table.
	table := make(FractionTable, numMonths)
	for m := range table {
		table[m] = byDow
	}
	return table, nil
}
