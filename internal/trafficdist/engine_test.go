package trafficdist

import (
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npmrds-measures/calculator/internal/calendar"
	"github.com/npmrds-measures/calculator/internal/npmrds"
)

var binSizes = []int{5, 15, 60}

func TestProfilesAreComplete(t *testing.T) {
	for _, version := range ProfilesVersions {
		names := ProfileNames(version)
		assert.Len(t, names, 20, "version %s", version)

		for _, fc := range []npmrds.FunctionalClass{npmrds.Freeway, npmrds.NonFreeway} {
			_, err := Profile5Min(version, ProfileName(Weekend, "", "", fc))
			assert.NoError(t, err)
			for _, cl := range []npmrds.CongestionLevel{npmrds.NoToLowCongestion, npmrds.ModerateCongestion, npmrds.SevereCongestion} {
				for _, d := range []npmrds.Directionality{npmrds.EvenDist, npmrds.AMPeakDist, npmrds.PMPeakDist} {
					_, err := Profile5Min(version, ProfileName(Weekday, cl, d, fc))
					assert.NoError(t, err)
				}
			}
		}
	}
}

func TestResampledProfilesSumToOne(t *testing.T) {
	e := NewEngine()
	for _, version := range ProfilesVersions {
		for _, name := range ProfileNames(version) {
			for _, size := range binSizes {
				p, err := e.TimeBinnedProfile(version, name, size)
				require.NoError(t, err)
				assert.Len(t, p, calendar.NumBinsInDay(size))
				assert.InDelta(t, 1.0, lo.Sum(p), 1e-9, "%s %s %d", version, name, size)
				for _, f := range p {
					assert.GreaterOrEqual(t, f, 0.0)
				}
			}
		}
	}
}

func TestCattlabHourlyFlatSplit(t *testing.T) {
	name := ProfileName(Weekday, npmrds.SevereCongestion, npmrds.PMPeakDist, npmrds.Freeway)
	p, err := Profile5Min(CATTLAB, name)
	require.NoError(t, err)
	for hour := 0; hour < 24; hour++ {
		for j := 1; j < 12; j++ {
			assert.Equal(t, p[hour*12], p[hour*12+j])
		}
	}
}

func TestResample(t *testing.T) {
	p := make([]float64, 288)
	for i := range p {
		p[i] = float64(i % 3)
	}
	r := Resample(p, 15)
	require.Len(t, r, 96)
	assert.Equal(t, 3.0, r[0])
}

func TestFractionForTimeBin(t *testing.T) {
	hourly := make([]float64, 24)
	for i := range hourly {
		hourly[i] = float64(i + 1)
	}

	// A 15-minute observation bin takes a quarter of the covering hour.
	assert.Equal(t, 0.5, FractionForTimeBin(hourly, 60, 15, 4))
	assert.Equal(t, 0.5, FractionForTimeBin(hourly, 60, 15, 7))
	assert.Equal(t, 24.0, FractionForTimeBin(hourly, 60, 60, 23))

	fiveMin := make([]float64, 288)
	for i := range fiveMin {
		fiveMin[i] = 1
	}
	// An hourly observation bin sums twelve 5-minute bins.
	assert.Equal(t, 12.0, FractionForTimeBin(fiveMin, 5, 60, 3))
	assert.Equal(t, 3.0, FractionForTimeBin(fiveMin, 5, 15, 95))
}

func TestFractionTableDailySums(t *testing.T) {
	e := NewEngine()
	for _, version := range ProfilesVersions {
		for _, tdSize := range binSizes {
			for _, size := range binSizes {
				params := TableParams{
					FunctionalClass:                npmrds.Freeway,
					CongestionLevel:                npmrds.ModerateCongestion,
					Directionality:                 npmrds.AMPeakDist,
					ProfilesVersion:                version,
					TrafficDistributionTimeBinSize: tdSize,
					TimeBinSize:                    size,
				}
				table, err := e.FractionOfDailyAadtByMonthByDowByTimeBin(params)
				require.NoError(t, err)
				require.Len(t, table, 12)

				for month := 1; month <= 12; month++ {
					for dow := time.Sunday; dow <= time.Saturday; dow++ {
						bins := table[month-1][dow]
						require.Len(t, bins, calendar.NumBinsInDay(size))
						for _, f := range bins {
							assert.GreaterOrEqual(t, f, 0.0)
						}
						// Undo the day-of-week adjustment: the day sums to 1.
						assert.InDelta(t, 1.0, lo.Sum(bins)/DowAdjustmentFactors[dow], 1e-9, "%s td=%d size=%d dow=%d", version, tdSize, size, dow)
					}
				}
			}
		}
	}
}

func TestDowAdjustmentFactorsAverageToOne(t *testing.T) {
	assert.InDelta(t, 1.0, lo.Sum(DowAdjustmentFactors[:])/7, 1e-12)
}

func TestFractionTableLookup(t *testing.T) {
	e := NewEngine()
	table, err := e.FractionOfDailyAadtByMonthByDowByTimeBin(TableParams{
		FunctionalClass:                npmrds.NonFreeway,
		CongestionLevel:                npmrds.NoToLowCongestion,
		Directionality:                 npmrds.EvenDist,
		ProfilesVersion:                CATTLAB,
		TrafficDistributionTimeBinSize: 60,
		TimeBinSize:                    15,
	})
	require.NoError(t, err)

	hourly, err := e.TimeBinnedProfile(CATTLAB, ProfileName(Weekday, npmrds.NoToLowCongestion, npmrds.EvenDist, npmrds.NonFreeway), 60)
	require.NoError(t, err)

	f, err := table.Fraction(6, time.Wednesday, 33)
	require.NoError(t, err)
	assert.InDelta(t, hourly[8]/4*DowAdjustmentFactors[time.Wednesday], f, 1e-15)

	_, err = table.Fraction(13, time.Wednesday, 0)
	assert.Error(t, err)
	_, err = table.Fraction(1, time.Wednesday, 96)
	assert.Error(t, err)
}

func TestFractionTableIsMemoized(t *testing.T) {
	e := NewEngine()
	params := TableParams{
		FunctionalClass:                npmrds.Freeway,
		CongestionLevel:                npmrds.SevereCongestion,
		Directionality:                 npmrds.PMPeakDist,
		ProfilesVersion:                AVAIL,
		TrafficDistributionTimeBinSize: 15,
		TimeBinSize:                    5,
	}

	var wg sync.WaitGroup
	tables := make([]FractionTable, 8)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tbl, err := e.FractionOfDailyAadtByMonthByDowByTimeBin(params)
			assert.NoError(t, err)
			tables[i] = tbl
		}(i)
	}
	wg.Wait()

	for _, tbl := range tables[1:] {
		assert.Same(t, &tables[0][0][0][0], &tbl[0][0][0])
	}

	fresh, err := NewEngine().FractionOfDailyAadtByMonthByDowByTimeBin(params)
	require.NoError(t, err)
	assert.Equal(t, tables[0], fresh)
}

func TestUnknownProfile(t *testing.T) {
	e := NewEngine()
	_, err := e.FractionOfDailyAadtByMonthByDowByTimeBin(TableParams{
		FunctionalClass:                "ARTERIAL",
		CongestionLevel:                npmrds.NoToLowCongestion,
		Directionality:                 npmrds.EvenDist,
		ProfilesVersion:                AVAIL,
		TrafficDistributionTimeBinSize: 60,
		TimeBinSize:                    15,
	})
	assert.ErrorIs(t, err, ErrUnknownProfile)

	_, err = e.TimeBinnedProfile("NOPE", "x", 15)
	assert.ErrorIs(t, err, ErrUnknownProfile)

	_, err = e.TimeBinnedProfile(AVAIL, ProfileName(Weekend, "", "", npmrds.Freeway), 7)
	assert.Error(t, err)
}
