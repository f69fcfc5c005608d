package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npmrds-measures/calculator/internal/npmrds"
	"github.com/npmrds-measures/calculator/internal/timeperiod"
	"github.com/npmrds-measures/calculator/internal/trafficdist"
)

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := ResolveConfig(PHED, 2023, Options{})
	require.NoError(t, err)

	assert.Equal(t, npmrds.Arithmetic, cfg.MeanType)
	assert.Equal(t, npmrds.All, cfg.NpmrdsDataSource)
	assert.Equal(t, npmrds.TravelTime, cfg.NpmrdsMetric)
	assert.Equal(t, timeperiod.MeasureDefault, cfg.TimePeriodSpec)
	assert.Equal(t, 15, cfg.TimeBinSize)
	assert.Equal(t, 60, cfg.TrafficDistributionTimeBinSize)
	assert.Equal(t, trafficdist.CATTLAB, cfg.TrafficDistributionProfilesVersion)
	assert.True(t, cfg.RoundTravelTimes)
	assert.True(t, cfg.IsCanonical())
	assert.Equal(t, "PHED", cfg.MeasureName())

	tttr, err := ResolveConfig(TTTR, 2023, Options{})
	require.NoError(t, err)
	assert.Equal(t, npmrds.Truck, tttr.NpmrdsDataSource)
	assert.Equal(t, "TTTR", tttr.MeasureName())
}

func TestResolveConfigOverrides(t *testing.T) {
	noRound := false
	cfg, err := ResolveConfig(PHED, 2023, Options{
		MeanType:                           "HARMONIC",
		NpmrdsDataSource:                   "TRUCK",
		NpmrdsMetric:                       "SPEED",
		TimePeriodSpec:                     timeperiod.PM3,
		TimeBinSize:                        5,
		TrafficDistributionTimeBinSize:     15,
		TrafficDistributionProfilesVersion: "AVAIL",
		RoundTravelTimes:                   &noRound,
	})
	require.NoError(t, err)

	assert.Equal(t, npmrds.Harmonic, cfg.MeanType)
	assert.Equal(t, npmrds.Speed, cfg.NpmrdsMetric)
	assert.Equal(t, 5, cfg.TimeBinSize)
	assert.False(t, cfg.RoundTravelTimes)
	assert.False(t, cfg.IsCanonical())
	assert.Equal(t, "PHED_TRUCK", cfg.MeasureName())
	assert.Equal(t, "speed_freight_trucks_hmean", cfg.PrimaryDataKey().String())
}

func TestResolveConfigRejectsUnknownValues(t *testing.T) {
	cases := map[string]Options{
		"meanType":        {MeanType: "GEOMETRIC"},
		"dataSource":      {NpmrdsDataSource: "BUS"},
		"metric":          {NpmrdsMetric: "DENSITY"},
		"spec":            {TimePeriodSpec: "RUSH_HOUR"},
		"timeBinSize":     {TimeBinSize: 7},
		"tdTimeBinSize":   {TrafficDistributionTimeBinSize: 30},
		"profilesVersion": {TrafficDistributionProfilesVersion: "FHWA"},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ResolveConfig(PHED, 2023, opts)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := ResolveConfig("LOTTR", 2023, Options{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = ResolveConfig(PHED, 0, Options{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewDispatchesOnMeasure(t *testing.T) {
	engine := trafficdist.NewEngine()
	for _, m := range Measures {
		cfg, err := ResolveConfig(m, 2023, Options{})
		require.NoError(t, err)
		calc, err := New(cfg, engine)
		require.NoError(t, err)
		assert.Equal(t, m, calc.Measure())
		assert.Equal(t, cfg, calc.Config())
	}

	cfg, err := ResolveConfig(PHED, 2023, Options{})
	require.NoError(t, err)
	calc, err := New(cfg, engine)
	require.NoError(t, err)
	assert.Equal(t, timeperiod.PM3AltPeaks, calc.TimePeriodSpec().Name())
}
