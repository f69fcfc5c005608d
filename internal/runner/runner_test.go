package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/npmrds-measures/calculator/internal/measure"
	"github.com/npmrds-measures/calculator/internal/npmrds"
	"github.com/npmrds-measures/calculator/internal/trafficdist"
)

type fakeMetadata struct {
	attrs map[string]npmrds.SegmentAttributes
}

func (m *fakeMetadata) MetadataForTmcs(_ context.Context, tmcs []string, _ []string) ([]npmrds.SegmentAttributes, error) {
	var out []npmrds.SegmentAttributes
	for _, tmc := range tmcs {
		if a, ok := m.attrs[tmc]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *fakeMetadata) TmcsForStates(_ context.Context, _ []string) ([]string, error) {
	return []string{"120P04341", "120P04340"}, nil
}

type fakeData struct {
	rows map[string][]npmrds.ObservationRow
	err  error
}

func (d *fakeData) BinnedYearData(_ context.Context, tmc string, _ float64, _ []npmrds.DataKey) ([]npmrds.ObservationRow, error) {
	return d.rows[tmc], d.err
}

type collectingSink struct {
	mu      sync.Mutex
	results map[string][]measure.Result
}

func (s *collectingSink) WriteTmc(attrs npmrds.SegmentAttributes, results []measure.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[attrs.Tmc] = results
	return nil
}

var ttAll = npmrds.DataKey{Metric: npmrds.TravelTime, Source: npmrds.All, Mean: npmrds.Arithmetic}

func segment(tmc string) npmrds.SegmentAttributes {
	return npmrds.SegmentAttributes{
		Tmc: tmc, Miles: 1, AvgSpeedLimit: 60,
		FunctionalClass: npmrds.Freeway, CongestionLevel: npmrds.NoToLowCongestion, Directionality: npmrds.EvenDist,
		DirectionalAadt: 10000, AvgVehicleOccupancy: 1.5,
	}
}

func calculators(t *testing.T, measures ...string) []measure.Calculator {
	t.Helper()
	engine := trafficdist.NewEngine()
	var calcs []measure.Calculator
	for _, m := range measures {
		opts := measure.Options{}
		if m == measure.TTTR {
			opts.NpmrdsDataSource = "ALL"
		}
		cfg, err := measure.ResolveConfig(m, 2023, opts)
		require.NoError(t, err)
		calc, err := measure.New(cfg, engine)
		require.NoError(t, err)
		calcs = append(calcs, calc)
	}
	return calcs
}

func TestRun(t *testing.T) {
	broken := segment("120P04341")
	broken.Directionality = ""
	metadata := &fakeMetadata{attrs: map[string]npmrds.SegmentAttributes{
		"120P04340": segment("120P04340"),
		"120P04341": broken,
	}}
	data := &fakeData{rows: map[string][]npmrds.ObservationRow{
		"120P04340": {
			{Tmc: "120P04340", Date: "2023-01-03", TimeBinNum: 28, Values: map[npmrds.DataKey]float64{ttAll: 160}},
			{Tmc: "120P04340", Date: "2023-01-03", TimeBinNum: 29, Values: map[npmrds.DataKey]float64{ttAll: 100}},
		},
		"120P04341": {
			{Tmc: "120P04341", Date: "2023-01-03", TimeBinNum: 28, Values: map[npmrds.DataKey]float64{ttAll: 160}},
		},
	}}
	sink := &collectingSink{results: map[string][]measure.Result{}}

	r, err := New(2023, calculators(t, measure.PHED, measure.TTTR), metadata,
		func(int) (DataSource, error) { return data, nil }, sink, 2)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), []string{"120P04341"})
	assert.ErrorContains(t, err, "120P04341 PHED")
	r.SkipFailures = true

	tmcs, err := r.ResolveTmcs(context.Background(), []string{"ny"}, []string{"120P04340", "120P09999"})
	require.NoError(t, err)
	assert.Equal(t, []string{"120P04340", "120P04341", "120P09999"}, tmcs)

	stats, err := r.Run(context.Background(), tmcs)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Tmcs)
	assert.Equal(t, 1, stats.MissingMetadata)
	assert.Equal(t, 1, stats.FailedCalculation)

	require.Len(t, sink.results["120P04340"], 2)
	phed := sink.results["120P04340"][0].(*measure.PhedResult)
	assert.Equal(t, 0.017, phed.XDelayHrs)
	tttr := sink.results["120P04340"][1].(*measure.TttrResult)
	assert.Equal(t, 2, tttr.ObservationCountsByTimePeriod["AMP"])

	// PHED needs directionality; TTTR does not.
	assert.Nil(t, sink.results["120P04341"][0])
	assert.NotNil(t, sink.results["120P04341"][1])
}

func TestRunAbortsOnForeignRows(t *testing.T) {
	metadata := &fakeMetadata{attrs: map[string]npmrds.SegmentAttributes{"120P04340": segment("120P04340")}}
	data := &fakeData{rows: map[string][]npmrds.ObservationRow{
		"120P04340": {{Tmc: "120P04341", Date: "2023-01-03", TimeBinNum: 28, Values: map[npmrds.DataKey]float64{ttAll: 160}}},
	}}
	r, err := New(2023, calculators(t, measure.TTTR), metadata,
		func(int) (DataSource, error) { return data, nil }, &collectingSink{results: map[string][]measure.Result{}}, 1)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), []string{"120P04340"})
	assert.ErrorIs(t, err, measure.ErrTmcMismatch)
}

func TestRunDataError(t *testing.T) {
	metadata := &fakeMetadata{attrs: map[string]npmrds.SegmentAttributes{"120P04340": segment("120P04340")}}
	data := &fakeData{err: errors.New("connection reset")}
	r, err := New(2023, calculators(t, measure.TTI), metadata,
		func(int) (DataSource, error) { return data, nil }, &collectingSink{results: map[string][]measure.Result{}}, 1)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), []string{"120P04340"})
	assert.ErrorContains(t, err, "connection reset")
}

func TestRequiredTmcMetadata(t *testing.T) {
	r, err := New(2023, calculators(t, measure.PHED, measure.TTI), &fakeMetadata{},
		func(int) (DataSource, error) { return &fakeData{}, nil }, &collectingSink{}, 1)
	require.NoError(t, err)
	attrs := r.RequiredTmcMetadata()
	assert.Contains(t, attrs, npmrds.AttrAvgSpeedLimit)
	assert.Contains(t, attrs, npmrds.AttrStartLat)
	assert.IsIncreasing(t, attrs)
}

func TestDisqualifications(t *testing.T) {
	canonical := calculators(t, measure.PHED)
	assert.Empty(t, Disqualifications([]string{"ny"}, nil, canonical))

	tttrAll := calculators(t, measure.TTTR)
	reasons := Disqualifications([]string{"ny", "nj"}, []string{"120P04340"}, tttrAll)
	assert.Len(t, reasons, 3)
}
