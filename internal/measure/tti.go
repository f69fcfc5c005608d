package measure

import (
	"fmt"
	"slices"

	"github.com/npmrds-measures/calculator/internal/mathutil"
	"github.com/npmrds-measures/calculator/internal/npmrds"
	"github.com/npmrds-measures/calculator/internal/timeperiod"
)

const (
	FieldFreeflowTravelTimeSec = "freeflow_travel_time_sec"
	FieldTti                   = "tti"

	freeflowPercentile = 0.15
)

// TtiCalculator divides mean peak travel time by the free-flow travel time,
// the 15th percentile of off-peak travel times.
type TtiCalculator struct {
	cfg        CalculatorConfig
	identifier *timeperiod.Identifier
	freeflow   *timeperiod.Identifier
	key        npmrds.DataKey
}

func NewTtiCalculator(cfg CalculatorConfig) (*TtiCalculator, error) {
	if cfg.Measure != TTI {
		return nil, fmt.Errorf("%w: %s config passed to TTI calculator", ErrInvalidConfig, cfg.Measure)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	spec, err := cfg.resolveSpec(func() (*timeperiod.Spec, error) { return timeperiod.Lookup(timeperiod.TTIPeaks) })
	if err != nil {
		return nil, err
	}
	ff, err := timeperiod.Lookup(timeperiod.TTIFreeflow)
	if err != nil {
		return nil, err
	}
	return &TtiCalculator{
		cfg:        cfg,
		identifier: timeperiod.NewIdentifier(spec),
		freeflow:   timeperiod.NewIdentifier(ff),
		key:        cfg.PrimaryDataKey(),
	}, nil
}

func (c *TtiCalculator) Measure() string                  { return c.cfg.MeasureName() }
func (c *TtiCalculator) Config() CalculatorConfig         { return c.cfg }
func (c *TtiCalculator) TimePeriodSpec() *timeperiod.Spec { return c.identifier.Spec() }

func (c *TtiCalculator) RequiredTmcMetadata() []string {
	return metadataUnion([]string{npmrds.AttrMiles})
}

func (c *TtiCalculator) NpmrdsDataKeys() []npmrds.DataKey { return []npmrds.DataKey{c.key} }

// TtiResult is empty when no free-flow observations exist. Tti spans all
// peak periods together.
type TtiResult struct {
	TmcID                 string             `json:"tmc"`
	MeasureName           string             `json:"measure"`
	NpmrdsDataKey         string             `json:"npmrdsDataKey"`
	FreeflowTravelTimeSec *float64           `json:"freeflowTravelTimeSec"`
	Tti                   *float64           `json:"tti"`
	TtiByTimePeriod       map[string]float64 `json:"ttiByTimePeriod"`

	periods []string
}

func (r *TtiResult) Tmc() string     { return r.TmcID }
func (r *TtiResult) Measure() string { return r.MeasureName }

func (r *TtiResult) Values() []Value {
	if r.FreeflowTravelTimeSec == nil {
		return nil
	}
	v := func(field, tp string, value float64) Value {
		return Value{Tmc: r.TmcID, Measure: r.MeasureName, Field: field, TimePeriod: tp, Value: value}
	}
	out := []Value{v(FieldFreeflowTravelTimeSec, "", *r.FreeflowTravelTimeSec)}
	if r.Tti != nil {
		out = append(out, v(FieldTti, "", *r.Tti))
	}
	for _, tp := range r.periods {
		if tti, ok := r.TtiByTimePeriod[tp]; ok {
			out = append(out, v(FieldTti, tp, tti))
		}
	}
	return out
}

func (c *TtiCalculator) round(v float64, decimals int) float64 {
	if !c.cfg.RoundTravelTimes {
		return v
	}
	return mathutil.PrecisionRound(v, decimals)
}

func (c *TtiCalculator) CalculateForTmc(attrs npmrds.SegmentAttributes, data []npmrds.ObservationRow) (Result, error) {
	var freeflow, allPeak []float64
	peak := map[string][]float64{}
	for _, row := range data {
		if err := checkTmc(attrs, row); err != nil {
			return nil, err
		}
		tt, ok := travelTimeSec(row, c.key, attrs.Miles)
		if !ok {
			continue
		}
		if _, ok := c.freeflow.TimePeriod(row.Dow, row.Hour); ok {
			freeflow = append(freeflow, tt)
		}
		if tp, ok := c.identifier.TimePeriod(row.Dow, row.Hour); ok {
			peak[tp] = append(peak[tp], tt)
			allPeak = append(allPeak, tt)
		}
	}

	res := &TtiResult{
		TmcID:           attrs.Tmc,
		MeasureName:     c.Measure(),
		NpmrdsDataKey:   c.key.String(),
		TtiByTimePeriod: map[string]float64{},
		periods:         c.identifier.Spec().Periods(),
	}
	if len(freeflow) == 0 {
		return res, nil
	}
	slices.Sort(freeflow)
	fftt := mathutil.Quantile(freeflow, freeflowPercentile)
	if fftt <= 0 {
		return res, nil
	}
	reported := c.round(fftt, 0)
	res.FreeflowTravelTimeSec = &reported

	for tp, tts := range peak {
		res.TtiByTimePeriod[tp] = c.round(mathutil.Mean(tts)/fftt, 2)
	}
	if len(allPeak) > 0 {
		tti := c.round(mathutil.Mean(allPeak)/fftt, 2)
		res.Tti = &tti
	}
	return res, nil
}
