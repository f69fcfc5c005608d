package measure

import (
	"fmt"
	"slices"

	"github.com/npmrds-measures/calculator/internal/calendar"
	"github.com/npmrds-measures/calculator/internal/mathutil"
	"github.com/npmrds-measures/calculator/internal/npmrds"
	"github.com/npmrds-measures/calculator/internal/timeperiod"
)

const (
	FieldFiftiethPctl     = "p50"
	FieldNinetyfifthPctl  = "p95"
	FieldTttr             = "tttr"
	FieldObservationCount = "observation_count"
	FieldPctBinsReporting = "pct_bins_reporting"
)

type TttrCalculator struct {
	cfg        CalculatorConfig
	identifier *timeperiod.Identifier
	key        npmrds.DataKey
}

func NewTttrCalculator(cfg CalculatorConfig) (*TttrCalculator, error) {
	if cfg.Measure != TTTR {
		return nil, fmt.Errorf("%w: %s config passed to TTTR calculator", ErrInvalidConfig, cfg.Measure)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	spec, err := cfg.resolveSpec(func() (*timeperiod.Spec, error) { return timeperiod.Lookup(timeperiod.PM3) })
	if err != nil {
		return nil, err
	}
	return &TttrCalculator{cfg: cfg, identifier: timeperiod.NewIdentifier(spec), key: cfg.PrimaryDataKey()}, nil
}

func (c *TttrCalculator) Measure() string                  { return c.cfg.MeasureName() }
func (c *TttrCalculator) Config() CalculatorConfig         { return c.cfg }
func (c *TttrCalculator) TimePeriodSpec() *timeperiod.Spec { return c.identifier.Spec() }

func (c *TttrCalculator) RequiredTmcMetadata() []string {
	return metadataUnion([]string{npmrds.AttrMiles})
}

func (c *TttrCalculator) NpmrdsDataKeys() []npmrds.DataKey { return []npmrds.DataKey{c.key} }

// TttrResult holds per-period percentiles. Periods without observations are
// absent from every map. Percentiles are travel times in seconds, or speeds
// for speed-based configs.
type TttrResult struct {
	TmcID                         string             `json:"tmc"`
	MeasureName                   string             `json:"measure"`
	NpmrdsDataKey                 string             `json:"npmrdsDataKey"`
	FiftiethPctlsByTimePeriod     map[string]float64 `json:"fiftiethPctlsByTimePeriod"`
	NinetyfifthPctlsByTimePeriod  map[string]float64 `json:"ninetyfifthPctlsByTimePeriod"`
	TttrByTimePeriod              map[string]float64 `json:"tttrByTimePeriod"`
	ObservationCountsByTimePeriod map[string]int     `json:"observationCountsByTimePeriod"`
	PctBinsReportingByTimePeriod  map[string]float64 `json:"pctBinsReportingByTimePeriod"`

	periods []string
}

func (r *TttrResult) Tmc() string     { return r.TmcID }
func (r *TttrResult) Measure() string { return r.MeasureName }

func (r *TttrResult) Values() []Value {
	var out []Value
	for _, tp := range r.periods {
		if _, ok := r.TttrByTimePeriod[tp]; !ok {
			continue
		}
		v := func(field string, value float64) Value {
			return Value{Tmc: r.TmcID, Measure: r.MeasureName, Field: field, TimePeriod: tp, Value: value}
		}
		out = append(out,
			v(FieldFiftiethPctl, r.FiftiethPctlsByTimePeriod[tp]),
			v(FieldNinetyfifthPctl, r.NinetyfifthPctlsByTimePeriod[tp]),
			v(FieldTttr, r.TttrByTimePeriod[tp]),
			v(FieldObservationCount, float64(r.ObservationCountsByTimePeriod[tp])),
			v(FieldPctBinsReporting, r.PctBinsReportingByTimePeriod[tp]))
	}
	return out
}

func (c *TttrCalculator) round(v float64, decimals int) float64 {
	if !c.cfg.RoundTravelTimes {
		return v
	}
	return mathutil.PrecisionRound(v, decimals)
}

func (c *TttrCalculator) CalculateForTmc(attrs npmrds.SegmentAttributes, data []npmrds.ObservationRow) (Result, error) {
	travelTimes := map[string][]float64{}
	for _, row := range data {
		if err := checkTmc(attrs, row); err != nil {
			return nil, err
		}
		tp, ok := c.identifier.TimePeriod(row.Dow, row.Hour)
		if !ok {
			continue
		}
		tt, ok := travelTimeSec(row, c.key, attrs.Miles)
		if !ok {
			continue
		}
		travelTimes[tp] = append(travelTimes[tp], tt)
	}

	res := &TttrResult{
		TmcID:                         attrs.Tmc,
		MeasureName:                   c.Measure(),
		NpmrdsDataKey:                 c.key.String(),
		FiftiethPctlsByTimePeriod:     map[string]float64{},
		NinetyfifthPctlsByTimePeriod:  map[string]float64{},
		TttrByTimePeriod:              map[string]float64{},
		ObservationCountsByTimePeriod: map[string]int{},
		PctBinsReportingByTimePeriod:  map[string]float64{},
		periods:                       c.identifier.Spec().Periods(),
	}
	binsPerPeriod := calendar.NumBinsPerTimePeriodForYear(c.cfg.Year, c.cfg.TimeBinSize, c.identifier)

	for tp, tts := range travelTimes {
		slices.Sort(tts)
		p50 := mathutil.Quantile(tts, 0.5)
		p95 := mathutil.Quantile(tts, 0.95)
		if p50 <= 0 {
			continue
		}
		res.TttrByTimePeriod[tp] = c.round(p95/p50, 2)
		if c.cfg.NpmrdsMetric == npmrds.Speed {
			// p50 travel time is the median speed; p95 travel time the 5th percentile speed.
			res.FiftiethPctlsByTimePeriod[tp] = c.round(attrs.Miles/p50*3600, 0)
			res.NinetyfifthPctlsByTimePeriod[tp] = c.round(attrs.Miles/p95*3600, 0)
		} else {
			res.FiftiethPctlsByTimePeriod[tp] = c.round(p50, 0)
			res.NinetyfifthPctlsByTimePeriod[tp] = c.round(p95, 0)
		}
		res.ObservationCountsByTimePeriod[tp] = len(tts)
		if n := binsPerPeriod[tp]; n > 0 {
			res.PctBinsReportingByTimePeriod[tp] = c.round(float64(len(tts))/float64(n)*100, 2)
		}
	}
	return res, nil
}
