package measure

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/npmrds-measures/calculator/internal/mathutil"
	"github.com/npmrds-measures/calculator/internal/npmrds"
	"github.com/npmrds-measures/calculator/internal/timeperiod"
	"github.com/npmrds-measures/calculator/internal/trafficdist"
)

// PHED output field names.
const (
	FieldXDelayHrs              = "xdelay_hrs"
	FieldXDelayVehHrs           = "xdelay_veh_hrs"
	FieldXDelayPerHrs           = "xdelay_per_hrs"
	FieldThresholdSpeed         = "threshold_speed"
	FieldThresholdTravelTimeSec = "threshold_travel_time_sec"
)

type PhedCalculator struct {
	cfg            CalculatorConfig
	identifier     *timeperiod.Identifier
	engine         *trafficdist.Engine
	thresholdSpeed ThresholdSpeedCalculator
	factors        TrafficDistributionFactorsCalculator
	primaryKey     npmrds.DataKey
	secondaryKey   npmrds.DataKey
	vehicleClasses []npmrds.VehicleClass
}

// NewPhedCalculator wires the threshold speed and traffic distribution
// strategies into a PHED calculator.
func NewPhedCalculator(cfg CalculatorConfig, engine *trafficdist.Engine, ts ThresholdSpeedCalculator, tdf TrafficDistributionFactorsCalculator) (*PhedCalculator, error) {
	if cfg.Measure != PHED {
		return nil, fmt.Errorf("%w: %s config passed to PHED calculator", ErrInvalidConfig, cfg.Measure)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if engine == nil || ts == nil || tdf == nil {
		return nil, fmt.Errorf("%w: PHED calculator needs a traffic distribution engine and strategies", ErrInvalidConfig)
	}
	spec, err := cfg.resolveSpec(func() (*timeperiod.Spec, error) { return timeperiod.Lookup(timeperiod.PM3AltPeaks) })
	if err != nil {
		return nil, err
	}
	primary := cfg.PrimaryDataKey()
	secondary := primary
	secondary.Source = npmrds.All
	return &PhedCalculator{
		cfg:            cfg,
		identifier:     timeperiod.NewIdentifier(spec),
		engine:         engine,
		thresholdSpeed: ts,
		factors:        tdf,
		primaryKey:     primary,
		secondaryKey:   secondary,
		vehicleClasses: npmrds.VehicleClassesForSource(cfg.NpmrdsDataSource),
	}, nil
}

func (c *PhedCalculator) Measure() string                  { return c.cfg.MeasureName() }
func (c *PhedCalculator) Config() CalculatorConfig         { return c.cfg }
func (c *PhedCalculator) TimePeriodSpec() *timeperiod.Spec { return c.identifier.Spec() }

func (c *PhedCalculator) RequiredTmcMetadata() []string {
	own := []string{npmrds.AttrMiles, npmrds.AttrFunctionalClass, npmrds.AttrIsPrimary}
	for _, vc := range c.vehicleClasses {
		own = append(own, npmrds.DirectionalAadtAttr(vc), npmrds.AvgVehicleOccupancyAttr(vc))
	}
	return metadataUnion(own, c.thresholdSpeed.RequiredTmcMetadata(), c.factors.RequiredTmcMetadata())
}

func (c *PhedCalculator) NpmrdsDataKeys() []npmrds.DataKey {
	return lo.Uniq([]npmrds.DataKey{c.primaryKey, c.secondaryKey})
}

// PhedResult is one TMC's excessive delay. Per-period maps hold every period
// of the time period spec, zero when no delay accrued.
type PhedResult struct {
	TmcID                  string                          `json:"tmc"`
	MeasureName            string                          `json:"measure"`
	NpmrdsDataKey          string                          `json:"npmrdsDataKey"`
	Miles                  float64                         `json:"miles"`
	FunctionalClass        npmrds.FunctionalClass          `json:"functionalClass"`
	CongestionLevel        npmrds.CongestionLevel          `json:"congestionLevel"`
	Directionality         npmrds.Directionality           `json:"directionality"`
	ThresholdSpeed         float64                         `json:"thresholdSpeed"`
	ThresholdTravelTimeSec float64                         `json:"thresholdTravelTimeSec"`
	DirAadtByVehClass      map[npmrds.VehicleClass]float64 `json:"dirAadtByVehClass"`
	AvoByVehClass          map[npmrds.VehicleClass]float64 `json:"avgVehicleOccupancyByVehClass"`
	XDelayHrs              float64                         `json:"xdelayHrs"`
	XDelayHrsByTimePeriod  map[string]float64              `json:"xdelayHrsByTimePeriod"`
	XDelayVehHrsByVehClass map[npmrds.VehicleClass]float64 `json:"xdelayVehHrsByVehClass"`
	XDelayPerHrsByVehClass map[npmrds.VehicleClass]float64 `json:"xdelayPerHrsByVehClass"`
	// Keyed by time period, then vehicle class.
	XDelayVehHrsByTimePeriod map[string]map[npmrds.VehicleClass]float64 `json:"xdelayVehHrsByTimePeriodByVehClass"`
	XDelayPerHrsByTimePeriod map[string]map[npmrds.VehicleClass]float64 `json:"xdelayPerHrsByTimePeriodByVehClass"`
	// XDelayHrsByTimeBin is only populated for speed-based configs.
	XDelayHrsByTimeBin map[int]float64 `json:"xdelayHrsByTimeBin,omitempty"`

	periods        []string
	vehicleClasses []npmrds.VehicleClass
}

func (r *PhedResult) Tmc() string     { return r.TmcID }
func (r *PhedResult) Measure() string { return r.MeasureName }

func (r *PhedResult) Values() []Value {
	v := func(field, tp, vc string, value float64) Value {
		return Value{Tmc: r.TmcID, Measure: r.MeasureName, Field: field, TimePeriod: tp, VehicleClass: vc, Value: value}
	}
	out := []Value{
		v(FieldThresholdSpeed, "", "", r.ThresholdSpeed),
		v(FieldThresholdTravelTimeSec, "", "", r.ThresholdTravelTimeSec),
		v(FieldXDelayHrs, "", "", r.XDelayHrs),
	}
	for _, tp := range r.periods {
		out = append(out, v(FieldXDelayHrs, tp, "", r.XDelayHrsByTimePeriod[tp]))
	}
	for _, vc := range r.vehicleClasses {
		out = append(out,
			v(FieldXDelayVehHrs, "", vc.String(), r.XDelayVehHrsByVehClass[vc]),
			v(FieldXDelayPerHrs, "", vc.String(), r.XDelayPerHrsByVehClass[vc]))
		for _, tp := range r.periods {
			out = append(out,
				v(FieldXDelayVehHrs, tp, vc.String(), r.XDelayVehHrsByTimePeriod[tp][vc]),
				v(FieldXDelayPerHrs, tp, vc.String(), r.XDelayPerHrsByTimePeriod[tp][vc]))
		}
	}
	return out
}

func (c *PhedCalculator) round(v float64, decimals int) float64 {
	if !c.cfg.RoundTravelTimes {
		return v
	}
	return mathutil.PrecisionRound(v, decimals)
}

// thresholdTravelTimeSec is the time to traverse the segment at the threshold speed.
func (c *PhedCalculator) thresholdTravelTimeSec(miles, thresholdSpeed float64) float64 {
	return c.round(c.round(miles, 3)/thresholdSpeed*3600, 0)
}

// xdelayHrs is one bin's excessive delay in hours, capped at the bin length.
func (c *PhedCalculator) xdelayHrs(travelTimeSec, thresholdTravelTimeSec float64) float64 {
	tt := c.round(travelTimeSec, 0)
	xdelaySec := c.round(tt-thresholdTravelTimeSec, 0)
	xdelaySec = min(xdelaySec, float64(60*c.cfg.TimeBinSize))
	return max(c.round(xdelaySec/3600, 3), 0)
}

// metricTravelTime reads the primary key, falling back to all vehicles.
func (c *PhedCalculator) metricTravelTime(row npmrds.ObservationRow, miles float64) (float64, bool) {
	if tt, ok := travelTimeSec(row, c.primaryKey, miles); ok {
		return tt, true
	}
	return travelTimeSec(row, c.secondaryKey, miles)
}

func (c *PhedCalculator) CalculateForTmc(attrs npmrds.SegmentAttributes, data []npmrds.ObservationRow) (Result, error) {
	rows := sortedRows(data)
	factors, err := c.factors.CalculateTrafficDistributionFactors(attrs, rows)
	if err != nil {
		return nil, err
	}
	table, err := c.engine.FractionOfDailyAadtByMonthByDowByTimeBin(trafficdist.TableParams{
		FunctionalClass:                attrs.FunctionalClass,
		CongestionLevel:                factors.CongestionLevel,
		Directionality:                 factors.Directionality,
		ProfilesVersion:                c.cfg.TrafficDistributionProfilesVersion,
		TrafficDistributionTimeBinSize: c.cfg.TrafficDistributionTimeBinSize,
		TimeBinSize:                    c.cfg.TimeBinSize,
	})
	if err != nil {
		return nil, fmt.Errorf("tmc %s: %w", attrs.Tmc, err)
	}
	if len(table) != 12 {
		return nil, fmt.Errorf("tmc %s: %w, got %d", attrs.Tmc, ErrTableShape, len(table))
	}

	thresholdSpeed := c.thresholdSpeed.CalculateThresholdSpeed(attrs)
	if thresholdSpeed <= 0 {
		return nil, fmt.Errorf("tmc %s: non-positive threshold speed %v", attrs.Tmc, thresholdSpeed)
	}
	thresholdTT := c.thresholdTravelTimeSec(attrs.Miles, thresholdSpeed)

	periods := c.identifier.Spec().Periods()
	res := &PhedResult{
		TmcID:                    attrs.Tmc,
		MeasureName:              c.Measure(),
		NpmrdsDataKey:            c.primaryKey.String(),
		Miles:                    attrs.Miles,
		FunctionalClass:          attrs.FunctionalClass,
		CongestionLevel:          factors.CongestionLevel,
		Directionality:           factors.Directionality,
		ThresholdSpeed:           thresholdSpeed,
		ThresholdTravelTimeSec:   thresholdTT,
		DirAadtByVehClass:        make(map[npmrds.VehicleClass]float64, len(c.vehicleClasses)),
		AvoByVehClass:            make(map[npmrds.VehicleClass]float64, len(c.vehicleClasses)),
		XDelayHrsByTimePeriod:    make(map[string]float64, len(periods)),
		XDelayVehHrsByVehClass:   make(map[npmrds.VehicleClass]float64, len(c.vehicleClasses)),
		XDelayPerHrsByVehClass:   make(map[npmrds.VehicleClass]float64, len(c.vehicleClasses)),
		XDelayVehHrsByTimePeriod: make(map[string]map[npmrds.VehicleClass]float64, len(periods)),
		XDelayPerHrsByTimePeriod: make(map[string]map[npmrds.VehicleClass]float64, len(periods)),
		periods:                  periods,
		vehicleClasses:           c.vehicleClasses,
	}
	speedBased := c.cfg.NpmrdsMetric == npmrds.Speed
	if speedBased {
		res.XDelayHrsByTimeBin = map[int]float64{}
	}
	for _, vc := range c.vehicleClasses {
		res.DirAadtByVehClass[vc] = attrs.DirectionalAadtFor(vc)
		res.AvoByVehClass[vc] = attrs.AvgVehicleOccupancyFor(vc)
	}
	for _, tp := range periods {
		res.XDelayHrsByTimePeriod[tp] = 0
		res.XDelayVehHrsByTimePeriod[tp] = make(map[npmrds.VehicleClass]float64, len(c.vehicleClasses))
		res.XDelayPerHrsByTimePeriod[tp] = make(map[npmrds.VehicleClass]float64, len(c.vehicleClasses))
	}

	for _, row := range rows {
		if err := checkTmc(attrs, row); err != nil {
			return nil, err
		}
		tp, ok := c.identifier.TimePeriod(row.Dow, row.Hour)
		if !ok {
			continue
		}
		tt, ok := c.metricTravelTime(row, attrs.Miles)
		if !ok {
			continue
		}
		xdelayHrs := c.xdelayHrs(tt, thresholdTT)
		res.XDelayHrsByTimePeriod[tp] += xdelayHrs
		res.XDelayHrs += xdelayHrs
		if speedBased {
			res.XDelayHrsByTimeBin[row.TimeBinNum] += xdelayHrs
		}
		if xdelayHrs == 0 {
			continue
		}
		fraction, err := table.Fraction(row.Month, row.Dow, row.TimeBinNum)
		if err != nil {
			return nil, fmt.Errorf("tmc %s date %s bin %d: %w", attrs.Tmc, row.Date, row.TimeBinNum, err)
		}
		for _, vc := range c.vehicleClasses {
			volume := c.round(res.DirAadtByVehClass[vc]*fraction, 1)
			vehHrs := xdelayHrs * volume
			res.XDelayVehHrsByTimePeriod[tp][vc] += vehHrs
			res.XDelayVehHrsByVehClass[vc] += vehHrs
		}
	}

	// Person hours come from the unrounded vehicle hours.
	for _, vc := range c.vehicleClasses {
		avo := res.AvoByVehClass[vc]
		res.XDelayPerHrsByVehClass[vc] = c.round(res.XDelayVehHrsByVehClass[vc]*avo, 3)
		res.XDelayVehHrsByVehClass[vc] = c.round(res.XDelayVehHrsByVehClass[vc], 3)
		for _, tp := range periods {
			vehHrs := res.XDelayVehHrsByTimePeriod[tp][vc]
			res.XDelayPerHrsByTimePeriod[tp][vc] = c.round(vehHrs*avo, 3)
			res.XDelayVehHrsByTimePeriod[tp][vc] = c.round(vehHrs, 3)
		}
	}
	return res, nil
}
