// Package measure computes the per-TMC performance measures: peak hour
// excessive delay, truck travel time reliability and travel time index.
package measure

import (
	"fmt"
	"slices"
	"sort"

	"github.com/samber/lo"

	"github.com/npmrds-measures/calculator/internal/npmrds"
	"github.com/npmrds-measures/calculator/internal/timeperiod"
	"github.com/npmrds-measures/calculator/internal/trafficdist"
)

// Calculator computes one measure for one TMC at a time. Implementations
// are immutable after construction and safe for concurrent use.
type Calculator interface {
	// Measure is the qualified measure name, e.g. PHED_TRUCK.
	Measure() string
	Config() CalculatorConfig
	TimePeriodSpec() *timeperiod.Spec
	// RequiredTmcMetadata lists the segment attributes CalculateForTmc reads.
	RequiredTmcMetadata() []string
	// NpmrdsDataKeys lists the binned series CalculateForTmc reads.
	NpmrdsDataKeys() []npmrds.DataKey
	// CalculateForTmc expects rows enriched with month, day of week and hour.
	CalculateForTmc(attrs npmrds.SegmentAttributes, data []npmrds.ObservationRow) (Result, error)
}

// Result is one TMC's measure output.
type Result interface {
	Tmc() string
	Measure() string
	// Values flattens the result into long-format rows in a stable order.
	Values() []Value
}

// Value is one long-format output row. TimePeriod and VehicleClass are empty
// for totals and for class-independent fields.
type Value struct {
	Tmc          string  `json:"tmc" parquet:"tmc"`
	Measure      string  `json:"measure" parquet:"measure"`
	Field        string  `json:"field" parquet:"field"`
	TimePeriod   string  `json:"timePeriod,omitempty" parquet:"time_period"`
	VehicleClass string  `json:"vehicleClass,omitempty" parquet:"vehicle_class"`
	Value        float64 `json:"value" parquet:"value"`
}

// ThresholdSpeedCalculator picks the speed below which delay is excessive.
type ThresholdSpeedCalculator interface {
	RequiredTmcMetadata() []string
	CalculateThresholdSpeed(attrs npmrds.SegmentAttributes) float64
}

// TrafficDistributionFactors select a traffic distribution profile.
type TrafficDistributionFactors struct {
	CongestionLevel npmrds.CongestionLevel
	Directionality  npmrds.Directionality
}

// TrafficDistributionFactorsCalculator derives a TMC's profile selectors.
type TrafficDistributionFactorsCalculator interface {
	RequiredTmcMetadata() []string
	CalculateTrafficDistributionFactors(attrs npmrds.SegmentAttributes, data []npmrds.ObservationRow) (TrafficDistributionFactors, error)
}

// PostedSpeedThreshold is 60% of the average posted speed limit, never
// below 20 mph.
type PostedSpeedThreshold struct{}

const (
	thresholdSpeedFactor = 0.6
	minThresholdSpeed    = 20
)

func (PostedSpeedThreshold) RequiredTmcMetadata() []string {
	return []string{npmrds.AttrAvgSpeedLimit}
}

func (PostedSpeedThreshold) CalculateThresholdSpeed(attrs npmrds.SegmentAttributes) float64 {
	return max(attrs.AvgSpeedLimit*thresholdSpeedFactor, minThresholdSpeed)
}

// AttributeFactors reads the factors straight from the segment attributes.
type AttributeFactors struct{}

func (AttributeFactors) RequiredTmcMetadata() []string {
	return []string{npmrds.AttrCongestionLevel, npmrds.AttrDirectionality}
}

func (AttributeFactors) CalculateTrafficDistributionFactors(attrs npmrds.SegmentAttributes, _ []npmrds.ObservationRow) (TrafficDistributionFactors, error) {
	if attrs.CongestionLevel == "" || attrs.Directionality == "" {
		return TrafficDistributionFactors{}, fmt.Errorf("tmc %s: missing congestion level or directionality", attrs.Tmc)
	}
	return TrafficDistributionFactors{
		CongestionLevel: attrs.CongestionLevel,
		Directionality:  attrs.Directionality,
	}, nil
}

// New builds the calculator for cfg.Measure with the default strategies.
func New(cfg CalculatorConfig, engine *trafficdist.Engine) (Calculator, error) {
	switch cfg.Measure {
	case PHED:
		return NewPhedCalculator(cfg, engine, PostedSpeedThreshold{}, AttributeFactors{})
	case TTTR:
		return NewTttrCalculator(cfg)
	case TTI:
		return NewTtiCalculator(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown measure %q", ErrInvalidConfig, cfg.Measure)
	}
}

// metadataUnion merges attribute name lists, always leading with the TMC code.
func metadataUnion(lists ...[]string) []string {
	all := lo.Uniq(lo.Flatten(lists))
	all = lo.Without(all, npmrds.AttrTmc)
	sort.Strings(all)
	return append([]string{npmrds.AttrTmc}, all...)
}

// sortedRows orders a copy of the rows by date then time bin.
func sortedRows(data []npmrds.ObservationRow) []npmrds.ObservationRow {
	rows := slices.Clone(data)
	slices.SortStableFunc(rows, func(a, b npmrds.ObservationRow) int {
		if a.Date != b.Date {
			if a.Date < b.Date {
				return -1
			}
			return 1
		}
		return a.TimeBinNum - b.TimeBinNum
	})
	return rows
}

func checkTmc(attrs npmrds.SegmentAttributes, row npmrds.ObservationRow) error {
	if row.Tmc != attrs.Tmc {
		return fmt.Errorf("%w: row for %s passed to calculation for %s", ErrTmcMismatch, row.Tmc, attrs.Tmc)
	}
	return nil
}

// travelTimeSec returns the row's travel time for key, inverting speeds
// with the segment length. Missing and non-positive speeds report false.
func travelTimeSec(row npmrds.ObservationRow, key npmrds.DataKey, miles float64) (float64, bool) {
	v, ok := row.Value(key)
	if !ok {
		return 0, false
	}
	if key.Metric == npmrds.Speed {
		if v <= 0 {
			return 0, false
		}
		return miles / v * 3600, true
	}
	return v, true
}
