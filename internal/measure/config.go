package measure

import (
	"errors"
	"fmt"
	"slices"

	"github.com/npmrds-measures/calculator/internal/calendar"
	"github.com/npmrds-measures/calculator/internal/npmrds"
	"github.com/npmrds-measures/calculator/internal/timeperiod"
	"github.com/npmrds-measures/calculator/internal/trafficdist"
)

// Measure names.
const (
	PHED = "PHED"
	TTTR = "TTTR"
	TTI  = "TTI"
)

var Measures = []string{PHED, TTTR, TTI}

var (
	ErrInvalidConfig = errors.New("invalid calculator config")
	ErrTmcMismatch   = errors.New("observation belongs to another TMC")
	ErrTableShape    = errors.New("traffic distribution table must cover 12 months")
)

// Options are the user-supplied calculator settings. Zero values mean
// "use the measure default".
type Options struct {
	MeanType                           string `yaml:"meanType" json:"meanType,omitempty"`
	NpmrdsDataSource                   string `yaml:"npmrdsDataSource" json:"npmrdsDataSource,omitempty"`
	NpmrdsMetric                       string `yaml:"npmrdsMetric" json:"npmrdsMetric,omitempty"`
	TimePeriodSpec                     string `yaml:"timePeriodSpec" json:"timePeriodSpec,omitempty"`
	TimeBinSize                        int    `yaml:"timeBinSize" json:"timeBinSize,omitempty"`
	TrafficDistributionTimeBinSize     int    `yaml:"trafficDistributionTimeBinSize" json:"trafficDistributionTimeBinSize,omitempty"`
	TrafficDistributionProfilesVersion string `yaml:"trafficDistributionProfilesVersion" json:"trafficDistributionProfilesVersion,omitempty"`
	RoundTravelTimes                   *bool  `yaml:"roundTravelTimes" json:"roundTravelTimes,omitempty"`
}

// CalculatorConfig is the fully resolved, immutable configuration of one
// calculator instance.
type CalculatorConfig struct {
	Measure                            string                      `json:"measure"`
	Year                               int                         `json:"year"`
	MeanType                           npmrds.MeanType             `json:"meanType"`
	NpmrdsDataSource                   npmrds.DataSource           `json:"npmrdsDataSource"`
	NpmrdsMetric                       npmrds.Metric               `json:"npmrdsMetric"`
	TimePeriodSpec                     string                      `json:"timePeriodSpec"`
	TimeBinSize                        int                         `json:"timeBinSize"`
	TrafficDistributionTimeBinSize     int                         `json:"trafficDistributionTimeBinSize"`
	TrafficDistributionProfilesVersion trafficdist.ProfilesVersion `json:"trafficDistributionProfilesVersion"`
	RoundTravelTimes                   bool                        `json:"roundTravelTimes"`
}

var supportedTimeBinSizes = []int{5, 15, 60}

// DefaultConfig returns a measure's defaults.
func DefaultConfig(measure string, year int) (CalculatorConfig, error) {
	cfg := CalculatorConfig{
		Measure:                            measure,
		Year:                               year,
		MeanType:                           npmrds.Arithmetic,
		NpmrdsDataSource:                   npmrds.All,
		NpmrdsMetric:                       npmrds.TravelTime,
		TimePeriodSpec:                     timeperiod.MeasureDefault,
		TimeBinSize:                        15,
		TrafficDistributionTimeBinSize:     60,
		TrafficDistributionProfilesVersion: trafficdist.CATTLAB,
		RoundTravelTimes:                   true,
	}
	switch measure {
	case PHED, TTI:
	case TTTR:
		cfg.NpmrdsDataSource = npmrds.Truck
	default:
		return CalculatorConfig{}, fmt.Errorf("%w: unknown measure %q", ErrInvalidConfig, measure)
	}
	return cfg, nil
}

// ResolveConfig overlays opts on the measure defaults and validates the result.
func ResolveConfig(measure string, year int, opts Options) (CalculatorConfig, error) {
	cfg, err := DefaultConfig(measure, year)
	if err != nil {
		return CalculatorConfig{}, err
	}
	if opts.MeanType != "" {
		cfg.MeanType = npmrds.MeanType(opts.MeanType)
	}
	if opts.NpmrdsDataSource != "" {
		cfg.NpmrdsDataSource = npmrds.DataSource(opts.NpmrdsDataSource)
	}
	if opts.NpmrdsMetric != "" {
		cfg.NpmrdsMetric = npmrds.Metric(opts.NpmrdsMetric)
	}
	if opts.TimePeriodSpec != "" {
		cfg.TimePeriodSpec = opts.TimePeriodSpec
	}
	if opts.TimeBinSize != 0 {
		cfg.TimeBinSize = opts.TimeBinSize
	}
	if opts.TrafficDistributionTimeBinSize != 0 {
		cfg.TrafficDistributionTimeBinSize = opts.TrafficDistributionTimeBinSize
	}
	if opts.TrafficDistributionProfilesVersion != "" {
		cfg.TrafficDistributionProfilesVersion = trafficdist.ProfilesVersion(opts.TrafficDistributionProfilesVersion)
	}
	if opts.RoundTravelTimes != nil {
		cfg.RoundTravelTimes = *opts.RoundTravelTimes
	}
	if err := cfg.Validate(); err != nil {
		return CalculatorConfig{}, err
	}
	return cfg, nil
}

func (c CalculatorConfig) Validate() error {
	invalid := func(option string, value any) error {
		return fmt.Errorf("%w: %s %s=%v", ErrInvalidConfig, c.Measure, option, value)
	}
	if !slices.Contains(Measures, c.Measure) {
		return invalid("measure", c.Measure)
	}
	if c.Year < 1 {
		return invalid("year", c.Year)
	}
	if !slices.Contains(npmrds.MeanTypes, c.MeanType) {
		return invalid("meanType", c.MeanType)
	}
	if !slices.Contains(npmrds.DataSources, c.NpmrdsDataSource) {
		return invalid("npmrdsDataSource", c.NpmrdsDataSource)
	}
	if !slices.Contains(npmrds.Metrics, c.NpmrdsMetric) {
		return invalid("npmrdsMetric", c.NpmrdsMetric)
	}
	if !slices.Contains(timeperiod.Names(), c.TimePeriodSpec) {
		return invalid("timePeriodSpec", c.TimePeriodSpec)
	}
	if !slices.Contains(supportedTimeBinSizes, c.TimeBinSize) || !calendar.ValidTimeBinSize(c.TimeBinSize) {
		return invalid("timeBinSize", c.TimeBinSize)
	}
	if !slices.Contains(supportedTimeBinSizes, c.TrafficDistributionTimeBinSize) {
		return invalid("trafficDistributionTimeBinSize", c.TrafficDistributionTimeBinSize)
	}
	if !slices.Contains(trafficdist.ProfilesVersions, c.TrafficDistributionProfilesVersion) {
		return invalid("trafficDistributionProfilesVersion", c.TrafficDistributionProfilesVersion)
	}
	return nil
}

// IsCanonical reports whether the config is the measure's authoritative
// configuration: all defaults at 15-minute bins.
func (c CalculatorConfig) IsCanonical() bool {
	def, err := DefaultConfig(c.Measure, c.Year)
	if err != nil {
		return false
	}
	return c == def && c.TimeBinSize == 15
}

// MeasureName qualifies the measure with its data source, e.g. PHED_TRUCK.
func (c CalculatorConfig) MeasureName() string {
	def, err := DefaultConfig(c.Measure, c.Year)
	if err != nil || c.NpmrdsDataSource == def.NpmrdsDataSource {
		return c.Measure
	}
	return c.Measure + "_" + string(c.NpmrdsDataSource)
}

// PrimaryDataKey is the metric series the calculator reads first.
func (c CalculatorConfig) PrimaryDataKey() npmrds.DataKey {
	return npmrds.DataKey{Metric: c.NpmrdsMetric, Source: c.NpmrdsDataSource, Mean: c.MeanType}
}

// resolveSpec maps MeasureDefault to the measure's own spec.
func (c CalculatorConfig) resolveSpec(measureDefault func() (*timeperiod.Spec, error)) (*timeperiod.Spec, error) {
	if c.TimePeriodSpec == timeperiod.MeasureDefault {
		return measureDefault()
	}
	return timeperiod.Lookup(c.TimePeriodSpec)
}
