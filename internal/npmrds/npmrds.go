// Package npmrds holds the shared vocabulary of NPMRDS segment data: metrics,
// data sources, vehicle classes, segment attributes and binned observations.
package npmrds

import (
	"fmt"
	"time"
)

type Metric string

const (
	TravelTime Metric = "TRAVEL_TIME"
	Speed      Metric = "SPEED"
)

// DataSource is an NPMRDS vehicle population.
type DataSource string

const (
	All   DataSource = "ALL"
	Pass  DataSource = "PASS"
	Truck DataSource = "TRUCK"
)

type MeanType string

const (
	Arithmetic MeanType = "ARITHMETIC"
	Harmonic   MeanType = "HARMONIC"
)

type FunctionalClass string

const (
	Freeway    FunctionalClass = "FREEWAY"
	NonFreeway FunctionalClass = "NONFREEWAY"
)

type CongestionLevel string

const (
	NoToLowCongestion  CongestionLevel = "NO2LOW_CONGESTION"
	ModerateCongestion CongestionLevel = "MODERATE_CONGESTION"
	SevereCongestion   CongestionLevel = "SEVERE_CONGESTION"
)

type Directionality string

const (
	EvenDist   Directionality = "EVEN_DIST"
	AMPeakDist Directionality = "AM_PEAK_DIST"
	PMPeakDist Directionality = "PM_PEAK_DIST"
)

var (
	Metrics     = []Metric{TravelTime, Speed}
	DataSources = []DataSource{All, Pass, Truck}
	MeanTypes   = []MeanType{Arithmetic, Harmonic}
)

var sourceColumns = map[DataSource]string{
	All:   "all_vehicles",
	Pass:  "passenger_vehicles",
	Truck: "freight_trucks",
}

// SourceColumn is the NPMRDS travel time column of a data source.
func SourceColumn(src DataSource) string {
	return "travel_time_" + sourceColumns[src]
}

// DataKey identifies one binned metric series of an observation row.
type DataKey struct {
	Metric Metric
	Source DataSource
	Mean   MeanType
}

// String renders the key as a column name, e.g. "travel_time_freight_trucks"
// or "speed_all_vehicles_hmean".
func (k DataKey) String() string {
	prefix := "travel_time"
	if k.Metric == Speed {
		prefix = "speed"
	}
	s := fmt.Sprintf("%s_%s", prefix, sourceColumns[k.Source])
	if k.Mean == Harmonic {
		s += "_hmean"
	}
	return s
}

// ObservationRow is one binned sample of a TMC. Dow, Month and Hour are
// derived from Date and TimeBinNum by an Enricher.
type ObservationRow struct {
	Tmc        string
	Date       string
	Month      int
	Dow        time.Weekday
	Hour       int
	TimeBinNum int
	// Values holds the metrics present for the bin; a missing key is null.
	Values map[DataKey]float64
}

// Value returns the metric for key, reporting whether it is non-null.
func (r ObservationRow) Value(key DataKey) (float64, bool) {
	v, ok := r.Values[key]
	return v, ok
}
