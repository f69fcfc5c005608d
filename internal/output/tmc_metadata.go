package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/npmrds-measures/calculator/internal/npmrds"
)

const TmcMetadataFileName = "tmc_metadata.csv"

var tmcMetadataHeader = []string{
	"tmc", "state", "miles", "functional_class", "congestion_level", "directionality",
	"is_primary", "avg_speedlimit", "directional_aadt", "avg_vehicle_occupancy", "chord_miles", "geometry",
}

// TmcMetadataWriter writes one CSV row per TMC, each TMC at most once.
type TmcMetadataWriter struct {
	mu      sync.Mutex
	f       *os.File
	w       *csv.Writer
	written map[string]bool
}

func NewTmcMetadataWriter(path string) (*TmcMetadataWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(tmcMetadataHeader); err != nil {
		f.Close()
		return nil, err
	}
	return &TmcMetadataWriter{f: f, w: w, written: map[string]bool{}}, nil
}

func (w *TmcMetadataWriter) Write(attrs npmrds.SegmentAttributes) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written[attrs.Tmc] {
		return nil
	}
	w.written[attrs.Tmc] = true

	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	rec := []string{
		attrs.Tmc,
		attrs.State,
		ff(attrs.Miles),
		string(attrs.FunctionalClass),
		string(attrs.CongestionLevel),
		string(attrs.Directionality),
		strconv.FormatBool(attrs.IsPrimary),
		ff(attrs.AvgSpeedLimit),
		ff(attrs.DirectionalAadt),
		ff(attrs.AvgVehicleOccupancy),
		strconv.FormatFloat(ChordMiles(attrs), 'f', 3, 64),
		EncodeGeometry(attrs),
	}
	if err := w.w.Write(rec); err != nil {
		return fmt.Errorf("write tmc metadata for %s: %w", attrs.Tmc, err)
	}
	w.w.Flush()
	return w.w.Error()
}

func (w *TmcMetadataWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
