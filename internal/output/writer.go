package output

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/npmrds-measures/calculator/internal/measure"
	"github.com/npmrds-measures/calculator/internal/npmrds"
)

// Writer owns one run's output directory. Results are written in
// calculator order.
type Writer struct {
	dir         string
	timestamp   string
	calculators []measure.Calculator
	fileNames   []string
	results     []ResultWriter
	tmcMetadata *TmcMetadataWriter
	closed      bool
}

// NewWriter creates the run directory under baseDir and opens one result
// file per calculator plus the TMC metadata file.
func NewWriter(baseDir string, format Format, calculators []measure.Calculator) (*Writer, error) {
	if !slices.Contains(Formats, format) {
		return nil, fmt.Errorf("unsupported output file format %q", format)
	}
	dir, timestamp, err := MkOutputDir(baseDir, time.Now)
	if err != nil {
		return nil, err
	}
	w := &Writer{dir: dir, timestamp: timestamp, calculators: calculators}

	seen := map[string]int{}
	for _, calc := range calculators {
		name := strings.ToLower(calc.Measure())
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		fileName := name + "." + string(format)
		rw, err := NewResultWriter(format, filepath.Join(dir, fileName))
		if err != nil {
			w.Close()
			return nil, err
		}
		w.fileNames = append(w.fileNames, fileName)
		w.results = append(w.results, rw)
	}

	w.tmcMetadata, err = NewTmcMetadataWriter(filepath.Join(dir, TmcMetadataFileName))
	if err != nil {
		w.Close()
		return nil, err
	}
	log.Infof("Writing output to %s", dir)
	return w, nil
}

func (w *Writer) Dir() string         { return w.dir }
func (w *Writer) Timestamp() string   { return w.timestamp }
func (w *Writer) FileNames() []string { return slices.Clone(w.fileNames) }

// WriteTmc records a TMC's metadata and its results, results[i] belonging to
// the i-th calculator. Nil results are skipped.
func (w *Writer) WriteTmc(attrs npmrds.SegmentAttributes, results []measure.Result) error {
	if len(results) != len(w.results) {
		return fmt.Errorf("tmc %s: got %d results for %d calculators", attrs.Tmc, len(results), len(w.results))
	}
	if err := w.tmcMetadata.Write(attrs); err != nil {
		return err
	}
	for i, res := range results {
		if res == nil {
			continue
		}
		if err := w.results[i].Write(res.Values()); err != nil {
			return fmt.Errorf("tmc %s %s: %w", attrs.Tmc, w.fileNames[i], err)
		}
	}
	return nil
}

// WriteMetadata writes calculator_metadata.json describing the run.
func (w *Writer) WriteMetadata(settings any, numTmcs int, disqualifications []string) error {
	md := CalculatorMetadata{
		Timestamp:                     w.timestamp,
		AuthoritativeVersionCandidate: len(disqualifications) == 0,
		Disqualifications:             disqualifications,
		CalculatorSettings:            settings,
		TmcMetadataFileName:           TmcMetadataFileName,
		NumTmcs:                       numTmcs,
	}
	for i, calc := range w.calculators {
		md.Calculators = append(md.Calculators, NewCalculatorInstance(calc, w.fileNames[i]))
	}
	return WriteCalculatorMetadata(w.dir, md)
}

// Close flushes and closes every file; later calls are no-ops.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	var errs []error
	for _, rw := range w.results {
		errs = append(errs, rw.Close())
	}
	if w.tmcMetadata != nil {
		errs = append(errs, w.tmcMetadata.Close())
	}
	return errors.Join(errs...)
}
