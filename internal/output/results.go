package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/parquet-go/parquet-go"

	"github.com/npmrds-measures/calculator/internal/measure"
)

type Format string

const (
	CSV     Format = "csv"
	Parquet Format = "parquet"
	NDJSON  Format = "ndjson"
)

var Formats = []Format{CSV, Parquet, NDJSON}

// ResultWriter appends long-format measure values to one file. Writers are
// safe for concurrent use.
type ResultWriter interface {
	Write(values []measure.Value) error
	Close() error
}

// NewResultWriter creates path and a writer for the format.
func NewResultWriter(format Format, path string) (ResultWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	switch format {
	case CSV:
		w := &csvResultWriter{f: f, w: csv.NewWriter(f)}
		if err := w.w.Write(resultHeader); err != nil {
			f.Close()
			return nil, err
		}
		return w, nil
	case NDJSON:
		return &ndjsonResultWriter{f: f, enc: json.NewEncoder(f)}, nil
	case Parquet:
		return &parquetResultWriter{f: f, w: parquet.NewGenericWriter[measure.Value](f)}, nil
	default:
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("unsupported output file format %q", format)
	}
}

var resultHeader = []string{"tmc", "measure", "field", "time_period", "vehicle_class", "value"}

type csvResultWriter struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

func (w *csvResultWriter) Write(values []measure.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, v := range values {
		rec := []string{v.Tmc, v.Measure, v.Field, v.TimePeriod, v.VehicleClass, strconv.FormatFloat(v.Value, 'f', -1, 64)}
		if err := w.w.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.w.Flush()
	return w.w.Error()
}

func (w *csvResultWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

type ndjsonResultWriter struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

func (w *ndjsonResultWriter) Write(values []measure.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, v := range values {
		if err := w.enc.Encode(v); err != nil {
			return fmt.Errorf("write ndjson row: %w", err)
		}
	}
	return nil
}

func (w *ndjsonResultWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

type parquetResultWriter struct {
	mu sync.Mutex
	f  *os.File
	w  *parquet.GenericWriter[measure.Value]
}

func (w *parquetResultWriter) Write(values []measure.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(values); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	return nil
}

func (w *parquetResultWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return w.f.Close()
}
