package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/npmrds-measures/calculator/internal/calendar"
	"github.com/npmrds-measures/calculator/internal/measure"
	"github.com/npmrds-measures/calculator/internal/timeperiod"
)

const CalculatorMetadataFileName = "calculator_metadata.json"

type CalculatorInstance struct {
	measure.CalculatorConfig
	MeasureName    string `json:"measureName"`
	Canonical      bool   `json:"canonical"`
	OutputFileName string `json:"outputFileName"`
	// ResolvedTimePeriodSpec is the spec MEASURE_DEFAULT resolved to.
	ResolvedTimePeriodSpec   string         `json:"resolvedTimePeriodSpec"`
	ExpectedBinsForYear      int            `json:"expectedBinsForYear"`
	ExpectedBinsByTimePeriod map[string]int `json:"expectedBinsByTimePeriod"`
}

type CalculatorMetadata struct {
	Timestamp                     string               `json:"timestamp"`
	AuthoritativeVersionCandidate bool                 `json:"authoritativeVersionCandidate"`
	Disqualifications             []string             `json:"authoritativeVersionCandidacyDisqualifications,omitempty"`
	CalculatorSettings            any                  `json:"calculatorSettings"`
	Calculators                   []CalculatorInstance `json:"calculators"`
	TmcMetadataFileName           string               `json:"tmcMetadataFileName"`
	NumTmcs                       int                  `json:"numTmcs"`
}

// NewCalculatorInstance describes a calculator and its expected bin coverage.
func NewCalculatorInstance(calc measure.Calculator, outputFileName string) CalculatorInstance {
	cfg := calc.Config()
	spec := calc.TimePeriodSpec()
	return CalculatorInstance{
		CalculatorConfig:         cfg,
		MeasureName:              calc.Measure(),
		Canonical:                cfg.IsCanonical(),
		OutputFileName:           outputFileName,
		ResolvedTimePeriodSpec:   spec.Name(),
		ExpectedBinsForYear:      calendar.NumBinsForYear(cfg.Year, cfg.TimeBinSize),
		ExpectedBinsByTimePeriod: calendar.NumBinsPerTimePeriodForYear(cfg.Year, cfg.TimeBinSize, timeperiod.NewIdentifier(spec)),
	}
}

func WriteCalculatorMetadata(dir string, md CalculatorMetadata) error {
	b, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal calculator metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, CalculatorMetadataFileName), b, 0o644); err != nil {
		return fmt.Errorf("write calculator metadata: %w", err)
	}
	return nil
}
