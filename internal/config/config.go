// Package config loads the calculator run settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/npmrds-measures/calculator/internal/measure"
	"github.com/npmrds-measures/calculator/internal/output"
)

// Settings is the on-disk run configuration (YAML).
type Settings struct {
	Year             int                  `yaml:"year" json:"year"`
	States           []string             `yaml:"states" json:"states,omitempty"`
	Tmcs             []string             `yaml:"tmcs" json:"tmcs,omitempty"`
	TimeBinSize      int                  `yaml:"timeBinSize" json:"timeBinSize"`
	OutputFileFormat output.Format        `yaml:"outputFileFormat" json:"outputFileFormat"`
	Concurrency      int                  `yaml:"concurrency" json:"concurrency"`
	Upload           bool                 `yaml:"upload" json:"upload"`
	SkipFailedTmcs   bool                 `yaml:"skipFailedTmcs" json:"skipFailedTmcs"`
	Calculators      []CalculatorSettings `yaml:"calculators" json:"calculators"`

	// From the environment.
	DatabaseURL string `yaml:"-" json:"-"`
	OutputDir   string `yaml:"-" json:"-"`
}

type CalculatorSettings struct {
	Measure         string `yaml:"measure" json:"measure"`
	measure.Options `yaml:",inline"`
}

const (
	defaultTimeBinSize = 15
	defaultConcurrency = 4
	defaultOutputDir   = "output"
)

func Load(path string) (*Settings, error) {
	s, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	s.ApplyEnv()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadUnchecked reads the file and fills defaults without validating.
func LoadUnchecked(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.TimeBinSize == 0 {
		s.TimeBinSize = defaultTimeBinSize
	}
	if s.OutputFileFormat == "" {
		s.OutputFileFormat = output.CSV
	}
	if s.Concurrency == 0 {
		s.Concurrency = defaultConcurrency
	}
	if len(s.Calculators) == 0 {
		for _, m := range measure.Measures {
			s.Calculators = append(s.Calculators, CalculatorSettings{Measure: m})
		}
	}
	return &s, nil
}

// ApplyEnv reads DATABASE_URL and CALCULATOR_OUTPUT_DIR.
func (s *Settings) ApplyEnv() {
	s.DatabaseURL = os.Getenv("DATABASE_URL")
	s.OutputDir = os.Getenv("CALCULATOR_OUTPUT_DIR")
	if s.OutputDir == "" {
		s.OutputDir = defaultOutputDir
	}
}

func (s *Settings) Validate() error {
	if s == nil {
		return errors.New("settings are nil")
	}
	if s.Year < 2016 {
		return fmt.Errorf("year %d: NPMRDS data starts in 2016", s.Year)
	}
	if len(s.States) == 0 && len(s.Tmcs) == 0 {
		return errors.New("states or tmcs is required")
	}
	if !slices.Contains(output.Formats, s.OutputFileFormat) {
		return fmt.Errorf("unsupported outputFileFormat %q", s.OutputFileFormat)
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", s.Concurrency)
	}
	if _, err := s.CalculatorConfigs(); err != nil {
		return err
	}
	return nil
}

// CalculatorConfigs resolves every calculator entry. The run's timeBinSize
// applies to calculators that do not set their own.
func (s *Settings) CalculatorConfigs() ([]measure.CalculatorConfig, error) {
	cfgs := make([]measure.CalculatorConfig, 0, len(s.Calculators))
	for i, c := range s.Calculators {
		opts := c.Options
		if opts.TimeBinSize == 0 {
			opts.TimeBinSize = s.TimeBinSize
		}
		cfg, err := measure.ResolveConfig(c.Measure, s.Year, opts)
		if err != nil {
			return nil, fmt.Errorf("calculators[%d]: %w", i, err)
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}
