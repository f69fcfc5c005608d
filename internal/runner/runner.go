// Package runner drives the calculators over a set of TMCs.
package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/npmrds-measures/calculator/internal/measure"
	"github.com/npmrds-measures/calculator/internal/npmrds"
)

var log = logrus.WithField("module", "runner")

type MetadataSource interface {
	MetadataForTmcs(ctx context.Context, tmcs []string, attrs []string) ([]npmrds.SegmentAttributes, error)
	TmcsForStates(ctx context.Context, states []string) ([]string, error)
}

// DataSource loads one TMC's binned year of observations.
type DataSource interface {
	BinnedYearData(ctx context.Context, tmc string, miles float64, keys []npmrds.DataKey) ([]npmrds.ObservationRow, error)
}

type ResultSink interface {
	WriteTmc(attrs npmrds.SegmentAttributes, results []measure.Result) error
}

// binGroup is the calculators sharing one time bin size, and thus one query.
type binGroup struct {
	timeBinSize int
	calcIdx     []int
	keys        []npmrds.DataKey
	data        DataSource
	enricher    *npmrds.Enricher
}

type Runner struct {
	year        int
	calculators []measure.Calculator
	metadata    MetadataSource
	sink        ResultSink
	concurrency int
	groups      []*binGroup

	// SkipFailures logs calculator errors and leaves a nil result instead of
	// aborting the run.
	SkipFailures bool
}

type Stats struct {
	Tmcs              int
	MissingMetadata   int
	FailedCalculation int
	Elapsed           time.Duration
}

// New groups the calculators by time bin size. dataFor returns the data
// source for a bin size.
func New(year int, calculators []measure.Calculator, metadata MetadataSource, dataFor func(timeBinSize int) (DataSource, error), sink ResultSink, concurrency int) (*Runner, error) {
	if len(calculators) == 0 {
		return nil, errors.New("no calculators configured")
	}
	r := &Runner{
		year:        year,
		calculators: calculators,
		metadata:    metadata,
		sink:        sink,
		concurrency: max(concurrency, 1),
	}
	bySize := map[int]*binGroup{}
	for i, calc := range calculators {
		size := calc.Config().TimeBinSize
		g, ok := bySize[size]
		if !ok {
			data, err := dataFor(size)
			if err != nil {
				return nil, err
			}
			enricher, err := npmrds.NewEnricher(year, size)
			if err != nil {
				return nil, err
			}
			g = &binGroup{timeBinSize: size, data: data, enricher: enricher}
			bySize[size] = g
			r.groups = append(r.groups, g)
		}
		g.calcIdx = append(g.calcIdx, i)
		g.keys = lo.Uniq(append(g.keys, calc.NpmrdsDataKeys()...))
	}
	return r, nil
}

// RequiredTmcMetadata is the union of the calculators' attribute needs plus
// what the output records.
func (r *Runner) RequiredTmcMetadata() []string {
	attrs := []string{
		npmrds.AttrTmc, npmrds.AttrState, npmrds.AttrMiles, npmrds.AttrFunctionalClass,
		npmrds.AttrStartLat, npmrds.AttrStartLong, npmrds.AttrEndLat, npmrds.AttrEndLong,
	}
	for _, calc := range r.calculators {
		attrs = append(attrs, calc.RequiredTmcMetadata()...)
	}
	attrs = lo.Uniq(attrs)
	sort.Strings(attrs)
	return attrs
}

// ResolveTmcs merges the explicit TMCs with every TMC of the states.
func (r *Runner) ResolveTmcs(ctx context.Context, states, tmcs []string) ([]string, error) {
	all := slices.Clone(tmcs)
	if len(states) > 0 {
		stateTmcs, err := r.metadata.TmcsForStates(ctx, states)
		if err != nil {
			return nil, err
		}
		all = append(all, stateTmcs...)
	}
	all = lo.Uniq(all)
	sort.Strings(all)
	return all, nil
}

// Run computes every calculator for every TMC and hands the results to the
// sink. The first error aborts the run unless SkipFailures is set; a foreign
// row or a malformed distribution table always aborts.
func (r *Runner) Run(ctx context.Context, tmcs []string) (Stats, error) {
	startTime := time.Now()
	stats := Stats{Tmcs: len(tmcs)}

	attrs, err := r.metadata.MetadataForTmcs(ctx, tmcs, r.RequiredTmcMetadata())
	if err != nil {
		return stats, err
	}
	stats.MissingMetadata = len(tmcs) - len(attrs)
	if stats.MissingMetadata > 0 {
		log.Warnf("%d TMCs have no metadata for %d", stats.MissingMetadata, r.year)
	}
	log.Infof("Calculating %d measures for %d TMCs with %d workers", len(r.calculators), len(attrs), r.concurrency)

	var done, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, a := range attrs {
		a := a
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := r.processTmc(ctx, a)
			if err != nil {
				return err
			}
			failed.Add(int64(n))
			if d := done.Add(1); d%500 == 0 {
				log.Infof("Processed %d/%d TMCs...", d, len(attrs))
			}
			return nil
		})
	}
	err = g.Wait()

	stats.FailedCalculation = int(failed.Load())
	stats.Elapsed = time.Since(startTime)
	if err != nil {
		return stats, err
	}
	log.Infof("Processed %d TMCs in %s (%d failed calculations)", done.Load(), stats.Elapsed, stats.FailedCalculation)
	return stats, nil
}

func (r *Runner) processTmc(ctx context.Context, attrs npmrds.SegmentAttributes) (failed int, err error) {
	results := make([]measure.Result, len(r.calculators))
	for _, g := range r.groups {
		rows, err := g.data.BinnedYearData(ctx, attrs.Tmc, attrs.Miles, g.keys)
		if err != nil {
			return 0, err
		}
		if err := g.enricher.Enrich(rows); err != nil {
			return 0, fmt.Errorf("tmc %s: %w", attrs.Tmc, err)
		}
		for _, i := range g.calcIdx {
			calc := r.calculators[i]
			res, err := calc.CalculateForTmc(attrs, rows)
			if errors.Is(err, measure.ErrTmcMismatch) || errors.Is(err, measure.ErrTableShape) {
				return 0, err
			}
			if err != nil && !r.SkipFailures {
				return 0, fmt.Errorf("tmc %s %s: %w", attrs.Tmc, calc.Measure(), err)
			}
			if err != nil {
				log.WithField("tmc", attrs.Tmc).Warnf("%s failed: %v", calc.Measure(), err)
				failed++
				continue
			}
			results[i] = res
		}
	}
	if err := r.sink.WriteTmc(attrs, results); err != nil {
		return 0, err
	}
	return failed, nil
}

// Disqualifications lists why a run cannot be an authoritative version: it
// must cover exactly one whole state with canonical calculator configs.
func Disqualifications(states, tmcs []string, calculators []measure.Calculator) []string {
	var reasons []string
	if len(tmcs) > 0 {
		reasons = append(reasons, "explicit TMC lists are not eligible")
	}
	if len(states) != 1 {
		reasons = append(reasons, fmt.Sprintf("run covers %d states, expected exactly one", len(states)))
	}
	for _, calc := range calculators {
		if !calc.Config().IsCanonical() {
			reasons = append(reasons, fmt.Sprintf("%s configuration is not canonical", calc.Measure()))
		}
	}
	return reasons
}
