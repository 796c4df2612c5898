// Package pipeline composes validation and mapping into a single pass
// over a record stream and aggregates the outcome into a Report.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/fedeglan/fast-data-integrity/pkg/mapping"
	"github.com/fedeglan/fast-data-integrity/pkg/quality"
	"github.com/fedeglan/fast-data-integrity/pkg/schema"
	"github.com/fedeglan/fast-data-integrity/pkg/stream"
)

// Order controls how validation and mapping interleave.
type Order string

const (
	// OrderValidateThenMap validates source records, then maps them.
	OrderValidateThenMap Order = "validate_then_map"
	// OrderMapThenValidate maps source records, then validates the output.
	OrderMapThenValidate Order = "map_then_validate"
	// OrderValidateBoth validates source records, maps them, and
	// validates the mapped output, all in one pass.
	OrderValidateBoth Order = "validate_both"
)

// Options tune a run without changing its semantics: the same input
// under the same rules yields the same violations regardless of
// chunking.
type Options struct {
	Order Order

	// FatalOnError stops the scan after the first record that produces
	// an error-severity violation or a mapping error. That record's
	// results are included; nothing past it is read. Forces sequential
	// execution.
	FatalOnError bool

	// MaxViolationsPerRule caps how many violations each rule may
	// contribute to the report. Zero means unlimited. Earlier records
	// win; the report is marked truncated when the cap bites.
	MaxViolationsPerRule int

	// ChunkSize enables parallel evaluation over fixed-size record
	// chunks. Zero or negative runs sequentially.
	ChunkSize int
}

// Sink receives mapped records in input order. A sink error aborts
// the run.
type Sink func(index int, record schema.Record) error

// Config assembles a pipeline. SourceSchema is always required.
// Mapping, TargetSchema, SourceRules and TargetRules are required or
// optional depending on the order; New reports what is missing.
type Config struct {
	SourceSchema schema.Schema
	TargetSchema schema.Schema
	SourceRules  *quality.RuleSet
	TargetRules  *quality.RuleSet
	Mapping      *mapping.Spec
	Sink         Sink
	Options      Options
}

// Pipeline is an immutable, reusable run plan. Concurrent Run calls
// are safe; all per-run state lives in the Report and evaluator runs.
type Pipeline struct {
	opts    Options
	srcEval *quality.Evaluator
	tgtEval *quality.Evaluator
	mapper  *mapping.Mapper
	sink    Sink

	srcRuleCount int
	ruleIDs      []string
}

// New validates the configuration and binds rules to their schemas.
// All configuration mistakes surface here, never mid-run.
func New(cfg Config) (*Pipeline, error) {
	opts := cfg.Options
	if opts.Order == "" {
		opts.Order = OrderValidateThenMap
	}
	switch opts.Order {
	case OrderValidateThenMap, OrderMapThenValidate, OrderValidateBoth:
	default:
		return nil, fmt.Errorf("unknown pipeline order %q", opts.Order)
	}
	if opts.MaxViolationsPerRule < 0 {
		return nil, fmt.Errorf("max violations per rule must not be negative, got %d", opts.MaxViolationsPerRule)
	}

	p := &Pipeline{opts: opts, sink: cfg.Sink}

	if cfg.Mapping != nil {
		if !cfg.Mapping.Source().Equal(cfg.SourceSchema) {
			return nil, fmt.Errorf("mapping source schema does not match pipeline source schema")
		}
		if !cfg.Mapping.Target().Equal(cfg.TargetSchema) {
			return nil, fmt.Errorf("mapping target schema does not match pipeline target schema")
		}
		mapper, err := mapping.NewMapper(cfg.Mapping)
		if err != nil {
			return nil, fmt.Errorf("build mapper: %w", err)
		}
		p.mapper = mapper
	} else if opts.Order != OrderValidateThenMap {
		return nil, fmt.Errorf("order %s requires a mapping spec", opts.Order)
	}

	srcRules := cfg.SourceRules
	tgtRules := cfg.TargetRules
	if opts.Order == OrderMapThenValidate {
		// A single-ruleset configuration binds its rules to whichever
		// shape gets validated; under this order that is the output.
		if tgtRules == nil {
			tgtRules = srcRules
		}
		srcRules = nil
	}
	if opts.Order == OrderValidateThenMap {
		tgtRules = nil
	}

	if srcRules != nil && srcRules.Len() > 0 {
		eval, err := quality.NewEvaluator(cfg.SourceSchema, srcRules)
		if err != nil {
			return nil, fmt.Errorf("source rules: %w", err)
		}
		p.srcEval = eval
		p.srcRuleCount = srcRules.Len()
		for _, r := range srcRules.Rules() {
			p.ruleIDs = append(p.ruleIDs, r.ID)
		}
	}
	if tgtRules != nil && tgtRules.Len() > 0 {
		eval, err := quality.NewEvaluator(cfg.TargetSchema, tgtRules)
		if err != nil {
			return nil, fmt.Errorf("target rules: %w", err)
		}
		p.tgtEval = eval
		for _, r := range tgtRules.Rules() {
			p.ruleIDs = append(p.ruleIDs, r.ID)
		}
	}
	if p.srcEval == nil && p.tgtEval == nil && p.mapper == nil {
		return nil, fmt.Errorf("pipeline has no rules and no mapping, nothing to run")
	}
	return p, nil
}

// Run scans the stream once and returns a finalized report. The report
// is returned even when the run aborts; the error is non-nil when the
// stream breaks mid-scan or the sink fails, and names the cause.
func (p *Pipeline) Run(ctx context.Context, s stream.Stream) (*Report, error) {
	report := newReport(p.opts.Order, p.opts.MaxViolationsPerRule)
	var aborted bool
	var err error
	if p.opts.ChunkSize > 0 && !p.opts.FatalOnError {
		aborted, err = p.runChunked(ctx, s, report)
	} else {
		aborted, err = p.runSequential(ctx, s, report)
	}
	report.finalize(aborted, p.ruleIDs)
	return report, err
}

func (p *Pipeline) runSequential(ctx context.Context, s stream.Stream, report *Report) (bool, error) {
	var srcRun, tgtRun *quality.Run
	if p.srcEval != nil {
		srcRun = p.srcEval.Begin()
	}
	if p.tgtEval != nil {
		tgtRun = p.tgtEval.Begin()
	}

	aborted := false
	var runErr error
	index := 0
	for {
		if ctx.Err() != nil {
			aborted = true
			break
		}
		record, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			runErr = fmt.Errorf("record stream failed at index %d: %w", index, err)
			aborted = true
			break
		}

		fatal, mapped := p.processRecord(ctx, index, record, srcRun, tgtRun, report)
		report.RecordsSeen++
		index++

		if mapped != nil && p.sink != nil {
			if err := p.sink(index-1, mapped); err != nil {
				runErr = fmt.Errorf("sink record %d: %w", index-1, err)
				aborted = true
				break
			}
		}
		if fatal && p.opts.FatalOnError {
			aborted = true
			break
		}
	}

	p.finishRuns(ctx, srcRun, tgtRun, report)
	return aborted, runErr
}

// processRecord runs the configured phases for one record and appends
// the results to the report. The returned record is the mapped output,
// nil when the pipeline has no mapper. fatal reports whether the
// record produced an error-severity violation or a mapping error.
func (p *Pipeline) processRecord(ctx context.Context, index int, record schema.Record, srcRun, tgtRun *quality.Run, report *Report) (fatal bool, mapped schema.Record) {
	if srcRun != nil {
		violations := srcRun.Observe(ctx, index, record)
		fatal = fatal || hasErrorSeverity(violations)
		report.add(violations)
	}

	if p.mapper != nil {
		var mapErrs []mapping.MappingError
		mapped, mapErrs = p.mapper.MapRecord(index, record)
		report.RecordsMapped++
		if len(mapErrs) > 0 {
			fatal = true
			report.MappingErrors = append(report.MappingErrors, mapErrs...)
		}
	}

	if tgtRun != nil {
		subject := record
		if p.mapper != nil {
			subject = mapped
		}
		violations := tgtRun.Observe(ctx, index, subject)
		quality.ShiftRuleOrder(violations, p.srcRuleCount)
		fatal = fatal || hasErrorSeverity(violations)
		report.add(violations)
	}
	return fatal, mapped
}

// finishRuns finalizes dataset accumulators. It runs even after an
// abort so findings over the records already seen are not lost.
func (p *Pipeline) finishRuns(ctx context.Context, srcRun, tgtRun *quality.Run, report *Report) {
	if srcRun != nil {
		report.add(srcRun.Finish(ctx))
	}
	if tgtRun != nil {
		violations := tgtRun.Finish(ctx)
		quality.ShiftRuleOrder(violations, p.srcRuleCount)
		report.add(violations)
	}
}

func hasErrorSeverity(violations []quality.Violation) bool {
	for _, v := range violations {
		if v.Severity == quality.SeverityError {
			return true
		}
	}
	return false
}
