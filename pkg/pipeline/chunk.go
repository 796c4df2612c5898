package pipeline

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/fedeglan/fast-data-integrity/pkg/quality"
	"github.com/fedeglan/fast-data-integrity/pkg/schema"
	"github.com/fedeglan/fast-data-integrity/pkg/stream"
)

// chunkResult holds everything one chunk produced. Results are joined
// in chunk order, so the merged report is identical to a sequential
// run over the same stream.
type chunkResult struct {
	scratch *Report
	srcRun  *quality.Run
	tgtRun  *quality.Run
	mapped  []schema.Record
	start   int
}

func (p *Pipeline) runChunked(ctx context.Context, s stream.Stream, report *Report) (bool, error) {
	workers := runtime.GOMAXPROCS(0)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	var results []*chunkResult
	var streamErr error
	base := 0
	for {
		chunk, err := readChunk(s, p.opts.ChunkSize)
		if len(chunk) > 0 {
			// Per-chunk caps bound scratch memory; the join re-applies
			// the cap globally in record order.
			res := &chunkResult{scratch: newScratch(p.opts.MaxViolationsPerRule), start: base}
			results = append(results, res)
			base += len(chunk)

			wg.Add(1)
			sem <- struct{}{}
			go func(records []schema.Record, res *chunkResult) {
				defer wg.Done()
				defer func() { <-sem }()
				p.processChunk(ctx, records, res)
			}(chunk, res)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			streamErr = fmt.Errorf("record stream failed at index %d: %w", base, err)
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	wg.Wait()

	// Join in chunk order. Dataset accumulators fold left to right so
	// first-occurrence semantics match a sequential scan.
	var srcRun, tgtRun *quality.Run
	var sinkErr error
	for _, res := range results {
		report.RecordsSeen += res.scratch.RecordsSeen
		report.RecordsMapped += res.scratch.RecordsMapped
		report.add(res.scratch.Violations)
		if res.scratch.Truncated {
			report.Truncated = true
			for id := range res.scratch.dropped {
				report.dropped[id] = true
			}
		}
		report.MappingErrors = append(report.MappingErrors, res.scratch.MappingErrors...)

		if srcRun == nil {
			srcRun = res.srcRun
		} else if err := srcRun.Merge(res.srcRun); err != nil {
			return true, fmt.Errorf("merge chunk starting at %d: %w", res.start, err)
		}
		if tgtRun == nil {
			tgtRun = res.tgtRun
		} else if err := tgtRun.Merge(res.tgtRun); err != nil {
			return true, fmt.Errorf("merge chunk starting at %d: %w", res.start, err)
		}

		if p.sink != nil && sinkErr == nil {
			for i, rec := range res.mapped {
				if err := p.sink(res.start+i, rec); err != nil {
					sinkErr = fmt.Errorf("sink record %d: %w", res.start+i, err)
					break
				}
			}
		}
	}
	p.finishRuns(ctx, srcRun, tgtRun, report)

	aborted := streamErr != nil || ctx.Err() != nil || sinkErr != nil
	if streamErr != nil {
		return aborted, streamErr
	}
	return aborted, sinkErr
}

// processChunk evaluates one chunk against fresh evaluator runs,
// accumulating into a private scratch report. Record indexes are
// global, offset by the chunk's start.
func (p *Pipeline) processChunk(ctx context.Context, records []schema.Record, res *chunkResult) {
	if p.srcEval != nil {
		res.srcRun = p.srcEval.Begin()
	}
	if p.tgtEval != nil {
		res.tgtRun = p.tgtEval.Begin()
	}
	for i, record := range records {
		if ctx.Err() != nil {
			return
		}
		_, mapped := p.processRecord(ctx, res.start+i, record, res.srcRun, res.tgtRun, res.scratch)
		res.scratch.RecordsSeen++
		if mapped != nil && p.sink != nil {
			res.mapped = append(res.mapped, mapped)
		}
	}
}

// readChunk pulls up to size records off the stream. A short chunk is
// returned alongside io.EOF or the stream error that cut it off.
func readChunk(s stream.Stream, size int) ([]schema.Record, error) {
	chunk := make([]schema.Record, 0, size)
	for len(chunk) < size {
		record, err := s.Next()
		if err != nil {
			return chunk, err
		}
		chunk = append(chunk, record)
	}
	return chunk, nil
}
