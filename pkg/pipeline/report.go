package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/fedeglan/fast-data-integrity/pkg/mapping"
	"github.com/fedeglan/fast-data-integrity/pkg/quality"
)

// Status is the overall outcome of a run.
type Status string

const (
	// StatusPass: zero error-severity violations and zero mapping errors.
	StatusPass Status = "pass"
	// StatusFail: at least one error-severity violation or mapping error.
	StatusFail Status = "fail"
	// StatusAborted: the scan stopped early (fatal violation, stream
	// failure, or cancellation); the report covers what was processed.
	StatusAborted Status = "aborted"
)

// RuleStat aggregates one rule's outcomes across the run.
type RuleStat struct {
	RuleID          string `json:"ruleId"`
	Violations      int    `json:"violations"`
	ExecutionErrors int    `json:"executionErrors"`
	Truncated       bool   `json:"truncated,omitempty"`
}

// Report is the aggregate result of one pipeline run. It is finalized
// exactly once and immutable afterwards; violations and mapping errors
// are ordered by record index, then declaration order, so identical
// input yields an identical report.
type Report struct {
	RunID      uuid.UUID `json:"runId"`
	Order      Order     `json:"order"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	RecordsSeen   int `json:"recordsSeen"`
	RecordsMapped int `json:"recordsMapped"`

	ErrorViolations   int `json:"errorViolations"`
	WarningViolations int `json:"warningViolations"`

	Violations    []quality.Violation    `json:"violations"`
	MappingErrors []mapping.MappingError `json:"mappingErrors"`
	RuleStats     []RuleStat             `json:"ruleStats"`

	Truncated bool   `json:"truncated,omitempty"`
	Status    Status `json:"status"`

	maxPerRule int
	ruleCounts map[string]int
	dropped    map[string]bool
}

func newReport(order Order, maxPerRule int) *Report {
	r := newScratch(maxPerRule)
	r.RunID = uuid.New()
	r.Order = order
	r.StartedAt = time.Now()
	return r
}

func newScratch(maxPerRule int) *Report {
	return &Report{
		maxPerRule: maxPerRule,
		ruleCounts: make(map[string]int),
		dropped:    make(map[string]bool),
	}
}

// add appends violations under the per-rule cap. Enforcing the cap as
// violations arrive keeps the slice bounded during the scan instead of
// only trimming it at finalize.
func (r *Report) add(violations []quality.Violation) {
	for _, v := range violations {
		if r.maxPerRule > 0 && r.ruleCounts[v.RuleID] >= r.maxPerRule {
			r.Truncated = true
			r.dropped[v.RuleID] = true
			continue
		}
		r.ruleCounts[v.RuleID]++
		r.Violations = append(r.Violations, v)
	}
}

// finalize sorts, truncates, aggregates, and stamps the status. Called
// once at the end of Run. The cap was already enforced as violations
// accumulated; re-applying it after the sort pins which occurrences
// survive to canonical order, so chunked and sequential runs truncate
// identically.
func (r *Report) finalize(aborted bool, ruleOrder []string) {
	quality.SortViolations(r.Violations)
	if r.maxPerRule > 0 {
		r.truncate(r.maxPerRule)
	}
	truncated := r.dropped

	stats := make(map[string]*RuleStat, len(ruleOrder))
	r.RuleStats = make([]RuleStat, 0, len(ruleOrder))
	for _, id := range ruleOrder {
		if _, seen := stats[id]; seen {
			continue
		}
		stats[id] = &RuleStat{RuleID: id}
	}
	for _, v := range r.Violations {
		stat, ok := stats[v.RuleID]
		if !ok {
			stat = &RuleStat{RuleID: v.RuleID}
			stats[v.RuleID] = stat
			ruleOrder = append(ruleOrder, v.RuleID)
		}
		if v.Kind == quality.KindExecutionError {
			stat.ExecutionErrors++
		} else {
			stat.Violations++
		}
		switch v.Severity {
		case quality.SeverityError:
			r.ErrorViolations++
		case quality.SeverityWarning:
			r.WarningViolations++
		}
	}
	for _, id := range ruleOrder {
		if stat, ok := stats[id]; ok {
			stat.Truncated = truncated[id]
			r.RuleStats = append(r.RuleStats, *stat)
			delete(stats, id)
		}
	}

	switch {
	case aborted:
		r.Status = StatusAborted
	case r.ErrorViolations > 0 || len(r.MappingErrors) > 0:
		r.Status = StatusFail
	default:
		r.Status = StatusPass
	}
	r.FinishedAt = time.Now()
}

// truncate drops violations beyond maxPerRule for each rule. Earlier
// record indexes win because the slice is already sorted.
func (r *Report) truncate(maxPerRule int) {
	counts := make(map[string]int)
	kept := r.Violations[:0]
	for _, v := range r.Violations {
		if counts[v.RuleID] >= maxPerRule {
			r.Truncated = true
			r.dropped[v.RuleID] = true
			continue
		}
		counts[v.RuleID]++
		kept = append(kept, v)
	}
	r.Violations = kept
}
