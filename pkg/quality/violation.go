package quality

import "sort"

// DatasetIndex is the record index reported for aggregate violations
// that cannot be pinned to a single record.
const DatasetIndex = -1

// ViolationKind distinguishes an unsatisfied rule from a rule that
// could not be executed against a record.
type ViolationKind string

const (
	KindViolation      ViolationKind = "violation"
	KindExecutionError ViolationKind = "rule-execution-error"
)

// Violation records a single rule failure against a single record, or
// against the whole dataset. Violations are immutable once created and
// owned by the report of the run that produced them.
type Violation struct {
	RuleID      string        `json:"ruleId"`
	Scope       Scope         `json:"scope"`
	RecordIndex int           `json:"recordIndex"`
	Value       any           `json:"value,omitempty"`
	Severity    Severity      `json:"severity"`
	Kind        ViolationKind `json:"kind"`
	Message     string        `json:"message"`

	ruleOrd int
}

// SortViolations orders violations by record index, then rule
// declaration order, the canonical report order. Aggregate violations
// (DatasetIndex) sort last. The sort is stable, so chunked parallel
// runs produce byte-identical reports to sequential ones.
func SortViolations(violations []Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		ai, bi := sortIndex(a.RecordIndex), sortIndex(b.RecordIndex)
		if ai != bi {
			return ai < bi
		}
		return a.ruleOrd < b.ruleOrd
	})
}

// ShiftRuleOrder offsets the declaration-order sort key of each
// violation. A pipeline composing two rule sets into one report shifts
// the second set past the first so SortViolations keeps source-rule
// violations ahead of target-rule violations within a record.
func ShiftRuleOrder(violations []Violation, by int) {
	for i := range violations {
		violations[i].ruleOrd += by
	}
}

func sortIndex(recordIndex int) int {
	if recordIndex == DatasetIndex {
		return int(^uint(0) >> 1) // aggregate findings close the list
	}
	return recordIndex
}
