package quality

import (
	"fmt"

	"github.com/fedeglan/fast-data-integrity/pkg/schema"
)

// DuplicateRuleIDError reports an identifier collision within a RuleSet.
type DuplicateRuleIDError struct {
	ID string
}

func (e *DuplicateRuleIDError) Error() string {
	return fmt.Sprintf("duplicate rule id %q", e.ID)
}

// RuleSet is an ordered collection of rules. Declaration order is
// evaluation order, which makes violation output deterministic.
type RuleSet struct {
	rules []Rule
	index map[string]int
}

// NewRuleSet builds a rule set from the given rules in order.
func NewRuleSet(rules ...Rule) (*RuleSet, error) {
	rs := &RuleSet{index: make(map[string]int)}
	for _, rule := range rules {
		if err := rs.Add(rule); err != nil {
			return nil, err
		}
	}
	return rs, nil
}

// Add appends a rule, failing with *DuplicateRuleIDError on an
// identifier collision.
func (rs *RuleSet) Add(rule Rule) error {
	if _, exists := rs.index[rule.ID]; exists {
		return &DuplicateRuleIDError{ID: rule.ID}
	}
	rs.index[rule.ID] = len(rs.rules)
	rs.rules = append(rs.rules, rule)
	return nil
}

// Rules returns the rules in declaration order.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Validate checks every rule against the schema: field-scoped rules
// must reference an existing field and every rule must carry a
// predicate matching its scope. Called at evaluator construction so
// configuration errors surface before any record is processed.
func (rs *RuleSet) Validate(s schema.Schema) error {
	for _, rule := range rs.rules {
		if err := rule.validate(s); err != nil {
			return err
		}
	}
	return nil
}
