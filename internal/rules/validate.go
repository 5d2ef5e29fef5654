// internal/rules/validate.go

package rules

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRule       = errors.New("invalid rule")
	ErrDuplicateRuleName = errors.New("duplicate rule name")
	ErrUnboundContextKey = errors.New("unbound context key")
)

// ValidateRule checks a rule before it is compiled into the network. Every
// Ref must name a key bound by an earlier pattern, or by the FactKey or an
// extraction of the same pattern.
func ValidateRule(rule *Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: nil rule", ErrInvalidRule)
	}
	if rule.Name == "" {
		return fmt.Errorf("%w: rule name cannot be empty", ErrInvalidRule)
	}
	if len(rule.Patterns) == 0 {
		return fmt.Errorf("%w: rule '%s' must have at least one pattern", ErrInvalidRule, rule.Name)
	}
	if rule.Action == nil {
		return fmt.Errorf("%w: rule '%s' has no action", ErrInvalidRule, rule.Name)
	}

	bound := make(map[string]bool)
	for i, pattern := range rule.Patterns {
		if err := validatePattern(pattern, rule.Name, i, bound); err != nil {
			return err
		}
	}
	return nil
}

func validatePattern(pattern Pattern, ruleName string, patternIndex int, bound map[string]bool) error {
	if pattern.Type == "" {
		return fmt.Errorf("%w: missing 'type' in pattern %d of rule '%s'", ErrInvalidRule, patternIndex, ruleName)
	}

	if pattern.FactKey != "" {
		bound[pattern.FactKey] = true
	}

	for j, extract := range pattern.Extract {
		if extract.Attr == "" || extract.Key == "" {
			return fmt.Errorf("%w: extraction %d of pattern %d of rule '%s' needs an attribute and a key", ErrInvalidRule, j, patternIndex, ruleName)
		}
		bound[extract.Key] = true
	}

	for j, test := range pattern.Tests {
		if err := validateTest(test, ruleName, patternIndex, j, bound); err != nil {
			return err
		}
	}
	return nil
}

func validateTest(test Test, ruleName string, patternIndex, testIndex int, bound map[string]bool) error {
	if test.Attr == "" {
		return fmt.Errorf("%w: missing 'attr' in test %d of pattern %d of rule '%s'", ErrInvalidRule, testIndex, patternIndex, ruleName)
	}
	if _, ok := CanonicalOperator(test.Operator); !ok {
		return fmt.Errorf("%w: invalid operator '%s' in test %d of pattern %d of rule '%s'", ErrInvalidRule, test.Operator, testIndex, patternIndex, ruleName)
	}
	if test.Ref == "" {
		return nil
	}
	if test.Value != nil {
		return fmt.Errorf("%w: test %d of pattern %d of rule '%s' has both a value and a reference", ErrInvalidRule, testIndex, patternIndex, ruleName)
	}
	if !bound[test.Ref] {
		return fmt.Errorf("%w: '%s' in test %d of pattern %d of rule '%s'", ErrUnboundContextKey, test.Ref, testIndex, patternIndex, ruleName)
	}
	return nil
}
