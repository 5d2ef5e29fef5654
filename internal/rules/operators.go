// internal/rules/operators.go

package rules

import "slices"

// Test operators. Ordering applies to numbers and strings only; contains
// looks into strings, slices, arrays and map keys.
const (
	OperatorEqual              = "equal"
	OperatorNotEqual           = "notEqual"
	OperatorGreaterThan        = "greaterThan"
	OperatorGreaterThanOrEqual = "greaterThanOrEqual"
	OperatorLessThan           = "lessThan"
	OperatorLessThanOrEqual    = "lessThanOrEqual"
	OperatorContains           = "contains"
	OperatorNotContains        = "notContains"
)

var SupportedOperators = []string{
	OperatorEqual,
	OperatorNotEqual,
	OperatorGreaterThan,
	OperatorGreaterThanOrEqual,
	OperatorLessThan,
	OperatorLessThanOrEqual,
	OperatorContains,
	OperatorNotContains,
}

// operatorSymbols are the shorthand spellings accepted in place of the names.
var operatorSymbols = map[string]string{
	"==": OperatorEqual,
	"!=": OperatorNotEqual,
	">":  OperatorGreaterThan,
	">=": OperatorGreaterThanOrEqual,
	"<":  OperatorLessThan,
	"<=": OperatorLessThanOrEqual,
}

// CanonicalOperator maps a symbol such as ">=" to its operator name. Names
// are returned unchanged.
func CanonicalOperator(operator string) (string, bool) {
	if name, ok := operatorSymbols[operator]; ok {
		return name, true
	}
	return operator, slices.Contains(SupportedOperators, operator)
}
