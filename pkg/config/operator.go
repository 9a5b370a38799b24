package config

import "strings"

// Operator compares a request value with a configured value.
type Operator string

// Operators. EqualTo is the only one whose success is an exact match.
const (
	EqualTo     Operator = "EqualTo"
	NotEqualTo  Operator = "NotEqualTo"
	Exists      Operator = "Exists"
	NotExists   Operator = "NotExists"
	Contains    Operator = "Contains"
	NotContains Operator = "NotContains"
	Matches     Operator = "Matches"
	NotMatches  Operator = "NotMatches"
)

var operators = []Operator{EqualTo, NotEqualTo, Exists, NotExists, Contains, NotContains, Matches, NotMatches}

// Operators lists every supported operator.
func Operators() []Operator {
	return append([]Operator(nil), operators...)
}

// Valid reports whether o is a supported operator. The empty operator is
// valid and means EqualTo.
func (o Operator) Valid() bool {
	if o == "" {
		return true
	}
	for _, op := range operators {
		if o == op {
			return true
		}
	}
	return false
}

// IsRegex reports whether the configured value is a regular expression.
func (o Operator) IsRegex() bool {
	return o == Matches || o == NotMatches
}

// ParseOperator accepts an operator name in any case.
func ParseOperator(s string) (Operator, bool) {
	if s == "" {
		return EqualTo, true
	}
	for _, op := range operators {
		if strings.EqualFold(s, string(op)) {
			return op, true
		}
	}
	return Operator(s), false
}
