// Package assert evaluates declarative response checks: structured
// target/operator/expected triples resolved against a response snapshot. No
// sandboxing is involved — assertions are data, not code — and a malformed
// assertion fails alone without aborting the batch.
package assert

import "github.com/google/uuid"

// Type selects how an assertion's actual value is resolved from the
// response.
type Type string

// Assertion types.
const (
	TypeStatus       Type = "status"
	TypeHeader       Type = "header"
	TypeBody         Type = "body"
	TypeJSONPath     Type = "jsonPath"
	TypeResponseTime Type = "responseTime"
	TypeSchema       Type = "schema"
	// TypeExpression evaluates Target as a boolean expression over the
	// response (status, statusText, headers, body, json, time, size).
	// Operator and Expected are ignored; the expression result is the
	// verdict.
	TypeExpression Type = "expression"
)

// Operator selects the comparison applied to (actual, expected).
type Operator string

// Assertion operators.
const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpMatches     Operator = "matches"
	OpLessThan    Operator = "lessThan"
	OpGreaterThan Operator = "greaterThan"
	OpExists      Operator = "exists"
)

// Assertion is one declarative check against a response.
type Assertion struct {
	ID       string      `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Type     Type        `json:"type" yaml:"type"`
	Target   string      `json:"target,omitempty" yaml:"target,omitempty"`
	Operator Operator    `json:"operator" yaml:"operator"`
	Expected interface{} `json:"expected,omitempty" yaml:"expected,omitempty"`
	Enabled  bool        `json:"enabled" yaml:"enabled"`
}

// New creates an enabled assertion with a fresh identifier.
func New(name string, t Type, target string, op Operator, expected interface{}) Assertion {
	return Assertion{
		ID:       uuid.NewString(),
		Name:     name,
		Type:     t,
		Target:   target,
		Operator: op,
		Expected: expected,
		Enabled:  true,
	}
}

// Result is the outcome of evaluating one assertion.
type Result struct {
	AssertionID string      `json:"assertionId"`
	Name        string      `json:"name"`
	Passed      bool        `json:"passed"`
	Actual      interface{} `json:"actual"`
	Expected    interface{} `json:"expected"`
	Message     string      `json:"message"`
}
