package assert

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/apiflow/pkg/snapshot"
)

// Evaluator applies declarative assertions to response snapshots. It is
// stateless and safe for concurrent use.
type Evaluator interface {
	// RunAssertions evaluates each enabled assertion in input order and
	// returns one result per enabled assertion. A malformed assertion yields
	// a single failed result; the batch always completes.
	RunAssertions(ctx context.Context, assertions []Assertion, resp *snapshot.ResponseSnapshot) []Result
}

// NewEvaluator creates an assertion evaluator.
func NewEvaluator() Evaluator {
	return &evaluator{}
}

type evaluator struct{}

func (e *evaluator) RunAssertions(ctx context.Context, assertions []Assertion, resp *snapshot.ResponseSnapshot) []Result {
	results := make([]Result, 0, len(assertions))
	for _, a := range assertions {
		if !a.Enabled {
			continue
		}
		results = append(results, e.evaluate(ctx, a, resp))
	}
	return results
}

func (e *evaluator) evaluate(ctx context.Context, a Assertion, resp *snapshot.ResponseSnapshot) Result {
	result := Result{
		AssertionID: a.ID,
		Name:        a.Name,
		Expected:    a.Expected,
	}

	switch a.Type {
	case TypeSchema:
		return e.evaluateSchema(a, resp, result)
	case TypeExpression:
		return e.evaluateExpression(ctx, a, resp, result)
	}

	actual, err := resolveActual(a, resp)
	result.Actual = actual
	if err != nil {
		result.Passed = false
		result.Message = fmt.Sprintf("could not resolve %s: %v", subject(a), err)
		return result
	}

	passed, err := applyOperator(a.Operator, actual, a.Expected)
	if err != nil {
		result.Passed = false
		result.Message = fmt.Sprintf("%s: %v", subject(a), err)
		return result
	}

	result.Passed = passed
	result.Message = message(a, actual, passed)
	return result
}

func (e *evaluator) evaluateSchema(a Assertion, resp *snapshot.ResponseSnapshot, result Result) Result {
	failures, err := validateSchema(resp.Body, a.Expected)
	if err != nil {
		result.Passed = false
		result.Actual = []string{err.Error()}
		result.Message = fmt.Sprintf("could not validate %s: %v", subject(a), err)
		return result
	}
	result.Actual = failures
	result.Passed = len(failures) == 0
	if result.Passed {
		result.Message = "Expected body to match schema"
	} else {
		result.Message = fmt.Sprintf("Expected body to match schema but found %d violation(s): %s",
			len(failures), strings.Join(failures, "; "))
	}
	return result
}

func (e *evaluator) evaluateExpression(ctx context.Context, a Assertion, resp *snapshot.ResponseSnapshot, result Result) Result {
	verdict, err := evalExpression(ctx, a.Target, resp)
	result.Actual = verdict
	result.Expected = true
	if err != nil {
		result.Passed = false
		result.Message = fmt.Sprintf("could not evaluate expression %q: %v", a.Target, err)
		return result
	}
	result.Passed = verdict
	if verdict {
		result.Message = fmt.Sprintf("Expected expression %q to hold", a.Target)
	} else {
		result.Message = fmt.Sprintf("Expected expression %q to hold but it did not", a.Target)
	}
	return result
}

// subject names what an assertion inspects, for messages.
func subject(a Assertion) string {
	switch a.Type {
	case TypeStatus:
		return "status"
	case TypeHeader:
		return fmt.Sprintf("header %q", a.Target)
	case TypeBody:
		return "body"
	case TypeJSONPath:
		return fmt.Sprintf("jsonPath %q", a.Target)
	case TypeResponseTime:
		return "response time"
	case TypeSchema:
		return "body schema"
	case TypeExpression:
		return "expression"
	default:
		return string(a.Type)
	}
}

// verb renders an operator for messages.
func verb(op Operator) string {
	switch op {
	case OpEquals:
		return "equal"
	case OpNotEquals:
		return "not equal"
	case OpContains:
		return "contain"
	case OpMatches:
		return "match"
	case OpLessThan:
		return "be less than"
	case OpGreaterThan:
		return "be greater than"
	case OpExists:
		return "exist"
	default:
		return string(op)
	}
}

// message builds the uniform human-readable outcome line, e.g.
// "Expected status to equal 200 but got 404". Failure messages always carry
// both the expected and the actual value.
func message(a Assertion, actual interface{}, passed bool) string {
	if a.Operator == OpExists {
		if passed {
			return fmt.Sprintf("Expected %s to exist", subject(a))
		}
		return fmt.Sprintf("Expected %s to exist but it did not", subject(a))
	}
	head := fmt.Sprintf("Expected %s to %s %v", subject(a), verb(a.Operator), display(a.Expected))
	if passed {
		return head
	}
	return fmt.Sprintf("%s but got %v", head, display(actual))
}

// display renders a value for messages, quoting strings and naming absence.
func display(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "<undefined>"
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
