package assert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/dshills/apiflow/pkg/snapshot"
)

// expressionTimeout bounds a single expression evaluation. Expressions are
// declarative and cheap; anything longer indicates a pathological input.
const expressionTimeout = 5 * time.Second

// evalExpression compiles and runs a boolean expression over the response.
// The expression sees status, statusText, headers, body, json (parsed body
// or nil), time and size.
func evalExpression(ctx context.Context, source string, resp *snapshot.ResponseSnapshot) (bool, error) {
	var parsedBody interface{}
	if err := json.Unmarshal([]byte(resp.Body), &parsedBody); err != nil {
		parsedBody = nil
	}

	environment := map[string]interface{}{
		"status":     resp.Status,
		"statusText": resp.StatusText,
		"headers":    resp.Headers,
		"body":       resp.Body,
		"json":       parsedBody,
		"time":       resp.TimeMS,
		"size":       resp.SizeBytes,
	}

	program, err := expr.Compile(source, expr.Env(environment), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("invalid expression: %v", err)
	}

	resultChan := make(chan bool, 1)
	errChan := make(chan error, 1)
	go func() {
		out, err := vm.Run(program, environment)
		if err != nil {
			errChan <- err
			return
		}
		verdict, ok := out.(bool)
		if !ok {
			errChan <- fmt.Errorf("%w: got %T", ErrExprNotBoolean, out)
			return
		}
		resultChan <- verdict
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case verdict := <-resultChan:
		return verdict, nil
	case err := <-errChan:
		return false, err
	case <-time.After(expressionTimeout):
		return false, fmt.Errorf("expression evaluation timed out")
	}
}
