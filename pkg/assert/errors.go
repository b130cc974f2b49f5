package assert

import "errors"

// Sentinel errors shared across assertion evaluation. They are recovered
// per-assertion and folded into a failed Result; they never abort a batch.
var (
	ErrUnknownType     = errors.New("unknown assertion type")
	ErrUnknownOperator = errors.New("unknown assertion operator")
	ErrNonNumeric      = errors.New("value is not numeric")
	ErrNotAString      = errors.New("value is not a string")
	ErrInvalidPattern  = errors.New("invalid regular expression pattern")
	ErrInvalidSchema   = errors.New("invalid schema definition")
	ErrInvalidBody     = errors.New("response body is not valid JSON")
	ErrExprNotBoolean  = errors.New("expression did not evaluate to a boolean")
)
