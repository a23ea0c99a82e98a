package workflow

import "errors"

var (
	// ErrInvalidChain reports a chain built with fewer than two or more than
	// three stages.
	ErrInvalidChain = errors.New("chain must have 2 or 3 stages")

	// ErrEmptyInput reports a request without input text.
	ErrEmptyInput = errors.New("input_as_text is empty")

	// ErrInputTooLarge reports input text above the configured limit.
	ErrInputTooLarge = errors.New("input_as_text too large")

	// ErrUndeclaredRoute reports a branch route keyed by a value the
	// classifier does not declare.
	ErrUndeclaredRoute = errors.New("route for undeclared value")

	// ErrInvalidStep reports a nil or unknown step in the tree.
	ErrInvalidStep = errors.New("invalid step")
)
