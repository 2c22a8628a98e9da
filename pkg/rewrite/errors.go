package rewrite

import (
	"errors"
	"fmt"
)

// ErrInvalidPath is matched by every *InvalidPathError.
var ErrInvalidPath = errors.New("invalid local path")

// InvalidPathError is returned when no pattern can be built from a local path.
type InvalidPathError struct {
	Path   string
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid local path %q: %s", e.Path, e.Reason)
}

func (e *InvalidPathError) Is(target error) bool {
	return target == ErrInvalidPath
}

// MatchEvaluationError reports a failure to evaluate the bundler generated
// stylesheet href code. The file it came from is left untouched.
type MatchEvaluationError struct {
	Fragment string
	Err      error
}

func (e *MatchEvaluationError) Error() string {
	return fmt.Sprintf("evaluating %q: %v", e.Fragment, e.Err)
}

func (e *MatchEvaluationError) Unwrap() error {
	return e.Err
}
