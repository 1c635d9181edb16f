package answer

import "errors"

var (
	// ErrEmptyQuestion is returned synchronously for a blank question,
	// before any retrieval work.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrServiceDegraded wraps infrastructure failures that survived
	// retries. Distinct from the no-evidence outcome, which is a normal
	// zero-confidence answer.
	ErrServiceDegraded = errors.New("service degraded")
)
