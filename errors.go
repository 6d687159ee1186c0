package scopecache

import (
	"errors"
	"fmt"
)

// ErrNilFetch is returned by Query when no fetch function was provided.
var ErrNilFetch = errors.New("scopecache: query fetch function is required")

// InvalidateError reports which tag paths could not be recorded. The
// remaining paths in the same call were still written; retrying the whole
// call is safe because invalidation timestamps only move forward.
type InvalidateError struct {
	Failed []string // serialized tag paths
	Errs   []error
}

func (e *InvalidateError) Error() string {
	return fmt.Sprintf("scopecache: invalidate failed for %d tag(s): %v", len(e.Failed), errors.Join(e.Errs...))
}

func (e *InvalidateError) Unwrap() []error { return e.Errs }
