package canvas

import (
	"errors"
	"fmt"
)

// ErrAuth means the API token was rejected. Fatal at the initial course
// listing; a per-course skip everywhere else.
var ErrAuth = errors.New("canvas: invalid API token")

// FetchError is a non-auth failure of one API call. The orchestrator logs
// it and skips the affected course for the rest of the run.
type FetchError struct {
	Op       string
	CourseID int64
	Status   int // 0 for transport errors
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("canvas: %s (course %d): %v", e.Op, e.CourseID, e.Err)
	}
	return fmt.Sprintf("canvas: %s (course %d): http %d", e.Op, e.CourseID, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }
