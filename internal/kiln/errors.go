package ik

import (
	"errors"
	"fmt"

	"github.com/sjc5/kiln/internal/taskgraph"
)

// ErrBind means the dev server could not listen on its address.
var ErrBind = errors.New("cannot bind dev server address")

// StageError identifies the pipeline stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("error during stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageErrors rewrites the task failures of a graph run as stage errors.
func stageErrors(err error) error {
	if err == nil {
		return nil
	}
	var parts []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		parts = joined.Unwrap()
	} else {
		parts = []error{err}
	}

	out := make([]error, 0, len(parts))
	for _, e := range parts {
		var te *taskgraph.TaskError
		if !errors.As(e, &te) {
			out = append(out, e)
			continue
		}
		var se *StageError
		if errors.As(te.Err, &se) {
			out = append(out, se)
			continue
		}
		out = append(out, &StageError{Stage: te.Task, Err: te.Err})
	}
	if len(out) == 1 {
		return out[0]
	}
	return errors.Join(out...)
}
