package cli

import (
	"errors"

	"github.com/mesh-intelligence/wonder/pkg/types"
)

// exitError carries the exit code an error should end the process with.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func sysError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitSysError, err: err}
}

// userErrors are the failures caused by what the user asked for.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrConstraint,
	types.ErrInvalidName,
	types.ErrInvalidHierarchyType,
	types.ErrInvalidRelationType,
	types.ErrNotDirectory,
	types.ErrCycle,
	types.ErrInvalidMove,
	types.ErrCrossProject,
	types.ErrInvalidSettings,
	types.ErrInvalidConfig,
}

// classify marks err as a system error unless it is one of userErrors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return err
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return &exitError{code: exitUserError, err: err}
		}
	}
	return sysError(err)
}

// ExitCode maps an error returned by the root command to a process exit
// code. Errors cobra raises itself, such as bad arguments, are user errors.
func ExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}
