package lifecycle

import (
	"errors"
	"fmt"
)

// Class groups fatal errors by where they originate.
type Class int

const (
	// ClassUnknown is used for errors that were never classified.
	ClassUnknown Class = iota
	// ClassEnvironment covers missing privileges and unwritable paths.
	ClassEnvironment
	// ClassInput covers bad user input: missing files, digest or signature mismatch.
	ClassInput
	// ClassExecution covers failures of OS commands and install steps.
	ClassExecution
)

// String returns the string representation of the class
func (c Class) String() string {
	switch c {
	case ClassEnvironment:
		return "environment"
	case ClassInput:
		return "input"
	case ClassExecution:
		return "execution"
	default:
		return "unknown"
	}
}

// Error is a classified fatal error.
type Error struct {
	Class Class
	Op    string // step that failed, e.g. "fetch" or "install"
	Code  int    // process exit code; 0 means derive from Err
	Err   error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// exitCoder is implemented by *exec.ExitError and execx.CommandError.
type exitCoder interface {
	ExitCode() int
}

// Environment classifies err as a FatalEnvironment error.
func Environment(op string, err error) error {
	return &Error{Class: ClassEnvironment, Op: op, Code: 1, Err: err}
}

// Input classifies err as a FatalInput error.
func Input(op string, err error) error {
	return &Error{Class: ClassInput, Op: op, Code: 1, Err: err}
}

// Execution classifies err as a FatalExecution error. The exit code of the
// underlying command is propagated when err carries one.
func Execution(op string, err error) error {
	return &Error{Class: ClassExecution, Op: op, Err: err}
}

// ClassOf returns the class of err, or ClassUnknown.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassUnknown
}

// ExitCode maps err to a process exit code: 0 for nil, the explicit code of a
// classified error, the exit status of a failed command, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var e *Error
	if errors.As(err, &e) && e.Code > 0 {
		return e.Code
	}

	var coder exitCoder
	if errors.As(err, &coder) {
		if code := coder.ExitCode(); code > 0 {
			return code
		}
	}

	return 1
}
