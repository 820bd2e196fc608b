package main

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/domain"
)

// Exit statuses.
const (
	exitFailure       = 1
	exitHardViolation = 2
	exitSwapRejected  = 3
	exitBrokenHistory = 4
)

// errReported marks a failure whose outcome was already written to stdout.
var errReported = errors.New("outcome reported")

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func reported(code int) error {
	return &exitError{code: code, err: errReported}
}

func exitCode(err error) int {
	var exitErr *exitError
	switch {
	case errors.As(err, &exitErr):
		return exitErr.code
	case errors.Is(err, application.ErrHardConstraint):
		return exitHardViolation
	case errors.Is(err, application.ErrStaleBase):
		return exitSwapRejected
	case errors.Is(err, domain.ErrInvariantBreach):
		return exitBrokenHistory
	}
	return exitFailure
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
