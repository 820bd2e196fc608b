package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/example/conference-scheduler/internal/domain"
	"github.com/example/conference-scheduler/internal/logging"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerPrefersContextLogger(t *testing.T) {
	t.Parallel()

	var base, scoped bytes.Buffer
	baseLogger := slog.New(slog.NewTextHandler(&base, nil))
	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewTextHandler(&scoped, nil)))

	serviceLogger(ctx, baseLogger, "HistoryService", "Append", "label", "v1").Info("hello")

	if base.Len() != 0 {
		t.Fatalf("expected base logger to stay silent, got %q", base.String())
	}
	for _, want := range []string{"service=HistoryService", "operation=Append", "label=v1"} {
		if !strings.Contains(scoped.String(), want) {
			t.Fatalf("expected %q in %q", want, scoped.String())
		}
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&domain.ReferenceError{Kind: domain.ReferenceSession, ID: "S9"}, "malformed_input"},
		{&domain.InvariantError{Check: "cardinality"}, "invariant_breach"},
		{&HardConstraintError{}, "hard_constraint"},
		{fmt.Errorf("get: %w", ErrNotFound), "not_found"},
		{ErrEmptyHistory, "not_found"},
		{ErrAlreadyExists, "already_exists"},
		{&StaleBaseError{Base: 1, Latest: 2}, "stale_base"},
		{ErrNoValidator, "no_validator"},
		{context.Canceled, "cancelled"},
		{&ValidationError{}, "validation"},
		{errors.New("boom"), "unexpected"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
