package state_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/pgtelemetry/collector/state"
)

func TestErrorTaxonomy(t *testing.T) {
	var err error = &state.QueryError{
		Category: state.CategoryWaitEvents,
		Err:      &state.TimeoutError{Operation: "wait_events query", Err: context.DeadlineExceeded},
	}

	if !errors.Is(err, state.ErrTimeout) {
		t.Errorf("expected query error wrapping a timeout to match ErrTimeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the driver error to stay reachable")
	}

	var queryErr *state.QueryError
	if !errors.As(err, &queryErr) || queryErr.Category != state.CategoryWaitEvents {
		t.Errorf("expected errors.As to find the QueryError")
	}

	unsupported := errors.Wrap(&state.UnsupportedVersionError{Category: state.CategorySlowQueries, Version: 11}, "dispatch")
	if !errors.Is(unsupported, state.ErrUnsupportedVersion) {
		t.Errorf("expected UnsupportedVersionError to match ErrUnsupportedVersion")
	}
	if errors.Is(unsupported, state.ErrTimeout) {
		t.Errorf("unsupported version is not a timeout")
	}
}
