package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestTaxonomyDistinguishable(t *testing.T) {
	verr := Validation("confidence_level", "out of range")
	nerr := NotFound("order", "o-1")
	terr := InvalidTransition("a-1", "accepted", "rejected")
	uerr := Unimplemented("distributionally_robust")
	xerr := External("routing", errors.New("timeout"))

	var ve *ValidationError
	if !errors.As(verr, &ve) {
		t.Error("validation error not recognized")
	}
	var ne *NotFoundError
	if !errors.As(nerr, &ne) {
		t.Error("not-found error not recognized")
	}
	if errors.As(terr, &ne) {
		t.Error("invalid transition must not match not-found")
	}
	var te *InvalidTransitionError
	if !errors.As(terr, &te) {
		t.Error("invalid transition not recognized")
	}
	var ue *UnimplementedError
	if !errors.As(uerr, &ue) {
		t.Error("unimplemented not recognized")
	}
	var xe *ExternalError
	if !errors.As(xerr, &xe) {
		t.Error("external error not recognized")
	}
}

func TestExternalUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := External("spatial-index", inner)
	if !errors.Is(err, inner) {
		t.Error("external error must unwrap to the cause")
	}
	wrapped := fmt.Errorf("cluster: %w", err)
	var xe *ExternalError
	if !errors.As(wrapped, &xe) || xe.Dependency != "spatial-index" {
		t.Error("wrapped external error lost its kind")
	}
}
