package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("validate customer: %w", NotFound(EntityCustomer, 42))

	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("errors.Is(err, ErrNotFound) = false")
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("errors.As did not find NotFoundError")
	}
	if nf.Entity != EntityCustomer || nf.ID != 42 {
		t.Errorf("unexpected NotFoundError: %+v", nf)
	}
	if got := nf.Error(); got != "customer 42 not found" {
		t.Errorf("Error() = %q", got)
	}
}
