package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
	}{
		{NotFound("rule not found"), http.StatusNotFound},
		{Validation("bad trigger config"), http.StatusBadRequest},
		{BadRequest("malformed body"), http.StatusBadRequest},
		{Conflict("status changed concurrently"), http.StatusConflict},
		{Forbidden("not your tenant"), http.StatusForbidden},
		{Unauthorized("token expired"), http.StatusUnauthorized},
		{Internal("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.status {
			t.Fatalf("%v mapped to %d, want %d", tc.err.Kind, got, tc.status)
		}
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := NotFound("rule not found")
	if !Is(err, KindNotFound) {
		t.Fatal("expected kind match")
	}
	if Is(err, KindValidation) {
		t.Fatal("wrong kind must not match")
	}
	if Is(errors.New("plain"), KindNotFound) {
		t.Fatal("plain errors have no kind")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("no rows")
	err := Wrap(KindNotFound, "rule not found", cause)

	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause must be reachable via errors.Is")
	}
	if !Is(err, KindNotFound) {
		t.Fatal("wrapping must keep the kind")
	}
}

func TestWrappedInFmtErrorfLosesKindByContract(t *testing.T) {
	// GetKind inspects the top-level error only; services return *Error
	// directly rather than re-wrapping with %w.
	inner := Validation("bad config")
	outer := fmt.Errorf("create rule: %w", inner)
	if GetKind(outer) != KindUnknown {
		t.Fatal("fmt-wrapped errors report unknown kind")
	}
}
