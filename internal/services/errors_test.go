package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sift/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	cause := errors.New("connection reset")
	err := services.Wrap(services.ErrTransient, "classify", "complete", "llm unreachable", cause)

	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("expected transient marker")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be wrapped")
	}
	if !strings.Contains(err.Error(), "classify: complete: llm unreachable") {
		t.Fatalf("unexpected message: %v", err)
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := services.Wrap(nil, "stage", "op", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("nil marker should default to transient")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", services.Wrap(services.ErrTransient, "s", "o", "", nil), true},
		{"timeout", services.Wrap(services.ErrTimeout, "s", "o", "", nil), true},
		{"validation", services.Wrap(services.ErrValidation, "s", "o", "", nil), false},
		{"configuration", services.Wrap(services.ErrConfiguration, "s", "o", "", nil), false},
		{"corruption", services.Wrap(services.ErrCorruption, "s", "o", "", nil), false},
		{"canceled", context.Canceled, false},
		{"nil", nil, false},
		{"plain", errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	if got := services.KindOf(services.Wrap(services.ErrCorruption, "", "", "", nil)); got != services.KindCorruption {
		t.Fatalf("kind = %q", got)
	}
	if got := services.KindOf(errors.New("x")); got != services.KindUnknown {
		t.Fatalf("kind = %q", got)
	}
}

func TestDescribe(t *testing.T) {
	details := services.Describe(services.Wrap(services.ErrValidation, "classify", "decode", "malformed payload", nil))
	if details.Kind != services.KindValidation {
		t.Fatalf("kind = %q", details.Kind)
	}
	if !strings.Contains(details.Message, "malformed payload") {
		t.Fatalf("message = %q", details.Message)
	}
}
