package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"srmsync/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "apply", "srm add", "exited non-zero", base)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"apply", "srm add", "exited non-zero"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureOutcomeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{services.Wrap(services.ErrTimeout, "configure", "srm enable", "", nil), "timed_out"},
		{services.Wrap(services.ErrExternalTool, "apply", "srm add", "", nil), "tool_failed"},
		{fmt.Errorf("outer: %w", services.Wrap(services.ErrConfiguration, "", "", "bad", nil)), "misconfigured"},
		{services.ErrBusy, "busy"},
		{errors.New("plain"), "failed"},
		{nil, "failed"},
	}
	for _, tc := range cases {
		if got := services.FailureOutcome(tc.err); got != tc.want {
			t.Fatalf("FailureOutcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
