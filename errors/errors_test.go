package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := New(PhaseDispatch, KindChannelClosed).
		Detail("queued after shutdown began").
		Build()

	got := err.Error()
	want := "[dispatch] channel_closed: queued after shutdown began"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrongInstanceFormat(t *testing.T) {
	err := WrongInstance(PhaseRoot, 1, 2)

	got := err.Error()
	if !strings.Contains(got, "created by instance 1") || !strings.Contains(got, "used under instance 2") {
		t.Errorf("Error() = %q, want both instance ids", got)
	}
}

func TestPanicFormat(t *testing.T) {
	err := PanicFailure("zomg")

	if !strings.Contains(err.Error(), "(panic: zomg)") {
		t.Errorf("Error() = %q, want panic message", err.Error())
	}
}

func TestIs(t *testing.T) {
	err := ChannelClosed(PhaseDispatch)

	if !stderrors.Is(err, &Error{Phase: PhaseDispatch, Kind: KindChannelClosed}) {
		t.Error("Is should match on phase and kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseShutdown, Kind: KindChannelClosed}) {
		t.Error("Is should not match a different phase")
	}
}

func TestIsKind(t *testing.T) {
	inner := ExceptionFailure("boom")
	wrapped := fmt.Errorf("drain failed: %w", inner)

	if !IsKind(wrapped, KindException) {
		t.Error("IsKind should find the kind through the wrap chain")
	}
	if IsKind(wrapped, KindPanic) {
		t.Error("IsKind should not match a different kind")
	}
	if IsKind(nil, KindPanic) {
		t.Error("IsKind(nil) should be false")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("engine rejected trigger")
	err := Wrap(PhaseDispatch, KindNotInitialized, cause, "register channel signaler")

	if !stderrors.Is(err, cause) {
		t.Error("Unwrap should expose the cause")
	}
	if !strings.Contains(err.Error(), "caused by: engine rejected trigger") {
		t.Errorf("Error() = %q, want cause rendered", err.Error())
	}
}

type stringerPayload struct{}

func (stringerPayload) String() string { return "stringer payload" }

func TestPanicMessage(t *testing.T) {
	cases := []struct {
		payload any
		want    string
	}{
		{"zomg", "zomg"},
		{stderrors.New("bad state"), "bad state"},
		{stringerPayload{}, "stringer payload"},
		{42, unknownPanicMessage},
		{nil, unknownPanicMessage},
	}

	for _, tc := range cases {
		if got := PanicMessage(tc.payload); got != tc.want {
			t.Errorf("PanicMessage(%v) = %q, want %q", tc.payload, got, tc.want)
		}
	}
}
