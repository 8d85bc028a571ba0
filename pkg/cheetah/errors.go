package cheetah

import (
	"errors"
	"fmt"
	"strings"
)

// Status sentinels. Every typed error in this package matches the sentinel of the
// status it represents, so callers can branch with errors.Is.
var (
	ErrOutOfMemory            = errors.New("cheetah: out of memory")
	ErrIO                     = errors.New("cheetah: i/o error")
	ErrInvalidArgument        = errors.New("cheetah: invalid argument")
	ErrStopIteration          = errors.New("cheetah: stop iteration")
	ErrKey                    = errors.New("cheetah: key error")
	ErrInvalidState           = errors.New("cheetah: invalid state")
	ErrRuntime                = errors.New("cheetah: runtime error")
	ErrActivation             = errors.New("cheetah: activation error")
	ErrActivationLimitReached = errors.New("cheetah: activation limit reached")
	ErrActivationThrottled    = errors.New("cheetah: activation throttled")
	ErrActivationRefused      = errors.New("cheetah: activation refused")
)

// ErrClosed is returned by streaming calls on a handle that has been closed.
var ErrClosed = fmt.Errorf("%w: engine has been closed", ErrInvalidState)

// ArgumentError reports a configuration or input value rejected before any native call.
type ArgumentError struct {
	Field   string
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("cheetah: invalid %s: %s", e.Field, e.Message)
}

func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// FrameLengthError reports a frame whose length differs from the engine's frame length.
type FrameLengthError struct {
	Got  int
	Want int
}

func (e *FrameLengthError) Error() string {
	return fmt.Sprintf("cheetah: frame has %d samples, engine requires %d", e.Got, e.Want)
}

func (e *FrameLengthError) Is(target error) bool { return target == ErrInvalidArgument }

// LibraryLoadError reports a failure to open the shared library or resolve one of its symbols.
type LibraryLoadError struct {
	Path   string
	Symbol string
	Err    error
}

func (e *LibraryLoadError) Error() string {
	switch {
	case e.Symbol != "":
		return fmt.Sprintf("cheetah: resolve symbol %q in %s: %v", e.Symbol, e.Path, e.Err)
	case e.Path == "":
		return fmt.Sprintf("cheetah: locate library: %v", e.Err)
	default:
		return fmt.Sprintf("cheetah: load library %s: %v", e.Path, e.Err)
	}
}

func (e *LibraryLoadError) Unwrap() error { return e.Err }

// LibraryError carries a non-success status returned by a native call together with the
// diagnostic stack the library reported for it, most recent cause last.
type LibraryError struct {
	Status       Status
	Call         string
	MessageStack []string
}

func (e *LibraryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cheetah: %s failed: %s", e.Call, e.Status)
	if len(e.MessageStack) > 0 {
		b.WriteString(":")
	}
	for i, msg := range e.MessageStack {
		fmt.Fprintf(&b, "\n  [%d] %s", i, msg)
	}
	return b.String()
}

func (e *LibraryError) Is(target error) bool {
	sentinel := e.Status.sentinel()
	return sentinel != nil && target == sentinel
}

// ErrorStackError reports that the diagnostic stack for a failed call could not be
// retrieved. The original failure stays reachable through Unwrap.
type ErrorStackError struct {
	Status Status
	Err    *LibraryError
}

func (e *ErrorStackError) Error() string {
	return fmt.Sprintf("cheetah: unable to get error state (%s) after %s failed with %s",
		e.Status, e.Err.Call, e.Err.Status)
}

func (e *ErrorStackError) Unwrap() error { return e.Err }

// RuntimeError reports malformed data returned across the native boundary.
type RuntimeError struct {
	Op      string
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("cheetah: %s: %s", e.Op, e.Message)
}

func (e *RuntimeError) Is(target error) bool { return target == ErrRuntime }
