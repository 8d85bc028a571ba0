package cheetah

import "fmt"

// Status is the integer status code returned by the native library.
type Status int32

const (
	StatusSuccess                Status = 0
	StatusOutOfMemory            Status = 1
	StatusIOError                Status = 2
	StatusInvalidArgument        Status = 3
	StatusStopIteration          Status = 4
	StatusKeyError               Status = 5
	StatusInvalidState           Status = 6
	StatusRuntimeError           Status = 7
	StatusActivationError        Status = 8
	StatusActivationLimitReached Status = 9
	StatusActivationThrottled    Status = 10
	StatusActivationRefused      Status = 11
)

var statusNames = map[Status]string{
	StatusSuccess:                "SUCCESS",
	StatusOutOfMemory:            "OUT_OF_MEMORY",
	StatusIOError:                "IO_ERROR",
	StatusInvalidArgument:        "INVALID_ARGUMENT",
	StatusStopIteration:          "STOP_ITERATION",
	StatusKeyError:               "KEY_ERROR",
	StatusInvalidState:           "INVALID_STATE",
	StatusRuntimeError:           "RUNTIME_ERROR",
	StatusActivationError:        "ACTIVATION_ERROR",
	StatusActivationLimitReached: "ACTIVATION_LIMIT_REACHED",
	StatusActivationThrottled:    "ACTIVATION_THROTTLED",
	StatusActivationRefused:      "ACTIVATION_REFUSED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_STATUS(%d)", int32(s))
}

// sentinel returns the package error matching s, or nil for success and unknown codes.
func (s Status) sentinel() error {
	switch s {
	case StatusOutOfMemory:
		return ErrOutOfMemory
	case StatusIOError:
		return ErrIO
	case StatusInvalidArgument:
		return ErrInvalidArgument
	case StatusStopIteration:
		return ErrStopIteration
	case StatusKeyError:
		return ErrKey
	case StatusInvalidState:
		return ErrInvalidState
	case StatusRuntimeError:
		return ErrRuntime
	case StatusActivationError:
		return ErrActivation
	case StatusActivationLimitReached:
		return ErrActivationLimitReached
	case StatusActivationThrottled:
		return ErrActivationThrottled
	case StatusActivationRefused:
		return ErrActivationRefused
	default:
		return nil
	}
}
