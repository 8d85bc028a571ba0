package cheetah

import "strings"

// libraryError builds the error for a native call that returned status. The diagnostic
// stack is collected right away, while the library still holds it for this failure.
func libraryError(lib native, call string, status Status) error {
	failure := &LibraryError{Status: status, Call: call}

	stack, stackStatus := lib.errorStack()
	if stackStatus != StatusSuccess {
		return &ErrorStackError{Status: stackStatus, Err: failure}
	}

	if len(stack) > 0 {
		failure.MessageStack = make([]string, len(stack))
		for i, msg := range stack {
			failure.MessageStack[i] = strings.ToValidUTF8(msg, "�")
		}
	}
	return failure
}
