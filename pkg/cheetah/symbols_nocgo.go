//go:build !cgo

package cheetah

import "errors"

var errLoaderUnavailable = errors.New("built without cgo; dynamic loading unavailable")

// NativeAvailable reports whether the dynamic loader is compiled in.
func NativeAvailable() bool { return false }

// loadLibrary always fails when cgo is disabled.
func loadLibrary(path string) (native, error) {
	return nil, &LibraryLoadError{Path: path, Err: errLoaderUnavailable}
}
