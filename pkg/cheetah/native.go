package cheetah

import "unsafe"

// Native entry point names, as exported by the shared library.
const (
	symInit             = "pv_cheetah_init"
	symProcess          = "pv_cheetah_process"
	symFlush            = "pv_cheetah_flush"
	symDelete           = "pv_cheetah_delete"
	symTranscriptDelete = "pv_cheetah_transcript_delete"
	symVersion          = "pv_cheetah_version"
	symFrameLength      = "pv_cheetah_frame_length"
	symSampleRate       = "pv_sample_rate"
	symSetSDK           = "pv_set_sdk"
	symGetErrorStack    = "pv_get_error_stack"
	symFreeErrorStack   = "pv_free_error_stack"
)

// instance is the opaque engine object allocated by the native library.
type instance unsafe.Pointer

// native is the set of resolved entry points of one loaded library. The Engine Handle
// only talks to the library through this interface and is its sole owner.
//
// Implementations copy every native-allocated string into Go memory and release the
// native allocation through the library's own free entry point before returning.
type native interface {
	setSDK(tag string)
	init(accessKey, modelPath string, endpointDuration float32, punctuation bool) (instance, Status)
	process(h instance, pcm []int16) (transcript string, isEndpoint bool, status Status)
	flush(h instance) (transcript string, status Status)
	delete(h instance)
	frameLength() int32
	sampleRate() int32
	version() string
	errorStack() ([]string, Status)
	// close unloads the library. No entry point may be called afterwards.
	close() error
}

// loaderFunc opens the library at path and resolves every entry point.
type loaderFunc func(path string) (native, error)
