//go:build cgo

package cheetah

/*
#cgo linux LDFLAGS: -ldl
#cgo darwin LDFLAGS: -ldl

#include <stdbool.h>
#include <stdint.h>
#include <stdio.h>
#include <stdlib.h>

#if defined(_WIN32) || defined(_WIN64)
#include <windows.h>
#else
#include <dlfcn.h>
#endif

static void *cheetah_dlopen(const char *path) {
#if defined(_WIN32) || defined(_WIN64)
	return (void *) LoadLibraryA(path);
#else
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
#endif
}

static void *cheetah_dlsym(void *lib, const char *name) {
#if defined(_WIN32) || defined(_WIN64)
	return (void *) GetProcAddress((HMODULE) lib, name);
#else
	return dlsym(lib, name);
#endif
}

static int cheetah_dlclose(void *lib) {
#if defined(_WIN32) || defined(_WIN64)
	return FreeLibrary((HMODULE) lib) ? 0 : -1;
#else
	return dlclose(lib);
#endif
}

static void cheetah_dlclear(void) {
#if defined(_WIN32) || defined(_WIN64)
	SetLastError(0);
#else
	(void) dlerror();
#endif
}

static const char *cheetah_dlerror(void) {
#if defined(_WIN32) || defined(_WIN64)
	static __thread char buf[64];
	DWORD code = GetLastError();
	if (code == 0) {
		return NULL;
	}
	snprintf(buf, sizeof(buf), "windows error %lu", (unsigned long) code);
	return buf;
#else
	return dlerror();
#endif
}

typedef int32_t (*cheetah_init_fn)(const char *, const char *, float, bool, void **);
typedef int32_t (*cheetah_process_fn)(void *, const int16_t *, char **, bool *);
typedef int32_t (*cheetah_flush_fn)(void *, char **);
typedef void (*cheetah_delete_fn)(void *);
typedef void (*cheetah_transcript_delete_fn)(char *);
typedef const char *(*cheetah_version_fn)(void);
typedef int32_t (*cheetah_int_fn)(void);
typedef void (*cheetah_set_sdk_fn)(const char *);
typedef int32_t (*cheetah_get_error_stack_fn)(char ***, int32_t *);
typedef void (*cheetah_free_error_stack_fn)(char **);

static int32_t cheetah_call_init(
		void *f,
		const char *access_key,
		const char *model_path,
		float endpoint_duration_sec,
		bool enable_automatic_punctuation,
		void **object) {
	return ((cheetah_init_fn) f)(access_key, model_path, endpoint_duration_sec, enable_automatic_punctuation, object);
}

static int32_t cheetah_call_process(void *f, void *object, const int16_t *pcm, char **transcript, bool *is_endpoint) {
	return ((cheetah_process_fn) f)(object, pcm, transcript, is_endpoint);
}

static int32_t cheetah_call_flush(void *f, void *object, char **transcript) {
	return ((cheetah_flush_fn) f)(object, transcript);
}

static void cheetah_call_delete(void *f, void *object) {
	((cheetah_delete_fn) f)(object);
}

static void cheetah_call_transcript_delete(void *f, char *transcript) {
	((cheetah_transcript_delete_fn) f)(transcript);
}

static const char *cheetah_call_version(void *f) {
	return ((cheetah_version_fn) f)();
}

static int32_t cheetah_call_int(void *f) {
	return ((cheetah_int_fn) f)();
}

static void cheetah_call_set_sdk(void *f, const char *sdk) {
	((cheetah_set_sdk_fn) f)(sdk);
}

static int32_t cheetah_call_get_error_stack(void *f, char ***message_stack, int32_t *depth) {
	return ((cheetah_get_error_stack_fn) f)(message_stack, depth);
}

static void cheetah_call_free_error_stack(void *f, char **message_stack) {
	((cheetah_free_error_stack_fn) f)(message_stack);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"
)

// NativeAvailable reports whether the dynamic loader is compiled in.
func NativeAvailable() bool { return true }

// symbolTable owns one loaded library and the entry points resolved from it.
type symbolTable struct {
	path   string
	handle unsafe.Pointer

	initFn             unsafe.Pointer
	processFn          unsafe.Pointer
	flushFn            unsafe.Pointer
	deleteFn           unsafe.Pointer
	transcriptDeleteFn unsafe.Pointer
	versionFn          unsafe.Pointer
	frameLengthFn      unsafe.Pointer
	sampleRateFn       unsafe.Pointer
	setSDKFn           unsafe.Pointer
	getErrorStackFn    unsafe.Pointer
	freeErrorStackFn   unsafe.Pointer
}

func loadLibrary(path string) (native, error) {
	// dlerror state is per thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	C.cheetah_dlclear()
	handle := C.cheetah_dlopen(cPath)
	if handle == nil {
		return nil, &LibraryLoadError{Path: path, Err: loaderError()}
	}

	t := &symbolTable{path: path, handle: handle}
	symbols := []struct {
		name string
		dst  *unsafe.Pointer
	}{
		{symInit, &t.initFn},
		{symProcess, &t.processFn},
		{symFlush, &t.flushFn},
		{symDelete, &t.deleteFn},
		{symTranscriptDelete, &t.transcriptDeleteFn},
		{symVersion, &t.versionFn},
		{symFrameLength, &t.frameLengthFn},
		{symSampleRate, &t.sampleRateFn},
		{symSetSDK, &t.setSDKFn},
		{symGetErrorStack, &t.getErrorStackFn},
		{symFreeErrorStack, &t.freeErrorStackFn},
	}
	for _, sym := range symbols {
		ptr, err := resolveSymbol(handle, sym.name)
		if err != nil {
			C.cheetah_dlclose(handle)
			return nil, &LibraryLoadError{Path: path, Symbol: sym.name, Err: err}
		}
		*sym.dst = ptr
	}
	return t, nil
}

func resolveSymbol(handle unsafe.Pointer, name string) (unsafe.Pointer, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	C.cheetah_dlclear()
	ptr := C.cheetah_dlsym(handle, cName)
	if ptr == nil {
		return nil, loaderError()
	}
	return ptr, nil
}

func loaderError() error {
	if msg := C.cheetah_dlerror(); msg != nil {
		return errors.New(C.GoString(msg))
	}
	return errors.New("unknown loader error")
}

func (t *symbolTable) setSDK(tag string) {
	cTag := C.CString(tag)
	defer C.free(unsafe.Pointer(cTag))
	C.cheetah_call_set_sdk(t.setSDKFn, cTag)
}

func (t *symbolTable) init(accessKey, modelPath string, endpointDuration float32, punctuation bool) (instance, Status) {
	cKey := C.CString(accessKey)
	defer C.free(unsafe.Pointer(cKey))
	cModel := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cModel))

	var obj unsafe.Pointer
	status := C.cheetah_call_init(t.initFn, cKey, cModel, C.float(endpointDuration), C.bool(punctuation), &obj)
	return instance(obj), Status(status)
}

func (t *symbolTable) process(h instance, pcm []int16) (string, bool, Status) {
	var (
		transcript *C.char
		isEndpoint C.bool
	)
	status := Status(C.cheetah_call_process(
		t.processFn,
		unsafe.Pointer(h),
		(*C.int16_t)(unsafe.Pointer(&pcm[0])),
		&transcript,
		&isEndpoint,
	))
	if status != StatusSuccess {
		return "", false, status
	}
	return t.takeTranscript(transcript), bool(isEndpoint), status
}

func (t *symbolTable) flush(h instance) (string, Status) {
	var transcript *C.char
	status := Status(C.cheetah_call_flush(t.flushFn, unsafe.Pointer(h), &transcript))
	if status != StatusSuccess {
		return "", status
	}
	return t.takeTranscript(transcript), status
}

// takeTranscript copies a native-allocated transcript and hands the allocation back
// to the library.
func (t *symbolTable) takeTranscript(p *C.char) string {
	if p == nil {
		return ""
	}
	text := C.GoString(p)
	C.cheetah_call_transcript_delete(t.transcriptDeleteFn, p)
	return text
}

func (t *symbolTable) delete(h instance) {
	C.cheetah_call_delete(t.deleteFn, unsafe.Pointer(h))
}

func (t *symbolTable) frameLength() int32 {
	return int32(C.cheetah_call_int(t.frameLengthFn))
}

func (t *symbolTable) sampleRate() int32 {
	return int32(C.cheetah_call_int(t.sampleRateFn))
}

func (t *symbolTable) version() string {
	v := C.cheetah_call_version(t.versionFn)
	if v == nil {
		return ""
	}
	return C.GoString(v)
}

func (t *symbolTable) errorStack() ([]string, Status) {
	var (
		messages **C.char
		depth    C.int32_t
	)
	status := Status(C.cheetah_call_get_error_stack(t.getErrorStackFn, &messages, &depth))
	if status != StatusSuccess {
		return nil, status
	}
	if messages == nil {
		return nil, status
	}
	defer C.cheetah_call_free_error_stack(t.freeErrorStackFn, messages)

	n := int(depth)
	if n <= 0 {
		return nil, status
	}
	entries := unsafe.Slice(messages, n)
	stack := make([]string, n)
	for i, msg := range entries {
		if msg != nil {
			stack[i] = C.GoString(msg)
		}
	}
	return stack, status
}

func (t *symbolTable) close() error {
	if t.handle == nil {
		return nil
	}
	rc := C.cheetah_dlclose(t.handle)
	t.handle = nil
	if rc != 0 {
		return fmt.Errorf("cheetah: unload library %s", t.path)
	}
	return nil
}
