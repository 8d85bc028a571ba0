package cheetah

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/rs/zerolog"
)

var fakeHandle = instance(unsafe.Pointer(new(int64)))

type fakeResult struct {
	text       string
	isEndpoint bool
}

// fakeNative stands in for a loaded library and records how it is driven.
type fakeNative struct {
	mu sync.Mutex

	sdk         string
	initArgs    []any
	initStatus  Status
	initHandle  instance
	frameLen    int32
	rate        int32
	ver         string
	results     []fakeResult
	procStatus  Status
	flushText   string
	flushStatus Status
	stack       []string
	stackStatus Status

	processCalls int
	flushCalls   int
	deletes      int
	deleted      instance
	closes       int
	stackCalls   int

	inFlight   atomic.Int32
	overlapped atomic.Bool
}

func newFakeNative() *fakeNative {
	return &fakeNative{
		initHandle: fakeHandle,
		frameLen:   512,
		rate:       16000,
		ver:        "2.0.0",
	}
}

func (f *fakeNative) enter() func() {
	if f.inFlight.Add(1) > 1 {
		f.overlapped.Store(true)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeNative) setSDK(tag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sdk = tag
}

func (f *fakeNative) init(accessKey, modelPath string, endpointDuration float32, punctuation bool) (instance, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initArgs = []any{accessKey, modelPath, endpointDuration, punctuation}
	if f.initStatus != StatusSuccess {
		return nil, f.initStatus
	}
	return f.initHandle, StatusSuccess
}

func (f *fakeNative) process(h instance, pcm []int16) (string, bool, Status) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processCalls++
	if f.procStatus != StatusSuccess {
		return "", false, f.procStatus
	}
	if len(f.results) == 0 {
		return "", false, StatusSuccess
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.text, r.isEndpoint, StatusSuccess
}

func (f *fakeNative) flush(h instance) (string, Status) {
	defer f.enter()()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCalls++
	if f.flushStatus != StatusSuccess {
		return "", f.flushStatus
	}
	return f.flushText, StatusSuccess
}

func (f *fakeNative) delete(h instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	f.deleted = h
}

func (f *fakeNative) frameLength() int32 { return f.frameLen }
func (f *fakeNative) sampleRate() int32  { return f.rate }
func (f *fakeNative) version() string    { return f.ver }

func (f *fakeNative) errorStack() ([]string, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stackCalls++
	if f.stackStatus != StatusSuccess {
		return nil, f.stackStatus
	}
	return append([]string(nil), f.stack...), StatusSuccess
}

func (f *fakeNative) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeNative) counts() (process, deletes, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processCalls, f.deletes, f.closes
}

// testBuilder returns a builder whose paths exist and whose loader hands out lib.
func testBuilder(t *testing.T, lib *fakeNative) (*Builder, *int) {
	t.Helper()
	dir := t.TempDir()
	model := filepath.Join(dir, "cheetah_params.pv")
	library := filepath.Join(dir, "libpv_cheetah.so")
	for _, p := range []string{model, library} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	loads := 0
	b := NewBuilder().
		AccessKey("test-access-key").
		ModelPath(model).
		LibraryPath(library).
		Logger(zerolog.Nop())
	b.load = func(path string) (native, error) {
		loads++
		return lib, nil
	}
	return b, &loads
}

func mustBuild(t *testing.T, lib *fakeNative) *Cheetah {
	t.Helper()
	b, _ := testBuilder(t, lib)
	c, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}
