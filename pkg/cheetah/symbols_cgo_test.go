//go:build cgo

package cheetah

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// buildStub compiles testdata/stub into a shared library and returns its path.
func buildStub(t *testing.T, defines ...string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub library is built with a unix toolchain")
	}
	cc := "cc"
	if fields := strings.Fields(os.Getenv("CC")); len(fields) > 0 {
		cc = fields[0]
	}
	ccPath, err := exec.LookPath(cc)
	if err != nil {
		t.Skipf("no C compiler: %v", err)
	}

	out := filepath.Join(t.TempDir(), "libpv_cheetah_stub.so")
	args := []string{"-shared", "-fPIC", "-o", out}
	for _, d := range defines {
		args = append(args, "-D"+d)
	}
	args = append(args, filepath.Join("testdata", "stub", "pv_cheetah_stub.c"))
	if b, err := exec.Command(ccPath, args...).CombinedOutput(); err != nil {
		t.Fatalf("build stub: %v\n%s", err, b)
	}
	return out
}

// traceStub points the stub at a fresh trace file and returns a reader of event counts.
func traceStub(t *testing.T) func() map[string]int {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.log")
	t.Setenv("CHEETAH_STUB_TRACE", path)
	return func() map[string]int {
		counts := map[string]int{}
		b, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return counts
		}
		if err != nil {
			t.Fatal(err)
		}
		for _, line := range strings.Fields(string(b)) {
			counts[line]++
		}
		return counts
	}
}

func stubBuilder(t *testing.T, library string) *Builder {
	t.Helper()
	model := filepath.Join(t.TempDir(), "cheetah_params.pv")
	if err := os.WriteFile(model, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewBuilder().
		AccessKey("stub-key").
		ModelPath(model).
		LibraryPath(library).
		Logger(zerolog.Nop())
}

func stubFrame(first int16) []int16 {
	return []int16{first, 0, 0, 0}
}

func TestLoadLibraryNamesMissingSymbol(t *testing.T) {
	library := buildStub(t, "STUB_OMIT_SET_SDK")

	_, err := loadLibrary(library)
	var loadErr *LibraryLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LibraryLoadError, got %v", err)
	}
	if loadErr.Symbol != symSetSDK || loadErr.Path != library {
		t.Fatalf("symbol = %q, path = %q", loadErr.Symbol, loadErr.Path)
	}
	if loadErr.Err == nil || !strings.Contains(err.Error(), symSetSDK) {
		t.Fatalf("missing loader diagnostic: %v", err)
	}
}

func TestLoadLibraryMissingFile(t *testing.T) {
	_, err := loadLibrary(filepath.Join(t.TempDir(), "libnothing.so"))
	var loadErr *LibraryLoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LibraryLoadError, got %v", err)
	}
	if loadErr.Symbol != "" || loadErr.Err == nil {
		t.Fatalf("unexpected error %+v", loadErr)
	}
}

func TestStubTranscriptsAreReleased(t *testing.T) {
	library := buildStub(t)
	events := traceStub(t)

	c, err := stubBuilder(t, library).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.FrameLength() != 4 || c.SampleRate() != 16000 || c.Version() != "0.0.0-stub" {
		t.Fatalf("properties = %d %d %q", c.FrameLength(), c.SampleRate(), c.Version())
	}

	tr, err := c.Process(stubFrame(0))
	if err != nil || tr.Text != "hello" || tr.IsEndpoint {
		t.Fatalf("process = %+v, %v", tr, err)
	}
	tr, err = c.Process(stubFrame(3))
	if err != nil || tr.Text != "" || !tr.IsEndpoint {
		t.Fatalf("endpoint = %+v, %v", tr, err)
	}
	_, err = c.Process(stubFrame(1))
	var rtErr *RuntimeError
	if !errors.As(err, &rtErr) {
		t.Fatalf("expected RuntimeError for invalid text, got %v", err)
	}
	tr, err = c.Flush()
	if err != nil || tr.Text != "" || tr.IsEndpoint {
		t.Fatalf("flush = %+v, %v", tr, err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := events()
	if got["transcript_alloc"] != 4 || got["transcript_delete"] != 4 {
		t.Fatalf("transcripts allocated %d, released %d", got["transcript_alloc"], got["transcript_delete"])
	}
	if got["set_sdk"] != 1 || got["init"] != 1 || got["delete"] != 1 {
		t.Fatalf("lifecycle events = %v", got)
	}
}

func TestStubErrorStackKeptInFull(t *testing.T) {
	library := buildStub(t)
	events := traceStub(t)

	c, err := stubBuilder(t, library).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	_, err = c.Process(stubFrame(2))
	var libErr *LibraryError
	if !errors.As(err, &libErr) {
		t.Fatalf("expected LibraryError, got %v", err)
	}
	if libErr.Status != StatusInvalidState || libErr.Call != symProcess {
		t.Fatalf("unexpected error %+v", libErr)
	}
	if len(libErr.MessageStack) != 10 {
		t.Fatalf("stack depth = %d", len(libErr.MessageStack))
	}
	if libErr.MessageStack[0] != "m0" || libErr.MessageStack[9] != "m9" {
		t.Fatalf("stack = %q", libErr.MessageStack)
	}
	if libErr.MessageStack[3] != "\uFFFD3" {
		t.Fatalf("invalid entry = %q", libErr.MessageStack[3])
	}

	got := events()
	if got["get_error_stack"] != 1 || got["free_error_stack"] != 1 {
		t.Fatalf("error stack fetched %d, freed %d", got["get_error_stack"], got["free_error_stack"])
	}
	if got["transcript_alloc"] != 0 || got["transcript_delete"] != 0 {
		t.Fatalf("failed process touched transcripts: %v", got)
	}
}

func TestStubInitFailure(t *testing.T) {
	library := buildStub(t)
	events := traceStub(t)

	_, err := stubBuilder(t, library).AccessKey("invalid").Build()
	var libErr *LibraryError
	if !errors.As(err, &libErr) {
		t.Fatalf("expected LibraryError, got %v", err)
	}
	if libErr.Call != symInit || len(libErr.MessageStack) != 10 {
		t.Fatalf("unexpected error %+v", libErr)
	}
	if !errors.Is(err, ErrActivation) {
		t.Fatalf("expected ErrActivation match")
	}
	if !strings.HasPrefix(err.Error(), "cheetah: pv_cheetah_init failed: ACTIVATION_ERROR:\n  [0] m0") {
		t.Fatalf("message = %q", err.Error())
	}

	got := events()
	if got["init"] != 0 || got["delete"] != 0 {
		t.Fatalf("instance lifecycle on failed init: %v", got)
	}
	if got["free_error_stack"] != 1 {
		t.Fatalf("error stack freed %d times", got["free_error_stack"])
	}
}
