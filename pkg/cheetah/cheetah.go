package cheetah

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Transcript is the text produced by one Process or Flush call.
type Transcript struct {
	Text string
	// IsEndpoint is set when the engine detected the end of an utterance. Always false
	// for Flush results.
	IsEndpoint bool
}

// Cheetah is one owner of a native engine instance. Additional owners are created with
// Share; the instance is deleted and the library unloaded when the last owner closes.
//
// Calls on the same instance are serialized. Frames must be submitted in capture order.
type Cheetah struct {
	core   *engineCore
	closed atomic.Bool
}

// engineCore holds the native instance shared by every owner.
type engineCore struct {
	mu       sync.Mutex
	lib      native
	handle   instance
	refs     int
	released bool

	frameLength int
	sampleRate  int
	version     string

	log zerolog.Logger
}

// newCheetah initializes an instance on lib. It takes ownership of lib: on failure the
// library is unloaded before returning.
func newCheetah(lib native, cfg Config, sdk string, log zerolog.Logger) (_ *Cheetah, err error) {
	core := &engineCore{lib: lib, log: log}
	defer func() {
		if err != nil {
			_ = core.release()
		}
	}()

	// The error stack belongs to the thread that made the failing call.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	lib.setSDK(sdk)

	h, status := lib.init(cfg.AccessKey, cfg.ModelPath, cfg.EndpointDuration, cfg.EnableAutomaticPunctuation)
	if status != StatusSuccess {
		return nil, libraryError(lib, symInit, status)
	}
	if h == nil {
		return nil, &RuntimeError{Op: symInit, Message: "library returned a null instance"}
	}
	core.handle = h

	core.frameLength = int(lib.frameLength())
	if core.frameLength <= 0 {
		return nil, &RuntimeError{Op: symFrameLength, Message: "frame length must be positive"}
	}
	core.sampleRate = int(lib.sampleRate())
	if core.sampleRate <= 0 {
		return nil, &RuntimeError{Op: symSampleRate, Message: "sample rate must be positive"}
	}
	core.version = lib.version()
	if !printable(core.version) {
		return nil, &RuntimeError{Op: symVersion, Message: "version is empty or not printable text"}
	}

	core.refs = 1
	c := &Cheetah{core: core}
	runtime.SetFinalizer(c, (*Cheetah).finalize)

	log.Info().
		Str("version", core.version).
		Int("frame_length", core.frameLength).
		Int("sample_rate", core.sampleRate).
		Float32("endpoint_duration", cfg.EndpointDuration).
		Bool("punctuation", cfg.EnableAutomaticPunctuation).
		Msg("cheetah engine ready")
	return c, nil
}

// Process transcribes one frame of exactly FrameLength samples.
func (c *Cheetah) Process(pcm []int16) (Transcript, error) {
	defer runtime.KeepAlive(c)
	if c.closed.Load() {
		return Transcript{}, ErrClosed
	}
	core := c.core
	if len(pcm) != core.frameLength {
		return Transcript{}, &FrameLengthError{Got: len(pcm), Want: core.frameLength}
	}

	core.mu.Lock()
	defer core.mu.Unlock()
	if core.released {
		return Transcript{}, ErrClosed
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	text, isEndpoint, status := core.lib.process(core.handle, pcm)
	if status != StatusSuccess {
		return Transcript{}, libraryError(core.lib, symProcess, status)
	}
	if !utf8.ValidString(text) {
		return Transcript{}, &RuntimeError{Op: symProcess, Message: "transcript is not valid UTF-8"}
	}
	if text != "" || isEndpoint {
		core.log.Debug().Str("text", text).Bool("endpoint", isEndpoint).Msg("process")
	}
	return Transcript{Text: text, IsEndpoint: isEndpoint}, nil
}

// Flush finalizes the utterance in progress and returns its remaining text.
func (c *Cheetah) Flush() (Transcript, error) {
	defer runtime.KeepAlive(c)
	if c.closed.Load() {
		return Transcript{}, ErrClosed
	}
	core := c.core

	core.mu.Lock()
	defer core.mu.Unlock()
	if core.released {
		return Transcript{}, ErrClosed
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	text, status := core.lib.flush(core.handle)
	if status != StatusSuccess {
		return Transcript{}, libraryError(core.lib, symFlush, status)
	}
	if !utf8.ValidString(text) {
		return Transcript{}, &RuntimeError{Op: symFlush, Message: "transcript is not valid UTF-8"}
	}
	core.log.Debug().Str("text", text).Msg("flush")
	return Transcript{Text: text}, nil
}

// FrameLength is the number of samples Process requires.
func (c *Cheetah) FrameLength() int { return c.core.frameLength }

// SampleRate is the audio sample rate in Hz the engine expects.
func (c *Cheetah) SampleRate() int { return c.core.sampleRate }

func (c *Cheetah) Version() string { return c.core.version }

// Share returns a new owner of the same instance. Each owner must be closed.
func (c *Cheetah) Share() (*Cheetah, error) {
	defer runtime.KeepAlive(c)
	if c.closed.Load() {
		return nil, ErrClosed
	}
	core := c.core

	core.mu.Lock()
	defer core.mu.Unlock()
	if core.released {
		return nil, ErrClosed
	}
	core.refs++

	s := &Cheetah{core: core}
	runtime.SetFinalizer(s, (*Cheetah).finalize)
	return s, nil
}

// Close releases this owner. The native instance is deleted when the last owner closes.
// Closing an owner twice is a no-op.
func (c *Cheetah) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	runtime.SetFinalizer(c, nil)
	return c.core.drop()
}

func (c *Cheetah) finalize() {
	c.core.log.Warn().Msg("cheetah engine reclaimed without Close")
	_ = c.Close()
}

func (e *engineCore) drop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refs--
	if e.refs > 0 {
		return nil
	}
	return e.release()
}

// release deletes the instance, if one was created, and unloads the library. It runs
// at most once. Callers hold mu or are the only reference to e.
func (e *engineCore) release() error {
	if e.released {
		return nil
	}
	e.released = true

	if e.handle != nil {
		e.lib.delete(e.handle)
		e.handle = nil
	}
	if err := e.lib.close(); err != nil {
		e.log.Warn().Err(err).Msg("cheetah library unload failed")
		return err
	}
	e.log.Debug().Msg("cheetah engine released")
	return nil
}

func printable(s string) bool {
	return s != "" && utf8.ValidString(s) &&
		strings.IndexFunc(s, func(r rune) bool { return !unicode.IsPrint(r) }) < 0
}
