package cheetah

import (
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultEndpointDuration is the trailing silence, in seconds, that marks an endpoint.
	DefaultEndpointDuration float32 = 1.0

	defaultSDK = "go"
)

// Config is a validated engine configuration. Paths are resolved and known to exist.
type Config struct {
	AccessKey                  string
	ModelPath                  string
	LibraryPath                string
	EndpointDuration           float32
	EnableAutomaticPunctuation bool
}

// Builder accumulates engine settings and validates them before anything is loaded.
type Builder struct {
	accessKey        string
	modelPath        string
	libraryPath      string
	resourceDir      string
	endpointDuration float32
	punctuation      bool
	sdk              string
	logger           *zerolog.Logger

	load     loaderFunc
	platform func() (Platform, error)
}

func NewBuilder() *Builder {
	return &Builder{
		resourceDir:      DefaultResourceDir,
		endpointDuration: DefaultEndpointDuration,
		sdk:              defaultSDK,
		load:             loadLibrary,
		platform:         CurrentPlatform,
	}
}

func (b *Builder) AccessKey(key string) *Builder {
	b.accessKey = key
	return b
}

// ModelPath overrides the model file. Defaults to the model under the resource directory.
func (b *Builder) ModelPath(path string) *Builder {
	b.modelPath = path
	return b
}

// LibraryPath overrides the shared library. Defaults to the pre-built library for the
// current platform under the resource directory.
func (b *Builder) LibraryPath(path string) *Builder {
	b.libraryPath = path
	return b
}

func (b *Builder) ResourceDir(dir string) *Builder {
	b.resourceDir = dir
	return b
}

// EndpointDuration sets the trailing silence in seconds. Zero disables endpoint detection.
func (b *Builder) EndpointDuration(seconds float32) *Builder {
	b.endpointDuration = seconds
	return b
}

func (b *Builder) EnableAutomaticPunctuation(enabled bool) *Builder {
	b.punctuation = enabled
	return b
}

// SDK sets the integration tag announced to the library.
func (b *Builder) SDK(tag string) *Builder {
	b.sdk = tag
	return b
}

func (b *Builder) Logger(l zerolog.Logger) *Builder {
	b.logger = &l
	return b
}

// Validate checks the settings in order and returns the resolved configuration. It
// never loads the library.
func (b *Builder) Validate() (Config, error) {
	if err := validateAccessKey(b.accessKey); err != nil {
		return Config{}, err
	}

	modelPath := b.modelPath
	if modelPath == "" {
		modelPath = ModelPath(b.resourceDir)
	}
	if err := validatePath("model path", modelPath); err != nil {
		return Config{}, err
	}

	libraryPath := b.libraryPath
	if libraryPath == "" {
		p, err := b.platform()
		if err != nil {
			return Config{}, &LibraryLoadError{Err: err}
		}
		libraryPath, err = LibraryPath(b.resourceDir, p)
		if err != nil {
			return Config{}, &LibraryLoadError{Err: err}
		}
	}
	if err := validatePath("library path", libraryPath); err != nil {
		return Config{}, err
	}

	// NaN fails this comparison too.
	if !(b.endpointDuration >= 0) {
		return Config{}, &ArgumentError{Field: "endpoint duration", Message: "must be a non-negative number of seconds"}
	}
	if strings.IndexByte(b.sdk, 0) >= 0 {
		return Config{}, &ArgumentError{Field: "sdk", Message: "contains a NUL byte"}
	}

	return Config{
		AccessKey:                  b.accessKey,
		ModelPath:                  modelPath,
		LibraryPath:                libraryPath,
		EndpointDuration:           b.endpointDuration,
		EnableAutomaticPunctuation: b.punctuation,
	}, nil
}

// Build validates the settings, loads the library and initializes one engine instance.
func (b *Builder) Build() (*Cheetah, error) {
	cfg, err := b.Validate()
	if err != nil {
		return nil, err
	}

	l := b.resolveLogger()
	lib, err := b.load(cfg.LibraryPath)
	if err != nil {
		return nil, err
	}
	l.Debug().Str("library", cfg.LibraryPath).Msg("cheetah library loaded")

	return newCheetah(lib, cfg, b.sdk, l)
}

func (b *Builder) resolveLogger() zerolog.Logger {
	if b.logger != nil {
		return *b.logger
	}
	return log.With().Str("component", "cheetah").Logger()
}

// New builds an engine from cfg. Empty paths fall back to the defaults under DefaultResourceDir.
func New(cfg Config) (*Cheetah, error) {
	return NewBuilder().
		AccessKey(cfg.AccessKey).
		ModelPath(cfg.ModelPath).
		LibraryPath(cfg.LibraryPath).
		EndpointDuration(cfg.EndpointDuration).
		EnableAutomaticPunctuation(cfg.EnableAutomaticPunctuation).
		Build()
}

func validateAccessKey(key string) error {
	switch {
	case key == "":
		return &ArgumentError{Field: "access key", Message: "must not be empty"}
	case !utf8.ValidString(key):
		return &ArgumentError{Field: "access key", Message: "is not valid UTF-8"}
	case strings.IndexByte(key, 0) >= 0:
		return &ArgumentError{Field: "access key", Message: "contains a NUL byte"}
	case strings.IndexFunc(key, func(r rune) bool { return !unicode.IsPrint(r) }) >= 0:
		return &ArgumentError{Field: "access key", Message: "contains non-printable characters"}
	}
	return nil
}

func validatePath(field, path string) error {
	if strings.IndexByte(path, 0) >= 0 {
		return &ArgumentError{Field: field, Message: "contains a NUL byte"}
	}
	if _, err := os.Stat(path); err != nil {
		return &ArgumentError{Field: field, Message: "`" + path + "` does not exist"}
	}
	return nil
}
