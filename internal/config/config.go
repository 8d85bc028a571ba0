package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/obiente/translate/gocheetah/pkg/cheetah"
)

type Config struct {
	Addr     string
	LogLevel string

	AccessKey                  string
	ModelPath                  string
	LibraryPath                string
	ResourceDir                string
	EndpointDuration           float32
	EnableAutomaticPunctuation bool

	MaxSessions     int
	FlushOnEndpoint bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "0", "false", "no", "off", "False", "FALSE":
			return false
		default:
			return true
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return def
}

// Load reads an optional .env file from the working directory, then the environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	return Config{
		Addr:                       getenv("CHEETAH_ADDR", ":8080"),
		LogLevel:                   getenv("LOG_LEVEL", "info"),
		AccessKey:                  os.Getenv("CHEETAH_ACCESS_KEY"),
		ModelPath:                  os.Getenv("CHEETAH_MODEL_PATH"),
		LibraryPath:                os.Getenv("CHEETAH_LIBRARY_PATH"),
		ResourceDir:                getenv("CHEETAH_RESOURCE_DIR", cheetah.DefaultResourceDir),
		EndpointDuration:           getenvFloat("CHEETAH_ENDPOINT_DURATION", cheetah.DefaultEndpointDuration),
		EnableAutomaticPunctuation: getenvBool("CHEETAH_ENABLE_PUNCTUATION", false),
		MaxSessions:                getenvInt("CHEETAH_MAX_SESSIONS", 8),
		FlushOnEndpoint:            getenvBool("CHEETAH_FLUSH_ON_ENDPOINT", false),
	}, nil
}

// Builder returns an engine builder carrying the engine settings of c.
func (c Config) Builder() *cheetah.Builder {
	return cheetah.NewBuilder().
		AccessKey(c.AccessKey).
		ModelPath(c.ModelPath).
		LibraryPath(c.LibraryPath).
		ResourceDir(c.ResourceDir).
		EndpointDuration(c.EndpointDuration).
		EnableAutomaticPunctuation(c.EnableAutomaticPunctuation)
}
