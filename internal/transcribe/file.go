package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/obiente/translate/gocheetah/internal/audio"
)

// File transcribes a mono 16-bit WAV file recorded at the engine's sample rate.
func File(ctx context.Context, eng Engine, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pcm, rate, err := audio.DecodeWAV(f)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	if rate != eng.SampleRate() {
		return "", fmt.Errorf("%s is %d Hz, engine requires %d Hz", path, rate, eng.SampleRate())
	}

	s := NewSession(eng)
	var sb strings.Builder
	segs, err := s.Write(ctx, pcm)
	if err != nil {
		return "", err
	}
	for _, seg := range segs {
		sb.WriteString(seg.Text)
	}
	segs, err = s.Finish(ctx)
	if err != nil {
		return "", err
	}
	for _, seg := range segs {
		sb.WriteString(seg.Text)
	}
	return sb.String(), nil
}
