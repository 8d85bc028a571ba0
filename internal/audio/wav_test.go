package audio

import (
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, rate, bitDepth, chans int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, bitDepth, chans, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: chans, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDecodeWAV(t *testing.T) {
	path := writeWAV(t, 16000, 16, 1, []int{0, 1, -1, 32767, -32768, 1234})

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	samples, rate, err := DecodeWAV(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rate != 16000 {
		t.Fatalf("rate = %d", rate)
	}
	want := []int16{0, 1, -1, 32767, -32768, 1234}
	if len(samples) != len(want) {
		t.Fatalf("got %d samples", len(samples))
	}
	for i := range want {
		if samples[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, samples[i], want[i])
		}
	}
}

func TestDecodeWAVRejectsStereo(t *testing.T) {
	b, err := os.ReadFile(writeWAV(t, 16000, 16, 2, []int{1, 2, 3, 4}))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := DecodeWAVBytes(b); err == nil {
		t.Fatal("expected stereo to be rejected")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAVBytes([]byte("definitely not a wav")); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodePCM16LE(t *testing.T) {
	samples, err := DecodePCM16LE([]byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80})
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 3 || samples[0] != 1 || samples[1] != -1 || samples[2] != -32768 {
		t.Fatalf("samples = %v", samples)
	}
	if _, err := DecodePCM16LE([]byte{0x01}); err == nil {
		t.Fatal("expected odd length error")
	}
}
