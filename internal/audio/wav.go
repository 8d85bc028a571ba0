package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// DecodeWAV decodes a mono 16-bit PCM WAV stream into samples and returns its sample rate.
func DecodeWAV(r io.ReadSeeker) ([]int16, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, 0, fmt.Errorf("wav format %d is not linear PCM", dec.WavAudioFormat)
	}
	if dec.NumChans != 1 {
		return nil, 0, fmt.Errorf("wav has %d channels, want mono", dec.NumChans)
	}
	if dec.BitDepth != 16 {
		return nil, 0, fmt.Errorf("wav has %d-bit samples, want 16-bit", dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, 0, err
	}
	if buf == nil {
		return nil, 0, errors.New("empty wav buffer")
	}

	out := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = int16(v)
	}
	sr := int(dec.SampleRate)
	if sr == 0 && buf.Format != nil {
		sr = buf.Format.SampleRate
	}
	return out, sr, nil
}

// DecodeWAVBytes decodes a WAV blob held in memory.
func DecodeWAVBytes(b []byte) ([]int16, int, error) {
	return DecodeWAV(bytes.NewReader(b))
}

// DecodePCM16LE converts raw little-endian PCM16 bytes into samples.
func DecodePCM16LE(b []byte) ([]int16, error) {
	if len(b)%2 != 0 {
		return nil, errors.New("pcm16 length must be even")
	}
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out, nil
}
