package transcribe

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/gocheetah/internal/audio"
	"github.com/obiente/translate/gocheetah/pkg/cheetah"
)

// Engine is the streaming surface of a speech-to-text engine. *cheetah.Cheetah satisfies it.
type Engine interface {
	Process(pcm []int16) (cheetah.Transcript, error)
	Flush() (cheetah.Transcript, error)
	FrameLength() int
	SampleRate() int
}

// Segment is one non-empty piece of transcript, or an endpoint marker.
type Segment struct {
	Text       string
	IsEndpoint bool
	// Final marks text returned by a flush.
	Final bool
}

type Option func(*Session)

// WithFlushOnEndpoint flushes the engine every time it reports an endpoint.
func WithFlushOnEndpoint(enabled bool) Option {
	return func(s *Session) { s.flushOnEndpoint = enabled }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// Session feeds audio of any chunk size into an engine one exact frame at a time.
// A Session is not safe for concurrent use.
type Session struct {
	eng             Engine
	framer          *audio.Framer
	flushOnEndpoint bool
	log             zerolog.Logger
	frames          int
}

func NewSession(eng Engine, opts ...Option) *Session {
	s := &Session{
		eng:    eng,
		framer: audio.NewFramer(eng.FrameLength()),
		log:    log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write buffers samples and processes every completed frame in order. It stops
// between frames when ctx is done; samples of unprocessed frames are dropped.
func (s *Session) Write(ctx context.Context, samples []int16) ([]Segment, error) {
	var out []Segment
	for _, frame := range s.framer.Push(samples) {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		segs, err := s.process(frame)
		out = append(out, segs...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// Finish pads the trailing partial frame with silence, processes it and flushes the
// engine. The flush result is always returned, marked Final.
func (s *Session) Finish(ctx context.Context) ([]Segment, error) {
	var out []Segment
	if frame := s.framer.Drain(); frame != nil {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		segs, err := s.process(frame)
		out = append(out, segs...)
		if err != nil {
			return out, err
		}
	}
	seg, err := s.flush()
	if err != nil {
		return out, err
	}
	s.log.Debug().Int("frames", s.frames).Msg("session finished")
	return append(out, seg), nil
}

// Frames is the number of frames processed so far.
func (s *Session) Frames() int { return s.frames }

func (s *Session) process(frame []int16) ([]Segment, error) {
	tr, err := s.eng.Process(frame)
	if err != nil {
		return nil, fmt.Errorf("process frame %d: %w", s.frames, err)
	}
	s.frames++

	var out []Segment
	if tr.Text != "" || tr.IsEndpoint {
		out = append(out, Segment{Text: tr.Text, IsEndpoint: tr.IsEndpoint})
	}
	if tr.IsEndpoint && s.flushOnEndpoint {
		seg, err := s.flush()
		if err != nil {
			return out, err
		}
		out = append(out, seg)
	}
	return out, nil
}

func (s *Session) flush() (Segment, error) {
	tr, err := s.eng.Flush()
	if err != nil {
		return Segment{}, fmt.Errorf("flush: %w", err)
	}
	return Segment{Text: tr.Text, Final: true}, nil
}
