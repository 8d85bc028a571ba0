package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/gocheetah/internal/audio"
	"github.com/obiente/translate/gocheetah/internal/transcribe"
)

const readTimeout = 60 * time.Second

// Engine is one engine instance owned by a single connection.
type Engine interface {
	transcribe.Engine
	Version() string
	Close() error
}

// EngineFactory creates the engine for a new connection.
type EngineFactory func() (Engine, error)

type Server struct {
	upgrader        websocket.Upgrader
	newEngine       EngineFactory
	maxSessions     int
	flushOnEndpoint bool

	active atomic.Int64
	mu     sync.Mutex
	conns  map[*websocket.Conn]string
}

type Option func(*Server)

// WithFlushOnEndpoint flushes each session's engine whenever it reports an endpoint.
func WithFlushOnEndpoint(enabled bool) Option {
	return func(s *Server) { s.flushOnEndpoint = enabled }
}

// NewServer returns a streaming server. maxSessions <= 0 means unlimited.
func NewServer(newEngine EngineFactory, maxSessions int, opts ...Option) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024 * 16,
			WriteBufferSize: 1024 * 16,
		},
		newEngine:   newEngine,
		maxSessions: maxSessions,
		conns:       make(map[*websocket.Conn]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Active is the number of connections currently holding a session slot.
func (s *Server) Active() int { return int(s.active.Load()) }

type clientMessage struct {
	Type       string `json:"type"`
	Data       string `json:"data,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Ts         any    `json:"ts,omitempty"`
}

// session is the per-connection state of Handle.
type session struct {
	id     string
	conn   *websocket.Conn
	log    zerolog.Logger
	engine Engine
	stream *transcribe.Session
	seq    int
}

func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	if n := s.active.Add(1); s.maxSessions > 0 && n > int64(s.maxSessions) {
		s.active.Add(-1)
		log.Warn().Int("max_sessions", s.maxSessions).Msg("ws session rejected")
		_ = conn.WriteJSON(map[string]any{"type": "error", "detail": "too many sessions"})
		return
	}
	defer s.active.Add(-1)

	sess := &session{id: xid.New().String(), conn: conn}
	sess.log = log.With().Str("session", sess.id).Logger()
	s.track(conn, sess.id)
	defer s.untrack(conn)
	defer sess.close()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(readTimeout)); return nil })

	sess.log.Info().Str("remote", r.RemoteAddr).Msg("ws session opened")
	ctx := r.Context()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.log.Info().Msg("ws session closed")
			} else {
				sess.log.Warn().Err(err).Msg("ws read error")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		if mt != websocket.TextMessage {
			continue
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = conn.WriteJSON(map[string]any{"type": "error", "detail": "invalid json"})
			continue
		}

		switch msg.Type {
		case "ping":
			_ = conn.WriteJSON(map[string]any{"type": "pong", "ts": msg.Ts})
		case "start":
			if !s.ensureEngine(sess) {
				continue
			}
			_ = conn.WriteJSON(map[string]any{
				"type":         "started",
				"session_id":   sess.id,
				"frame_length": sess.engine.FrameLength(),
				"sample_rate":  sess.engine.SampleRate(),
				"version":      sess.engine.Version(),
			})
		case "chunk":
			if msg.Data == "" {
				continue
			}
			if !s.ensureEngine(sess) {
				continue
			}
			pcm, err := decodeChunk(msg, sess.engine.SampleRate())
			if err != nil {
				sess.log.Warn().Err(err).Msg("audio decode failed")
				_ = conn.WriteJSON(map[string]any{"type": "error", "detail": "decode audio failed"})
				continue
			}
			segs, err := sess.stream.Write(ctx, pcm)
			sess.send(segs)
			if err != nil {
				sess.log.Error().Err(err).Msg("process failed")
				_ = conn.WriteJSON(map[string]any{"type": "error", "detail": "process audio failed"})
			}
		case "flush":
			if sess.stream == nil {
				_ = conn.WriteJSON(map[string]any{"type": "flushed"})
				continue
			}
			if err := sess.finish(ctx); err != nil {
				_ = conn.WriteJSON(map[string]any{"type": "error", "detail": "flush failed"})
				continue
			}
			_ = conn.WriteJSON(map[string]any{"type": "flushed"})
		case "stop":
			if sess.stream != nil {
				if err := sess.finish(ctx); err != nil {
					_ = conn.WriteJSON(map[string]any{"type": "error", "detail": "flush failed"})
				}
			}
			_ = conn.WriteJSON(map[string]any{"type": "stopped"})
			return
		default:
			_ = conn.WriteJSON(map[string]any{"type": "error", "detail": "unknown message type"})
		}
	}
}

// ensureEngine creates the session's engine on first use. It reports the failure to
// the client and returns false when the engine cannot be created.
func (s *Server) ensureEngine(sess *session) bool {
	if sess.engine != nil {
		return true
	}
	eng, err := s.newEngine()
	if err != nil {
		sess.log.Error().Err(err).Msg("engine init failed")
		_ = sess.conn.WriteJSON(map[string]any{"type": "error", "detail": "engine init failed"})
		return false
	}
	sess.engine = eng
	sess.stream = transcribe.NewSession(eng,
		transcribe.WithFlushOnEndpoint(s.flushOnEndpoint),
		transcribe.WithLogger(sess.log),
	)
	sess.log.Debug().
		Str("version", eng.Version()).
		Int("frame_length", eng.FrameLength()).
		Int("sample_rate", eng.SampleRate()).
		Msg("engine initialized")
	return true
}

func (sess *session) finish(ctx context.Context) error {
	segs, err := sess.stream.Finish(ctx)
	sess.send(segs)
	if err != nil {
		sess.log.Error().Err(err).Msg("flush failed")
	}
	return err
}

func (sess *session) send(segs []transcribe.Segment) {
	for _, seg := range segs {
		sess.seq++
		payload := map[string]any{
			"type":       "transcript",
			"text":       seg.Text,
			"isEndpoint": seg.IsEndpoint,
			"isFinal":    seg.Final,
			"sequence":   sess.seq,
		}
		if err := sess.conn.WriteJSON(payload); err != nil {
			sess.log.Warn().Err(err).Msg("failed to send transcript")
			return
		}
	}
}

func (sess *session) close() {
	if sess.engine == nil {
		return
	}
	if err := sess.engine.Close(); err != nil {
		sess.log.Warn().Err(err).Msg("engine close failed")
	}
	sess.engine = nil
}

func decodeChunk(msg clientMessage, rate int) ([]int16, error) {
	raw, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio: %w", err)
	}
	switch msg.MimeType {
	case "", "audio/pcm", "audio/L16", "audio/pcm16":
		if msg.SampleRate != 0 && msg.SampleRate != rate {
			return nil, fmt.Errorf("pcm sample rate %d, engine requires %d", msg.SampleRate, rate)
		}
		return audio.DecodePCM16LE(raw)
	case "audio/wav", "audio/wave", "audio/x-wav":
		pcm, sr, err := audio.DecodeWAVBytes(raw)
		if err != nil {
			return nil, err
		}
		if sr != rate {
			return nil, fmt.Errorf("wav sample rate %d, engine requires %d", sr, rate)
		}
		return pcm, nil
	default:
		return nil, fmt.Errorf("unsupported mime type %q", msg.MimeType)
	}
}

func (s *Server) track(c *websocket.Conn, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = id
}

func (s *Server) untrack(c *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

// CloseAll asks every open connection to close. Handlers release their engines as
// their read loops exit.
func (s *Server) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for c, id := range s.conns {
		if err := c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
			log.Debug().Err(err).Str("session", id).Msg("close message failed")
		}
	}
}
