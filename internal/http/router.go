package http

import (
	"encoding/json"
	"net/http"

	"github.com/obiente/translate/gocheetah/internal/ws"
)

func NewRouter(wss *ws.Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "sessions": wss.Active()})
	})
	// Streaming transcription WebSocket
	mux.HandleFunc("/ws/transcribe", wss.Handle)
	return mux
}
