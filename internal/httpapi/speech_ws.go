package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 30 * time.Second
)

// wsSpeechRequest is the single JSON message a client sends after connecting.
type wsSpeechRequest struct {
	Text    string `json:"text"`
	Emotion string `json:"emotion"`
	UserID  string `json:"user_id"`
}

type wsError struct {
	Error string `json:"error"`
}

// handleSpeechWS streams synthesized audio over a WebSocket: the client sends
// one request message and receives binary MP3 chunks as the provider emits
// them, followed by a normal close. Lower perceived latency than waiting for
// the full /generate_speech response.
func (r *Router) handleSpeechWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("ws: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	var body wsSpeechRequest
	if err := conn.ReadJSON(&body); err != nil {
		_ = conn.WriteJSON(wsError{Error: "invalid request message"})
		return
	}

	chunks, err := r.synth.Stream(req.Context(), body.UserID, body.Text, body.Emotion)
	if err != nil {
		_, detail := classifySpeechError(err)
		r.logger.Printf("ws: stream failed: %v", err)
		_ = conn.WriteJSON(wsError{Error: detail})
		return
	}

	for chunk := range chunks {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			r.logger.Printf("ws: write failed: %v", err)
			return
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}
