package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/expressiveaac/voicerelay/internal/eventlog"
	"github.com/expressiveaac/voicerelay/internal/fishaudio"
	"github.com/expressiveaac/voicerelay/internal/voicestore"
)

// Synthesizer is the synthesis orchestration the handlers call.
type Synthesizer interface {
	Synthesize(ctx context.Context, userID, text, emotion string) ([]byte, error)
	Stream(ctx context.Context, userID, text, emotion string) (<-chan []byte, error)
}

// Enroller is the voice enrollment orchestration the handlers call.
type Enroller interface {
	Enroll(ctx context.Context, userID string, audio []byte) (string, error)
}

// VoiceLister lists provider voices for the board's voice picker.
type VoiceLister interface {
	ListVoices(ctx context.Context, language, tag string) ([]fishaudio.Voice, error)
}

type Router struct {
	logger   *log.Logger
	synth    Synthesizer
	enroller Enroller
	voices   voicestore.Directory
	lister   VoiceLister // nil when the provider is not configured
	eventLog *eventlog.Logger
	mux      *http.ServeMux
}

func NewRouter(logger *log.Logger, synth Synthesizer, enroller Enroller, voices voicestore.Directory, lister VoiceLister, eventLog *eventlog.Logger) http.Handler {
	r := &Router{
		logger:   logger,
		synth:    synth,
		enroller: enroller,
		voices:   voices,
		lister:   lister,
		eventLog: eventLog,
		mux:      http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.withRequestLog(r.mux)))
}

func (r *Router) routes() {
	// Liveness
	r.mux.HandleFunc("GET /{$}", r.handleRoot)
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)

	// Speech synthesis
	r.mux.HandleFunc("POST /generate_speech", r.handleGenerateSpeech)
	r.mux.HandleFunc("GET /ws/speech", r.handleSpeechWS)

	// Voice enrollment and directory
	r.mux.HandleFunc("POST /api/create-voice", r.handleCreateVoice)
	r.mux.HandleFunc("GET /api/voice-status", r.handleVoiceStatus)
	r.mux.HandleFunc("POST /api/save-voice-id", r.handleSaveVoiceID)
	r.mux.HandleFunc("GET /api/voices", r.handleListVoices)
}

func (r *Router) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Expressive AAC Board API is running"})
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes the {"detail": ...} error shape the board frontend
// already parses.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"detail": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// withRequestLog tags each request with a short ID and logs method, path and
// duration.
func (r *Router) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		reqID := uuid.NewString()[:8]
		start := time.Now()
		next.ServeHTTP(w, req)
		r.logger.Printf("http: [%s] %s %s (%s)", reqID, req.Method, req.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
