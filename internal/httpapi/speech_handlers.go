package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/expressiveaac/voicerelay/internal/eventlog"
	"github.com/expressiveaac/voicerelay/internal/fishaudio"
	"github.com/expressiveaac/voicerelay/internal/speech"
)

// maxSpeechBodySize bounds the JSON request body for synthesis.
const maxSpeechBodySize = 64 * 1024

type speechRequest struct {
	Text    string `json:"text"`
	Emotion string `json:"emotion"`
	UserID  string `json:"user_id"`
}

// handleGenerateSpeech relays an emotion-tagged text to the TTS provider and
// returns the synthesized MP3.
func (r *Router) handleGenerateSpeech(w http.ResponseWriter, req *http.Request) {
	var body speechRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxSpeechBodySize)).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := speech.NormalizeUserID(body.UserID)
	r.eventLog.LogAsync(userID, eventlog.EventSpeechRequested, map[string]any{
		"emotion":     body.Emotion,
		"text_length": len(body.Text),
	})

	audio, err := r.synth.Synthesize(req.Context(), userID, body.Text, body.Emotion)
	if err != nil {
		status, detail := classifySpeechError(err)
		if status >= 500 {
			r.logger.Printf("speech: synthesis failed for %q: %v", userID, err)
			captureError(req, err, "speech synthesis failed")
		}
		r.eventLog.LogAsync(userID, eventlog.EventSpeechFailed, map[string]any{
			"status": status,
			"error":  err.Error(),
		})
		writeDetail(w, status, detail)
		return
	}

	r.eventLog.LogAsync(userID, eventlog.EventSpeechSynthesized, map[string]any{
		"emotion": body.Emotion,
		"bytes":   len(audio),
	})

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", "attachment; filename=output.mp3")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(audio)))
	_, _ = w.Write(audio)
}

// classifySpeechError maps an orchestrator error to an HTTP status and a
// client-facing detail string.
func classifySpeechError(err error) (int, string) {
	if status, detail, ok := classifyProviderError(err); ok {
		return status, detail
	}
	return http.StatusInternalServerError, "Failed to generate speech: " + err.Error()
}

// classifyProviderError handles the error classes shared by the synthesis
// and enrollment endpoints. ok is false for unclassified errors so each
// handler can supply its own fallback detail.
func classifyProviderError(err error) (int, string, bool) {
	var vErr *speech.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest, vErr.Reason, true
	}
	if errors.Is(err, speech.ErrNotConfigured) {
		return http.StatusInternalServerError,
			"Fish Audio client not initialized. Please set FISH_AUDIO_API_KEY environment variable.", true
	}
	var apiErr *fishaudio.APIError
	if errors.As(err, &apiErr) && apiErr.AuthOrBilling() {
		return http.StatusPaymentRequired,
			"Fish Audio API Error: Invalid API key or insufficient balance. " +
				"Please check your API key and account balance at https://fish.audio", true
	}
	return 0, "", false
}
