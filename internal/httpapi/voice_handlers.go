package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/expressiveaac/voicerelay/internal/eventlog"
	"github.com/expressiveaac/voicerelay/internal/speech"
)

// maxEnrollFormSize bounds the multipart enrollment upload. Slightly above
// the 10MiB audio ceiling to leave room for form overhead; the orchestrator
// enforces the real bound.
const maxEnrollFormSize = 12 * 1024 * 1024

// handleCreateVoice uploads a user recording to the provider and stores the
// minted cloned-voice ID.
func (r *Router) handleCreateVoice(w http.ResponseWriter, req *http.Request) {
	req.Body = http.MaxBytesReader(w, req.Body, maxEnrollFormSize)
	if err := req.ParseMultipartForm(maxEnrollFormSize); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := req.FormFile("audio_file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "audio_file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "failed to read audio_file")
		return
	}

	userID := speech.NormalizeUserID(req.FormValue("user_id"))

	voiceID, err := r.enroller.Enroll(req.Context(), userID, audio)
	if err != nil {
		status, detail := classifyEnrollError(err)
		if status >= 500 {
			r.logger.Printf("voice: enrollment failed for %q: %v", userID, err)
			captureError(req, err, "voice enrollment failed")
		}
		r.eventLog.LogAsync(userID, eventlog.EventVoiceEnrollFailed, map[string]any{
			"status": status,
			"error":  err.Error(),
		})
		writeDetail(w, status, detail)
		return
	}

	r.logger.Printf("voice: enrolled %q with voice %q", userID, voiceID)
	r.eventLog.LogAsync(userID, eventlog.EventVoiceEnrolled, map[string]any{"voice_id": voiceID})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"voice_id": voiceID,
		"message":  "Voice created successfully",
		"user_id":  userID,
	})
}

func classifyEnrollError(err error) (int, string) {
	if status, detail, ok := classifyProviderError(err); ok {
		return status, detail
	}
	var eErr *speech.EnrollmentError
	if errors.As(err, &eErr) {
		return http.StatusInternalServerError, "Failed to create voice: " + eErr.Reason
	}
	return http.StatusInternalServerError, "Failed to create voice: " + err.Error()
}

// handleVoiceStatus reports whether a user has an enrolled voice.
func (r *Router) handleVoiceStatus(w http.ResponseWriter, req *http.Request) {
	userID := speech.NormalizeUserID(req.URL.Query().Get("user_id"))

	voiceID, ok, err := r.voices.Get(req.Context(), userID)
	if err != nil {
		// A broken store reads as "no voice"; the board just shows the
		// enrollment prompt again.
		r.logger.Printf("voice: status lookup failed for %q: %v", userID, err)
		ok = false
	}

	resp := map[string]any{
		"has_voice": ok,
		"voice_id":  nil,
		"status":    "not_enrolled",
	}
	if ok {
		resp["voice_id"] = voiceID
		resp["status"] = "ready"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSaveVoiceID stores a voice ID directly, bypassing enrollment. Used
// when the user already has a model ID from the provider's own tooling.
func (r *Router) handleSaveVoiceID(w http.ResponseWriter, req *http.Request) {
	var body struct {
		UserID  string `json:"user_id"`
		VoiceID string `json:"voice_id"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxSpeechBodySize)).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	body.VoiceID = strings.TrimSpace(body.VoiceID)
	if body.VoiceID == "" {
		writeDetail(w, http.StatusBadRequest, "voice_id is required")
		return
	}

	userID := speech.NormalizeUserID(body.UserID)
	if err := r.voices.Set(req.Context(), userID, body.VoiceID); err != nil {
		// Best-effort write, same policy as enrollment persistence.
		r.logger.Printf("voice: failed to save voice %q for %q: %v", body.VoiceID, userID, err)
		captureError(req, err, "voice save failed")
	}

	r.eventLog.LogAsync(userID, eventlog.EventVoiceSaved, map[string]any{"voice_id": body.VoiceID})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Voice ID saved",
		"user_id":  userID,
		"voice_id": body.VoiceID,
	})
}

// handleListVoices returns English provider voices for the board's picker.
func (r *Router) handleListVoices(w http.ResponseWriter, req *http.Request) {
	if r.lister == nil {
		writeDetail(w, http.StatusInternalServerError,
			"Fish Audio client not initialized. Please set FISH_AUDIO_API_KEY environment variable.")
		return
	}

	voices, err := r.lister.ListVoices(req.Context(), "en", req.URL.Query().Get("tag"))
	if err != nil {
		r.logger.Printf("voice: list failed: %v", err)
		captureError(req, err, "voice list failed")
		writeDetail(w, http.StatusInternalServerError, "failed to list voices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}
