package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"sync"

	"github.com/expressiveaac/voicerelay/internal/fishaudio"
)

const (
	// Size heuristics for enrollment recordings: anything under the floor is
	// too short to clone from, anything over the ceiling is not a short
	// sample. Checked before any network call.
	minEnrollAudioBytes = 1000
	maxEnrollAudioBytes = 10 * 1024 * 1024
)

// coverFields are the multipart field names tried, in order, for the
// placeholder cover image. The provider has rejected the attachment under
// more than one name depending on API version.
var coverFields = []string{"cover_image", "cover", "image"}

// EnrollmentProvider is the voice-cloning capability of the TTS vendor.
type EnrollmentProvider interface {
	CreateVoice(ctx context.Context, req fishaudio.CreateVoiceRequest) (string, error)
}

// Enroller uploads a user recording to mint a cloned-voice identifier and
// records it in the voice directory.
type Enroller struct {
	provider EnrollmentProvider
	voices   directory
	logger   *log.Logger
}

// NewEnroller creates an enrollment orchestrator. provider may be nil when
// the service runs without credentials.
func NewEnroller(provider EnrollmentProvider, voices directory, logger *log.Logger) *Enroller {
	return &Enroller{provider: provider, voices: voices, logger: logger}
}

// Enroll validates the recording, creates a provider voice model, and stores
// the returned identifier under userID. A failed directory write is logged
// and swallowed: the provider-side model exists either way, and the caller
// still gets a usable voice ID back.
func (e *Enroller) Enroll(ctx context.Context, userID string, audio []byte) (string, error) {
	if e.provider == nil {
		return "", ErrNotConfigured
	}
	if len(audio) < minEnrollAudioBytes {
		return "", &ValidationError{Reason: fmt.Sprintf("audio too short: %d bytes (min %d)", len(audio), minEnrollAudioBytes)}
	}
	if len(audio) > maxEnrollAudioBytes {
		return "", &ValidationError{Reason: fmt.Sprintf("audio too large: %d bytes (max %d)", len(audio), maxEnrollAudioBytes)}
	}

	userID = NormalizeUserID(userID)
	voiceID, err := e.createVoice(ctx, userID, audio)
	if err != nil {
		return "", err
	}

	if err := e.voices.Set(ctx, userID, voiceID); err != nil {
		// Best-effort persistence: model exists at the provider, the client
		// can re-save the ID via /api/save-voice-id.
		e.logger.Printf("speech: failed to persist voice %q for %q: %v", voiceID, userID, err)
	}
	return voiceID, nil
}

// createVoice tries each cover-image encoding strategy in order, exiting on
// the first acceptance. Only cover-shaped rejections advance to the next
// strategy; anything else propagates immediately.
func (e *Enroller) createVoice(ctx context.Context, userID string, audio []byte) (string, error) {
	cover := placeholderCover()

	var lastErr error
	for _, field := range coverFields {
		voiceID, err := e.provider.CreateVoice(ctx, fishaudio.CreateVoiceRequest{
			Title:      userID + " voice",
			Audio:      audio,
			CoverImage: cover,
			CoverField: field,
		})
		if err == nil {
			return voiceID, nil
		}
		lastErr = err

		if errors.Is(err, fishaudio.ErrMissingModelID) {
			return "", &EnrollmentError{Reason: "provider accepted upload but returned no voice id", Err: err}
		}
		var apiErr *fishaudio.APIError
		if errors.As(err, &apiErr) && apiErr.MissingCover() {
			e.logger.Printf("speech: provider rejected cover field %q, trying next: %v", field, err)
			continue
		}
		return "", err
	}
	return "", &EnrollmentError{Reason: "all cover upload strategies rejected", Err: lastErr}
}

var (
	coverOnce  sync.Once
	coverBytes []byte
)

// placeholderCover returns a 1x1 PNG used purely to satisfy the provider's
// cover image requirement.
func placeholderCover() []byte {
	coverOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 1, 1))
		img.Set(0, 0, color.RGBA{R: 0x4a, G: 0x90, B: 0xd9, A: 0xff})
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			coverBytes = buf.Bytes()
		}
	})
	return coverBytes
}
