// Package speech orchestrates emotion-tagged speech synthesis and voice
// enrollment against the Fish Audio provider.
package speech

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/expressiveaac/voicerelay/internal/emotion"
)

// ErrNotConfigured is returned when no provider API key was supplied at
// startup. Handlers surface it as a 500 with an explanatory detail.
var ErrNotConfigured = errors.New("speech provider not configured: set FISH_AUDIO_API_KEY")

// ValidationError is malformed client input: empty text or out-of-bounds
// enrollment audio. Never retried, surfaced as 400.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// EnrollmentError is a voice creation that failed after all upload
// strategies were exhausted, or an ostensibly successful response with no
// recognizable voice identifier.
type EnrollmentError struct {
	Reason string
	Err    error
}

func (e *EnrollmentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("enrollment: %s: %v", e.Reason, e.Err)
	}
	return "enrollment: " + e.Reason
}

func (e *EnrollmentError) Unwrap() error { return e.Err }

// Request is a normalized synthesis request. Immutable once built.
type Request struct {
	Text    string
	Emotion emotion.Emotion
	UserID  string
}

// Normalize validates and sanitizes inbound text and emotion. Empty or
// whitespace-only text is a ValidationError. An unrecognized emotion is a
// recoverable anomaly, not an error: it coerces to neutral and the returned
// known flag lets the caller log it.
func Normalize(text, emotionStr string) (clean string, emo emotion.Emotion, known bool, err error) {
	clean = strings.TrimSpace(text)
	if clean == "" {
		return "", emotion.Neutral, false, &ValidationError{Reason: "text must not be empty"}
	}
	emo, known = emotion.Parse(emotionStr)
	clean = emotion.StripTag(clean, emo)
	if clean == "" {
		return "", emotion.Neutral, false, &ValidationError{Reason: "text must not be empty"}
	}
	return clean, emo, known, nil
}

// defaultUserID is assigned when the board does not identify its user.
const defaultUserID = "default"

// NormalizeUserID applies the default user ID for anonymous requests.
func NormalizeUserID(userID string) string {
	if strings.TrimSpace(userID) == "" {
		return defaultUserID
	}
	return strings.TrimSpace(userID)
}

// resolveVoice picks the voice identifier for a request: the user's cloned
// voice wins, then the process-wide default, then none (provider default).
// Storage read failures degrade to "no stored voice".
func resolveVoice(ctx context.Context, dir directory, userID, processDefault string, logf func(format string, v ...any)) string {
	if dir != nil {
		voiceID, ok, err := dir.Get(ctx, userID)
		if err != nil {
			logf("speech: voice lookup failed for %q, using default: %v", userID, err)
		} else if ok {
			return voiceID
		}
	}
	return processDefault
}

// directory is the read side of the voice directory the orchestrators need.
type directory interface {
	Get(ctx context.Context, userID string) (string, bool, error)
	Set(ctx context.Context, userID, voiceID string) error
}
