package speech

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/expressiveaac/voicerelay/internal/emotion"
	"github.com/expressiveaac/voicerelay/internal/fishaudio"
)

const (
	// maxAttempts is the total number of synthesis attempts for transient
	// provider failures.
	maxAttempts = 3

	// defaultRetryBase is the first backoff interval; it doubles after each
	// failed attempt (1s, 2s).
	defaultRetryBase = 1 * time.Second
)

// Provider is the synthesis capability of the TTS vendor.
type Provider interface {
	Synthesize(ctx context.Context, text, voiceID string, speed float64) ([]byte, error)
}

// StreamProvider is the streaming synthesis capability. Optional: the
// provider client implements it, test fakes may not.
type StreamProvider interface {
	SynthesizeStream(ctx context.Context, text, voiceID string, speed float64) (<-chan []byte, error)
}

// Synthesizer turns a (text, emotion, user) triple into audio bytes.
type Synthesizer struct {
	provider     Provider
	voices       directory
	defaultVoice string
	retryBase    time.Duration
	logger       *log.Logger
}

// NewSynthesizer creates a synthesis orchestrator. provider may be nil when
// the service runs without credentials; every call then fails with
// ErrNotConfigured. defaultVoice may be empty.
func NewSynthesizer(provider Provider, voices directory, defaultVoice string, logger *log.Logger) *Synthesizer {
	return &Synthesizer{
		provider:     provider,
		voices:       voices,
		defaultVoice: defaultVoice,
		retryBase:    defaultRetryBase,
		logger:       logger,
	}
}

// Synthesize normalizes the request, resolves the voice, and calls the
// provider with bounded retries on transient failures. Returns the encoded
// audio bytes.
func (s *Synthesizer) Synthesize(ctx context.Context, userID, text, emotionStr string) ([]byte, error) {
	if s.provider == nil {
		return nil, ErrNotConfigured
	}

	clean, emo, known, err := Normalize(text, emotionStr)
	if err != nil {
		return nil, err
	}
	if !known && emotionStr != "" {
		s.logger.Printf("speech: unknown emotion %q, treating as neutral", emotionStr)
	}

	userID = NormalizeUserID(userID)
	prompt := emotion.PromptText(clean, emo)
	speed := emo.Speed()
	voiceID := resolveVoice(ctx, s.voices, userID, s.defaultVoice, s.logger.Printf)

	s.logger.Printf("speech: synthesizing for %q prompt=%q voice=%q speed=%.2f", userID, prompt, voiceID, speed)

	var lastErr error
	delay := s.retryBase
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		audio, err := s.provider.Synthesize(ctx, prompt, voiceID, speed)
		if err == nil {
			if len(audio) == 0 {
				return nil, errors.New("speech: provider returned empty audio")
			}
			return audio, nil
		}
		lastErr = err

		if !transient(err) || attempt == maxAttempts {
			break
		}
		s.logger.Printf("speech: transient provider error (attempt %d/%d), retrying in %s: %v", attempt, maxAttempts, delay, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, fmt.Errorf("speech: synthesis failed: %w", lastErr)
}

// Stream resolves the request like Synthesize but streams audio chunks as
// they arrive. Streaming is a single attempt: backoff inside an interactive
// stream only adds latency.
func (s *Synthesizer) Stream(ctx context.Context, userID, text, emotionStr string) (<-chan []byte, error) {
	if s.provider == nil {
		return nil, ErrNotConfigured
	}
	sp, ok := s.provider.(StreamProvider)
	if !ok {
		return nil, errors.New("speech: provider does not support streaming")
	}

	clean, emo, known, err := Normalize(text, emotionStr)
	if err != nil {
		return nil, err
	}
	if !known && emotionStr != "" {
		s.logger.Printf("speech: unknown emotion %q, treating as neutral", emotionStr)
	}

	userID = NormalizeUserID(userID)
	prompt := emotion.PromptText(clean, emo)
	voiceID := resolveVoice(ctx, s.voices, userID, s.defaultVoice, s.logger.Printf)

	return sp.SynthesizeStream(ctx, prompt, voiceID, emo.Speed())
}

// transient reports whether err is a retryable provider failure. Transport
// errors without a classified status also count: the next attempt may hit a
// healthy connection.
func transient(err error) bool {
	var apiErr *fishaudio.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	// No HTTP status at all means the request never completed.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
