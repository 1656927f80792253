package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType represents the type of speech event
type EventType string

const (
	EventSpeechRequested   EventType = "speech_requested"
	EventSpeechSynthesized EventType = "speech_synthesized"
	EventSpeechFailed      EventType = "speech_failed"
	EventVoiceEnrolled     EventType = "voice_enrolled"
	EventVoiceEnrollFailed EventType = "voice_enroll_failed"
	EventVoiceSaved        EventType = "voice_saved"
)

// Logger provides async event logging to the database. It is nil-safe: the
// service runs without Postgres and events are silently skipped.
type Logger struct {
	db *pgxpool.Pool
}

// New creates a new event logger
func New(db *pgxpool.Pool) *Logger {
	return &Logger{db: db}
}

// Log writes an event to the database synchronously
func (l *Logger) Log(ctx context.Context, userID string, eventType EventType, data map[string]any) error {
	if l.db == nil || userID == "" {
		return nil // Silently skip if no DB or user ID
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		dataJSON = []byte("{}")
	}

	_, err = l.db.Exec(ctx, `
		INSERT INTO speech_events (user_id, event_type, event_data)
		VALUES ($1, $2, $3)
	`, userID, string(eventType), dataJSON)

	return err
}

// LogAsync logs an event without blocking the caller
func (l *Logger) LogAsync(userID string, eventType EventType, data map[string]any) {
	if l.db == nil || userID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Log(ctx, userID, eventType, data)
	}()
}
