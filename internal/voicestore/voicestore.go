package voicestore

import "context"

// Directory maps a user ID to their enrolled cloned-voice ID.
type Directory interface {
	// Get returns the stored voice ID for userID. ok is false when the user
	// has no stored voice.
	Get(ctx context.Context, userID string) (voiceID string, ok bool, err error)

	// Set stores voiceID under userID, overwriting any prior value.
	Set(ctx context.Context, userID, voiceID string) error
}
