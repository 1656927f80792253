package app

import (
	"os"
	"strconv"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	SentryDSN   string

	// Fish Audio provider
	FishAudioAPIKey string
	FishAudioURL    string // override for tests; empty means the public API

	// Synthesis settings
	TTSFormat      string // audio format returned to the board
	TTSLatency     string // "normal" or "balanced"
	TTSTemperature float64
	TTSTopP        float64

	// Voice selection
	VoiceID        string // forces the process default voice, skipping discovery
	VoiceStorePath string // JSON file store; ignored when DATABASE_URL is set
}

func LoadConfigFromEnv() Config {
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8000"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		SentryDSN:   getenv("SENTRY_DSN", ""),

		// Fish Audio provider
		FishAudioAPIKey: getenv("FISH_AUDIO_API_KEY", ""),
		FishAudioURL:    getenv("FISH_AUDIO_URL", ""),

		// Synthesis settings
		TTSFormat:      getenv("TTS_FORMAT", "mp3"),
		TTSLatency:     getenv("TTS_LATENCY", "normal"),
		TTSTemperature: getenvFloatClamped("TTS_TEMPERATURE", 0.7, 0.0, 1.0),
		TTSTopP:        getenvFloatClamped("TTS_TOP_P", 0.7, 0.0, 1.0),

		// Voice selection
		VoiceID:        getenv("VOICE_ID", ""),
		VoiceStorePath: getenv("VOICE_STORE_PATH", "user_voices.json"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getenvFloatClamped reads a float env var, falling back to def when unset or
// unparseable and clamping the result to [min, max].
func getenvFloatClamped(k string, def, min, max float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	if f < min {
		return min
	}
	if f > max {
		return max
	}
	return f
}
