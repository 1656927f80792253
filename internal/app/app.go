package app

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/expressiveaac/voicerelay/internal/eventlog"
	"github.com/expressiveaac/voicerelay/internal/fishaudio"
	"github.com/expressiveaac/voicerelay/internal/httpapi"
	"github.com/expressiveaac/voicerelay/internal/speech"
	"github.com/expressiveaac/voicerelay/internal/voicestore"
)

type App struct {
	cfg        Config
	logger     *log.Logger
	db         *pgxpool.Pool // nil when running on the file store
	voices     voicestore.Directory
	client     *fishaudio.Client // nil when FISH_AUDIO_API_KEY is unset
	synth      *speech.Synthesizer
	enroller   *speech.Enroller
	eventLog   *eventlog.Logger
	httpClient *http.Client // shared pooled client for provider calls
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	// Shared HTTP client with connection pooling. Keeps TCP connections
	// alive to reduce latency for repeated calls to the single provider host.
	a.httpClient = &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10, // Fish Audio is single host
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}

	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		db, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		a.voices = voicestore.NewPostgresStore(db)
		logger.Printf("voice store: postgres")
	} else {
		a.voices = voicestore.NewFileStore(cfg.VoiceStorePath)
		logger.Printf("voice store: file %s", cfg.VoiceStorePath)
	}

	a.eventLog = eventlog.New(a.db)

	if cfg.FishAudioAPIKey != "" {
		a.client = fishaudio.New(fishaudio.Config{
			APIKey:      cfg.FishAudioAPIKey,
			BaseURL:     cfg.FishAudioURL,
			Format:      cfg.TTSFormat,
			Latency:     cfg.TTSLatency,
			Temperature: cfg.TTSTemperature,
			TopP:        cfg.TTSTopP,
			HTTPClient:  a.httpClient,
		})
	} else {
		logger.Printf("FISH_AUDIO_API_KEY not set; synthesis endpoints will report not configured")
	}

	defaultVoice := a.resolveDefaultVoice()

	// Interface values must stay nil when the client is absent so the
	// orchestrators can detect the unconfigured state.
	var provider speech.Provider
	var enrollProvider speech.EnrollmentProvider
	if a.client != nil {
		provider = a.client
		enrollProvider = a.client
	}

	a.synth = speech.NewSynthesizer(provider, a.voices, defaultVoice, logger)
	a.enroller = speech.NewEnroller(enrollProvider, a.voices, logger)

	return a, nil
}

// resolveDefaultVoice picks the process-wide fallback voice once at startup:
// an explicit VOICE_ID wins, then the first American English provider voice,
// then the first English voice. Discovery failures leave the default empty,
// which lets the provider pick its own voice.
func (a *App) resolveDefaultVoice() string {
	if a.cfg.VoiceID != "" {
		a.logger.Printf("default voice: %s (VOICE_ID)", a.cfg.VoiceID)
		return a.cfg.VoiceID
	}
	if a.client == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, tag := range []string{"american", ""} {
		voices, err := a.client.ListVoices(ctx, "en", tag)
		if err != nil {
			a.logger.Printf("default voice: discovery failed (tag %q): %v", tag, err)
			continue
		}
		if len(voices) > 0 {
			a.logger.Printf("default voice: %s (%s)", voices[0].ID, voices[0].Title)
			return voices[0].ID
		}
	}

	a.logger.Printf("default voice: none found, provider will choose")
	return ""
}

func (a *App) Router() http.Handler {
	var lister httpapi.VoiceLister
	if a.client != nil {
		lister = a.client
	}
	return httpapi.NewRouter(a.logger, a.synth, a.enroller, a.voices, lister, a.eventLog)
}

func (a *App) Close() error {
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
