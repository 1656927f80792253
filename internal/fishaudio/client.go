package fishaudio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

const defaultBaseURL = "https://api.fish.audio"

// maxAudioResponseSize bounds how much synthesized audio we accept in one response.
const maxAudioResponseSize = 50 * 1024 * 1024

// ErrMissingModelID is returned when the provider reports a successful voice
// creation but the response carries no recognizable model identifier.
var ErrMissingModelID = errors.New("fishaudio: no model id in create response")

// APIError is a non-2xx response from the Fish Audio API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Fish Audio API error: %d - %s", e.StatusCode, e.Body)
}

// AuthOrBilling reports whether the error is an invalid-key or
// insufficient-balance failure. These surface to the caller as 402 with an
// actionable message; retrying them is pointless.
func (e *APIError) AuthOrBilling() bool {
	if e.StatusCode == http.StatusPaymentRequired || e.StatusCode == http.StatusUnauthorized {
		return true
	}
	body := strings.ToLower(e.Body)
	return strings.Contains(body, "invalid api key") || strings.Contains(body, "insufficient balance")
}

// Transient reports whether the error is worth an immediate retry:
// rate limiting, timeouts, or provider-side 5xx.
func (e *APIError) Transient() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	}
	return e.StatusCode >= 500
}

// MissingCover reports whether the provider rejected a voice creation upload
// because of the cover image attachment. The enrollment flow probes
// alternative field names when it sees this.
func (e *APIError) MissingCover() bool {
	if e.StatusCode != http.StatusBadRequest && e.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	body := strings.ToLower(e.Body)
	return strings.Contains(body, "cover") || strings.Contains(body, "image")
}

// Client calls the Fish Audio REST API.
type Client struct {
	apiKey      string
	baseURL     string
	format      string
	latency     string
	temperature float64
	topP        float64
	normalize   bool
	httpClient  *http.Client
}

// Config holds configuration for the Fish Audio client. Synthesis knobs are
// fixed per client so every request is deterministic apart from text, voice
// and speed.
type Config struct {
	APIKey      string
	BaseURL     string       // override for tests; defaults to the public API
	Format      string       // audio format, e.g. "mp3"
	Latency     string       // "normal" or "balanced"
	Temperature float64      // sampling temperature; negative means default
	TopP        float64      // nucleus sampling; negative means default
	HTTPClient  *http.Client // shared pooled client; defaults to a plain client
}

// New creates a new Fish Audio client.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	format := cfg.Format
	if format == "" {
		format = "mp3"
	}
	latency := cfg.Latency
	if latency == "" {
		latency = "normal"
	}
	temperature := cfg.Temperature
	if temperature < 0 {
		temperature = 0.7
	}
	topP := cfg.TopP
	if topP < 0 {
		topP = 0.7
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		format:      format,
		latency:     latency,
		temperature: temperature,
		topP:        topP,
		normalize:   true,
		httpClient:  httpClient,
	}
}

// ttsRequest is the Fish Audio TTS request body.
type ttsRequest struct {
	Text        string  `json:"text"`
	ReferenceID string  `json:"reference_id,omitempty"`
	Format      string  `json:"format"`
	Normalize   bool    `json:"normalize"`
	Latency     string  `json:"latency"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	Prosody     prosody `json:"prosody"`
}

type prosody struct {
	Speed  float64 `json:"speed"`
	Volume float64 `json:"volume"`
}

func (c *Client) ttsBody(text, voiceID string, speed float64) ([]byte, error) {
	return json.Marshal(ttsRequest{
		Text:        text,
		ReferenceID: voiceID,
		Format:      c.format,
		Normalize:   c.normalize,
		Latency:     c.latency,
		Temperature: c.temperature,
		TopP:        c.topP,
		Prosody:     prosody{Speed: speed, Volume: 0},
	})
}

// Synthesize converts text to speech and returns the encoded audio bytes.
// voiceID may be empty, in which case the provider picks its default voice.
func (c *Client) Synthesize(ctx context.Context, text, voiceID string, speed float64) ([]byte, error) {
	body, err := c.ttsBody(text, voiceID, speed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/tts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxAudioResponseSize))
}

// SynthesizeStream converts text to speech and streams audio chunks on the
// returned channel. The channel is closed when the stream ends.
func (c *Client) SynthesizeStream(ctx context.Context, text, voiceID string, speed float64) (<-chan []byte, error) {
	body, err := c.ttsBody(text, voiceID, speed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/tts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := apiError(resp)
		resp.Body.Close()
		return nil, err
	}

	ch := make(chan []byte, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case <-ctx.Done():
					return
				case ch <- chunk:
				}
			}
			if err != nil {
				return
			}
		}
	}()

	return ch, nil
}

// Voice is a provider-side voice model.
type Voice struct {
	ID        string   `json:"_id"`
	Title     string   `json:"title"`
	Languages []string `json:"languages"`
	Tags      []string `json:"tags"`
}

type listVoicesResponse struct {
	Items []Voice `json:"items"`
	Total int     `json:"total"`
}

// ListVoices returns voice models filtered by language and tag. Either filter
// may be empty.
func (c *Client) ListVoices(ctx context.Context, language, tag string) ([]Voice, error) {
	url := c.baseURL + "/model?page_size=50"
	if language != "" {
		url += "&language=" + language
	}
	if tag != "" {
		url += "&tag=" + tag
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var out listVoicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode voice list: %w", err)
	}
	return out.Items, nil
}

// CreateVoiceRequest is a voice model creation upload.
type CreateVoiceRequest struct {
	Title      string
	Audio      []byte
	CoverImage []byte
	CoverField string // multipart field name for the cover image
}

// CreateVoice uploads a recording and mints a new voice model, returning the
// provider-assigned model ID. The cover image field name is caller-chosen
// because the API has rejected uploads over it under more than one name.
func (c *Client) CreateVoice(ctx context.Context, req CreateVoiceRequest) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := map[string]string{
		"title":      req.Title,
		"type":       "tts",
		"train_mode": "fast",
		"visibility": "private",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write form field: %w", err)
		}
	}

	part, err := mw.CreateFormFile("voices", "sample.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create audio part: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return "", fmt.Errorf("failed to write audio part: %w", err)
	}

	if len(req.CoverImage) > 0 && req.CoverField != "" {
		part, err := mw.CreateFormFile(req.CoverField, "cover.png")
		if err != nil {
			return "", fmt.Errorf("failed to create cover part: %w", err)
		}
		if _, err := part.Write(req.CoverImage); err != nil {
			return "", fmt.Errorf("failed to write cover part: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/model", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apiError(resp)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode create response: %w", err)
	}
	return extractModelID(body)
}

// extractModelID digs the model identifier out of a create response. The API
// has returned it under different keys across versions.
func extractModelID(body map[string]any) (string, error) {
	for _, key := range []string{"_id", "id", "model_id", "reference_id"} {
		if v, ok := body[key].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", ErrMissingModelID
}

func apiError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) // Limit error response size
	return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
}
