package fishaudio

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSynthesize(t *testing.T) {
	var gotReq ttsRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/v1/tts" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "test-key", BaseURL: srv.URL, Temperature: -1, TopP: -1})

	audio, err := c.Synthesize(context.Background(), "(happy) Hello", "voice-123", 1.1)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "mp3-bytes" {
		t.Errorf("audio = %q, want %q", audio, "mp3-bytes")
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-key")
	}
	if gotReq.Text != "(happy) Hello" {
		t.Errorf("text = %q, want %q", gotReq.Text, "(happy) Hello")
	}
	if gotReq.ReferenceID != "voice-123" {
		t.Errorf("reference_id = %q, want %q", gotReq.ReferenceID, "voice-123")
	}
	if gotReq.Prosody.Speed != 1.1 {
		t.Errorf("speed = %f, want %f", gotReq.Prosody.Speed, 1.1)
	}
	if gotReq.Format != "mp3" {
		t.Errorf("format = %q, want %q", gotReq.Format, "mp3")
	}
	if gotReq.Temperature != 0.7 || gotReq.TopP != 0.7 {
		t.Errorf("sampling = (%f, %f), want defaults (0.7, 0.7)", gotReq.Temperature, gotReq.TopP)
	}
}

func TestSynthesizeOmitsEmptyVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var raw map[string]any
		_ = json.Unmarshal(body, &raw)
		if _, ok := raw["reference_id"]; ok {
			t.Error("reference_id should be omitted when no voice is resolved")
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL})
	if _, err := c.Synthesize(context.Background(), "Hello", "", 1.0); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
}

func TestSynthesizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte("insufficient balance"))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Synthesize(context.Background(), "Hello", "", 1.0)

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusPaymentRequired {
		t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, http.StatusPaymentRequired)
	}
	if !apiErr.AuthOrBilling() {
		t.Error("AuthOrBilling() = false, want true")
	}
	if apiErr.Transient() {
		t.Error("Transient() = true, want false")
	}
}

func TestAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		authOrBilling bool
		transient     bool
		missingCover  bool
	}{
		{name: "payment required", status: 402, body: "payment", authOrBilling: true},
		{name: "unauthorized", status: 401, body: "nope", authOrBilling: true},
		{name: "invalid key in body", status: 400, body: "Invalid API key", authOrBilling: true},
		{name: "rate limited", status: 429, body: "slow down", transient: true},
		{name: "server error", status: 500, body: "boom", transient: true},
		{name: "bad gateway", status: 502, body: "", transient: true},
		{name: "timeout", status: 408, body: "", transient: true},
		{name: "missing cover", status: 400, body: "cover_image is required", missingCover: true},
		{name: "invalid image", status: 422, body: "invalid image field", missingCover: true},
		{name: "plain bad request", status: 400, body: "text too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &APIError{StatusCode: tt.status, Body: tt.body}
			if got := e.AuthOrBilling(); got != tt.authOrBilling {
				t.Errorf("AuthOrBilling() = %v, want %v", got, tt.authOrBilling)
			}
			if got := e.Transient(); got != tt.transient {
				t.Errorf("Transient() = %v, want %v", got, tt.transient)
			}
			if got := e.MissingCover(); got != tt.missingCover {
				t.Errorf("MissingCover() = %v, want %v", got, tt.missingCover)
			}
		})
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/model" {
			t.Errorf("path = %q, want /model", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("language") != "en" || q.Get("tag") != "american" {
			t.Errorf("query = %v, want language=en tag=american", q)
		}
		_, _ = w.Write([]byte(`{"total": 2, "items": [
			{"_id": "v1", "title": "Alice", "languages": ["en"], "tags": ["american"]},
			{"_id": "v2", "title": "Bob", "languages": ["en"], "tags": ["american"]}
		]}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL})
	voices, err := c.ListVoices(context.Background(), "en", "american")
	if err != nil {
		t.Fatalf("ListVoices() error = %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("len(voices) = %d, want 2", len(voices))
	}
	if voices[0].ID != "v1" || voices[0].Title != "Alice" {
		t.Errorf("voices[0] = %+v, want ID v1 Title Alice", voices[0])
	}
}

func TestCreateVoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("title"); got == "" {
			t.Error("title form field missing")
		}
		if _, _, err := r.FormFile("voices"); err != nil {
			t.Errorf("voices file missing: %v", err)
		}
		if _, _, err := r.FormFile("cover_image"); err != nil {
			t.Errorf("cover_image file missing: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id": "model-abc"}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", BaseURL: srv.URL})
	id, err := c.CreateVoice(context.Background(), CreateVoiceRequest{
		Title:      "user-1 voice",
		Audio:      []byte("wav-bytes"),
		CoverImage: []byte("png-bytes"),
		CoverField: "cover_image",
	})
	if err != nil {
		t.Fatalf("CreateVoice() error = %v", err)
	}
	if id != "model-abc" {
		t.Errorf("id = %q, want %q", id, "model-abc")
	}
}

func TestExtractModelID(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		want    string
		wantErr bool
	}{
		{name: "underscore id", body: map[string]any{"_id": "a"}, want: "a"},
		{name: "plain id", body: map[string]any{"id": "b"}, want: "b"},
		{name: "model_id", body: map[string]any{"model_id": "c"}, want: "c"},
		{name: "reference_id", body: map[string]any{"reference_id": "d"}, want: "d"},
		{name: "underscore id wins", body: map[string]any{"_id": "a", "id": "b"}, want: "a"},
		{name: "empty strings ignored", body: map[string]any{"_id": "", "id": "b"}, want: "b"},
		{name: "no id", body: map[string]any{"status": "ok"}, wantErr: true},
		{name: "non-string id", body: map[string]any{"id": 42}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractModelID(tt.body)
			if tt.wantErr {
				if err != ErrMissingModelID {
					t.Errorf("err = %v, want ErrMissingModelID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("extractModelID() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("id = %q, want %q", got, tt.want)
			}
		})
	}
}
