package voicestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.json")
	s := NewFileStore(path)
	ctx := context.Background()

	// Missing user on a store with no backing file yet
	_, ok, err := s.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true for missing user, want false")
	}

	if err := s.Set(ctx, "user-1", "voice-abc"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	id, ok, err := s.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || id != "voice-abc" {
		t.Errorf("Get() = (%q, %v), want (voice-abc, true)", id, ok)
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.json")
	s := NewFileStore(path)
	ctx := context.Background()

	if err := s.Set(ctx, "user-1", "voice-old"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "user-1", "voice-new"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	id, ok, err := s.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || id != "voice-new" {
		t.Errorf("Get() = (%q, %v), want (voice-new, true)", id, ok)
	}
}

func TestFileStoreMultipleUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.json")
	s := NewFileStore(path)
	ctx := context.Background()

	if err := s.Set(ctx, "alice", "voice-a"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "bob", "voice-b"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// A second store on the same path sees both writes
	s2 := NewFileStore(path)
	for user, want := range map[string]string{"alice": "voice-a", "bob": "voice-b"} {
		id, ok, err := s2.Get(ctx, user)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", user, err)
		}
		if !ok || id != want {
			t.Errorf("Get(%q) = (%q, %v), want (%q, true)", user, id, ok, want)
		}
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFileStore(path)
	ctx := context.Background()

	// Reads surface the error so the caller can treat it as "no stored voice"
	if _, _, err := s.Get(ctx, "user-1"); err == nil {
		t.Error("Get() error = nil on corrupt file, want error")
	}

	// Writes start a fresh mapping rather than failing forever
	if err := s.Set(ctx, "user-1", "voice-abc"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	id, ok, err := s.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() after repair error = %v", err)
	}
	if !ok || id != "voice-abc" {
		t.Errorf("Get() = (%q, %v), want (voice-abc, true)", id, ok)
	}
}

func TestFileStoreEmptyVoiceIDIsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voices.json")
	s := NewFileStore(path)
	ctx := context.Background()

	if err := s.Set(ctx, "user-1", ""); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	_, ok, err := s.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true for empty voice ID, want false")
	}
}
