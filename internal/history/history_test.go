package history

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	events := []Event{
		{TrackID: "1", TrackName: "First", ArtistName: "A", URL: "https://cdn/1.aac", Filename: "[Music] A - First.aac", Status: StatusCompleted},
		{TrackID: "2", TrackName: "Whoosh", ArtistName: "Artlist", Sfx: true, URL: "https://cdn/2.aac", Filename: "[SFX] Artlist - Whoosh.aac", Status: StatusFailed, Error: "connection reset"},
	}
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List() returned %d events, want 2", len(got))
	}
	// Newest first.
	if got[0].TrackID != "2" || got[1].TrackID != "1" {
		t.Errorf("order = %s,%s, want 2,1", got[0].TrackID, got[1].TrackID)
	}
	if !got[0].Sfx {
		t.Error("Sfx flag lost on round trip")
	}
	if got[0].Error != "connection reset" {
		t.Errorf("Error = %q, want preserved failure message", got[0].Error)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestListLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Record(ctx, Event{TrackID: "x", TrackName: "T", ArtistName: "A", URL: "u", Filename: "f", Status: StatusCompleted}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := s.List(ctx, 3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("List(3) returned %d events, want 3", len(got))
	}
}

func TestListEmpty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List() on empty store returned %d events", len(got))
	}
}
