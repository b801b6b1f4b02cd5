package store

import (
	"testing"

	"artgrab/internal/catalog"
)

func TestResponseCache_FindTolerantOfNumericForms(t *testing.T) {
	cache := NewResponseCache(16)
	cache.AddSongs([]catalog.Asset{
		{SongID: "123", SongName: "Lo-Fi Beat"},
		{SongID: "042", SongName: "Leading Zero"},
	})

	tests := []struct {
		name     string
		id       string
		wantName string
		wantOK   bool
	}{
		{name: "Exact id", id: "123", wantName: "Lo-Fi Beat", wantOK: true},
		{name: "Numeric form of zero-padded id", id: "42", wantName: "Leading Zero", wantOK: true},
		{name: "Zero-padded query for plain id", id: "0123", wantName: "Lo-Fi Beat", wantOK: true},
		{name: "Missing id", id: "999", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset, ok := cache.FindSong(tt.id)
			if ok != tt.wantOK {
				t.Fatalf("FindSong(%q) ok = %v, want %v", tt.id, ok, tt.wantOK)
			}
			if ok && asset.Name() != tt.wantName {
				t.Errorf("FindSong(%q) name = %q, want %q", tt.id, asset.Name(), tt.wantName)
			}
		})
	}
}

func TestResponseCache_KindsAreSeparate(t *testing.T) {
	cache := NewResponseCache(16)
	cache.AddSongs([]catalog.Asset{{SongID: "7", SongName: "Song Seven"}})
	cache.AddSfxs([]catalog.Asset{{SfxID: "7", SfxName: "Sfx Seven"}})

	song, ok := cache.FindSong("7")
	if !ok || song.Name() != "Song Seven" {
		t.Errorf("FindSong(7) = (%v, %v)", song, ok)
	}
	sfx, ok := cache.FindSfx("7")
	if !ok || sfx.Name() != "Sfx Seven" {
		t.Errorf("FindSfx(7) = (%v, %v)", sfx, ok)
	}
}

func TestResponseCache_SkipsAssetsWithoutID(t *testing.T) {
	cache := NewResponseCache(16)
	cache.AddSongs([]catalog.Asset{{SongName: "No ID"}})

	if cache.Size() != 0 {
		t.Errorf("Size = %d, want 0", cache.Size())
	}
}

func TestResponseCache_Bounded(t *testing.T) {
	cache := NewResponseCache(2)
	cache.AddSongs([]catalog.Asset{
		{SongID: "1"},
		{SongID: "2"},
		{SongID: "3"},
	})

	if cache.Size() != 2 {
		t.Errorf("Size = %d, want 2", cache.Size())
	}
	if _, ok := cache.FindSong("1"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := cache.FindSong("3"); !ok {
		t.Error("newest entry missing")
	}
}
