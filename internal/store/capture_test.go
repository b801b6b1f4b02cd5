package store

import (
	"fmt"
	"testing"
	"time"
)

func TestCaptureBuffer_EvictsOldestAtCapacity(t *testing.T) {
	buf := NewCaptureBuffer(3)

	buf.Add("https://cdn/1.aac", "xhr")
	buf.Add("https://cdn/2.aac", "xhr")
	buf.Add("https://cdn/3.aac", "xhr")
	buf.Add("https://cdn/4.aac", "fetch")

	entries := buf.Recent(time.Minute)
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}

	want := []string{"https://cdn/2.aac", "https://cdn/3.aac", "https://cdn/4.aac"}
	for i, e := range entries {
		if e.URL != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, e.URL, want[i])
		}
	}
}

func TestCaptureBuffer_DuplicateRefreshesInstead(t *testing.T) {
	buf := NewCaptureBuffer(5)

	buf.Add("https://cdn/1.aac", "xhr")
	buf.Add("https://cdn/2.aac", "xhr")
	buf.Add("https://cdn/1.aac", "fetch")

	if buf.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (duplicate must not grow the buffer)", buf.Len())
	}

	entries := buf.Recent(time.Minute)
	if entries[len(entries)-1].URL != "https://cdn/1.aac" {
		t.Errorf("refreshed URL not moved to most-recent position: %v", entries)
	}
}

func TestCaptureBuffer_RetainNewerThan(t *testing.T) {
	buf := NewCaptureBuffer(10)

	buf.Add("https://cdn/old.aac", "xhr")
	// Backdate the first entry past the retention window.
	buf.mutex.Lock()
	buf.entries[0].Timestamp = time.Now().Add(-10 * time.Second)
	buf.mutex.Unlock()

	buf.Add("https://cdn/new.aac", "xhr")
	buf.RetainNewerThan(5 * time.Second)

	entries := buf.Recent(time.Minute)
	if len(entries) != 1 || entries[0].URL != "https://cdn/new.aac" {
		t.Errorf("after retention got %v, want only the fresh entry", entries)
	}
}

func TestCaptureBuffer_BestMatch(t *testing.T) {
	t.Run("Identifier match preferred over recency", func(t *testing.T) {
		buf := NewCaptureBuffer(10)
		buf.Add("https://cms-public-artifacts.artlist.io/12345.aac", "xhr")
		buf.Add("https://cms-public-artifacts.artlist.io/99999.aac", "xhr")

		got := buf.BestMatch("12345", time.Time{}, time.Minute)
		if got != "https://cms-public-artifacts.artlist.io/12345.aac" {
			t.Errorf("BestMatch = %q, want the identifier-matched entry", got)
		}
	})

	t.Run("Anchor excludes earlier captures", func(t *testing.T) {
		buf := NewCaptureBuffer(10)
		buf.Add("https://cdn/12345-pre.aac", "xhr")

		anchor := time.Now()
		time.Sleep(2 * time.Millisecond)
		buf.Add("https://cdn/12345-post.aac", "fetch")

		got := buf.BestMatch("12345", anchor, time.Minute)
		if got != "https://cdn/12345-post.aac" {
			t.Errorf("BestMatch = %q, want the post-anchor capture", got)
		}
	})

	t.Run("Identifier match before anchor still accepted", func(t *testing.T) {
		buf := NewCaptureBuffer(10)
		buf.Add("https://cdn/12345.aac", "xhr")

		got := buf.BestMatch("12345", time.Now(), time.Minute)
		if got != "https://cdn/12345.aac" {
			t.Errorf("BestMatch = %q, want the pre-anchor identifier match", got)
		}
	})

	t.Run("Anchor disables the unmatched most-recent fallback", func(t *testing.T) {
		buf := NewCaptureBuffer(10)
		buf.Add("https://cdn/99999.aac", "xhr")

		if got := buf.BestMatch("12345", time.Now(), time.Minute); got != "" {
			t.Errorf("BestMatch = %q, want no result for an anchored unmatched lookup", got)
		}
	})

	t.Run("No identifier match falls back to most recent without anchor", func(t *testing.T) {
		buf := NewCaptureBuffer(10)
		buf.Add("https://cdn/1.aac", "xhr")
		buf.Add("https://cdn/2.aac", "xhr")

		got := buf.BestMatch("777", time.Time{}, time.Minute)
		if got != "https://cdn/2.aac" {
			t.Errorf("BestMatch = %q, want most recent entry", got)
		}
	})

	t.Run("Empty buffer", func(t *testing.T) {
		buf := NewCaptureBuffer(10)
		if got := buf.BestMatch("1", time.Time{}, time.Minute); got != "" {
			t.Errorf("BestMatch on empty buffer = %q, want empty", got)
		}
	})

	t.Run("Partial digit run does not match", func(t *testing.T) {
		buf := NewCaptureBuffer(10)
		buf.Add("https://cdn/9912345.aac", "xhr")

		if got := buf.BestMatch("12345", time.Now().Add(-time.Second), time.Minute); got != "" {
			t.Errorf("BestMatch = %q, want no match for embedded digit run", got)
		}
	})
}

func TestCaptureBuffer_OrderPreservedUnderChurn(t *testing.T) {
	buf := NewCaptureBuffer(5)
	for i := 0; i < 20; i++ {
		buf.Add(fmt.Sprintf("https://cdn/%d.aac", i), "xhr")
	}

	entries := buf.Recent(time.Minute)
	if len(entries) != 5 {
		t.Fatalf("len = %d, want 5", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp) {
			t.Errorf("entries out of order at %d", i)
		}
	}
	if entries[4].URL != "https://cdn/19.aac" {
		t.Errorf("newest entry = %q, want https://cdn/19.aac", entries[4].URL)
	}
}
