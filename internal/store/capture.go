// Package store provides the shared mutable state of the detection
// pipeline: the bounded buffer of passively captured media URLs and the
// LRU cache of intercepted catalog query responses.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"artgrab/internal/core"
)

const (
	// bloomCapacity sizes the seen-URL filter. Captures are short-lived, so
	// the filter only needs to cover a few minutes of traffic.
	bloomCapacity = 4096
	// bloomFalsePositiveRate is acceptable because a positive only costs a
	// linear scan of a small buffer, never a dropped capture.
	bloomFalsePositiveRate = 0.01
)

// CaptureBuffer is a bounded, time-ordered buffer of captured media URLs.
// Appends evict the oldest entry when full; stale entries are purged by age
// and across audio source changes. A Bloom filter front-runs the duplicate
// scan so the common no-duplicate case stays an append.
type CaptureBuffer struct {
	mutex   sync.RWMutex
	entries []core.CapturedURL
	seen    *bloom.BloomFilter
	maxSize int
}

// NewCaptureBuffer creates a buffer holding at most maxSize entries.
func NewCaptureBuffer(maxSize int) *CaptureBuffer {
	if maxSize <= 0 {
		maxSize = 10
	}
	return &CaptureBuffer{
		entries: make([]core.CapturedURL, 0, maxSize),
		seen:    bloom.NewWithEstimates(bloomCapacity, bloomFalsePositiveRate),
		maxSize: maxSize,
	}
}

// Add appends a captured URL, refreshing the timestamp instead when the
// same URL is already buffered. The oldest entry is evicted when full.
func (b *CaptureBuffer) Add(url, source string) {
	if url == "" {
		return
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	now := time.Now()

	if b.seen.TestString(url) {
		// Possibly buffered already: refresh in place and move to the end
		// so recency ordering holds.
		for i, e := range b.entries {
			if e.URL == url {
				b.entries = append(b.entries[:i], b.entries[i+1:]...)
				b.entries = append(b.entries, core.CapturedURL{URL: url, Timestamp: now, Source: source})
				return
			}
		}
	}

	b.seen.AddString(url)
	b.entries = append(b.entries, core.CapturedURL{URL: url, Timestamp: now, Source: source})
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[1:]
	}
}

// Recent returns the entries captured within the given window, oldest first.
func (b *CaptureBuffer) Recent(window time.Duration) []core.CapturedURL {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	cutoff := time.Now().Add(-window)
	var out []core.CapturedURL
	for _, e := range b.entries {
		if e.Timestamp.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// BestMatch returns the best captured URL for a track identifier. Identifier
// matches captured after the anchor time are preferred, then identifier
// matches anywhere in the window. With no identifier match at all, the
// single most recent entry is returned, but only when there is no anchor to
// respect: an anchored lookup must never hand out a capture that cannot be
// tied to the track. Returns "" when the window is empty.
func (b *CaptureBuffer) BestMatch(id string, since time.Time, window time.Duration) string {
	recent := b.Recent(window)
	if len(recent) == 0 {
		return ""
	}

	if id != "" {
		for i := len(recent) - 1; i >= 0; i-- {
			e := recent[i]
			if e.Timestamp.After(since) && containsID(e.URL, id) {
				return e.URL
			}
		}
		for i := len(recent) - 1; i >= 0; i-- {
			if containsID(recent[i].URL, id) {
				return recent[i].URL
			}
		}
	}

	// No identifier match: the single most recent capture is acceptable
	// only when there is no detection anchor to respect.
	if since.IsZero() {
		return recent[len(recent)-1].URL
	}
	return ""
}

// RetainNewerThan drops every entry older than the given age. Called on
// audio source changes to prevent cross-track contamination.
func (b *CaptureBuffer) RetainNewerThan(age time.Duration) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	cutoff := time.Now().Add(-age)
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	b.entries = kept
}

// PruneOlderThan is the periodic age-out of the capture horizon.
func (b *CaptureBuffer) PruneOlderThan(horizon time.Duration) {
	b.RetainNewerThan(horizon)
}

// Len returns the current number of buffered entries.
func (b *CaptureBuffer) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.entries)
}

// containsID reports whether a URL references the identifier as a full
// path or name component rather than an accidental digit substring.
func containsID(url, id string) bool {
	if id == "" {
		return false
	}
	for from := 0; ; {
		j := strings.Index(url[from:], id)
		if j < 0 {
			return false
		}
		j += from
		before := byte('/')
		if j > 0 {
			before = url[j-1]
		}
		after := byte('.')
		if j+len(id) < len(url) {
			after = url[j+len(id)]
		}
		if !isDigit(before) && !isDigit(after) {
			return true
		}
		from = j + 1
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
