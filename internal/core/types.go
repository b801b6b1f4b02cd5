package core

import (
	"context"
	"errors"
	"time"
)

const (
	// UnknownTrackID is the sentinel identifier for unresolved tracks.
	UnknownTrackID = "unknown"
	// PlaceholderName is the generic display name used when audio is playing
	// but no track name could be derived from the page.
	PlaceholderName = "Unknown Audio"
	// UnknownArtist is the default artist name for music tracks.
	UnknownArtist = "Unknown Artist"
	// SfxArtist is the catalog brand name used as the artist for sound effects.
	SfxArtist = "Artlist"
)

var (
	// ErrNoSignal indicates no DOM evidence and no audio element was found.
	ErrNoSignal = errors.New("no audio found, please play it first")
	// ErrNoPlayableURL indicates the track identity resolved but no
	// downloadable file URL could be obtained.
	ErrNoPlayableURL = errors.New("cannot get download link")
	// ErrNoTarget indicates no Artlist tab is open in the attached browser.
	ErrNoTarget = errors.New("no Artlist tab found, please open artlist.io first")
)

// TrackRecord is the canonical description of a detected or resolved track.
type TrackRecord struct {
	TrackID    string    `json:"trackId"`
	TrackName  string    `json:"trackName"`
	ArtistID   string    `json:"artistId,omitempty"`
	ArtistName string    `json:"artistName"`
	AlbumID    string    `json:"albumId,omitempty"`
	AlbumName  string    `json:"albumName,omitempty"`
	Sfx        bool      `json:"isSoundEffect"`
	FileURL    string    `json:"playableFileUrl,omitempty"`
	DetectedAt time.Time `json:"detectedAt"`
}

// Usable reports whether the record is complete enough to download:
// a non-empty name and a non-empty file URL.
func (r *TrackRecord) Usable() bool {
	return r != nil && r.TrackName != "" && r.FileURL != ""
}

// HasSpecificName reports whether the record carries a real track name
// rather than the generic placeholder.
func (r *TrackRecord) HasSpecificName() bool {
	return r != nil && r.TrackName != "" && r.TrackName != PlaceholderName
}

// Merge combines a fresh detection with an existing record for the same
// track. A specific name is never downgraded to the placeholder; artist and
// album details are carried forward when the new record lacks them.
func (r *TrackRecord) Merge(prev *TrackRecord) {
	if prev == nil || prev.TrackID != r.TrackID {
		return
	}
	if prev.HasSpecificName() && !r.HasSpecificName() {
		r.TrackName = prev.TrackName
		if r.AlbumName == "" || r.AlbumName == PlaceholderName {
			r.AlbumName = prev.AlbumName
		}
	}
	if r.ArtistName == "" || r.ArtistName == UnknownArtist {
		if prev.ArtistName != "" {
			r.ArtistName = prev.ArtistName
		}
	}
	if r.ArtistID == "" {
		r.ArtistID = prev.ArtistID
	}
	if r.FileURL == "" {
		r.FileURL = prev.FileURL
	}
}

// CapturedURL is one passively observed network request believed to carry
// audio payload.
type CapturedURL struct {
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // interception mechanism, diagnostics only
}

// AudioState is a point-in-time sample of the page's native audio element,
// including elements nested in shadow-DOM subtrees.
type AudioState struct {
	Found       bool    `json:"found"`
	Src         string  `json:"src"`
	CurrentSrc  string  `json:"currentSrc"`
	Paused      bool    `json:"paused"`
	CurrentTime float64 `json:"currentTime"`
	InShadow    bool    `json:"inShadow"`
}

// EffectiveSrc returns the playing source URL, preferring currentSrc.
func (a AudioState) EffectiveSrc() string {
	if a.CurrentSrc != "" {
		return a.CurrentSrc
	}
	return a.Src
}

// PageState is a snapshot of the observed page: location, title, rendered
// HTML, and the audio element sample taken in the same pass.
type PageState struct {
	URL   string
	Path  string
	Title string
	HTML  string
	Audio AudioState
}

// BrowserSession abstracts the attached browser tab. Implemented by the
// CDP session in internal/browser; faked in tests.
type BrowserSession interface {
	// Snapshot captures the current page state including the audio sample.
	Snapshot(ctx context.Context) (*PageState, error)
	// AudioState samples only the audio element, cheaper than Snapshot.
	AudioState(ctx context.Context) (AudioState, error)
}

// Extractor produces a best-effort TrackRecord from a page snapshot, or nil
// when no reasonable signal exists.
type Extractor interface {
	Extract(state *PageState) *TrackRecord
}

// CaptureStore is the bounded buffer of passively captured media URLs.
type CaptureStore interface {
	Add(url, source string)
	Recent(window time.Duration) []CapturedURL
	BestMatch(id string, since time.Time, window time.Duration) string
	RetainNewerThan(age time.Duration)
	PruneOlderThan(horizon time.Duration)
	Len() int
}

// Resolver fills in the best available playable file URL for a track
// identifier, trying progressively more expensive sources.
type Resolver interface {
	Resolve(ctx context.Context, id string, sfx bool) (*TrackRecord, error)
	ScrapePage(ctx context.Context) (*TrackRecord, error)
}
