// Package arturl provides URL parsing and classification helpers for the
// Artlist catalog: extracting track identifiers from page and media URLs,
// telling sound effects apart from music, and recognizing the catalog's
// query endpoint and audio CDN.
package arturl

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	// QueryHost is the hostname of the catalog's GraphQL search API.
	QueryHost = "search-api.artlist.io"
	// CDNFragment identifies the public audio artifact CDN in media URLs.
	CDNFragment = "cms-public-artifacts"
	// PreviewMarker appears in low-quality streaming URLs returned by the
	// catalog in place of the full-quality download URL.
	PreviewMarker = "playable"
)

// Sound-effect path markers used across page paths, link hrefs and media URLs.
var sfxMarkers = []string{"/sfx/", "/sound-effects/", "sfx-"}

// audioExtensions are the file extensions accepted as genuine audio payload.
var audioExtensions = []string{".aac", ".m4a", ".mp3", ".wav", ".flac", ".ogg"}

// videoExtensions are never acceptable as a playable audio URL.
var videoExtensions = []string{".mp4", ".mov", ".avi", ".webm"}

var (
	mediaIDPattern = regexp.MustCompile(`/(\d+)\.`)
	titlePattern   = regexp.MustCompile(`^(.+?) - (.+?)(?:\s*\|.*)?$`)
)

// IsSfx reports whether a page path, link href or media URL carries a
// sound-effect marker.
func IsSfx(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, marker := range sfxMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// IsSfxPack reports whether a link href points at a sound-effect pack
// rather than an individual effect.
func IsSfxPack(href string) bool {
	return strings.Contains(strings.ToLower(href), "/sfx/pack/")
}

// IsSong reports whether a link href points at a music track page.
func IsSong(href string) bool {
	return strings.Contains(strings.ToLower(href), "/song/")
}

// TrailingID returns the last path segment of a page or link URL with any
// query string stripped, which is how the catalog encodes identifiers.
func TrailingID(rawURL string) string {
	trimmed, _, _ := strings.Cut(rawURL, "?")
	trimmed = strings.TrimRight(trimmed, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// PackSlug returns the human-readable slug segment of a pack href, e.g.
// "drum-machines" from "/sfx/pack/drum-machines/11645".
func PackSlug(href string) string {
	trimmed, _, _ := strings.Cut(href, "?")
	trimmed = strings.TrimRight(trimmed, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

// MediaID extracts the numeric identifier embedded in an audio file URL,
// e.g. "98765" from ".../98765.aac". Returns "" when no identifier is found.
func MediaID(rawURL string) string {
	m := mediaIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// IsCatalogQuery reports whether a URL targets the catalog's GraphQL data
// endpoint. Such URLs are metadata calls and must never be treated as media.
func IsCatalogQuery(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	return strings.Contains(lower, QueryHost) && strings.Contains(lower, "graphql")
}

// HasAudioExtension reports whether the URL path ends in a recognized audio
// file extension. The query string is ignored.
func HasAudioExtension(rawURL string) bool {
	ext := urlExtension(rawURL)
	for _, want := range audioExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// HasVideoExtension reports whether the URL path ends in a video extension.
func HasVideoExtension(rawURL string) bool {
	ext := urlExtension(rawURL)
	for _, want := range videoExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// IsMediaURL reports whether a URL plausibly carries raw audio payload:
// either a recognized audio extension or a known CDN path fragment.
// Catalog query and JSON metadata URLs are positively excluded, even when
// they match a loose media substring.
func IsMediaURL(rawURL string) bool {
	if IsCatalogQuery(rawURL) {
		return false
	}
	lower := strings.ToLower(rawURL)
	if urlExtension(rawURL) == ".json" || strings.Contains(lower, "/graphql") {
		return false
	}
	if HasVideoExtension(rawURL) {
		return false
	}
	if HasAudioExtension(rawURL) {
		return true
	}
	return strings.Contains(lower, CDNFragment) ||
		strings.Contains(lower, "/files/") ||
		strings.Contains(lower, "download")
}

// IsPreview reports whether a URL is a low-quality streaming URL that should
// be upgraded to a captured full-quality URL when one is available.
func IsPreview(rawURL string) bool {
	return strings.Contains(strings.ToLower(rawURL), PreviewMarker)
}

// IsPlayable reports whether a URL can serve as a downloadable audio file:
// a real http(s) media URL, not a blob/data URI and not a metadata endpoint.
func IsPlayable(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	if strings.HasPrefix(rawURL, "blob:") || strings.HasPrefix(rawURL, "data:") {
		return false
	}
	return IsMediaURL(rawURL)
}

// Extension returns the audio file extension of a media URL without the dot,
// or "aac" when the URL carries no recognizable audio extension. The catalog
// streams previews as AAC, so that is the safe default.
func Extension(rawURL string) string {
	if HasAudioExtension(rawURL) {
		return strings.TrimPrefix(urlExtension(rawURL), ".")
	}
	return "aac"
}

// TitleFromSlug converts a URL slug into a display name, e.g.
// "drum-machines" into "Drum Machines".
func TitleFromSlug(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ParseDocumentTitle splits an Artlist document title of the form
// "Name - Artist | Artlist" into its name and artist parts. The brand
// suffix is required so arbitrary page titles are not misread as tracks.
func ParseDocumentTitle(title string) (name, artist string, ok bool) {
	if !strings.Contains(title, "Artlist") || !strings.Contains(title, " - ") {
		return "", "", false
	}
	m := titlePattern.FindStringSubmatch(title)
	if m == nil {
		return "", "", false
	}
	name = strings.TrimSpace(m[1])
	artist = strings.TrimSpace(m[2])
	if name == "" || artist == "" {
		return "", "", false
	}
	return name, artist, true
}

// urlExtension returns the lowercased extension of the URL path, ignoring
// the query string. Falls back to raw string inspection for URLs that do
// not parse.
func urlExtension(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return strings.ToLower(path.Ext(u.Path))
	}
	trimmed, _, _ := strings.Cut(rawURL, "?")
	return strings.ToLower(path.Ext(trimmed))
}
