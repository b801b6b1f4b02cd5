// Package filename builds download filenames for resolved audio tracks
// following the "[Kind] Artist - Name.ext" convention.
package filename

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// PrefixMusic is the filename prefix for music tracks.
	PrefixMusic = "Music"
	// PrefixSfx is the filename prefix for sound effects.
	PrefixSfx = "SFX"
	// FallbackArtist is used when no artist name is available.
	FallbackArtist = "Artlist"
	// FallbackName is used when no track name is available.
	FallbackName = "Unknown"
)

var (
	invalidChars    = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	controlOrFormat = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// Build returns the download filename for a track:
// "[Music] Artist - Name.wav" or "[SFX] Artlist - Name.aac".
// The extension is passed without a dot.
func Build(artist, name, ext string, sfx bool) string {
	prefix := PrefixMusic
	if sfx {
		prefix = PrefixSfx
	}

	artist = Sanitize(artist)
	if artist == "" {
		artist = FallbackArtist
	}
	name = Sanitize(name)
	if name == "" {
		name = FallbackName
	}
	if ext == "" {
		ext = "aac"
	}

	return "[" + prefix + "] " + artist + " - " + name + "." + ext
}

// Sanitize strips characters that are invalid in filenames on common
// filesystems, collapses whitespace, and normalizes the text to NFC so
// composed and decomposed accents produce the same name.
func Sanitize(s string) string {
	s = norm.NFC.String(s)
	s = controlOrFormat.ReplaceAllString(s, "")
	s = invalidChars.ReplaceAllString(s, "")
	s = whitespaceRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
