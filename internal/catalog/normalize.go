package catalog

import (
	"strings"
	"time"

	"artgrab/internal/core"
	"artgrab/pkg/arturl"
)

// Audio format tags accepted by the file-selection policy, and the
// preference order among them. Lossless first, then the catalog's primary
// lossy codec, then MP3.
var (
	audioFormats = map[string]bool{
		"WAV": true, "AAC": true, "MP3": true, "FLAC": true, "OGG": true, "M4A": true,
	}
	videoFormats = map[string]bool{
		"MP4": true, "MOV": true, "AVI": true, "WEBM": true,
	}
	formatPreference = []string{"WAV", "AAC", "MP3"}

	audioFileSuffixes = []string{".wav", ".aac", ".mp3", ".flac", ".ogg", ".m4a"}
	videoFileSuffixes = []string{".mp4", ".mov", ".avi", ".webm"}
)

// isAudioFile reports whether a file descriptor describes an audio-only
// file. Video formats are excluded even when the format tag is missing.
func isAudioFile(f File) bool {
	format := strings.ToUpper(strings.TrimSpace(f.FileFormat))
	name := strings.ToLower(f.FileName)
	if videoFormats[format] {
		return false
	}
	for _, suffix := range videoFileSuffixes {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	if audioFormats[format] {
		return true
	}
	for _, suffix := range audioFileSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// fileURL returns the descriptor's download URL, falling back to the raw
// file path (present on some sound-effect descriptors).
func fileURL(f File) string {
	if f.DownloadFilePath != "" {
		return f.DownloadFilePath
	}
	return f.FilePath
}

// selectFromFiles applies the format-preference policy to a file list:
// audio-only, WAV first, then AAC, then MP3, then any remaining audio file.
// Returns "" when no usable audio descriptor exists.
func selectFromFiles(files []File) string {
	var audio []File
	for _, f := range files {
		if isAudioFile(f) {
			audio = append(audio, f)
		}
	}
	if len(audio) == 0 {
		return ""
	}

	for _, want := range formatPreference {
		for _, f := range audio {
			if strings.EqualFold(f.FileFormat, want) && fileURL(f) != "" {
				return fileURL(f)
			}
		}
	}
	for _, f := range audio {
		if fileURL(f) != "" {
			return fileURL(f)
		}
	}
	return ""
}

// SelectFileURL resolves the best downloadable URL for an asset.
//
// Priority for sound effects: the direct downloadable-path fields, then the
// waveform download URL, then the file list, then the preview URL. Music
// skips the direct fields, which only exist on sound-effect responses. A
// preview URL is accepted only when it actually points at audio payload,
// never a metadata endpoint.
func SelectFileURL(a *Asset, sfx bool) string {
	if sfx {
		if a.SiteDownloadableFilePath != "" {
			return a.SiteDownloadableFilePath
		}
		if a.DownloadFilePath != "" {
			return a.DownloadFilePath
		}
	}

	if a.Waveform != nil && a.Waveform.DownloadFileURL != "" {
		return a.Waveform.DownloadFileURL
	}

	if u := selectFromFiles(a.Files); u != "" {
		return u
	}

	preview := a.SitePlayableFilePath
	if a.Waveform != nil && a.Waveform.PlayableFileURL != "" {
		preview = a.Waveform.PlayableFileURL
	}
	if arturl.IsPlayable(preview) {
		return preview
	}
	return ""
}

// Normalize converts a raw catalog asset into a track record, applying the
// file-selection policy and the default artist/album fallbacks.
func Normalize(a *Asset, sfx bool) *core.TrackRecord {
	rec := &core.TrackRecord{
		TrackID:    a.AssetID(),
		TrackName:  a.Name(),
		Sfx:        sfx,
		FileURL:    SelectFileURL(a, sfx),
		DetectedAt: time.Now(),
	}
	if rec.TrackName == "" {
		rec.TrackName = core.PlaceholderName
	}

	if sfx {
		rec.ArtistName = core.SfxArtist
		rec.AlbumName = rec.TrackName
		return rec
	}

	rec.ArtistID = a.ArtistID.String()
	rec.ArtistName = a.ArtistName
	if a.Artist != nil {
		if rec.ArtistID == "" {
			rec.ArtistID = a.Artist.ID.String()
		}
		if rec.ArtistName == "" {
			rec.ArtistName = a.Artist.Name
		}
	}
	if rec.ArtistName == "" {
		rec.ArtistName = core.UnknownArtist
	}

	rec.AlbumID = a.AlbumID.String()
	rec.AlbumName = a.AlbumName
	if a.Album != nil {
		if rec.AlbumID == "" {
			rec.AlbumID = a.Album.ID.String()
		}
		if rec.AlbumName == "" {
			rec.AlbumName = a.Album.Title
		}
	}
	if rec.AlbumName == "" {
		rec.AlbumName = rec.TrackName
	}
	return rec
}
