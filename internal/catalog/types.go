// Package catalog provides the Artlist search API integration: GraphQL
// queries by identifier, parsing of intercepted query responses, and
// normalization of raw assets into track records.
package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexID decodes catalog identifiers that appear as either JSON strings or
// numbers across API versions.
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

// String returns the canonical string form of the identifier.
func (f FlexID) String() string { return string(f) }

// Matches reports whether the identifier equals the given one, tolerating
// string and numeric representations ("042" matches "42").
func (f FlexID) Matches(id string) bool {
	if string(f) == id {
		return true
	}
	a, errA := strconv.ParseInt(string(f), 10, 64)
	b, errB := strconv.ParseInt(id, 10, 64)
	return errA == nil && errB == nil && a == b
}

// File is one downloadable file descriptor attached to an asset.
type File struct {
	FileFormat       string `json:"fileFormat"`
	FileName         string `json:"fileName"`
	DownloadFilePath string `json:"downloadFilePath"`
	FilePath         string `json:"filePath"`
}

// Waveform carries the asset's streaming and download URLs.
type Waveform struct {
	PlayableFileURL string `json:"playableFileUrl"`
	DownloadFileURL string `json:"downloadFileUrl"`
}

type artistRef struct {
	ID   FlexID `json:"id"`
	Name string `json:"name"`
}

type albumRef struct {
	ID    FlexID `json:"id"`
	Title string `json:"title"`
}

// Asset is a raw track or sound-effect record as returned by the catalog's
// query endpoint. Field names vary across endpoint versions, so the struct
// accepts both shapes and the accessors below reconcile them.
type Asset struct {
	ID         FlexID     `json:"id"`
	SongID     FlexID     `json:"songId"`
	SfxID      FlexID     `json:"sfxId"`
	Title      string     `json:"title"`
	SongName   string     `json:"songName"`
	SfxName    string     `json:"sfxName"`
	ArtistID   FlexID     `json:"artistId"`
	ArtistName string     `json:"artistName"`
	Artist     *artistRef `json:"artist"`
	AlbumID    FlexID     `json:"albumId"`
	AlbumName  string     `json:"albumName"`
	Album      *albumRef  `json:"album"`

	SitePlayableFilePath     string    `json:"sitePlayableFilePath"`
	SiteDownloadableFilePath string    `json:"siteDownloadableFilePath"`
	DownloadFilePath         string    `json:"downloadFilePath"`
	Files                    []File    `json:"files"`
	Waveform                 *Waveform `json:"waveform"`
}

// AssetID returns the asset's identifier, whichever field carries it.
func (a *Asset) AssetID() string {
	for _, id := range []FlexID{a.ID, a.SongID, a.SfxID} {
		if id != "" {
			return id.String()
		}
	}
	return ""
}

// Name returns the asset's display title, whichever field carries it.
func (a *Asset) Name() string {
	for _, n := range []string{a.Title, a.SongName, a.SfxName} {
		if n != "" {
			return n
		}
	}
	return ""
}

// MatchesID reports whether the asset carries the given identifier in any
// of its identifier fields.
func (a *Asset) MatchesID(id string) bool {
	return a.ID.Matches(id) || a.SongID.Matches(id) || a.SfxID.Matches(id)
}

// queryResponse is the envelope of a catalog GraphQL response.
type queryResponse struct {
	Data   *responseData     `json:"data"`
	Errors []json.RawMessage `json:"errors"`
}

type responseData struct {
	Song  *Asset          `json:"song"`
	Songs json.RawMessage `json:"songs"`
	Sfx   *Asset          `json:"sfx"`
	Sfxs  json.RawMessage `json:"sfxs"`
}

// ParseResponse extracts all track and sound-effect assets from a query
// response body. Single-object and array-valued fields are both accepted.
// Sound-effect assets are flagged via the second return slice. A body that
// is not a catalog response yields two empty slices, never an error: the
// interceptor treats parse failures as no data.
func ParseResponse(body []byte) (songs, sfxs []Asset) {
	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Data == nil {
		return nil, nil
	}
	if resp.Data.Song != nil {
		songs = append(songs, *resp.Data.Song)
	}
	songs = append(songs, decodeAssetList(resp.Data.Songs)...)
	if resp.Data.Sfx != nil {
		sfxs = append(sfxs, *resp.Data.Sfx)
	}
	sfxs = append(sfxs, decodeAssetList(resp.Data.Sfxs)...)
	return songs, sfxs
}

// decodeAssetList decodes an array-valued response field, tolerating a
// single object where an array was expected.
func decodeAssetList(raw json.RawMessage) []Asset {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []Asset
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil
		}
		return list
	}
	var one Asset
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil
	}
	return []Asset{one}
}
