package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"artgrab/internal/core"
	"artgrab/internal/download"
	"artgrab/internal/history"
	"artgrab/internal/store"
)

type fakeResolver struct {
	rec       *core.TrackRecord
	err       error
	scrapeRec *core.TrackRecord
	scrapeErr error
}

func (f *fakeResolver) Resolve(context.Context, string, bool) (*core.TrackRecord, error) {
	return f.rec, f.err
}

func (f *fakeResolver) ScrapePage(context.Context) (*core.TrackRecord, error) {
	return f.scrapeRec, f.scrapeErr
}

type fixedSession struct {
	state *core.PageState
}

func (f *fixedSession) Snapshot(context.Context) (*core.PageState, error) {
	return f.state, nil
}

func (f *fixedSession) AudioState(context.Context) (core.AudioState, error) {
	return f.state.Audio, nil
}

type fixedExtractor struct {
	rec *core.TrackRecord
}

func (f *fixedExtractor) Extract(*core.PageState) *core.TrackRecord {
	if f.rec == nil {
		return nil
	}
	clone := *f.rec
	return &clone
}

type testServer struct {
	server  *Server
	tracker *core.Coordinator
	hist    *history.Store
}

func newTestServer(t *testing.T, detected *core.TrackRecord, resolver core.Resolver) *testServer {
	t.Helper()

	cfg := core.DefaultConfig()
	cfg.Detect.DebounceInterval = 0
	cfg.Download.Dir = filepath.Join(t.TempDir(), "downloads")
	cfg.Download.Timeout = 5 * time.Second

	captures := store.NewCaptureBuffer(10)
	tracker := core.NewCoordinator(zap.NewNop(),
		&fixedSession{state: &core.PageState{}},
		&fixedExtractor{rec: detected},
		captures, cfg.Detect)
	if detected != nil {
		tracker.Detect(context.Background())
	}

	hist, err := history.Open(filepath.Join(t.TempDir(), "history.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("history.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = hist.Close()
	})

	dl := download.NewDownloader(cfg.Download, nil, hist, zap.NewNop())
	srv := NewServer(&cfg.Server, zap.NewNop(), tracker, resolver, dl, hist, captures)
	return &testServer{server: srv, tracker: tracker, hist: hist}
}

func doRequest(t *testing.T, ts *testServer, method, path, body string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)

	var resp response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
	return rr, resp
}

func dataRecord(t *testing.T, resp response) *core.TrackRecord {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	var rec core.TrackRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("decoding data %v: %v", resp.Data, err)
	}
	return &rec
}

func TestCurrentSong_NoState(t *testing.T) {
	ts := newTestServer(t, nil, &fakeResolver{err: core.ErrNoSignal})

	rr, resp := doRequest(t, ts, http.MethodGet, "/api/current-song", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if resp.Success {
		t.Error("Success = true with no detected track")
	}
	if !strings.Contains(resp.Error, "play") {
		t.Errorf("Error = %q, want playback hint", resp.Error)
	}
}

func TestCurrentSong_ReturnsDetectedTrack(t *testing.T) {
	detected := &core.TrackRecord{
		TrackID:    "123",
		TrackName:  "Lo-Fi Beat",
		ArtistName: "DJ Test",
		FileURL:    "https://cdn.example/files/123.aac",
	}
	ts := newTestServer(t, detected, &fakeResolver{err: core.ErrNoSignal})

	_, resp := doRequest(t, ts, http.MethodGet, "/api/current-song", "")
	if !resp.Success {
		t.Fatalf("Success = false, error = %q", resp.Error)
	}
	rec := dataRecord(t, resp)
	if rec.TrackID != "123" || rec.FileURL == "" {
		t.Errorf("data = %+v, want detected track with URL", rec)
	}
}

func TestCurrentSong_EnrichesMissingURL(t *testing.T) {
	detected := &core.TrackRecord{TrackID: "123", TrackName: "Lo-Fi Beat", ArtistName: "DJ Test"}
	resolver := &fakeResolver{rec: &core.TrackRecord{
		TrackID:   "123",
		TrackName: "Lo-Fi Beat",
		FileURL:   "https://cdn.example/files/123.wav",
	}}
	ts := newTestServer(t, detected, resolver)

	_, resp := doRequest(t, ts, http.MethodGet, "/api/current-song", "")
	if !resp.Success {
		t.Fatalf("Success = false, error = %q", resp.Error)
	}
	rec := dataRecord(t, resp)
	if rec.FileURL != "https://cdn.example/files/123.wav" {
		t.Errorf("FileURL = %q, want enriched URL", rec.FileURL)
	}
	if rec.ArtistName != "DJ Test" {
		t.Errorf("ArtistName = %q, want detail carried from detection", rec.ArtistName)
	}
}

func TestSongInfo(t *testing.T) {
	resolver := &fakeResolver{rec: &core.TrackRecord{
		TrackID:   "777",
		TrackName: "Night Drive",
		FileURL:   "https://cdn.example/files/777.mp3",
	}}
	ts := newTestServer(t, nil, resolver)

	_, resp := doRequest(t, ts, http.MethodGet, "/api/song-info?id=777", "")
	if !resp.Success {
		t.Fatalf("Success = false, error = %q", resp.Error)
	}
	if rec := dataRecord(t, resp); rec.TrackID != "777" {
		t.Errorf("TrackID = %q, want 777", rec.TrackID)
	}
}

func TestSongInfo_MissingID(t *testing.T) {
	ts := newTestServer(t, nil, &fakeResolver{})

	rr, resp := doRequest(t, ts, http.MethodGet, "/api/song-info", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	if resp.Success {
		t.Error("Success = true without id")
	}
}

func TestSfxInfo_ResolutionError(t *testing.T) {
	ts := newTestServer(t, nil, &fakeResolver{err: core.ErrNoPlayableURL})

	rr, resp := doRequest(t, ts, http.MethodGet, "/api/sfx-info?id=555", "")
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with success=false", rr.Code)
	}
	if resp.Success || resp.Error != core.ErrNoPlayableURL.Error() {
		t.Errorf("response = %+v, want resolution error surfaced", resp)
	}
}

func TestAnySong(t *testing.T) {
	resolver := &fakeResolver{scrapeRec: &core.TrackRecord{
		TrackID:   "888",
		TrackName: "Scraped",
		FileURL:   "https://cdn.example/files/888.aac",
	}}
	ts := newTestServer(t, nil, resolver)

	_, resp := doRequest(t, ts, http.MethodGet, "/api/any-song", "")
	if !resp.Success {
		t.Fatalf("Success = false, error = %q", resp.Error)
	}
	if rec := dataRecord(t, resp); rec.TrackName != "Scraped" {
		t.Errorf("TrackName = %q, want scrape result", rec.TrackName)
	}
}

func TestDownload(t *testing.T) {
	fileSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("audio"))
	}))
	defer fileSrv.Close()

	resolver := &fakeResolver{rec: &core.TrackRecord{
		TrackID:    "555",
		TrackName:  "Big Whoosh",
		ArtistName: "Artlist",
		Sfx:        true,
		FileURL:    fileSrv.URL + "/555.aac",
	}}
	ts := newTestServer(t, nil, resolver)

	_, resp := doRequest(t, ts, http.MethodPost, "/api/download", `{"id":"555","isSoundEffect":true}`)
	if !resp.Success {
		t.Fatalf("Success = false, error = %q", resp.Error)
	}

	raw, _ := json.Marshal(resp.Data)
	var dl downloadResponse
	if err := json.Unmarshal(raw, &dl); err != nil {
		t.Fatalf("decoding download response: %v", err)
	}
	if dl.Filename != "[SFX] Artlist - Big Whoosh.aac" {
		t.Errorf("Filename = %q", dl.Filename)
	}
}

func TestDownload_BadBody(t *testing.T) {
	ts := newTestServer(t, nil, &fakeResolver{})

	rr, _ := doRequest(t, ts, http.MethodPost, "/api/download", "not json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestHistory_EmptyList(t *testing.T) {
	ts := newTestServer(t, nil, &fakeResolver{})

	_, resp := doRequest(t, ts, http.MethodGet, "/api/history", "")
	if !resp.Success {
		t.Fatalf("Success = false, error = %q", resp.Error)
	}
	list, ok := resp.Data.([]any)
	if !ok {
		t.Fatalf("Data = %T, want array", resp.Data)
	}
	if len(list) != 0 {
		t.Errorf("history length = %d, want 0", len(list))
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil, &fakeResolver{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "artgrab") {
		t.Errorf("body = %q, want service name", rr.Body.String())
	}
}

func TestResponseFieldNames(t *testing.T) {
	// The wire format keeps the original field names the popup expects.
	resolver := &fakeResolver{rec: &core.TrackRecord{
		TrackID:   "1",
		TrackName: "A",
		Sfx:       true,
		FileURL:   "https://cdn.example/files/1.aac",
	}}
	ts := newTestServer(t, nil, resolver)

	rr, _ := doRequest(t, ts, http.MethodGet, "/api/sfx-info?id=1", "")
	body := rr.Body.String()
	for _, field := range []string{`"trackId"`, `"trackName"`, `"isSoundEffect"`, `"playableFileUrl"`} {
		if !strings.Contains(body, field) {
			t.Errorf("response %q missing field %s", body, field)
		}
	}
}
