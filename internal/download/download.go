// Package download fetches resolved track files into the local downloads
// directory, carrying the browser session's cookies so authenticated CDN
// URLs work. Downloads are fire-and-forget: the trigger returns immediately
// and the outcome lands in the history log.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"artgrab/internal/core"
	"artgrab/internal/history"
	"artgrab/pkg/arturl"
	"artgrab/pkg/filename"
)

const referer = "https://artlist.io/"

// CookieSource exports the attached browser session's cookies for a host.
// Implemented by the browser session; optional.
type CookieSource interface {
	CookieHeader(ctx context.Context, host string) (string, error)
}

// Downloader writes resolved tracks to disk.
type Downloader struct {
	logger  *zap.Logger
	config  core.DownloadConfig
	client  *http.Client
	cookies CookieSource
	history *history.Store
}

func NewDownloader(config core.DownloadConfig, cookies CookieSource, hist *history.Store, logger *zap.Logger) *Downloader {
	return &Downloader{
		logger:  logger,
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		cookies: cookies,
		history: hist,
	}
}

// Trigger starts a background download for a resolved record and returns
// the filename it will be saved under. The record must carry a file URL.
func (d *Downloader) Trigger(rec *core.TrackRecord) (string, error) {
	if !rec.Usable() {
		return "", core.ErrNoPlayableURL
	}
	name := filename.Build(rec.ArtistName, rec.TrackName, arturl.Extension(rec.FileURL), rec.Sfx)

	clone := *rec
	go d.fetch(&clone, name)

	return name, nil
}

func (d *Downloader) fetch(rec *core.TrackRecord, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.Timeout)
	defer cancel()

	err := d.fetchTo(ctx, rec, name)
	if err != nil {
		d.logger.Warn("Download failed",
			zap.String("track_id", rec.TrackID),
			zap.String("filename", name),
			zap.Error(err))
		d.record(ctx, rec, name, history.StatusFailed, err)
		return
	}

	d.logger.Info("Download completed",
		zap.String("track_id", rec.TrackID),
		zap.String("filename", name))
	d.record(ctx, rec, name, history.StatusCompleted, nil)
}

func (d *Downloader) fetchTo(ctx context.Context, rec *core.TrackRecord, name string) error {
	if err := os.MkdirAll(d.config.Dir, 0o755); err != nil {
		return fmt.Errorf("creating downloads directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.FileURL, nil)
	if err != nil {
		return fmt.Errorf("building download request: %w", err)
	}
	req.Header.Set("Referer", referer)
	if d.cookies != nil {
		if host := urlHost(rec.FileURL); host != "" {
			if cookie, err := d.cookies.CookieHeader(ctx, host); err == nil && cookie != "" {
				req.Header.Set("Cookie", cookie)
			}
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching file: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching file: unexpected status %d", resp.StatusCode)
	}

	path := uniquePath(filepath.Join(d.config.Dir, name))
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return fmt.Errorf("writing output file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	return nil
}

func (d *Downloader) record(ctx context.Context, rec *core.TrackRecord, name, status string, cause error) {
	if d.history == nil {
		return
	}
	ev := history.Event{
		TrackID:    rec.TrackID,
		TrackName:  rec.TrackName,
		ArtistName: rec.ArtistName,
		Sfx:        rec.Sfx,
		URL:        rec.FileURL,
		Filename:   name,
		Status:     status,
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	if err := d.history.Record(ctx, ev); err != nil {
		d.logger.Warn("Recording download event failed", zap.Error(err))
	}
}

// uniquePath appends " (n)" before the extension until the path is free.
func uniquePath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
	}
}

func urlHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
