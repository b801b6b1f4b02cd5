package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"artgrab/internal/core"
)

const (
	// maxResponseSize limits how much of a query response is read.
	maxResponseSize = 4 << 20
	// commonUserAgent is the user agent string used for catalog requests.
	commonUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

const songQuery = `query Songs($ids: [String!]!) {
  songs(ids: $ids) {
    songId
    songName
    artistId
    artistName
    albumId
    albumName
    sitePlayableFilePath
    files { fileFormat fileName downloadFilePath }
    waveform { playableFileUrl downloadFileUrl }
  }
}`

const sfxQuery = `query Sfxs($ids: [String!]!) {
  sfxs(ids: $ids) {
    sfxId
    sfxName
    sitePlayableFilePath
    siteDownloadableFilePath
    downloadFilePath
    files { fileFormat fileName downloadFilePath filePath }
    waveform { playableFileUrl downloadFileUrl }
  }
}`

// Client queries the catalog's GraphQL endpoint by asset identifier.
// Failed or malformed responses yield nil records, not errors: the resolver
// treats every query outcome as best-effort and falls through to the next
// strategy.
type Client struct {
	config  *core.CatalogConfig
	logger  *zap.Logger
	client  *http.Client
	limiter *rate.Limiter
}

func NewClient(config *core.CatalogConfig, logger *zap.Logger) *Client {
	return &Client{
		config:  config,
		logger:  logger,
		client:  &http.Client{Timeout: config.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(config.RatePerSec), 1),
	}
}

// SongByID fetches a music track by identifier and normalizes it.
// Returns nil when the query fails or the track does not exist.
func (c *Client) SongByID(ctx context.Context, id string) *core.TrackRecord {
	asset := c.query(ctx, songQuery, id)
	if asset == nil {
		return nil
	}
	return Normalize(asset, false)
}

// SfxByID fetches a sound effect by identifier and normalizes it.
// Returns nil when the query fails or the effect does not exist.
func (c *Client) SfxByID(ctx context.Context, id string) *core.TrackRecord {
	asset := c.query(ctx, sfxQuery, id)
	if asset == nil {
		return nil
	}
	return Normalize(asset, true)
}

func (c *Client) query(ctx context.Context, query, id string) *Asset {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": map[string]any{"ids": []string{id}},
	})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", commonUserAgent)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("Catalog query failed", zap.String("id", id), zap.Error(err))
		return nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("Catalog query returned non-OK status",
			zap.String("id", id),
			zap.Int("status", resp.StatusCode))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil
	}

	var envelope queryResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.logger.Debug("Catalog response parse failed", zap.String("id", id), zap.Error(err))
		return nil
	}
	if len(envelope.Errors) > 0 || envelope.Data == nil {
		return nil
	}

	asset := firstAsset(envelope.Data)
	if asset == nil {
		c.logger.Debug("Catalog query found no asset", zap.String("id", id))
		return nil
	}

	c.logger.Debug("Catalog query succeeded",
		zap.String("id", id),
		zap.Duration("elapsed", time.Since(start)))
	return asset
}

// firstAsset returns the first asset in a response, whichever field holds it.
func firstAsset(data *responseData) *Asset {
	if data.Song != nil {
		return data.Song
	}
	if list := decodeAssetList(data.Songs); len(list) > 0 {
		return &list[0]
	}
	if data.Sfx != nil {
		return data.Sfx
	}
	if list := decodeAssetList(data.Sfxs); len(list) > 0 {
		return &list[0]
	}
	return nil
}
