// Package resolve turns a track identifier into a record carrying the best
// available downloadable file URL. Sources are tried from cheapest to most
// speculative: the passively filled response cache, a direct catalog query,
// the live audio element (sound effects only), and finally a fresh page
// scrape. Every step degrades to "no data" rather than failing the chain.
package resolve

import (
	"context"
	"time"

	"go.uber.org/zap"

	"artgrab/internal/catalog"
	"artgrab/internal/core"
	"artgrab/internal/store"
	"artgrab/pkg/arturl"
)

// Service implements core.Resolver.
type Service struct {
	logger    *zap.Logger
	client    *catalog.Client
	cache     *store.ResponseCache
	captures  core.CaptureStore
	session   core.BrowserSession
	extractor core.Extractor
	window    time.Duration
}

// NewService wires the resolution chain. window bounds how far back captured
// media URLs are considered relevant.
func NewService(
	logger *zap.Logger,
	client *catalog.Client,
	cache *store.ResponseCache,
	captures core.CaptureStore,
	session core.BrowserSession,
	extractor core.Extractor,
	window time.Duration,
) *Service {
	return &Service{
		logger:    logger,
		client:    client,
		cache:     cache,
		captures:  captures,
		session:   session,
		extractor: extractor,
		window:    window,
	}
}

// Resolve runs the full source chain for one identifier. A record whose
// identity resolved but whose file URL could not be found yields
// core.ErrNoPlayableURL; a completely silent chain yields core.ErrNoSignal.
func (s *Service) Resolve(ctx context.Context, id string, sfx bool) (*core.TrackRecord, error) {
	// best holds the most complete record seen so far; its URL may still be
	// preview quality, which a later step can improve on.
	var best *core.TrackRecord

	accept := func(rec *core.TrackRecord, source string) *core.TrackRecord {
		if rec == nil {
			return nil
		}
		rec = s.upgradePreview(rec)
		if best == nil || (best.FileURL == "" && rec.FileURL != "") {
			best = rec
		}
		if rec.FileURL != "" && !arturl.IsPreview(rec.FileURL) {
			s.logger.Debug("Resolved",
				zap.String("track_id", id),
				zap.String("source", source),
				zap.String("url", rec.FileURL))
			return rec
		}
		return nil
	}

	if rec := accept(s.fromCache(id, sfx), "cache"); rec != nil {
		return rec, nil
	}
	if rec := accept(s.fromQuery(ctx, id, sfx), "query"); rec != nil {
		return rec, nil
	}
	if sfx {
		if rec := accept(s.fromPlayingAudio(ctx, id, best), "audio"); rec != nil {
			return rec, nil
		}
	}
	if rec, err := s.ScrapePage(ctx); err == nil {
		if rec.TrackID == id || best == nil {
			if r := accept(rec, "scrape"); r != nil {
				return r, nil
			}
		}
	}

	// Preview quality beats nothing.
	if best != nil && best.FileURL != "" {
		return best, nil
	}
	if best != nil {
		return nil, core.ErrNoPlayableURL
	}
	return nil, core.ErrNoSignal
}

// fromCache consults the passively captured catalog responses.
func (s *Service) fromCache(id string, sfx bool) *core.TrackRecord {
	var (
		asset *catalog.Asset
		ok    bool
	)
	if sfx {
		asset, ok = s.cache.FindSfx(id)
	} else {
		asset, ok = s.cache.FindSong(id)
	}
	if !ok {
		return nil
	}
	return catalog.Normalize(asset, sfx)
}

// fromQuery issues a direct catalog query for the identifier.
func (s *Service) fromQuery(ctx context.Context, id string, sfx bool) *core.TrackRecord {
	if sfx {
		return s.client.SfxByID(ctx, id)
	}
	return s.client.SongByID(ctx, id)
}

// fromPlayingAudio inspects the live audio element, then the capture
// buffer. Sound-effect catalog responses frequently carry only preview
// URLs, so the URL the player is actually streaming is often the only
// full-quality source. Identity fields come from the best record seen so
// far when one exists.
func (s *Service) fromPlayingAudio(ctx context.Context, id string, identity *core.TrackRecord) *core.TrackRecord {
	url := ""
	if audio, err := s.session.AudioState(ctx); err == nil {
		if src := audio.EffectiveSrc(); arturl.IsPlayable(src) {
			url = src
		}
	}
	if url == "" {
		// With a resolved identity the detection timestamp anchors the
		// lookup so a previous track's capture is never handed out.
		var since time.Time
		if identity != nil {
			since = identity.DetectedAt
		}
		url = s.captures.BestMatch(id, since, s.window)
	}
	if url == "" {
		return nil
	}

	rec := identity
	if rec == nil {
		rec = &core.TrackRecord{
			TrackID:    id,
			TrackName:  core.PlaceholderName,
			ArtistName: core.SfxArtist,
			Sfx:        true,
			DetectedAt: time.Now(),
		}
	} else {
		clone := *rec
		rec = &clone
	}
	rec.FileURL = url
	return rec
}

// ScrapePage re-derives a record straight from the current page, accepting
// the audio element's source or a captured URL as the file URL of last
// resort. Used directly by the any-song action.
func (s *Service) ScrapePage(ctx context.Context) (*core.TrackRecord, error) {
	state, err := s.session.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rec := s.extractor.Extract(state)
	if rec == nil {
		return nil, core.ErrNoSignal
	}
	if rec.FileURL == "" {
		if src := state.Audio.EffectiveSrc(); arturl.IsPlayable(src) {
			rec.FileURL = src
		} else if url := s.captures.BestMatch(rec.TrackID, rec.DetectedAt, s.window); url != "" {
			rec.FileURL = url
		}
	}
	return rec, nil
}

// upgradePreview replaces an empty or preview-quality file URL with the
// most recent relevant captured media URL when one exists.
func (s *Service) upgradePreview(rec *core.TrackRecord) *core.TrackRecord {
	if rec.FileURL != "" && !arturl.IsPreview(rec.FileURL) {
		return rec
	}
	url := s.captures.BestMatch(rec.TrackID, rec.DetectedAt, s.window)
	if url == "" || arturl.IsPreview(url) {
		return rec
	}
	clone := *rec
	clone.FileURL = url
	return &clone
}
