package core

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"artgrab/pkg/arturl"
)

// Coordinator is the single entry point producing the authoritative
// current-track state. Detection passes are debounced and single-flight:
// the extraction cascade is DOM-heavy, so calls arriving while a pass runs
// or within the debounce window of the last completed pass are dropped.
type Coordinator struct {
	logger    *zap.Logger
	session   BrowserSession
	extractor Extractor
	captures  CaptureStore
	config    DetectConfig

	mu             sync.RWMutex
	currentTrack   *TrackRecord
	lastKnownTrack *TrackRecord
	lastCompleted  time.Time
	busy           bool
}

func NewCoordinator(
	logger *zap.Logger,
	session BrowserSession,
	extractor Extractor,
	captures CaptureStore,
	config DetectConfig,
) *Coordinator {
	return &Coordinator{
		logger:    logger,
		session:   session,
		extractor: extractor,
		captures:  captures,
		config:    config,
	}
}

// Detect runs one detection pass. Fire-and-forget: every failure is
// contained and leaves the prior state untouched.
func (c *Coordinator) Detect(ctx context.Context) {
	if !c.begin() {
		return
	}
	defer c.end()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("Detection pass panicked", zap.Any("panic", r))
		}
	}()

	state, err := c.session.Snapshot(ctx)
	if err != nil {
		c.logger.Debug("Snapshot failed, keeping prior state", zap.Error(err))
		return
	}

	rec := c.extractor.Extract(state)
	if rec == nil {
		c.logger.Debug("No extraction signal, keeping prior state")
		return
	}

	c.fillFileURL(rec, state)

	c.mu.Lock()
	rec.Merge(c.currentTrack)
	c.currentTrack = rec
	c.lastKnownTrack = rec
	c.mu.Unlock()

	c.logger.Info("Detected track",
		zap.String("track_id", rec.TrackID),
		zap.String("track_name", rec.TrackName),
		zap.String("artist", rec.ArtistName),
		zap.Bool("sfx", rec.Sfx),
		zap.Bool("has_url", rec.FileURL != ""))
}

// fillFileURL resolves the best immediately available audio URL: the live
// element source first, then the newest matching captured URL.
func (c *Coordinator) fillFileURL(rec *TrackRecord, state *PageState) {
	if rec.FileURL != "" {
		return
	}
	if src := state.Audio.EffectiveSrc(); arturl.IsPlayable(src) {
		rec.FileURL = src
		return
	}
	if url := c.captures.BestMatch(rec.TrackID, rec.DetectedAt, c.config.CaptureHorizon); url != "" {
		rec.FileURL = url
	}
}

// begin claims the single-flight slot, applying the debounce window against
// the last completed pass.
func (c *Coordinator) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return false
	}
	if !c.lastCompleted.IsZero() && time.Since(c.lastCompleted) < c.config.DebounceInterval {
		return false
	}
	c.busy = true
	return true
}

func (c *Coordinator) end() {
	c.mu.Lock()
	c.busy = false
	c.lastCompleted = time.Now()
	c.mu.Unlock()
}

// OnSourceChange handles the audio element switching to a new source: the
// current track no longer describes what is playing, stale captures are
// dropped, and the debounce window is re-armed so the next pass runs
// immediately.
func (c *Coordinator) OnSourceChange() {
	c.captures.RetainNewerThan(c.config.SourceChangeRetention)

	c.mu.Lock()
	c.currentTrack = nil
	c.lastCompleted = time.Time{}
	c.mu.Unlock()

	c.logger.Debug("Audio source changed, current track cleared",
		zap.Int("captures_kept", c.captures.Len()))
}

// Current returns the track detected by the most recent successful pass,
// or nil when none exists or the source changed since.
func (c *Coordinator) Current() *TrackRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyRecord(c.currentTrack)
}

// LastKnown returns the last successfully detected track, surviving source
// changes and failed passes.
func (c *Coordinator) LastKnown() *TrackRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyRecord(c.lastKnownTrack)
}

func copyRecord(rec *TrackRecord) *TrackRecord {
	if rec == nil {
		return nil
	}
	clone := *rec
	return &clone
}
