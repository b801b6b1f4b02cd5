package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Monitor polls the tab's audio element and schedules detection passes on
// the events a content script would get for free: a new source loading,
// playback starting, and ongoing time progress. Progress re-detections are
// throttled separately from the poll cadence.
type Monitor struct {
	logger      *zap.Logger
	session     BrowserSession
	coordinator *Coordinator
	config      DetectConfig

	lastSrc      string
	lastPaused   bool
	lastTime     float64
	lastProgress time.Time
}

func NewMonitor(logger *zap.Logger, session BrowserSession, coordinator *Coordinator, config DetectConfig) *Monitor {
	return &Monitor{
		logger:      logger,
		session:     session,
		coordinator: coordinator,
		config:      config,
		lastPaused:  true,
	}
}

// Run polls until the context is cancelled. An initial detection pass runs
// immediately so a track already playing at attach time is picked up.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("Starting audio monitoring",
		zap.Duration("poll_interval", m.config.PollInterval))

	m.coordinator.Detect(ctx)

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Audio monitoring stopped")
			return nil
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	audio, err := m.session.AudioState(ctx)
	if err != nil {
		m.logger.Debug("Audio poll failed", zap.Error(err))
		return
	}
	if !audio.Found {
		m.lastSrc = ""
		m.lastPaused = true
		m.lastTime = 0
		return
	}

	src := audio.EffectiveSrc()
	switch {
	case src != m.lastSrc && m.lastSrc != "":
		m.logger.Debug("Audio source changed",
			zap.String("old", m.lastSrc),
			zap.String("new", src))
		m.coordinator.OnSourceChange()
		m.coordinator.Detect(ctx)

	case src != "" && m.lastSrc == "":
		// New element or first source: the loadeddata analogue.
		m.coordinator.Detect(ctx)

	case m.lastPaused && !audio.Paused:
		m.coordinator.Detect(ctx)

	case !audio.Paused && audio.CurrentTime > m.lastTime:
		if time.Since(m.lastProgress) >= m.config.ProgressInterval {
			m.lastProgress = time.Now()
			m.coordinator.Detect(ctx)
		}
	}

	m.lastSrc = src
	m.lastPaused = audio.Paused
	m.lastTime = audio.CurrentTime
}
