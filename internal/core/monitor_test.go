package core

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestMonitor(session *stubSession, ex *scriptedExtractor) (*Monitor, *Coordinator) {
	cfg := testDetectConfig()
	c := newTestCoordinator(session, ex, nil, cfg)
	m := NewMonitor(zap.NewNop(), session, c, cfg)
	return m, c
}

func TestMonitor_DetectsOnFirstSource(t *testing.T) {
	session := &stubSession{state: &PageState{
		Audio: AudioState{Found: true, CurrentSrc: "https://cdn.example/files/1.aac", Paused: false},
	}}
	ex := &scriptedExtractor{recs: []*TrackRecord{{TrackID: "1", TrackName: "A"}}}
	m, c := newTestMonitor(session, ex)

	m.poll(context.Background())

	if cur := c.Current(); cur == nil || cur.TrackID != "1" {
		t.Errorf("Current() = %+v, want detection on first observed source", cur)
	}
}

func TestMonitor_SourceChangeResetsAndRedetects(t *testing.T) {
	session := &stubSession{state: &PageState{
		Audio: AudioState{Found: true, CurrentSrc: "https://cdn.example/files/1.aac"},
	}}
	ex := &scriptedExtractor{recs: []*TrackRecord{
		{TrackID: "1", TrackName: "A"},
		{TrackID: "2", TrackName: "B"},
	}}
	m, c := newTestMonitor(session, ex)

	m.poll(context.Background())
	session.setState(&PageState{
		Audio: AudioState{Found: true, CurrentSrc: "https://cdn.example/files/2.aac"},
	})
	m.poll(context.Background())

	if cur := c.Current(); cur == nil || cur.TrackID != "2" {
		t.Errorf("Current() = %+v, want new track after source change", cur)
	}
}

func TestMonitor_PlayStartTriggersDetection(t *testing.T) {
	session := &stubSession{state: &PageState{
		Audio: AudioState{Found: true, CurrentSrc: "https://cdn.example/files/1.aac", Paused: true},
	}}
	ex := &scriptedExtractor{recs: []*TrackRecord{
		{TrackID: "1", TrackName: "A"},
		{TrackID: "1", TrackName: "A"},
	}}
	m, c := newTestMonitor(session, ex)

	m.poll(context.Background()) // first source observed
	c.OnSourceChange()           // clear so the play event is observable

	session.setState(&PageState{
		Audio: AudioState{Found: true, CurrentSrc: "https://cdn.example/files/1.aac", Paused: false},
	})
	m.poll(context.Background())

	if cur := c.Current(); cur == nil {
		t.Error("Current() = nil, want detection when playback starts")
	}
}

func TestMonitor_ProgressThrottled(t *testing.T) {
	session := &stubSession{state: &PageState{
		Audio: AudioState{Found: true, CurrentSrc: "https://cdn.example/files/1.aac", Paused: false, CurrentTime: 1},
	}}
	ex := &scriptedExtractor{recs: []*TrackRecord{
		{TrackID: "1", TrackName: "A"},
		{TrackID: "1", TrackName: "A"},
		{TrackID: "1", TrackName: "A"},
	}}
	m, _ := newTestMonitor(session, ex)
	m.config.ProgressInterval = time.Hour

	m.poll(context.Background()) // first source
	for i := 2; i <= 4; i++ {
		session.setState(&PageState{
			Audio: AudioState{Found: true, CurrentSrc: "https://cdn.example/files/1.aac", Paused: false, CurrentTime: float64(i)},
		})
		m.poll(context.Background())
	}

	// One detection for the first source, then at most one progress pass
	// before the throttle engages.
	if got := ex.callCount(); got > 2 {
		t.Errorf("extractor calls = %d, want <= 2 with progress throttled", got)
	}
}

func TestMonitor_NoAudioResetsTracking(t *testing.T) {
	session := &stubSession{state: &PageState{
		Audio: AudioState{Found: true, CurrentSrc: "https://cdn.example/files/1.aac"},
	}}
	ex := &scriptedExtractor{recs: []*TrackRecord{
		{TrackID: "1", TrackName: "A"},
		{TrackID: "1", TrackName: "A"},
	}}
	m, _ := newTestMonitor(session, ex)

	m.poll(context.Background())
	session.setState(&PageState{Audio: AudioState{Found: false}})
	m.poll(context.Background())

	if m.lastSrc != "" {
		t.Errorf("lastSrc = %q after element disappeared, want empty", m.lastSrc)
	}
}
