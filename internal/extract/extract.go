// Package extract implements the best-effort DOM extraction cascade: an
// ordered list of independent probes that inspect a page snapshot and
// produce a track record for whatever the user is currently playing.
//
// The target markup is third-party and unstable, so every probe is a
// heuristic. Probes run in priority order and the first one to yield a
// record wins; later probes never run once a record exists. Probes may
// leave partial findings (an identifier without a name) on the pass for
// later probes to complete.
package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"artgrab/internal/core"
	"artgrab/pkg/arturl"
)

// Extractor runs the probe cascade over page snapshots.
type Extractor struct {
	logger *zap.Logger
	probes []probe
}

// probe is one orderable extraction strategy. It returns a complete record
// or nil to let the cascade continue.
type probe struct {
	name string
	run  func(p *pass) *core.TrackRecord
}

// pass carries the per-extraction state shared by the cascade stages:
// the parsed document, the snapshot, and partial findings. The sound-effect
// classification is latched: once any stage observes a positive signal it
// stays set for the remainder of the pass.
type pass struct {
	doc   *goquery.Document
	state *core.PageState

	sfx bool
	// id is the working identifier: seeded from a detail or pack path,
	// overridden by the media URL, carried into fallback records.
	id string
}

// NewExtractor creates an extractor with the full strategy cascade in its
// default priority order.
func NewExtractor(logger *zap.Logger) *Extractor {
	e := &Extractor{logger: logger}
	e.probes = []probe{
		{name: "player_bar", run: probePlayerBar},
		{name: "audio_url", run: probeAudioURL},
		{name: "modal", run: probeModal},
		{name: "active_row", run: probeActiveRow},
		{name: "page_url", run: probePageURL},
		{name: "indicator_scan", run: probeIndicatorScan},
		{name: "generic", run: probeGeneric},
	}
	return e
}

// Extract runs the cascade over a snapshot. Returns nil only when no stage
// produced even a placeholder: no audio source and no textual evidence.
// All probe panics are contained; a failing probe counts as no data.
func (e *Extractor) Extract(state *core.PageState) *core.TrackRecord {
	if state == nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(state.HTML))
	if err != nil {
		e.logger.Debug("Snapshot HTML parse failed", zap.Error(err))
		doc = nil
	}

	p := &pass{doc: doc, state: state}
	p.markSfx(state.Path)
	p.seedID(state.Path)

	for _, pr := range e.probes {
		rec := e.runProbe(pr, p)
		if rec != nil {
			e.logger.Debug("Extraction succeeded",
				zap.String("strategy", pr.name),
				zap.String("track_id", rec.TrackID),
				zap.String("track_name", rec.TrackName),
				zap.Bool("sfx", rec.Sfx))
			return rec
		}
	}

	e.logger.Debug("Extraction found no signal")
	return nil
}

// runProbe executes one stage with panic containment: heuristics over
// arbitrary markup must never take down the detection pass.
func (e *Extractor) runProbe(pr probe, p *pass) (rec *core.TrackRecord) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Extraction strategy panicked",
				zap.String("strategy", pr.name),
				zap.Any("panic", r))
			rec = nil
		}
	}()
	if p.doc == nil && pr.name != "generic" {
		return nil
	}
	return pr.run(p)
}

// markSfx latches the sound-effect classification when the URL carries a
// marker. A positive signal is never reset within the pass.
func (p *pass) markSfx(urls ...string) {
	for _, u := range urls {
		if arturl.IsSfx(u) {
			p.sfx = true
			return
		}
	}
}

// seedID primes the working identifier from a detail or pack path, whose
// last segment is the numeric asset or pack identifier. On pack pages this
// identifier names the pack, not the playing asset; the audio-URL stage
// corrects it when the media URL disagrees.
func (p *pass) seedID(path string) {
	if !arturl.IsSfx(path) && !strings.Contains(path, "/song/") && !strings.Contains(path, "/pack/") {
		return
	}
	if id := arturl.TrailingID(path); isDigits(id) {
		p.id = id
	}
}

// record builds the final track record from a name and identifier, applying
// the artist and album defaults.
func (p *pass) record(id, name, artist string) *core.TrackRecord {
	if id == "" {
		id = core.UnknownTrackID
	}
	if artist == "" {
		if p.sfx {
			artist = core.SfxArtist
		} else {
			artist = core.UnknownArtist
		}
	}
	return &core.TrackRecord{
		TrackID:    id,
		TrackName:  name,
		ArtistName: artist,
		AlbumName:  name,
		Sfx:        p.sfx,
		DetectedAt: time.Now(),
	}
}

// trackLink reads a track or sound-effect link: display text, trailing
// identifier and the sfx latch from its href.
func (p *pass) trackLink(sel *goquery.Selection) (id, name string, ok bool) {
	link := sel.First()
	if link.Length() == 0 {
		return "", "", false
	}
	href, _ := link.Attr("href")
	name = strings.TrimSpace(link.Text())
	id = arturl.TrailingID(href)
	p.markSfx(href)
	return id, name, name != ""
}

// artistText returns the trimmed text of the first artist link in sel.
func artistText(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Find(`a[href*="/artist/"]`).First().Text())
}

// trackLinks selects song and sfx links inside a container.
func trackLinks(sel *goquery.Selection) *goquery.Selection {
	return sel.Find(`a[href*="/song/"], a[href*="/sfx/"]`)
}

// classContainsFold reports whether the node's class attribute contains the
// substring, case-insensitively. The markup randomizes class-name casing,
// so attribute selectors alone are not enough.
func classContainsFold(sel *goquery.Selection, substr string) bool {
	class, _ := sel.Attr("class")
	return strings.Contains(strings.ToLower(class), substr)
}

// attrContainsFold reports whether the named attribute contains the
// substring, case-insensitively.
func attrContainsFold(sel *goquery.Selection, attr, substr string) bool {
	v, _ := sel.Attr(attr)
	return strings.Contains(strings.ToLower(v), substr)
}

// visibleEnabled approximates the live-DOM "visible and not disabled"
// check available to a content script. A static snapshot has no layout, so
// hidden state is inferred from disabled attributes and inline styles on
// the control and its ancestors.
func visibleEnabled(sel *goquery.Selection) bool {
	btn := sel.Closest("button")
	if btn.Length() == 0 {
		btn = sel
	}
	if _, disabled := btn.Attr("disabled"); disabled {
		return false
	}
	if attrContainsFold(btn, "aria-disabled", "true") {
		return false
	}
	for n := btn; n.Length() > 0; n = n.Parent() {
		style, _ := n.Attr("style")
		lower := strings.ToLower(strings.ReplaceAll(style, " ", ""))
		if strings.Contains(lower, "display:none") || strings.Contains(lower, "visibility:hidden") {
			return false
		}
		if goquery.NodeName(n) == "body" || goquery.NodeName(n) == "html" {
			break
		}
	}
	return true
}

// pauseControls selects all pause-state controls under sel: buttons with a
// pause aria-label or title, and pause icons.
func pauseControls(sel *goquery.Selection) *goquery.Selection {
	return sel.Find("button, svg").FilterFunction(func(_ int, s *goquery.Selection) bool {
		if goquery.NodeName(s) == "svg" {
			return attrContainsFold(s, "data-icon", "pause") || attrContainsFold(s, "aria-label", "pause")
		}
		return attrContainsFold(s, "aria-label", "pause") || attrContainsFold(s, "title", "pause")
	})
}
