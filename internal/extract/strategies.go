package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"artgrab/internal/core"
	"artgrab/pkg/arturl"
)

// probePlayerBar reads the persistent bottom player: the strongest signal,
// because it names exactly the asset that is loaded for playback.
func probePlayerBar(p *pass) *core.TrackRecord {
	bar := findPlayerBar(p.doc)
	if bar.Length() == 0 {
		return nil
	}
	if id, name, ok := p.trackLink(trackLinks(bar)); ok {
		return p.record(id, name, artistText(bar))
	}
	// Player without a track link still carries text. Titles render in the
	// first short text node of the bar.
	name := firstTextNode(bar, 3, 100)
	if name == "" {
		return nil
	}
	return p.record("", name, artistText(bar))
}

func findPlayerBar(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{
		`[data-testid="MusicPlayer"]`,
		`[data-testid="AudioPlayer"]`,
		`[data-testid="player"]`,
	} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	if s := doc.Find("footer").Has("audio").First(); s.Length() > 0 {
		return s
	}
	return doc.Find("div, section, footer").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return classContainsFold(s, "player") && s.Find("audio").Length() > 0
	}).First()
}

// probeAudioURL correlates the playing audio element's source with the
// page. The media identifier embedded in the file URL is authoritative: it
// overrides the identifier seeded from the page path, which on pack pages
// names the pack rather than the individual asset. A recovered name
// completes the stage; an identifier alone is left on the pass for later
// stages.
func probeAudioURL(p *pass) *core.TrackRecord {
	src := p.state.Audio.EffectiveSrc()
	if src == "" || !arturl.IsPlayable(src) {
		return nil
	}
	p.markSfx(src)

	if realID := arturl.MediaID(src); realID != "" {
		p.id = realID
	}
	if p.id == "" {
		return nil
	}

	// A link that points at this exact asset carries the display name.
	links := trackLinks(p.doc.Selection).FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return arturl.TrailingID(href) == p.id
	})
	if id, name, ok := p.trackLink(links); ok {
		if id == "" {
			id = p.id
		}
		return p.record(id, name, artistText(links.First().Closest("tr, li, div")))
	}
	return nil
}

// probeModal reads an open track-detail modal.
func probeModal(p *pass) *core.TrackRecord {
	modal := findModal(p.doc)
	if modal.Length() == 0 {
		return nil
	}
	if id, name, ok := p.trackLink(trackLinks(modal)); ok {
		return p.record(id, name, artistText(modal))
	}
	heading := strings.TrimSpace(modal.Find("h1, h2, h3").First().Text())
	if heading == "" {
		return nil
	}
	return p.record(p.id, heading, artistText(modal))
}

func findModal(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{`[role="dialog"]`, `[data-testid="Modal"]`} {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}
	return doc.Find("div, section").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return classContainsFold(s, "modal")
	}).First()
}

// probeActiveRow scans list rows for one whose pause control is visible and
// enabled, which marks the row as currently playing.
func probeActiveRow(p *pass) *core.TrackRecord {
	tables := findTables(p.doc)
	if tables.Length() == 0 {
		return nil
	}
	var rec *core.TrackRecord
	rowsOf(tables).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		active := pauseControls(row).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return visibleEnabled(s)
		})
		if active.Length() == 0 {
			return true
		}
		if id, name, ok := p.trackLink(trackLinks(row)); ok {
			rec = p.record(id, name, artistText(row))
			return false
		}
		return true
	})
	return rec
}

func findTables(doc *goquery.Document) *goquery.Selection {
	for _, sel := range []string{
		`[data-testid="AudioTable"]`,
		`[data-testid="ComposableAudioList"]`,
		"table",
		`[role="table"]`,
	} {
		if s := doc.Find(sel); s.Length() > 0 {
			return s
		}
	}
	return doc.Find("__none__")
}

func rowsOf(tables *goquery.Selection) *goquery.Selection {
	rows := tables.Find(`tr, [role="row"]`)
	if rows.Length() > 0 {
		return rows
	}
	return tables.Find("div, li").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return classContainsFold(s, "row")
	})
}

// probePageURL derives the asset from the page location itself: detail
// pages embed the identifier in the path and the name in the main heading
// or the document title.
func probePageURL(p *pass) *core.TrackRecord {
	path := p.state.Path
	var slug string
	switch {
	case arturl.IsSfx(path):
		slug = arturl.TrailingID(path)
	case strings.Contains(path, "/song/"):
		slug = arturl.TrailingID(path)
	default:
		return probeDocumentTitle(p)
	}
	if slug == "" {
		return probeDocumentTitle(p)
	}

	// Detail paths end in the numeric identifier with the name slug just
	// before it: /song/summer-nights/321.
	nameSlug := slug
	if isDigits(slug) {
		nameSlug = arturl.PackSlug(path)
	}

	name := bestHeading(p.doc, arturl.TitleFromSlug(nameSlug))
	if name == "" {
		if title, artist, ok := arturl.ParseDocumentTitle(p.state.Title); ok {
			return p.record(slug, title, artist)
		}
		return nil
	}
	return p.record(slug, name, artistText(p.doc.Selection))
}

func probeDocumentTitle(p *pass) *core.TrackRecord {
	title, artist, ok := arturl.ParseDocumentTitle(p.state.Title)
	if !ok {
		return nil
	}
	return p.record(p.id, title, artist)
}

// bestHeading picks the page heading most similar to the expected title.
// Detail pages render several headings (asset name, related sections,
// promos); string similarity against the slug-derived title disambiguates.
func bestHeading(doc *goquery.Document, expect string) string {
	headings := doc.Find(`h1, [data-testid="Heading"], h2`)
	if headings.Length() == 0 {
		return ""
	}
	if expect == "" {
		return strings.TrimSpace(headings.First().Text())
	}
	metric := metrics.NewJaroWinkler()
	best, bestScore := "", -1.0
	headings.Each(func(_ int, h *goquery.Selection) {
		text := strings.TrimSpace(h.Text())
		if text == "" {
			return
		}
		score := strutil.Similarity(strings.ToLower(text), strings.ToLower(expect), metric)
		if score > bestScore {
			best, bestScore = text, score
		}
	})
	return best
}

// probeIndicatorScan is the broad sweep: any visible, enabled pause control
// anywhere on the page, walking up to its containing row or card for a
// name. Pack links count too, with the name derived from the pack slug.
func probeIndicatorScan(p *pass) *core.TrackRecord {
	var rec *core.TrackRecord
	controls := pauseControls(p.doc.Selection)
	controls.EachWithBreak(func(_ int, ctl *goquery.Selection) bool {
		if !visibleEnabled(ctl) {
			return true
		}
		container := closestContainer(ctl)
		if container.Length() == 0 {
			return true
		}
		if r := p.containerRecord(container); r != nil {
			rec = r
			return false
		}
		return true
	})
	if rec != nil {
		return rec
	}

	// Secondary sweep: rows flagged playing or active by class.
	playing := p.doc.Find("tr, li, div").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return classContainsFold(s, "playing") || classContainsFold(s, "active")
	})
	playing.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if r := p.containerRecord(row); r != nil {
			rec = r
			return false
		}
		return true
	})
	return rec
}

func closestContainer(ctl *goquery.Selection) *goquery.Selection {
	if c := ctl.Closest(`tr, [role="row"], li`); c.Length() > 0 {
		return c
	}
	for n := ctl.Parent(); n.Length() > 0; n = n.Parent() {
		if classContainsFold(n, "row") || classContainsFold(n, "item") || classContainsFold(n, "card") {
			return n
		}
		if goquery.NodeName(n) == "body" {
			break
		}
	}
	return ctl.Parent()
}

// containerRecord extracts a record from a row or card container: track
// link first, pack link next, free text last.
func (p *pass) containerRecord(container *goquery.Selection) *core.TrackRecord {
	if id, name, ok := p.trackLink(trackLinks(container)); ok {
		return p.record(id, name, artistText(container))
	}
	pack := container.Find(`a[href*="/sfx/pack/"], a[href*="/pack/"]`).First()
	if pack.Length() > 0 {
		href, _ := pack.Attr("href")
		p.markSfx(href)
		name := strings.TrimSpace(pack.Text())
		if name == "" {
			name = arturl.TitleFromSlug(arturl.PackSlug(href))
		}
		if name != "" {
			return p.record(arturl.TrailingID(href), name, artistText(container))
		}
	}
	if text := firstTextNode(container, 3, 100); text != "" {
		return p.record(p.id, text, artistText(container))
	}
	return nil
}

// probeGeneric is the terminal fallback: audio is demonstrably playing but
// nothing on the page names it. Emits a placeholder record carrying
// whatever identifier the pass collected, so resolution can still try the
// captured-URL path. Returns nil only when there is no audio at all.
func probeGeneric(p *pass) *core.TrackRecord {
	audio := p.state.Audio
	if !audio.Found || audio.EffectiveSrc() == "" {
		return nil
	}
	p.markSfx(audio.EffectiveSrc())
	id := p.id
	if id == "" {
		id = arturl.MediaID(audio.EffectiveSrc())
	}
	return p.record(id, core.PlaceholderName, "")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// firstTextNode returns the first piece of element text in sel whose
// trimmed length falls within [min, max]. Skips script and style bodies.
func firstTextNode(sel *goquery.Selection, min, max int) string {
	var found string
	sel.Find("span, div, p, h1, h2, h3, h4").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		text := strings.TrimSpace(s.Text())
		if len(text) >= min && len(text) <= max {
			found = text
			return false
		}
		return true
	})
	return found
}
