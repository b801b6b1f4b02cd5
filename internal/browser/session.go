// Package browser attaches to the user's running Chrome over the DevTools
// protocol: it finds the Artlist tab, samples page and audio-element state,
// exports cookies for authenticated downloads, and passively intercepts
// network traffic.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"artgrab/internal/core"
)

// evalTimeout bounds every JS evaluation against the tab.
const evalTimeout = 15 * time.Second

// audioProbeJS samples the page's audio elements, walking open shadow roots
// and same-origin iframes. A playing element wins over an idle one.
const audioProbeJS = `(() => {
	const found = [];
	const walk = (root, inShadow) => {
		if (!root || !root.querySelectorAll) return;
		for (const el of root.querySelectorAll('audio')) found.push({ el, inShadow });
		for (const el of root.querySelectorAll('*')) {
			if (el.shadowRoot) walk(el.shadowRoot, true);
		}
	};
	walk(document, false);
	for (const frame of document.querySelectorAll('iframe')) {
		try { walk(frame.contentDocument, false); } catch (e) {}
	}
	const pick = found.find(f => f.el.currentSrc && !f.el.paused)
		|| found.find(f => f.el.currentSrc || f.el.src)
		|| found[0];
	if (!pick) {
		return { found: false, src: '', currentSrc: '', paused: true, currentTime: 0, inShadow: false };
	}
	return {
		found: true,
		src: pick.el.src || '',
		currentSrc: pick.el.currentSrc || '',
		paused: !!pick.el.paused,
		currentTime: pick.el.currentTime || 0,
		inShadow: pick.inShadow,
	};
})()`

// snapshotJS captures location, title, rendered HTML and the audio sample in
// a single evaluation so the extraction pass sees one consistent state.
const snapshotJS = `(() => {
	const audio = ` + audioProbeJS + `;
	return {
		url: location.href,
		path: location.pathname,
		title: document.title,
		html: document.documentElement ? document.documentElement.outerHTML : '',
		audio: audio,
	};
})()`

type pageSnapshot struct {
	URL   string          `json:"url"`
	Path  string          `json:"path"`
	Title string          `json:"title"`
	HTML  string          `json:"html"`
	Audio core.AudioState `json:"audio"`
}

// Session is an attached DevTools connection to one Artlist tab.
// Implements core.BrowserSession.
type Session struct {
	logger *zap.Logger
	config core.BrowserConfig

	mu            sync.Mutex
	tab           context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	tabCancel     context.CancelFunc
}

func NewSession(config core.BrowserConfig, logger *zap.Logger) *Session {
	return &Session{
		logger: logger,
		config: config,
	}
}

// Connect dials the DevTools endpoint and attaches to the first open tab on
// the configured host. Returns core.ErrNoTarget when no such tab exists.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, s.config.DevToolsURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	infos, err := chromedp.Targets(browserCtx)
	if err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("listing browser targets: %w", err)
	}

	info := pickTarget(infos, s.config.TargetHost)
	if info == nil {
		browserCancel()
		allocCancel()
		return core.ErrNoTarget
	}

	tab, tabCancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(info.TargetID))
	if err := chromedp.Run(tab, network.Enable()); err != nil {
		tabCancel()
		browserCancel()
		allocCancel()
		return fmt.Errorf("enabling network domain: %w", err)
	}

	s.tab = tab
	s.allocCancel = allocCancel
	s.browserCancel = browserCancel
	s.tabCancel = tabCancel

	s.logger.Info("Attached to browser tab",
		zap.String("url", info.URL),
		zap.String("title", info.Title))
	return nil
}

// pickTarget returns the first page target whose URL is on the wanted host.
func pickTarget(infos []*target.Info, host string) *target.Info {
	for _, info := range infos {
		if info.Type == "page" && strings.Contains(info.URL, host) {
			return info
		}
	}
	return nil
}

// TabContext exposes the tab's chromedp context for event listeners.
// Nil before Connect.
func (s *Session) TabContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tab
}

// Close detaches from the browser. The browser itself keeps running.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tabCancel != nil {
		s.tabCancel()
		s.browserCancel()
		s.allocCancel()
		s.tab = nil
		s.tabCancel = nil
	}
}

// Snapshot captures the current page state including the audio sample.
func (s *Session) Snapshot(ctx context.Context) (*core.PageState, error) {
	var snap pageSnapshot
	if err := s.run(ctx, chromedp.Evaluate(snapshotJS, &snap)); err != nil {
		return nil, fmt.Errorf("capturing page snapshot: %w", err)
	}
	return &core.PageState{
		URL:   snap.URL,
		Path:  snap.Path,
		Title: snap.Title,
		HTML:  snap.HTML,
		Audio: snap.Audio,
	}, nil
}

// AudioState samples only the audio element, cheaper than Snapshot.
func (s *Session) AudioState(ctx context.Context) (core.AudioState, error) {
	var state core.AudioState
	if err := s.run(ctx, chromedp.Evaluate(audioProbeJS, &state)); err != nil {
		return core.AudioState{}, fmt.Errorf("sampling audio element: %w", err)
	}
	return state, nil
}

// CookieHeader exports the tab's cookies for the given URL host as a Cookie
// request header value, so downloads carry the user's session.
func (s *Session) CookieHeader(ctx context.Context, host string) (string, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("exporting cookies: %w", err)
	}

	var pairs []string
	for _, c := range cookies {
		if cookieMatchesHost(c.Domain, host) {
			pairs = append(pairs, c.Name+"="+c.Value)
		}
	}
	return strings.Join(pairs, "; "), nil
}

func cookieMatchesHost(domain, host string) bool {
	domain = strings.TrimPrefix(domain, ".")
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// run executes chromedp actions against the tab with the standard timeout,
// honoring cancellation of the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	tab := s.TabContext()
	if tab == nil {
		return core.ErrNoTarget
	}
	runCtx, cancel := context.WithTimeout(tab, evalTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}
