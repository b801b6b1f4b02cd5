package browser

import (
	"context"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"artgrab/internal/catalog"
	"artgrab/internal/core"
	"artgrab/internal/store"
	"artgrab/pkg/arturl"
)

// Interceptor passively watches the tab's network traffic: catalog query
// responses feed the response cache, audio media URLs feed the capture
// buffer. Strictly observe-only; requests are never blocked or modified,
// and parse failures are contained here.
type Interceptor struct {
	logger   *zap.Logger
	cache    *store.ResponseCache
	captures core.CaptureStore
}

func NewInterceptor(logger *zap.Logger, cache *store.ResponseCache, captures core.CaptureStore) *Interceptor {
	return &Interceptor{
		logger:   logger,
		cache:    cache,
		captures: captures,
	}
}

// Attach registers the event listener on a tab context. Runs until the tab
// context is cancelled.
func (i *Interceptor) Attach(tab context.Context) {
	chromedp.ListenTarget(tab, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			i.observeURL(e.Request.URL, "request")
		case *network.EventResponseReceived:
			i.observeURL(e.Response.URL, "response")
			if arturl.IsCatalogQuery(e.Response.URL) {
				// The body is only retrievable via a CDP call of its own;
				// do it off the event goroutine.
				go i.fetchResponseBody(tab, e.RequestID, e.Response.URL)
			}
		}
	})
}

// observeURL records a URL in the capture buffer when it looks like audio
// payload. Catalog query and metadata URLs never qualify.
func (i *Interceptor) observeURL(url, source string) {
	if !arturl.IsMediaURL(url) {
		return
	}
	i.captures.Add(url, source)
	i.logger.Debug("Captured media URL",
		zap.String("url", url),
		zap.String("source", source),
		zap.Int("buffered", i.captures.Len()))
}

// fetchResponseBody pulls a finished response's body over CDP and feeds it
// to the cache. Bodies of already-evicted requests are silently skipped.
func (i *Interceptor) fetchResponseBody(tab context.Context, id network.RequestID, url string) {
	var body []byte
	err := chromedp.Run(tab, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(id).Do(ctx)
		return err
	}))
	if err != nil {
		i.logger.Debug("Response body unavailable", zap.String("url", url), zap.Error(err))
		return
	}
	i.IngestResponseBody(url, body)
}

// IngestResponseBody parses one catalog query response and stores every
// asset it names. Malformed bodies are dropped without error.
func (i *Interceptor) IngestResponseBody(url string, body []byte) {
	songs, sfxs := catalog.ParseResponse(body)
	if len(songs) == 0 && len(sfxs) == 0 {
		return
	}
	i.cache.AddSongs(songs)
	i.cache.AddSfxs(sfxs)
	i.logger.Debug("Cached catalog response",
		zap.String("url", url),
		zap.Int("songs", len(songs)),
		zap.Int("sfxs", len(sfxs)),
		zap.Int("cache_size", i.cache.Size()))
}
