// Package http exposes the local request API: the popup-style actions
// (current song, song/sfx info by identifier, any-song scrape), download
// triggering, the download history, and operational endpoints.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"artgrab/internal/core"
	"artgrab/internal/download"
	"artgrab/internal/history"
)

// settleDelay gives an in-flight detection pass time to land before the
// current-song action reads the state.
const settleDelay = 200 * time.Millisecond

// response is the uniform action response shape.
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Server struct {
	config     *core.ServerConfig
	logger     *zap.Logger
	server     *http.Server
	metrics    *Metrics
	registry   *prometheus.Registry
	tracker    *core.Coordinator
	resolver   core.Resolver
	downloader *download.Downloader
	history    *history.Store
}

type Metrics struct {
	ActionsTotal     *prometheus.CounterVec
	ResolutionsTotal *prometheus.CounterVec
	DownloadsTotal   *prometheus.CounterVec
	ActionDuration   *prometheus.HistogramVec
	CapturedURLs     prometheus.GaugeFunc
}

func NewServer(
	config *core.ServerConfig,
	logger *zap.Logger,
	tracker *core.Coordinator,
	resolver core.Resolver,
	downloader *download.Downloader,
	hist *history.Store,
	captures core.CaptureStore,
) *Server {
	metrics := &Metrics{
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artgrab_actions_total",
				Help: "Total number of API actions handled",
			},
			[]string{"action", "status"},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artgrab_resolutions_total",
				Help: "Total number of track resolution attempts",
			},
			[]string{"kind", "status"},
		),
		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "artgrab_downloads_total",
				Help: "Total number of download triggers",
			},
			[]string{"status"},
		),
		ActionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "artgrab_action_duration_seconds",
				Help:    "Time spent handling API actions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		CapturedURLs: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "artgrab_captured_urls",
				Help: "Current number of buffered captured media URLs",
			},
			func() float64 { return float64(captures.Len()) },
		),
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.ActionsTotal,
		metrics.ResolutionsTotal,
		metrics.DownloadsTotal,
		metrics.ActionDuration,
		metrics.CapturedURLs,
	)

	s := &Server{
		config:     config,
		logger:     logger,
		metrics:    metrics,
		registry:   registry,
		tracker:    tracker,
		resolver:   resolver,
		downloader: downloader,
		history:    hist,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/current-song", s.instrument("current_song", s.handleCurrentSong))
	mux.HandleFunc("GET /api/song-info", s.instrument("song_info", s.handleSongInfo))
	mux.HandleFunc("GET /api/sfx-info", s.instrument("sfx_info", s.handleSfxInfo))
	mux.HandleFunc("GET /api/any-song", s.instrument("any_song", s.handleAnySong))
	mux.HandleFunc("POST /api/download", s.instrument("download", s.handleDownload))
	mux.HandleFunc("GET /api/history", s.instrument("history", s.handleHistory))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"artgrab"}`))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"artgrab"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      mux,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s
}

// Handler exposes the routing mux, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting HTTP server",
		zap.String("addr", s.server.Addr))

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// instrument wraps a handler with the action counter and duration metrics.
func (s *Server) instrument(action string, h func(w http.ResponseWriter, r *http.Request) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ok := h(w, r)
		status := "ok"
		if !ok {
			status = "error"
		}
		s.metrics.ActionsTotal.WithLabelValues(action, status).Inc()
		s.metrics.ActionDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	}
}

// handleCurrentSong returns the current track, falling back to the last
// known one. A short settle delay lets an in-flight detection land, and a
// record with an identifier but no file URL gets one enrichment pass.
func (s *Server) handleCurrentSong(w http.ResponseWriter, r *http.Request) bool {
	select {
	case <-time.After(settleDelay):
	case <-r.Context().Done():
		return false
	}

	rec := s.tracker.Current()
	if rec == nil {
		rec = s.tracker.LastKnown()
	}
	if rec == nil {
		return s.writeError(w, core.ErrNoSignal)
	}

	if rec.FileURL == "" && rec.TrackID != "" && rec.TrackID != core.UnknownTrackID {
		if resolved, err := s.resolver.Resolve(r.Context(), rec.TrackID, rec.Sfx); err == nil {
			resolved.Merge(rec)
			rec = resolved
		}
	}
	return s.writeData(w, rec)
}

func (s *Server) handleSongInfo(w http.ResponseWriter, r *http.Request) bool {
	return s.handleInfo(w, r, false)
}

func (s *Server) handleSfxInfo(w http.ResponseWriter, r *http.Request) bool {
	return s.handleInfo(w, r, true)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request, sfx bool) bool {
	id := r.URL.Query().Get("id")
	if id == "" {
		return s.writeErrorStatus(w, http.StatusBadRequest, "missing id parameter")
	}

	kind := "song"
	if sfx {
		kind = "sfx"
	}
	rec, err := s.resolver.Resolve(r.Context(), id, sfx)
	if err != nil {
		s.metrics.ResolutionsTotal.WithLabelValues(kind, "error").Inc()
		return s.writeError(w, err)
	}
	s.metrics.ResolutionsTotal.WithLabelValues(kind, "ok").Inc()
	return s.writeData(w, rec)
}

// handleAnySong scrapes the page directly, bypassing cached state.
func (s *Server) handleAnySong(w http.ResponseWriter, r *http.Request) bool {
	rec, err := s.resolver.ScrapePage(r.Context())
	if err != nil {
		return s.writeError(w, err)
	}
	return s.writeData(w, rec)
}

type downloadRequest struct {
	ID  string `json:"id"`
	Sfx bool   `json:"isSoundEffect"`
}

type downloadResponse struct {
	Track    *core.TrackRecord `json:"track"`
	Filename string            `json:"filename"`
}

// handleDownload resolves a track and triggers a background download.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) bool {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return s.writeErrorStatus(w, http.StatusBadRequest, "invalid request body")
	}
	if req.ID == "" {
		return s.writeErrorStatus(w, http.StatusBadRequest, "missing id")
	}

	rec, err := s.resolver.Resolve(r.Context(), req.ID, req.Sfx)
	if err != nil {
		s.metrics.DownloadsTotal.WithLabelValues("error").Inc()
		return s.writeError(w, err)
	}

	name, err := s.downloader.Trigger(rec)
	if err != nil {
		s.metrics.DownloadsTotal.WithLabelValues("error").Inc()
		return s.writeError(w, err)
	}
	s.metrics.DownloadsTotal.WithLabelValues("ok").Inc()
	return s.writeData(w, downloadResponse{Track: rec, Filename: name})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) bool {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("History listing failed", zap.Error(err))
		return s.writeErrorStatus(w, http.StatusInternalServerError, "history unavailable")
	}
	if events == nil {
		events = []history.Event{}
	}
	return s.writeData(w, events)
}

func (s *Server) writeData(w http.ResponseWriter, data any) bool {
	s.writeJSON(w, http.StatusOK, response{Success: true, Data: data})
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) bool {
	s.writeJSON(w, http.StatusOK, response{Success: false, Error: err.Error()})
	return false
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, status int, msg string) bool {
	s.writeJSON(w, status, response{Success: false, Error: msg})
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Response write failed", zap.Error(err))
	}
}
