package core

import (
	"time"
)

type Config struct {
	Browser  BrowserConfig
	Catalog  CatalogConfig
	Download DownloadConfig
	Server   ServerConfig
	Log      LogConfig
	Detect   DetectConfig
}

type BrowserConfig struct {
	// DevToolsURL is the remote debugging endpoint of the user's Chrome,
	// e.g. ws://127.0.0.1:9222.
	DevToolsURL string
	// TargetHost restricts which open tab the session attaches to.
	TargetHost string
}

type CatalogConfig struct {
	Endpoint       string
	RequestTimeout time.Duration
	// RatePerSec throttles catalog queries to stay polite.
	RatePerSec float64
}

type DownloadConfig struct {
	Dir         string
	HistoryPath string
	Timeout     time.Duration
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type DetectConfig struct {
	// DebounceInterval suppresses detection calls issued within this window
	// of the previous completed call.
	DebounceInterval time.Duration
	// PollInterval is the audio element polling cadence.
	PollInterval time.Duration
	// ProgressInterval throttles time-progress re-detections.
	ProgressInterval time.Duration
	// CaptureBufferSize bounds the captured-URL buffer.
	CaptureBufferSize int
	// CaptureHorizon ages out captured URLs entirely.
	CaptureHorizon time.Duration
	// SourceChangeRetention keeps only captures younger than this across an
	// audio source change.
	SourceChangeRetention time.Duration
	// CacheSize bounds the API-response cache.
	CacheSize int
}

func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			DevToolsURL: "ws://127.0.0.1:9222",
			TargetHost:  "artlist.io",
		},
		Catalog: CatalogConfig{
			Endpoint:       "https://search-api.artlist.io/v1/graphql",
			RequestTimeout: 10 * time.Second,
			RatePerSec:     2,
		},
		Download: DownloadConfig{
			Dir:         "./downloads",
			HistoryPath: "./artgrab_history.db",
			Timeout:     5 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8471,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Detect: DetectConfig{
			DebounceInterval:      time.Second,
			PollInterval:          2 * time.Second,
			ProgressInterval:      5 * time.Second,
			CaptureBufferSize:     10,
			CaptureHorizon:        60 * time.Second,
			SourceChangeRetention: 5 * time.Second,
			CacheSize:             256,
		},
	}
}
