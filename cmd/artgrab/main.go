// Package main provides the artgrab CLI application entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"artgrab/internal/browser"
	"artgrab/internal/catalog"
	"artgrab/internal/core"
	"artgrab/internal/download"
	"artgrab/internal/extract"
	"artgrab/internal/history"
	httpserver "artgrab/internal/http"
	"artgrab/internal/resolve"
	"artgrab/internal/store"
)

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "artgrab",
	Short: "artgrab - Artlist track detection and download service",
	Long: `artgrab attaches to your running Chrome over the DevTools protocol, watches
the open Artlist tab to detect the track or sound effect you are playing,
resolves a downloadable file URL for it, and exposes everything over a local
HTTP API including one-call downloads into a local directory.

Start Chrome with --remote-debugging-port=9222 and open artlist.io first.`,
	RunE: runArtgrab,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("devtools-url", "ws://127.0.0.1:9222", "Chrome DevTools endpoint")
	rootCmd.PersistentFlags().String("target-host", "artlist.io", "host of the tab to attach to")
	rootCmd.PersistentFlags().String("catalog-endpoint", "https://search-api.artlist.io/v1/graphql", "catalog query endpoint")
	rootCmd.PersistentFlags().String("download-dir", "./downloads", "directory for downloaded files")
	rootCmd.PersistentFlags().String("history-path", "./artgrab_history.db", "download history database path")
	rootCmd.PersistentFlags().String("server-host", "127.0.0.1", "HTTP server host")
	rootCmd.PersistentFlags().Int("server-port", 8471, "HTTP server port")
	rootCmd.PersistentFlags().Int("poll-interval-secs", 2, "audio element poll interval in seconds")
	rootCmd.PersistentFlags().Int("capture-buffer-size", 10, "captured media URL buffer size")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	// Load .env file explicitly using gotenv
	envFile := ".env"
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// Don't exit if .env file doesn't exist, just warn
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix("ARTGRAB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	cfg.Browser.DevToolsURL = viper.GetString("devtools-url")
	cfg.Browser.TargetHost = viper.GetString("target-host")

	cfg.Catalog.Endpoint = viper.GetString("catalog-endpoint")

	cfg.Download.Dir = viper.GetString("download-dir")
	cfg.Download.HistoryPath = viper.GetString("history-path")

	cfg.Server.Host = viper.GetString("server-host")
	cfg.Server.Port = viper.GetInt("server-port")

	if secs := viper.GetInt("poll-interval-secs"); secs > 0 {
		cfg.Detect.PollInterval = time.Duration(secs) * time.Second
	}
	if size := viper.GetInt("capture-buffer-size"); size > 0 {
		cfg.Detect.CaptureBufferSize = size
	}

	cfg.Log.Level = viper.GetString("log-level")

	return cfg
}

func buildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runArtgrab(_ *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting artgrab",
		zap.String("devtools_url", config.Browser.DevToolsURL),
		zap.String("target_host", config.Browser.TargetHost))

	session := browser.NewSession(config.Browser, logger.Named("browser"))
	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("attaching to browser: %w", err)
	}
	defer session.Close()

	captures := store.NewCaptureBuffer(config.Detect.CaptureBufferSize)
	cache := store.NewResponseCache(config.Detect.CacheSize)

	interceptor := browser.NewInterceptor(logger.Named("interceptor"), cache, captures)
	interceptor.Attach(session.TabContext())

	extractor := extract.NewExtractor(logger.Named("extract"))
	tracker := core.NewCoordinator(logger.Named("coordinator"), session, extractor, captures, config.Detect)
	monitor := core.NewMonitor(logger.Named("monitor"), session, tracker, config.Detect)

	client := catalog.NewClient(&config.Catalog, logger.Named("catalog"))
	resolver := resolve.NewService(logger.Named("resolve"), client, cache, captures, session,
		extractor, config.Detect.CaptureHorizon)

	hist, err := history.Open(config.Download.HistoryPath, logger.Named("history"))
	if err != nil {
		return fmt.Errorf("opening download history: %w", err)
	}
	defer func() {
		_ = hist.Close()
	}()

	downloader := download.NewDownloader(config.Download, session, hist, logger.Named("download"))

	httpServer := httpserver.NewServer(&config.Server, logger.Named("http"),
		tracker, resolver, downloader, hist, captures)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Start(gCtx)
	})

	g.Go(func() error {
		return monitor.Run(gCtx)
	})

	g.Go(func() error {
		ticker := time.NewTicker(config.Detect.CaptureHorizon)
		defer ticker.Stop()

		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				captures.PruneOlderThan(config.Detect.CaptureHorizon)
			}
		}
	})

	logger.Info("artgrab started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("artgrab stopped with error", zap.Error(err))
		return err
	}

	logger.Info("artgrab stopped gracefully")
	return nil
}
