package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"idsbk.dev/gtfsrt"
	"idsbk.dev/gtfsrt/config"
	"idsbk.dev/gtfsrt/downloader"
	"idsbk.dev/gtfsrt/metrics"
	"idsbk.dev/gtfsrt/storage"
)

var rootCmd = &cobra.Command{
	Use:          "gtfsrt",
	Short:        "IDS BK GTFS-Realtime converter",
	Long:         "Converts the IDS BK live vehicle feed into GTFS-Realtime, joined with a static GTFS schedule",
	SilenceUsage: true,
}

var (
	configPath    string
	staticURL     string
	liveURL       string
	sharedHeaders []string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&staticURL, "static-url", "", "", "GTFS Static URL or path (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&liveURL, "live-url", "", "", "Live vehicle feed URL (overrides config)")
	rootCmd.PersistentFlags().StringSliceVarP(
		&sharedHeaders,
		"header",
		"",
		[]string{},
		"HTTP header (shared between static and live)",
	)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

// Config file, environment, then command line flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if staticURL != "" {
		cfg.Static.URL = staticURL
	}
	if liveURL != "" {
		cfg.Live.URL = liveURL
	}

	shared, err := parseHeaders(sharedHeaders)
	if err != nil {
		return nil, fmt.Errorf("invalid header: %w", err)
	}
	if len(shared) > 0 {
		if cfg.Static.Headers == nil {
			cfg.Static.Headers = map[string]string{}
		}
		if cfg.Live.Headers == nil {
			cfg.Live.Headers = map[string]string{}
		}
		for k, v := range shared {
			cfg.Static.Headers[k] = v
			cfg.Live.Headers[k] = v
		}
	}

	return cfg, cfg.Validate()
}

func buildStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		return storage.NewSQLiteStorage(storage.SQLiteConfig{
			OnDisk:    cfg.Storage.Directory != "",
			Directory: cfg.Storage.Directory,
		})
	case "postgres":
		return storage.NewPSQLStorage(cfg.Storage.PostgresURL, false)
	}
	return storage.NewMemoryStorage(), nil
}

func newManager(cfg *config.Config, m *metrics.Collector) (*gtfsrt.Manager, error) {
	s, err := buildStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// Local paths for the static archive, with HTTP downloads of
	// it cached briefly in memory.
	fs := downloader.NewFilesystem("")
	fs.Remote = downloader.NewMemory()

	manager := gtfsrt.NewManager(s, fs)
	manager.LiveURL = cfg.Live.URL
	manager.LiveHeaders = cfg.Live.Headers
	manager.LiveTimeout = cfg.Live.Timeout()
	manager.LiveMaxSize = cfg.Live.MaxSize
	manager.StaticTimeout = cfg.Static.Timeout()
	manager.StaticMaxSize = cfg.Static.MaxSize
	manager.StaticRetryMaxElapsed = cfg.Static.RetryMaxElapsed()
	manager.StaticCacheTTL = time.Minute
	manager.Location = loc
	manager.Metrics = m

	return manager, nil
}

// Loads config, and the schedule it points to.
func loadSchedule(ctx context.Context) (*config.Config, *gtfsrt.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.RequireStatic(); err != nil {
		return nil, nil, err
	}

	manager, err := newManager(cfg, nil)
	if err != nil {
		return nil, nil, err
	}

	_, err = manager.LoadSchedule(ctx, cfg.Static.URL, cfg.Static.Headers)
	if err != nil {
		return nil, nil, fmt.Errorf("loading schedule: %w", err)
	}

	return cfg, manager, nil
}

// "HHMMSS" as "HH:MM:SS".
func formatTime(hhmmss string) string {
	if len(hhmmss) != 6 {
		return "--:--:--"
	}
	return hhmmss[0:2] + ":" + hhmmss[2:4] + ":" + hhmmss[4:6]
}
