package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"idsbk.dev/gtfsrt"
	"idsbk.dev/gtfsrt/config"
	"idsbk.dev/gtfsrt/metrics"
	"idsbk.dev/gtfsrt/publisher"
	"idsbk.dev/gtfsrt/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the GTFS-Realtime feed over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var refreshInterval time.Duration

func init() {
	serveCmd.Flags().DurationVarP(&refreshInterval, "refresh", "r", 12*time.Hour, "How often to reload the static schedule (0 disables)")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireStatic(); err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
	}

	manager, err := newManager(cfg, collector)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.NATS.URL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, collector)
		if err != nil {
			return err
		}
		defer pub.Close()
		manager.Publisher = pub
		log.Printf("publishing feeds to %s on %s", pub.Subject(), cfg.NATS.URL)
	}

	_, err = manager.LoadSchedule(ctx, cfg.Static.URL, cfg.Static.Headers)
	if err != nil {
		return err
	}

	if refreshInterval > 0 {
		go refreshSchedule(ctx, cfg, manager, refreshInterval)
	}

	srv := server.New(manager, cfg, collector)
	log.Printf("Open url: http://localhost:%d%s", cfg.Server.Port, cfg.Server.Path)

	return srv.Run(ctx, cfg.Addr(), cfg.Server.ShutdownTimeout())
}

// Reloads the schedule periodically. A failed reload keeps the
// previous schedule.
func refreshSchedule(ctx context.Context, cfg *config.Config, manager *gtfsrt.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		_, err := manager.LoadSchedule(ctx, cfg.Static.URL, cfg.Static.Headers)
		if err != nil {
			log.Printf("refreshing schedule: %v", err)
		}
	}
}
