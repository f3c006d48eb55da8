package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns its own registry, so several can coexist in tests.
// All methods are safe on a nil *Collector.
type Collector struct {
	reg *prometheus.Registry

	Requests *prometheus.CounterVec // code label

	BuildDuration   prometheus.Histogram
	FetchDuration   prometheus.Histogram
	FetchErrors     prometheus.Counter
	Vehicles        prometheus.Gauge
	SkippedVehicles prometheus.Counter
	FeedBytes       prometheus.Gauge

	ScheduleStops     prometheus.Gauge
	ScheduleTrips     prometheus.Gauge
	ScheduleStopTimes prometheus.Gauge
	ScheduleLoads     *prometheus.CounterVec // result label: downloaded|reused|fallback|error

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gtfsrt_http_requests_total",
			Help: "Feed requests by response status code.",
		}, []string{"code"}),
		BuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gtfsrt_build_duration_seconds",
			Help:    "Time to fetch, build and serialize one feed.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gtfsrt_live_fetch_duration_seconds",
			Help:    "Time to fetch the live vehicle document.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gtfsrt_live_fetch_errors_total",
			Help: "Live fetches that failed and produced an empty feed.",
		}),
		Vehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsrt_vehicles",
			Help: "Vehicles in the most recently built feed.",
		}),
		SkippedVehicles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gtfsrt_vehicles_skipped_total",
			Help: "Malformed live vehicle entries that were dropped.",
		}),
		FeedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsrt_feed_bytes",
			Help: "Size of the most recently serialized feed.",
		}),
		ScheduleStops: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsrt_schedule_stops",
			Help: "Stops in the loaded static schedule.",
		}),
		ScheduleTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsrt_schedule_trips",
			Help: "Trips in the loaded static schedule.",
		}),
		ScheduleStopTimes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsrt_schedule_stop_times",
			Help: "Stop times in the loaded static schedule.",
		}),
		ScheduleLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gtfsrt_schedule_loads_total",
			Help: "Static schedule loads by result.",
		}, []string{"result"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gtfsrt_nats_published_total",
			Help: "Total feeds published to NATS.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gtfsrt_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gtfsrt_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gtfsrt_publish_duration_seconds",
			Help:    "Duration to publish a feed to NATS.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.Requests,
		c.BuildDuration, c.FetchDuration, c.FetchErrors,
		c.Vehicles, c.SkippedVehicles, c.FeedBytes,
		c.ScheduleStops, c.ScheduleTrips, c.ScheduleStopTimes, c.ScheduleLoads,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) RequestServed(code int) {
	if c == nil {
		return
	}
	c.Requests.WithLabelValues(strconv.Itoa(code)).Inc()
}

// FeedBuilt records the outcome of one build cycle.
func (c *Collector) FeedBuilt(d time.Duration, vehicles, skipped, size int) {
	if c == nil {
		return
	}
	c.BuildDuration.Observe(d.Seconds())
	c.Vehicles.Set(float64(vehicles))
	c.SkippedVehicles.Add(float64(skipped))
	c.FeedBytes.Set(float64(size))
}

func (c *Collector) LiveFetched(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.FetchDuration.Observe(d.Seconds())
	if err != nil {
		c.FetchErrors.Inc()
	}
}

func (c *Collector) ScheduleLoaded(result string, stops, trips, stopTimes int) {
	if c == nil {
		return
	}
	c.ScheduleLoads.WithLabelValues(result).Inc()
	if result == "error" {
		return
	}
	c.ScheduleStops.Set(float64(stops))
	c.ScheduleTrips.Set(float64(trips))
	c.ScheduleStopTimes.Set(float64(stopTimes))
}

// The following satisfy publisher.PublisherMetrics.

func (c *Collector) NATSPublishedInc() {
	if c == nil {
		return
	}
	c.NATSPublished.Inc()
}

func (c *Collector) NATSPublishErrInc() {
	if c == nil {
		return
	}
	c.NATSPublishErrs.Inc()
}

func (c *Collector) PublishObserve(d time.Duration) {
	if c == nil {
		return
	}
	c.PublishDuration.Observe(d.Seconds())
}

func (c *Collector) NATSSetConnected(connected bool) {
	if c == nil {
		return
	}
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
