package gtfsrt

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"idsbk.dev/gtfsrt/downloader"
	"idsbk.dev/gtfsrt/metrics"
	"idsbk.dev/gtfsrt/model"
	"idsbk.dev/gtfsrt/parse"
	"idsbk.dev/gtfsrt/storage"
)

const (
	DefaultLiveTimeout           = 10 * time.Second
	DefaultLiveMaxSize           = 1 << 20 // 1 MB
	DefaultStaticTimeout         = 60 * time.Second
	DefaultStaticMaxSize         = 800 << 20 // 800 MB
	DefaultStaticRetryMaxElapsed = 2 * time.Minute
)

var ErrNoSchedule = errors.New("no schedule loaded")

// Receives every successfully serialized feed.
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
}

// Manager ties together the static schedule, the live vehicle feed
// and the feed builder.
type Manager struct {
	LiveURL               string
	LiveHeaders           map[string]string
	LiveTimeout           time.Duration
	LiveMaxSize           int
	StaticTimeout         time.Duration
	StaticMaxSize         int
	StaticRetryMaxElapsed time.Duration

	// Static downloads are cached for this long, if the
	// Downloader caches. Live data is never cached.
	StaticCacheTTL time.Duration

	// Timezone of start_date. Defaults to the local zone.
	Location *time.Location

	Downloader downloader.Downloader
	Metrics    *metrics.Collector
	Publisher  Publisher

	storage  storage.Storage
	schedule atomic.Pointer[Schedule]
}

// Creates a new Manager on top of the given storage. Parsed static
// feeds are kept in storage, keyed by their SHA256, so that an
// unchanged archive is only parsed once.
func NewManager(s storage.Storage, d downloader.Downloader) *Manager {
	if d == nil {
		d = downloader.HTTP{}
	}
	return &Manager{
		LiveTimeout:           DefaultLiveTimeout,
		LiveMaxSize:           DefaultLiveMaxSize,
		StaticTimeout:         DefaultStaticTimeout,
		StaticMaxSize:         DefaultStaticMaxSize,
		StaticRetryMaxElapsed: DefaultStaticRetryMaxElapsed,
		Location:              time.Local,
		Downloader:            d,
		storage:               s,
	}
}

// The currently loaded schedule, or nil.
func (m *Manager) Schedule() *Schedule {
	return m.schedule.Load()
}

// Replaces the schedule used for building feeds.
func (m *Manager) SetSchedule(s *Schedule) {
	m.schedule.Store(s)
}

// Downloads, parses and activates the static feed at staticURL.
//
// Transient download failures are retried with exponential
// backoff. If the download ultimately fails, the most recently
// retrieved copy of the same URL in storage is used instead, if
// there is one.
func (m *Manager) LoadSchedule(ctx context.Context, staticURL string, headers map[string]string) (*Schedule, error) {
	body, err := m.downloadStatic(ctx, staticURL, headers)
	if err != nil {
		schedule, fallbackErr := m.loadStored(staticURL)
		if fallbackErr != nil {
			m.Metrics.ScheduleLoaded("error", 0, 0, 0)
			return nil, errors.Join(
				fmt.Errorf("downloading %s: %w", staticURL, err),
				fallbackErr,
			)
		}
		log.Printf("downloading %s failed (%v), using copy retrieved %s", staticURL, err, schedule.Metadata.RetrievedAt.Format(time.RFC3339))
		m.activate(schedule, "fallback")
		return schedule, nil
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(body))

	// Same archive parsed before, possibly under a different URL.
	feeds, err := m.storage.ListFeeds(storage.ListFeedsFilter{SHA256: hash})
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}
	if len(feeds) > 0 {
		metadata := *feeds[0]
		metadata.URL = staticURL
		metadata.RetrievedAt = time.Now().UTC()
		if err := m.storage.WriteFeedMetadata(&metadata); err != nil {
			return nil, fmt.Errorf("writing metadata: %w", err)
		}

		schedule, err := m.readSchedule(&metadata)
		if err != nil {
			return nil, err
		}
		m.activate(schedule, "reused")
		return schedule, nil
	}

	writer, err := m.storage.GetWriter(hash)
	if err != nil {
		return nil, fmt.Errorf("getting writer: %w", err)
	}

	metadata, err := parse.ParseStatic(writer, body)
	if err != nil {
		writer.Close()
		m.Metrics.ScheduleLoaded("error", 0, 0, 0)
		return nil, fmt.Errorf("parsing %s: %w", staticURL, err)
	}

	metadata.URL = staticURL
	metadata.SHA256 = hash
	metadata.RetrievedAt = time.Now().UTC()
	if err := m.storage.WriteFeedMetadata(metadata); err != nil {
		return nil, fmt.Errorf("writing metadata: %w", err)
	}

	schedule, err := m.readSchedule(metadata)
	if err != nil {
		return nil, err
	}
	m.activate(schedule, "downloaded")
	return schedule, nil
}

func (m *Manager) downloadStatic(ctx context.Context, staticURL string, headers map[string]string) ([]byte, error) {
	// Zero would mean retrying forever.
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if m.StaticRetryMaxElapsed > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.MaxElapsedTime = m.StaticRetryMaxElapsed
		policy = exp
	}

	attempt := 0
	return backoff.RetryNotifyWithData(
		func() ([]byte, error) {
			attempt++
			body, err := m.Downloader.Get(ctx, staticURL, headers, downloader.GetOptions{
				Timeout:  m.StaticTimeout,
				MaxSize:  m.StaticMaxSize,
				Cache:    m.StaticCacheTTL > 0,
				CacheTTL: m.StaticCacheTTL,
			})
			if err == nil {
				return body, nil
			}

			// Retrying won't fix these.
			statusErr := &downloader.StatusError{}
			if errors.As(err, &statusErr) && !statusErr.Temporary() {
				return nil, backoff.Permanent(err)
			}
			if errors.Is(err, downloader.ErrTooLarge) || ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		},
		backoff.WithContext(policy, ctx),
		func(err error, wait time.Duration) {
			log.Printf("downloading %s (attempt %d): %v, retrying in %s", staticURL, attempt, err, wait.Round(time.Millisecond))
		},
	)
}

// The most recently retrieved stored copy of staticURL.
func (m *Manager) loadStored(staticURL string) (*Schedule, error) {
	feeds, err := m.storage.ListFeeds(storage.ListFeedsFilter{URL: staticURL})
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("no stored copy of %s", staticURL)
	}
	return m.readSchedule(feeds[0])
}

func (m *Manager) readSchedule(metadata *storage.FeedMetadata) (*Schedule, error) {
	reader, err := m.storage.GetReader(metadata.SHA256)
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}
	schedule, err := NewSchedule(reader, metadata)
	if err != nil {
		return nil, fmt.Errorf("indexing schedule: %w", err)
	}
	return schedule, nil
}

func (m *Manager) activate(schedule *Schedule, result string) {
	m.schedule.Store(schedule)
	m.Metrics.ScheduleLoaded(result, schedule.NumStops(), schedule.NumTrips(), schedule.NumStopTimes())
	log.Printf(
		"schedule %s (%s): %d stops, %d routes, %d trips, %d stop times",
		schedule.Metadata.SHA256, result,
		schedule.NumStops(), schedule.NumRoutes(), schedule.NumTrips(), schedule.NumStopTimes(),
	)
}

// Fetches the live vehicle feed and builds a GTFS-Realtime feed from
// it. Returns the serialized FeedMessage along with the feed itself.
//
// A failed fetch is not an error: it is logged and the result is a
// valid feed without entities. Errors are only returned when no
// schedule is loaded or when serialization fails.
func (m *Manager) Feed(ctx context.Context, now time.Time) ([]byte, *model.Feed, error) {
	schedule := m.schedule.Load()
	if schedule == nil {
		return nil, nil, ErrNoSchedule
	}

	start := time.Now()

	vehicles, skipped := m.fetchVehicles(ctx)

	loc := m.Location
	if loc == nil {
		loc = time.Local
	}
	feed := BuildFeed(vehicles, schedule, now.In(loc))

	data, err := SerializeFeed(feed)
	if err != nil {
		return nil, nil, fmt.Errorf("serializing feed: %w", err)
	}

	m.Metrics.FeedBuilt(time.Since(start), len(feed.Entities), skipped, len(data))

	if m.Publisher != nil {
		if err := m.Publisher.Publish(ctx, data); err != nil {
			log.Printf("publishing feed: %v", err)
		}
	}

	return data, feed, nil
}

// Vehicles from the live feed, and the number of entries skipped.
func (m *Manager) fetchVehicles(ctx context.Context) ([]*model.Vehicle, int) {
	start := time.Now()
	body, err := m.Downloader.Get(ctx, m.LiveURL, m.LiveHeaders, downloader.GetOptions{
		Timeout: m.LiveTimeout,
		MaxSize: m.LiveMaxSize,
	})
	m.Metrics.LiveFetched(time.Since(start), err)
	if err != nil {
		log.Printf("fetching live vehicles: %v", err)
		return nil, 0
	}

	live, err := parse.ParseVehicles(body)
	if err != nil {
		log.Printf("parsing live vehicles: %v", err)
		return nil, 0
	}

	for _, err := range live.Errors {
		log.Printf("skipping vehicle: %v", err)
	}

	return live.Vehicles, live.NumSkipped
}
