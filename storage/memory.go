package storage

import (
	"fmt"
	"sort"
	"sync"

	"idsbk.dev/gtfsrt/model"
)

// In memory implementation of Storage below

type memoryMetadataKey struct {
	URL    string
	SHA256 string
}

type MemoryStorage struct {
	mutex    sync.Mutex
	Feeds    map[string]*MemoryStorageFeed
	Metadata map[memoryMetadataKey]*FeedMetadata
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Feeds:    map[string]*MemoryStorageFeed{},
		Metadata: map[memoryMetadataKey]*FeedMetadata{},
	}
}

func (s *MemoryStorage) ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	feeds := []*FeedMetadata{}
	for _, metadata := range s.Metadata {
		if filter.URL != "" && metadata.URL != filter.URL {
			continue
		}
		if filter.SHA256 != "" && metadata.SHA256 != filter.SHA256 {
			continue
		}
		feeds = append(feeds, metadata)
	}
	sort.Slice(feeds, func(i, j int) bool {
		return feeds[i].RetrievedAt.After(feeds[j].RetrievedAt)
	})
	return feeds, nil
}

func (s *MemoryStorage) WriteFeedMetadata(feed *FeedMetadata) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Metadata[memoryMetadataKey{feed.URL, feed.SHA256}] = feed
	return nil
}

func (s *MemoryStorage) GetReader(feedID string) (FeedReader, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f, ok := s.Feeds[feedID]
	if !ok {
		return nil, fmt.Errorf("feed %s not found", feedID)
	}
	return f, nil
}

func (s *MemoryStorage) GetWriter(feedID string) (FeedWriter, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f := &MemoryStorageFeed{
		routes:          map[string]*model.Route{},
		stops:           map[string]*model.Stop{},
		trips:           map[string]*model.Trip{},
		stopTimesByTrip: map[string][]*model.StopTime{},
	}

	s.Feeds[feedID] = f

	return f, nil
}

type MemoryStorageFeed struct {
	routes          map[string]*model.Route
	stops           map[string]*model.Stop
	trips           map[string]*model.Trip
	stopTimes       []*model.StopTime
	stopTimesByTrip map[string][]*model.StopTime
}

func (f *MemoryStorageFeed) WriteStop(stop *model.Stop) error {
	f.stops[stop.ID] = stop
	return nil
}

func (f *MemoryStorageFeed) WriteRoute(route *model.Route) error {
	f.routes[route.ID] = route
	return nil
}

func (f *MemoryStorageFeed) BeginTrips() error {
	return nil
}

func (f *MemoryStorageFeed) WriteTrip(trip *model.Trip) error {
	f.trips[trip.ID] = trip
	return nil
}

func (f *MemoryStorageFeed) EndTrips() error {
	return nil
}

func (f *MemoryStorageFeed) BeginStopTimes() error {
	return nil
}

func (f *MemoryStorageFeed) WriteStopTime(stopTime *model.StopTime) error {
	f.stopTimes = append(f.stopTimes, stopTime)
	f.stopTimesByTrip[stopTime.TripID] = append(f.stopTimesByTrip[stopTime.TripID], stopTime)
	return nil
}

func (f *MemoryStorageFeed) EndStopTimes() error {
	return nil
}

func (f *MemoryStorageFeed) Close() error {
	return nil
}

func (f *MemoryStorageFeed) Stops() ([]*model.Stop, error) {
	stops := make([]*model.Stop, 0, len(f.stops))
	for _, stop := range f.stops {
		stops = append(stops, stop)
	}
	sort.Slice(stops, func(i, j int) bool {
		return stops[i].ID < stops[j].ID
	})
	return stops, nil
}

func (f *MemoryStorageFeed) Routes() ([]*model.Route, error) {
	routes := make([]*model.Route, 0, len(f.routes))
	for _, route := range f.routes {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].ID < routes[j].ID
	})
	return routes, nil
}

func (f *MemoryStorageFeed) Trips() ([]*model.Trip, error) {
	trips := make([]*model.Trip, 0, len(f.trips))
	for _, trip := range f.trips {
		trips = append(trips, trip)
	}
	sort.Slice(trips, func(i, j int) bool {
		return trips[i].ID < trips[j].ID
	})
	return trips, nil
}

func (f *MemoryStorageFeed) StopTimes() ([]*model.StopTime, error) {
	return f.stopTimes, nil
}

func (f *MemoryStorageFeed) TripStopTimes(tripID string) ([]*model.StopTime, error) {
	return f.stopTimesByTrip[tripID], nil
}
