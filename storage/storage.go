package storage

import (
	"time"

	"idsbk.dev/gtfsrt/model"
)

type Storage interface {
	// Retrieves all feed metadata records matching the given
	// filter, most recently retrieved first.
	ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error)

	// Writes a FeedMetadata record. If a record with the same URL
	// and hash exists, it is updated.
	WriteFeedMetadata(metadata *FeedMetadata) error

	// Gets a reader for the feed with the given hash.
	GetReader(feed string) (FeedReader, error)

	// Gets a writer for the feed with the given hash. Any data
	// previously written under the same hash is discarded.
	GetWriter(feed string) (FeedWriter, error)
}

type ListFeedsFilter struct {
	// If set, only include feeds with the given URL.
	URL string

	// If set, only include feeds with the given hash.
	SHA256 string
}

// Metadata for a downloaded static GTFS feed. The parsed data can be
// accessed via FeedReader.
type FeedMetadata struct {
	URL          string
	SHA256       string
	RetrievedAt  time.Time
	NumStops     int
	NumRoutes    int
	NumTrips     int
	NumStopTimes int
}

// Writes GTFS records for a single feed.
//
// As stop_times.txt tends to be very large, BeginStopTimes() and
// EndStopTimes() are called before and after all calls to
// WriteStopTime(), allowing transactions/batching/whathaveyou.
type FeedWriter interface {
	WriteStop(stop *model.Stop) error
	WriteRoute(route *model.Route) error
	BeginTrips() error
	WriteTrip(trip *model.Trip) error
	EndTrips() error
	BeginStopTimes() error
	WriteStopTime(stopTime *model.StopTime) error
	EndStopTimes() error
	Close() error
}

type FeedReader interface {
	Stops() ([]*model.Stop, error)
	Routes() ([]*model.Route, error)
	Trips() ([]*model.Trip, error)

	// All stop_times, in the order they were written.
	StopTimes() ([]*model.StopTime, error)

	// Stop_times of a single trip, in the order they were
	// written.
	TripStopTimes(tripID string) ([]*model.StopTime, error)
}
