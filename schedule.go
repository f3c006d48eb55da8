package gtfsrt

import (
	"fmt"
	"sort"

	"idsbk.dev/gtfsrt/model"
	"idsbk.dev/gtfsrt/parse"
	"idsbk.dev/gtfsrt/storage"
)

// Schedule is an in-memory index of a static GTFS feed. It is
// immutable once built, and safe for concurrent use.
type Schedule struct {
	Metadata *storage.FeedMetadata

	stops           map[string]*model.Stop
	trips           map[string]*model.Trip
	routes          map[string]*model.Route
	stopTimesByTrip map[string][]*model.StopTime
	numStopTimes    int
}

// Reads every record of a stored feed into a Schedule.
//
// Stop times are grouped by trip_id, keeping the order in which they
// appeared in stop_times.txt.
func NewSchedule(reader storage.FeedReader, metadata *storage.FeedMetadata) (*Schedule, error) {
	s := &Schedule{
		Metadata:        metadata,
		stops:           map[string]*model.Stop{},
		trips:           map[string]*model.Trip{},
		routes:          map[string]*model.Route{},
		stopTimesByTrip: map[string][]*model.StopTime{},
	}

	stops, err := reader.Stops()
	if err != nil {
		return nil, fmt.Errorf("reading stops: %w", err)
	}
	for _, stop := range stops {
		s.stops[stop.ID] = stop
	}

	routes, err := reader.Routes()
	if err != nil {
		return nil, fmt.Errorf("reading routes: %w", err)
	}
	for _, route := range routes {
		s.routes[route.ID] = route
	}

	trips, err := reader.Trips()
	if err != nil {
		return nil, fmt.Errorf("reading trips: %w", err)
	}
	for _, trip := range trips {
		s.trips[trip.ID] = trip
	}

	stopTimes, err := reader.StopTimes()
	if err != nil {
		return nil, fmt.Errorf("reading stop times: %w", err)
	}
	for _, st := range stopTimes {
		s.stopTimesByTrip[st.TripID] = append(s.stopTimesByTrip[st.TripID], st)
	}
	s.numStopTimes = len(stopTimes)

	return s, nil
}

// Parses a zipped static feed straight into a Schedule, using
// in-memory storage.
func LoadSchedule(buf []byte) (*Schedule, error) {
	s := storage.NewMemoryStorage()

	writer, err := s.GetWriter("schedule")
	if err != nil {
		return nil, fmt.Errorf("getting writer: %w", err)
	}

	metadata, err := parse.ParseStatic(writer, buf)
	if err != nil {
		return nil, err
	}

	reader, err := s.GetReader("schedule")
	if err != nil {
		return nil, fmt.Errorf("getting reader: %w", err)
	}

	return NewSchedule(reader, metadata)
}

func (s *Schedule) Stop(id string) (*model.Stop, bool) {
	stop, ok := s.stops[id]
	return stop, ok
}

func (s *Schedule) Trip(id string) (*model.Trip, bool) {
	trip, ok := s.trips[id]
	return trip, ok
}

func (s *Schedule) Route(id string) (*model.Route, bool) {
	route, ok := s.routes[id]
	return route, ok
}

// Stop times of a trip in source order. Nil if the trip has none.
func (s *Schedule) StopTimes(tripID string) []*model.StopTime {
	return s.stopTimesByTrip[tripID]
}

// All stops, ordered by ID.
func (s *Schedule) Stops() []*model.Stop {
	stops := make([]*model.Stop, 0, len(s.stops))
	for _, stop := range s.stops {
		stops = append(stops, stop)
	}
	sort.Slice(stops, func(i, j int) bool {
		return stops[i].ID < stops[j].ID
	})
	return stops
}

// All trips, ordered by ID.
func (s *Schedule) Trips() []*model.Trip {
	trips := make([]*model.Trip, 0, len(s.trips))
	for _, trip := range s.trips {
		trips = append(trips, trip)
	}
	sort.Slice(trips, func(i, j int) bool {
		return trips[i].ID < trips[j].ID
	})
	return trips
}

func (s *Schedule) NumStops() int     { return len(s.stops) }
func (s *Schedule) NumRoutes() int    { return len(s.routes) }
func (s *Schedule) NumTrips() int     { return len(s.trips) }
func (s *Schedule) NumStopTimes() int { return s.numStopTimes }

// Returns stops ordered by distance from lat,lon.
//
// If limit is >0, at most limit stops are returned.
//
// Only stations (location_type=1) and stops (location_type=0)
// _without_ parent station are returned. Stops lacking coordinates
// are left out.
func (s *Schedule) NearbyStops(lat float64, lon float64, limit int) []*model.Stop {
	type stopDist struct {
		stop *model.Stop
		km   float64
	}

	candidates := []stopDist{}
	for _, stop := range s.stops {
		if stop.Lat == 0 && stop.Lon == 0 {
			continue
		}
		switch stop.LocationType {
		case model.LocationTypeStation:
		case model.LocationTypeStop:
			if stop.ParentStation != "" {
				continue
			}
		default:
			continue
		}
		candidates = append(candidates, stopDist{stop, distanceKm(lat, lon, stop.Lat, stop.Lon)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].km != candidates[j].km {
			return candidates[i].km < candidates[j].km
		}
		return candidates[i].stop.ID < candidates[j].stop.ID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	stops := make([]*model.Stop, 0, len(candidates))
	for _, c := range candidates {
		stops = append(stops, c.stop)
	}
	return stops
}
