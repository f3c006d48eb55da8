package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"idsbk.dev/gtfsrt/model"
)

const (
	PSQLTripBatchSize     = 10000
	PSQLStopTimeBatchSize = 5000
)

type PSQLStorage struct {
	db *sql.DB
}

type PSQLFeedWriter struct {
	id            string
	db            *sql.DB
	tripBuf       []*model.Trip
	stopTimeBuf   []*model.StopTime
	stopTimeIndex int
}

type PSQLFeedReader struct {
	id string
	db *sql.DB
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`
DROP TABLE IF EXISTS feed;
DROP TABLE IF EXISTS stops;
DROP TABLE IF EXISTS stop_times;
DROP TABLE IF EXISTS routes;
DROP TABLE IF EXISTS trips;
`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS feed (
    hash TEXT,
    url TEXT NOT NULL,
    retrieved_at TIMESTAMPTZ NOT NULL,
    num_stops INTEGER NOT NULL,
    num_routes INTEGER NOT NULL,
    num_trips INTEGER NOT NULL,
    num_stop_times INTEGER NOT NULL,
    PRIMARY KEY (hash, url)
);

CREATE TABLE IF NOT EXISTS stops (
    hash TEXT NOT NULL,
    id TEXT NOT NULL,
    code TEXT,
    name TEXT,
    description TEXT,
    lat DOUBLE PRECISION,
    lon DOUBLE PRECISION,
    location_type INTEGER NOT NULL,
    parent_station TEXT,
    platform_code TEXT,
    PRIMARY KEY(hash, id)
);

CREATE TABLE IF NOT EXISTS routes (
    hash TEXT NOT NULL,
    id TEXT NOT NULL,
    agency_id TEXT,
    short_name TEXT,
    long_name TEXT,
    description TEXT,
    type INTEGER NOT NULL,
    color TEXT,
    text_color TEXT,
    PRIMARY KEY(hash, id)
);

CREATE TABLE IF NOT EXISTS trips (
    hash TEXT NOT NULL,
    id TEXT NOT NULL,
    route_id TEXT NOT NULL,
    service_id TEXT,
    headsign TEXT,
    short_name TEXT,
    direction_id INTEGER,
    PRIMARY KEY(hash, id)
);

CREATE TABLE IF NOT EXISTS stop_times (
    hash TEXT NOT NULL,
    row_index INTEGER NOT NULL,
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival_time TEXT NOT NULL,
    departure_time TEXT NOT NULL,
    headsign TEXT,
    PRIMARY KEY(hash, row_index)
);
CREATE INDEX IF NOT EXISTS stop_times_trip_id ON stop_times (hash, trip_id);
`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &PSQLStorage{
		db: db,
	}, nil
}

func (s *PSQLStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error) {
	query := `
SELECT
    hash,
    url,
    retrieved_at,
    num_stops,
    num_routes,
    num_trips,
    num_stop_times
FROM feed`

	conditions := []string{}
	params := []interface{}{}
	if filter.URL != "" {
		params = append(params, filter.URL)
		conditions = append(conditions, fmt.Sprintf("url = $%d", len(params)))
	}
	if filter.SHA256 != "" {
		params = append(params, filter.SHA256)
		conditions = append(conditions, fmt.Sprintf("hash = $%d", len(params)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY retrieved_at DESC"

	rows, err := s.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}
	defer rows.Close()

	feeds := []*FeedMetadata{}
	for rows.Next() {
		var feed FeedMetadata
		err := rows.Scan(
			&feed.SHA256,
			&feed.URL,
			&feed.RetrievedAt,
			&feed.NumStops,
			&feed.NumRoutes,
			&feed.NumTrips,
			&feed.NumStopTimes,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning feed: %w", err)
		}
		feeds = append(feeds, &feed)
	}

	return feeds, rows.Err()
}

func (s *PSQLStorage) WriteFeedMetadata(feed *FeedMetadata) error {
	_, err := s.db.Exec(`
INSERT INTO feed (
    hash,
    url,
    retrieved_at,
    num_stops,
    num_routes,
    num_trips,
    num_stop_times
)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (hash, url) DO UPDATE SET
    retrieved_at = excluded.retrieved_at,
    num_stops = excluded.num_stops,
    num_routes = excluded.num_routes,
    num_trips = excluded.num_trips,
    num_stop_times = excluded.num_stop_times
`,
		feed.SHA256,
		feed.URL,
		feed.RetrievedAt,
		feed.NumStops,
		feed.NumRoutes,
		feed.NumTrips,
		feed.NumStopTimes,
	)
	if err != nil {
		return fmt.Errorf("writing feed metadata: %w", err)
	}
	return nil
}

func (s *PSQLStorage) GetReader(hash string) (FeedReader, error) {
	return &PSQLFeedReader{
		id: hash,
		db: s.db,
	}, nil
}

func (s *PSQLStorage) GetWriter(hash string) (FeedWriter, error) {
	// In case feed already exists, delete all records
	for _, name := range []string{"stops", "routes", "trips", "stop_times"} {
		_, err := s.db.Exec(`DELETE FROM `+name+` WHERE hash = $1`, hash)
		if err != nil {
			return nil, fmt.Errorf("deleting %s records: %w", name, err)
		}
	}

	return &PSQLFeedWriter{
		id: hash,
		db: s.db,
	}, nil
}

func (w *PSQLFeedWriter) WriteStop(stop *model.Stop) error {
	_, err := w.db.Exec(`
INSERT INTO stops (hash, id, code, name, description, lat, lon, location_type, parent_station, platform_code)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		w.id,
		stop.ID,
		stop.Code,
		stop.Name,
		stop.Desc,
		stop.Lat,
		stop.Lon,
		stop.LocationType,
		stop.ParentStation,
		stop.PlatformCode,
	)
	if err != nil {
		return fmt.Errorf("inserting stop: %w", err)
	}
	return nil
}

func (w *PSQLFeedWriter) WriteRoute(route *model.Route) error {
	_, err := w.db.Exec(`
INSERT INTO routes (hash, id, agency_id, short_name, long_name, description, type, color, text_color)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.id,
		route.ID,
		route.AgencyID,
		route.ShortName,
		route.LongName,
		route.Desc,
		route.Type,
		route.Color,
		route.TextColor,
	)
	if err != nil {
		return fmt.Errorf("inserting route: %w", err)
	}
	return nil
}

func (w *PSQLFeedWriter) BeginTrips() error {
	return nil
}

func (w *PSQLFeedWriter) WriteTrip(trip *model.Trip) error {
	w.tripBuf = append(w.tripBuf, trip)

	if len(w.tripBuf) >= PSQLTripBatchSize {
		err := w.flushTrips()
		if err != nil {
			return fmt.Errorf("flushing trips: %w", err)
		}
	}

	return nil
}

func (w *PSQLFeedWriter) EndTrips() error {
	if len(w.tripBuf) > 0 {
		err := w.flushTrips()
		if err != nil {
			return fmt.Errorf("flushing trips: %w", err)
		}
	}
	return nil
}

func (w *PSQLFeedWriter) flushTrips() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn(
		"trips", "hash", "id", "route_id", "service_id", "headsign", "short_name", "direction_id",
	))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, trip := range w.tripBuf {
		_, err = stmt.Exec(
			w.id, trip.ID, trip.RouteID, trip.ServiceID, trip.Headsign, trip.ShortName, trip.DirectionID,
		)
		if err != nil {
			return fmt.Errorf("COPY trip: %w", err)
		}
	}

	_, err = stmt.Exec()
	if err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	w.tripBuf = nil

	return nil
}

func (w *PSQLFeedWriter) BeginStopTimes() error {
	return nil
}

func (w *PSQLFeedWriter) WriteStopTime(stopTime *model.StopTime) error {
	w.stopTimeBuf = append(w.stopTimeBuf, stopTime)

	if len(w.stopTimeBuf) >= PSQLStopTimeBatchSize {
		err := w.flushStopTimes()
		if err != nil {
			return fmt.Errorf("flushing stop_times: %w", err)
		}
	}

	return nil
}

func (w *PSQLFeedWriter) EndStopTimes() error {
	if len(w.stopTimeBuf) > 0 {
		err := w.flushStopTimes()
		if err != nil {
			return fmt.Errorf("flushing stop_times: %w", err)
		}
	}
	return nil
}

func (w *PSQLFeedWriter) flushStopTimes() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn(
		"stop_times", "hash", "row_index", "trip_id", "stop_id", "stop_sequence", "arrival_time", "departure_time", "headsign",
	))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	index := w.stopTimeIndex
	for _, stopTime := range w.stopTimeBuf {
		_, err = stmt.Exec(
			w.id,
			index,
			stopTime.TripID,
			stopTime.StopID,
			stopTime.StopSequence,
			stopTime.Arrival,
			stopTime.Departure,
			stopTime.Headsign,
		)
		if err != nil {
			return fmt.Errorf("COPY stop_time: %w", err)
		}
		index++
	}

	_, err = stmt.Exec()
	if err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	w.stopTimeIndex = index
	w.stopTimeBuf = nil

	return nil
}

func (w *PSQLFeedWriter) Close() error {
	_, err := w.db.Exec(`ANALYZE`)
	if err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}
	return nil
}

func (r *PSQLFeedReader) Stops() ([]*model.Stop, error) {
	rows, err := r.db.Query(`
SELECT id, code, name, description, lat, lon, location_type, parent_station, platform_code
FROM stops
WHERE hash = $1
ORDER BY id`, r.id)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	stops := []*model.Stop{}
	for rows.Next() {
		s := &model.Stop{}
		parentStation := sql.NullString{}
		err := rows.Scan(
			&s.ID,
			&s.Code,
			&s.Name,
			&s.Desc,
			&s.Lat,
			&s.Lon,
			&s.LocationType,
			&parentStation,
			&s.PlatformCode,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}

		if parentStation.Valid {
			s.ParentStation = parentStation.String
		}

		stops = append(stops, s)
	}

	return stops, rows.Err()
}

func (r *PSQLFeedReader) Routes() ([]*model.Route, error) {
	rows, err := r.db.Query(`
SELECT id, agency_id, short_name, long_name, description, type, color, text_color
FROM routes
WHERE hash = $1
ORDER BY id`, r.id)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	routes := []*model.Route{}
	for rows.Next() {
		route := &model.Route{}
		err := rows.Scan(
			&route.ID,
			&route.AgencyID,
			&route.ShortName,
			&route.LongName,
			&route.Desc,
			&route.Type,
			&route.Color,
			&route.TextColor,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		routes = append(routes, route)
	}

	return routes, rows.Err()
}

func (r *PSQLFeedReader) Trips() ([]*model.Trip, error) {
	rows, err := r.db.Query(`
SELECT id, route_id, service_id, headsign, short_name, direction_id
FROM trips
WHERE hash = $1
ORDER BY id`, r.id)
	if err != nil {
		return nil, fmt.Errorf("querying trips: %w", err)
	}
	defer rows.Close()

	trips := []*model.Trip{}
	for rows.Next() {
		t := &model.Trip{}
		err := rows.Scan(
			&t.ID,
			&t.RouteID,
			&t.ServiceID,
			&t.Headsign,
			&t.ShortName,
			&t.DirectionID,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning trip: %w", err)
		}
		trips = append(trips, t)
	}

	return trips, rows.Err()
}

func (r *PSQLFeedReader) queryStopTimes(where string, params ...interface{}) ([]*model.StopTime, error) {
	rows, err := r.db.Query(`
SELECT trip_id, stop_id, headsign, stop_sequence, arrival_time, departure_time
FROM stop_times
WHERE hash = $1`+where+`
ORDER BY row_index`, append([]interface{}{r.id}, params...)...)
	if err != nil {
		return nil, fmt.Errorf("querying stop times: %w", err)
	}
	defer rows.Close()

	stopTimes := []*model.StopTime{}
	for rows.Next() {
		st := &model.StopTime{}
		err := rows.Scan(
			&st.TripID,
			&st.StopID,
			&st.Headsign,
			&st.StopSequence,
			&st.Arrival,
			&st.Departure,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning stop time: %w", err)
		}
		stopTimes = append(stopTimes, st)
	}

	return stopTimes, rows.Err()
}

func (r *PSQLFeedReader) StopTimes() ([]*model.StopTime, error) {
	return r.queryStopTimes("")
}

func (r *PSQLFeedReader) TripStopTimes(tripID string) ([]*model.StopTime, error) {
	return r.queryStopTimes(" AND trip_id = $2", tripID)
}
