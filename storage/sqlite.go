package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"idsbk.dev/gtfsrt/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	mutex  sync.Mutex
	feedDB *sql.DB
	feeds  map[string]*sql.DB
}

type SQLiteFeedWriter struct {
	db                  *sql.DB
	stopTimeInsertQuery *sql.Stmt
	stopTimeInsertTx    *sql.Tx
	stopTimeIndex       int
}

type SQLiteFeedReader struct {
	db *sql.DB
}

func openSQLite(sourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: gets its own database.
	if sourceName == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = filepath.Join(directory, "gtfsrt.db")
	}

	db, err := openSQLite(sourceName)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS feed (
    sha256 TEXT,
    url TEXT NOT NULL,
    retrieved_at TIMESTAMP NOT NULL,
    num_stops INTEGER NOT NULL,
    num_routes INTEGER NOT NULL,
    num_trips INTEGER NOT NULL,
    num_stop_times INTEGER NOT NULL,
PRIMARY KEY (sha256, url)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating feed table: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		feedDB: db,
		feeds:  map[string]*sql.DB{},
	}, nil
}

func (s *SQLiteStorage) ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error) {
	query := `
SELECT
    sha256,
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
		conditions = append(conditions, "url = ?")
		params = append(params, filter.URL)
	}
	if filter.SHA256 != "" {
		conditions = append(conditions, "sha256 = ?")
		params = append(params, filter.SHA256)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY retrieved_at DESC"

	rows, err := s.feedDB.Query(query, params...)
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

func (s *SQLiteStorage) WriteFeedMetadata(feed *FeedMetadata) error {
	_, err := s.feedDB.Exec(`
INSERT INTO feed (
    sha256,
    url,
    retrieved_at,
    num_stops,
    num_routes,
    num_trips,
    num_stop_times
)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (sha256, url) DO UPDATE SET
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

func (s *SQLiteStorage) feedSourceName(feedID string) string {
	if !s.OnDisk {
		return ":memory:"
	}
	return filepath.Join(s.Directory, feedID+".db")
}

func (s *SQLiteStorage) GetReader(feedID string) (FeedReader, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	db, found := s.feeds[feedID]
	if found {
		return &SQLiteFeedReader{db: db}, nil
	}
	if !s.OnDisk {
		return nil, fmt.Errorf("feed %s does not exist", feedID)
	}

	sourceName := s.feedSourceName(feedID)
	if _, err := os.Stat(sourceName); os.IsNotExist(err) {
		return nil, fmt.Errorf("feed %s does not exist at %s", feedID, sourceName)
	}

	db, err := openSQLite(sourceName)
	if err != nil {
		return nil, err
	}

	s.feeds[feedID] = db

	return &SQLiteFeedReader{db: db}, nil
}

func (s *SQLiteStorage) GetWriter(feedID string) (FeedWriter, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if db, found := s.feeds[feedID]; found {
		db.Close()
		delete(s.feeds, feedID)
	}

	sourceName := s.feedSourceName(feedID)
	if s.OnDisk {
		if _, err := os.Stat(sourceName); err == nil {
			err := os.Remove(sourceName)
			if err != nil {
				return nil, fmt.Errorf("removing existing database: %w", err)
			}
		}
	}

	db, err := openSQLite(sourceName)
	if err != nil {
		return nil, err
	}

	for _, table := range []struct {
		name  string
		query string
	}{
		{"stops", `
CREATE TABLE stops (
    id TEXT PRIMARY KEY,
    code TEXT,
    name TEXT,
    desc TEXT,
    lat REAL,
    lon REAL,
    location_type INTEGER NOT NULL,
    parent_station TEXT,
    platform_code TEXT
);`},
		{"routes", `
CREATE TABLE routes (
    id TEXT PRIMARY KEY,
    agency_id TEXT,
    short_name TEXT,
    long_name TEXT,
    desc TEXT,
    type INTEGER NOT NULL,
    color TEXT,
    text_color TEXT
);`},
		{"trips", `
CREATE TABLE trips (
    id TEXT PRIMARY KEY,
    route_id TEXT NOT NULL,
    service_id TEXT,
    headsign TEXT,
    short_name TEXT,
    direction_id INTEGER
);`},
		{"stop_times", `
CREATE TABLE stop_times (
    row_index INTEGER PRIMARY KEY,
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival_time TEXT NOT NULL,
    departure_time TEXT NOT NULL,
    headsign TEXT
);
CREATE INDEX stop_times_trip_id ON stop_times (trip_id);
`},
	} {
		_, err = db.Exec(table.query)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s table: %w", table.name, err)
		}
	}

	s.feeds[feedID] = db

	return &SQLiteFeedWriter{db: db}, nil
}

func (f *SQLiteFeedWriter) WriteStop(stop *model.Stop) error {
	_, err := f.db.Exec(`
INSERT INTO stops (id, code, name, desc, lat, lon, location_type, parent_station, platform_code)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (f *SQLiteFeedWriter) WriteRoute(route *model.Route) error {
	_, err := f.db.Exec(`
INSERT INTO routes (id, agency_id, short_name, long_name, desc, type, color, text_color)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (f *SQLiteFeedWriter) BeginTrips() error {
	return nil
}

func (f *SQLiteFeedWriter) WriteTrip(trip *model.Trip) error {
	_, err := f.db.Exec(`
INSERT INTO trips (id, route_id, service_id, headsign, short_name, direction_id)
VALUES (?, ?, ?, ?, ?, ?)`,
		trip.ID,
		trip.RouteID,
		trip.ServiceID,
		trip.Headsign,
		trip.ShortName,
		trip.DirectionID,
	)
	if err != nil {
		return fmt.Errorf("inserting trip: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) EndTrips() error {
	return nil
}

func (f *SQLiteFeedWriter) BeginStopTimes() error {
	// transaction with prepared statement.
	var err error
	f.stopTimeInsertTx, err = f.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning stop_time insert transaction: %w", err)
	}

	f.stopTimeInsertQuery, err = f.stopTimeInsertTx.Prepare(`
INSERT INTO stop_times (row_index, trip_id, stop_id, stop_sequence, arrival_time, departure_time, headsign)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		f.stopTimeInsertTx.Rollback()
		f.stopTimeInsertTx = nil
		return fmt.Errorf("preparing stop_time insert: %w", err)
	}

	return nil
}

func (f *SQLiteFeedWriter) WriteStopTime(stopTime *model.StopTime) error {
	if f.stopTimeInsertQuery == nil {
		return fmt.Errorf("stop_time written outside BeginStopTimes/EndStopTimes")
	}

	_, err := f.stopTimeInsertQuery.Exec(
		f.stopTimeIndex,
		stopTime.TripID,
		stopTime.StopID,
		stopTime.StopSequence,
		stopTime.Arrival,
		stopTime.Departure,
		stopTime.Headsign,
	)
	if err != nil {
		f.stopTimeInsertQuery.Close()
		f.stopTimeInsertTx.Rollback()
		f.stopTimeInsertTx = nil
		f.stopTimeInsertQuery = nil
		return fmt.Errorf("inserting stop_time: %w", err)
	}
	f.stopTimeIndex++

	return nil
}

func (f *SQLiteFeedWriter) EndStopTimes() error {
	if f.stopTimeInsertTx == nil {
		return nil
	}

	// commit transaction and clean up
	f.stopTimeInsertQuery.Close()
	err := f.stopTimeInsertTx.Commit()
	if err != nil {
		return fmt.Errorf("committing stop_time insert transaction: %w", err)
	}
	f.stopTimeInsertTx = nil
	f.stopTimeInsertQuery = nil

	return nil
}

func (f *SQLiteFeedWriter) Close() error {
	_, err := f.db.Exec(`ANALYZE;`)
	if err != nil {
		return fmt.Errorf("analyzing database: %w", err)
	}

	return nil
}

func (f *SQLiteFeedReader) Stops() ([]*model.Stop, error) {
	rows, err := f.db.Query(`
SELECT id, code, name, desc, lat, lon, location_type, parent_station, platform_code
FROM stops
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	stops := []*model.Stop{}
	for rows.Next() {
		s := &model.Stop{}
		err := rows.Scan(
			&s.ID,
			&s.Code,
			&s.Name,
			&s.Desc,
			&s.Lat,
			&s.Lon,
			&s.LocationType,
			&s.ParentStation,
			&s.PlatformCode,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		stops = append(stops, s)
	}

	return stops, rows.Err()
}

func (f *SQLiteFeedReader) Routes() ([]*model.Route, error) {
	rows, err := f.db.Query(`
SELECT id, agency_id, short_name, long_name, desc, type, color, text_color
FROM routes
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	routes := []*model.Route{}
	for rows.Next() {
		r := &model.Route{}
		err := rows.Scan(
			&r.ID,
			&r.AgencyID,
			&r.ShortName,
			&r.LongName,
			&r.Desc,
			&r.Type,
			&r.Color,
			&r.TextColor,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		routes = append(routes, r)
	}

	return routes, rows.Err()
}

func (f *SQLiteFeedReader) Trips() ([]*model.Trip, error) {
	rows, err := f.db.Query(`
SELECT id, route_id, service_id, headsign, short_name, direction_id
FROM trips
ORDER BY id`)
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

func (f *SQLiteFeedReader) queryStopTimes(where string, params ...interface{}) ([]*model.StopTime, error) {
	rows, err := f.db.Query(`
SELECT trip_id, stop_id, headsign, stop_sequence, arrival_time, departure_time
FROM stop_times `+where+`
ORDER BY row_index`, params...)
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

func (f *SQLiteFeedReader) StopTimes() ([]*model.StopTime, error) {
	return f.queryStopTimes("")
}

func (f *SQLiteFeedReader) TripStopTimes(tripID string) ([]*model.StopTime, error) {
	return f.queryStopTimes("WHERE trip_id = ?", tripID)
}
