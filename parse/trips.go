package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"idsbk.dev/gtfsrt/model"
	"idsbk.dev/gtfsrt/storage"
)

type TripCSV struct {
	ID          string `csv:"trip_id"`
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	Headsign    string `csv:"trip_headsign"`
	ShortName   string `csv:"trip_short_name"`
	DirectionID int8   `csv:"direction_id"`
}

// Parses trips.txt. A route_id without a matching route is
// accepted: such trips simply resolve without route names.
func ParseTrips(writer storage.FeedWriter, data io.Reader) (int, error) {
	buf, err := readTable(data, "trip_id", "route_id")
	if err != nil {
		return 0, err
	}

	tripCsv := []*TripCSV{}
	if err := gocsv.UnmarshalBytes(buf, &tripCsv); err != nil {
		return 0, fmt.Errorf("unmarshaling trips csv: %w", err)
	}

	trips := map[string]bool{}
	for i, t := range tripCsv {
		if t.ID == "" {
			return 0, fmt.Errorf("empty trip_id (row %d)", i+1)
		}
		if trips[t.ID] {
			return 0, fmt.Errorf("repeated trip_id '%s'", t.ID)
		}
		trips[t.ID] = true

		if t.RouteID == "" {
			return 0, fmt.Errorf("empty route_id for trip_id '%s'", t.ID)
		}

		if t.DirectionID != 0 && t.DirectionID != 1 {
			return 0, fmt.Errorf("invalid direction_id '%d'", t.DirectionID)
		}

		err := writer.WriteTrip(&model.Trip{
			ID:          t.ID,
			RouteID:     t.RouteID,
			ServiceID:   t.ServiceID,
			Headsign:    t.Headsign,
			ShortName:   t.ShortName,
			DirectionID: t.DirectionID,
		})
		if err != nil {
			return 0, fmt.Errorf("writing trip: %w", err)
		}
	}

	return len(trips), nil
}
