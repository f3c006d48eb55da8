package parse

import (
	"fmt"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"

	"idsbk.dev/gtfsrt/model"
)

// Decodes a serialized GTFS-Realtime feed. Only full dataset feeds
// of version 1.0 or 2.0 are accepted.
func ParseFeed(data []byte) (*model.Feed, error) {
	f := &gtfsproto.FeedMessage{}
	err := proto.Unmarshal(data, f)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling protobuf: %w", err)
	}

	header := f.GetHeader()

	version := header.GetGtfsRealtimeVersion()
	if version != "2.0" && version != "1.0" {
		return nil, fmt.Errorf("version %s not supported", version)
	}

	if header.GetIncrementality() != gtfsproto.FeedHeader_FULL_DATASET {
		return nil, fmt.Errorf("feed incrementality %s not supported", header.GetIncrementality())
	}

	feed := &model.Feed{
		Version:   version,
		Timestamp: time.Unix(int64(header.GetTimestamp()), 0).UTC(),
		Entities:  []*model.FeedEntity{},
	}

	for _, entity := range f.GetEntity() {
		if entity.GetId() == "" {
			return nil, fmt.Errorf("entity missing id")
		}

		e := &model.FeedEntity{ID: entity.GetId()}

		if entity.Vehicle != nil {
			e.Vehicle = parseVehiclePosition(entity.Vehicle)
		}

		if entity.TripUpdate != nil {
			tu, err := parseTripUpdate(entity.TripUpdate)
			if err != nil {
				return nil, fmt.Errorf("entity %s: %w", entity.GetId(), err)
			}
			e.TripUpdate = tu
		}

		feed.Entities = append(feed.Entities, e)
	}

	return feed, nil
}

func parseVehiclePosition(vp *gtfsproto.VehiclePosition) *model.VehiclePosition {
	pos := &model.VehiclePosition{
		VehicleID: vp.GetVehicle().GetId(),
		Label:     vp.GetVehicle().GetLabel(),
		Lat:       float64(vp.GetPosition().GetLatitude()),
		Lon:       float64(vp.GetPosition().GetLongitude()),
		Status:    model.VehicleStopStatus(vp.GetCurrentStatus()),
		StopID:    vp.GetStopId(),
	}
	if vp.Timestamp != nil {
		pos.Timestamp = time.Unix(int64(vp.GetTimestamp()), 0).UTC()
	}
	return pos
}

func parseTripUpdate(tu *gtfsproto.TripUpdate) (*model.TripUpdate, error) {
	trip := tu.GetTrip()
	if trip == nil {
		return nil, fmt.Errorf("trip_update missing trip")
	}

	update := &model.TripUpdate{
		TripID:          trip.GetTripId(),
		RouteID:         trip.GetRouteId(),
		DirectionID:     trip.GetDirectionId(),
		StartDate:       trip.GetStartDate(),
		Delay:           time.Duration(tu.GetDelay()) * time.Second,
		StopTimeUpdates: []*model.StopTimeUpdate{},
	}

	for _, stu := range tu.GetStopTimeUpdate() {
		update.StopTimeUpdates = append(update.StopTimeUpdates, parseStopTimeUpdate(stu))
	}

	return update, nil
}

func parseStopTimeUpdate(update *gtfsproto.TripUpdate_StopTimeUpdate) *model.StopTimeUpdate {
	stu := &model.StopTimeUpdate{
		StopSequence: update.GetStopSequence(),
		StopID:       update.GetStopId(),
	}

	if update.Arrival != nil {
		stu.ArrivalIsSet = true
		stu.ArrivalTime = time.Duration(update.GetArrival().GetTime()) * time.Second
		stu.ArrivalDelay = time.Duration(update.GetArrival().GetDelay()) * time.Second
	}

	if update.Departure != nil {
		stu.DepartureDelay = time.Duration(update.GetDeparture().GetDelay()) * time.Second
		if update.Departure.Time != nil {
			stu.DepartureIsSet = true
			stu.DepartureTime = time.Duration(update.GetDeparture().GetTime()) * time.Second
		}
	}

	return stu
}
