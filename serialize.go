package gtfsrt

import (
	"fmt"
	"math"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/prototext"
	proto "google.golang.org/protobuf/proto"

	"idsbk.dev/gtfsrt/model"
)

// Encodes a feed in the GTFS-Realtime protobuf wire format.
//
// Route names on trip updates have no counterpart in the format and
// are not encoded.
func SerializeFeed(feed *model.Feed) ([]byte, error) {
	msg, err := feedMessage(feed)
	if err != nil {
		return nil, err
	}

	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshaling feed: %w", err)
	}

	return data, nil
}

// Renders a feed as protobuf text, for humans.
func FormatFeed(feed *model.Feed) (string, error) {
	msg, err := feedMessage(feed)
	if err != nil {
		return "", err
	}

	data, err := prototext.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshaling feed: %w", err)
	}

	return string(data), nil
}

func feedMessage(feed *model.Feed) (*gtfsproto.FeedMessage, error) {
	if feed == nil {
		return nil, fmt.Errorf("nil feed")
	}
	if feed.Timestamp.Unix() < 0 {
		return nil, fmt.Errorf("feed timestamp %s predates the epoch", feed.Timestamp)
	}

	version := feed.Version
	if version == "" {
		version = FeedVersion
	}

	msg := &gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String(version),
			Incrementality:      gtfsproto.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(feed.Timestamp.Unix())),
		},
		Entity: make([]*gtfsproto.FeedEntity, 0, len(feed.Entities)),
	}

	for i, e := range feed.Entities {
		if e.ID == "" {
			return nil, fmt.Errorf("entity %d has no id", i)
		}

		entity := &gtfsproto.FeedEntity{Id: proto.String(e.ID)}

		if e.Vehicle != nil {
			vp, err := vehiclePositionMessage(e.Vehicle)
			if err != nil {
				return nil, fmt.Errorf("entity %s: %w", e.ID, err)
			}
			entity.Vehicle = vp
		}

		if e.TripUpdate != nil {
			tu, err := tripUpdateMessage(e.TripUpdate)
			if err != nil {
				return nil, fmt.Errorf("entity %s: %w", e.ID, err)
			}
			entity.TripUpdate = tu
		}

		msg.Entity = append(msg.Entity, entity)
	}

	return msg, nil
}

func vehiclePositionMessage(vp *model.VehiclePosition) (*gtfsproto.VehiclePosition, error) {
	status, ok := map[model.VehicleStopStatus]gtfsproto.VehiclePosition_VehicleStopStatus{
		model.VehicleIncomingAt:  gtfsproto.VehiclePosition_INCOMING_AT,
		model.VehicleStoppedAt:   gtfsproto.VehiclePosition_STOPPED_AT,
		model.VehicleInTransitTo: gtfsproto.VehiclePosition_IN_TRANSIT_TO,
	}[vp.Status]
	if !ok {
		return nil, fmt.Errorf("unknown vehicle stop status %d", vp.Status)
	}

	msg := &gtfsproto.VehiclePosition{
		Vehicle: &gtfsproto.VehicleDescriptor{
			Id: proto.String(vp.VehicleID),
		},
		Position: &gtfsproto.Position{
			Latitude:  proto.Float32(float32(vp.Lat)),
			Longitude: proto.Float32(float32(vp.Lon)),
		},
		CurrentStatus: status.Enum(),
	}

	if vp.Label != "" {
		msg.Vehicle.Label = proto.String(vp.Label)
	}
	if vp.StopID != "" {
		msg.StopId = proto.String(vp.StopID)
	}
	if !vp.Timestamp.IsZero() {
		msg.Timestamp = proto.Uint64(uint64(vp.Timestamp.Unix()))
	}

	return msg, nil
}

// Delays are int32 seconds on the wire.
func delaySeconds(d time.Duration) (*int32, error) {
	s := int64(d / time.Second)
	if s < math.MinInt32 || s > math.MaxInt32 {
		return nil, fmt.Errorf("delay %s out of range", d)
	}
	return proto.Int32(int32(s)), nil
}

func tripUpdateMessage(tu *model.TripUpdate) (*gtfsproto.TripUpdate, error) {
	trip := &gtfsproto.TripDescriptor{
		TripId:      proto.String(tu.TripID),
		DirectionId: proto.Uint32(tu.DirectionID),
	}
	if tu.RouteID != "" {
		trip.RouteId = proto.String(tu.RouteID)
	}
	if tu.StartDate != "" {
		trip.StartDate = proto.String(tu.StartDate)
	}

	delay, err := delaySeconds(tu.Delay)
	if err != nil {
		return nil, err
	}

	msg := &gtfsproto.TripUpdate{
		Trip:           trip,
		Delay:          delay,
		StopTimeUpdate: make([]*gtfsproto.TripUpdate_StopTimeUpdate, 0, len(tu.StopTimeUpdates)),
	}

	for _, u := range tu.StopTimeUpdates {
		departureDelay, err := delaySeconds(u.DepartureDelay)
		if err != nil {
			return nil, fmt.Errorf("stop %d: %w", u.StopSequence, err)
		}
		stu := &gtfsproto.TripUpdate_StopTimeUpdate{
			StopSequence: proto.Uint32(u.StopSequence),
			StopId:       proto.String(u.StopID),
			Departure: &gtfsproto.TripUpdate_StopTimeEvent{
				Delay: departureDelay,
			},
		}
		if u.ArrivalIsSet {
			arrivalDelay, err := delaySeconds(u.ArrivalDelay)
			if err != nil {
				return nil, fmt.Errorf("stop %d: %w", u.StopSequence, err)
			}
			stu.Arrival = &gtfsproto.TripUpdate_StopTimeEvent{
				Time:  proto.Int64(int64(u.ArrivalTime.Seconds())),
				Delay: arrivalDelay,
			}
		}
		if u.DepartureIsSet {
			stu.Departure.Time = proto.Int64(int64(u.DepartureTime.Seconds()))
		}
		msg.StopTimeUpdate = append(msg.StopTimeUpdate, stu)
	}

	return msg, nil
}
