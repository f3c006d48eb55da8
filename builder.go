package gtfsrt

import (
	"strconv"
	"time"

	"idsbk.dev/gtfsrt/model"
)

const FeedVersion = "2.0"

// Builds a full dataset feed with one entity per vehicle.
//
// Vehicles are joined with the schedule on trip_id. A vehicle whose
// trip is unknown still yields an entity, with only trip_id set on
// its trip update. The schedule may be nil, in which case no trip is
// known. Nil vehicles are skipped.
//
// now is used for the header and position timestamps, and its
// calendar date (in now's location) becomes the trip start_date.
func BuildFeed(vehicles []*model.Vehicle, schedule *Schedule, now time.Time) *model.Feed {
	feed := &model.Feed{
		Version:   FeedVersion,
		Timestamp: now,
		Entities:  make([]*model.FeedEntity, 0, len(vehicles)),
	}

	startDate := now.Format("20060102")

	for _, v := range vehicles {
		if v == nil {
			continue
		}
		id := strconv.FormatInt(v.ID, 10)
		feed.Entities = append(feed.Entities, &model.FeedEntity{
			ID:         id,
			Vehicle:    buildVehiclePosition(id, v, now),
			TripUpdate: buildTripUpdate(v, schedule, startDate),
		})
	}

	return feed
}

func buildVehiclePosition(id string, v *model.Vehicle, now time.Time) *model.VehiclePosition {
	status := model.VehicleInTransitTo
	if v.IsOnStop {
		status = model.VehicleStoppedAt
	}

	return &model.VehiclePosition{
		VehicleID: id,
		Label:     v.LicenseNumber,
		Lat:       v.Lat,
		Lon:       v.Lon,
		Status:    status,

		// The live feed has no stop identifier. Consumers
		// expect the stop ordinal here.
		StopID: strconv.Itoa(v.LastStopOrder),

		Timestamp: now,
	}
}

func buildTripUpdate(v *model.Vehicle, schedule *Schedule, startDate string) *model.TripUpdate {
	delay := time.Duration(v.DelayMinutes) * time.Minute

	tu := &model.TripUpdate{
		TripID:          v.Trip.TripID,
		StartDate:       startDate,
		Delay:           delay,
		StopTimeUpdates: []*model.StopTimeUpdate{},
	}

	if v.Trip.Direction == model.DirectionThere {
		tu.DirectionID = 1
	}

	if schedule == nil {
		return tu
	}

	if trip, found := schedule.Trip(v.Trip.TripID); found {
		tu.RouteID = trip.RouteID
		if route, found := schedule.Route(trip.RouteID); found {
			tu.RouteShortName = route.ShortName
			tu.RouteLongName = route.LongName
		}
	}

	for _, st := range schedule.StopTimes(v.Trip.TripID) {
		stu := &model.StopTimeUpdate{
			StopSequence:   st.StopSequence,
			StopID:         st.StopID,
			DepartureDelay: delay,
		}
		if st.HasArrival() {
			stu.ArrivalIsSet = true
			stu.ArrivalTime = st.ArrivalTime() + delay
			stu.ArrivalDelay = delay
		}
		if st.HasDeparture() {
			stu.DepartureIsSet = true
			stu.DepartureTime = st.DepartureTime() + delay
		}

		tu.StopTimeUpdates = append(tu.StopTimeUpdates, stu)
	}

	return tu
}
