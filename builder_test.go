package gtfsrt_test

import (
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idsbk.dev/gtfsrt"
	"idsbk.dev/gtfsrt/model"
	"idsbk.dev/gtfsrt/testutil"
)

var buildTime = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

func vehicle(id int64, tripID string, delayMinutes int) *model.Vehicle {
	return &model.Vehicle{
		ID:            id,
		Lat:           48.1,
		Lon:           17.1,
		LastStopOrder: 3,
		DelayMinutes:  delayMinutes,
		Trip: model.TripRef{
			TripID:    tripID,
			LineID:    "L",
			Direction: model.DirectionThere,
		},
	}
}

func TestBuildFeedScenario(t *testing.T) {
	for _, backend := range testutil.Backends() {
		t.Run(backend, func(t *testing.T) {
			schedule := testutil.BuildSchedule(t, backend, map[string][]string{
				"routes.txt": {
					"route_id,route_short_name,route_long_name",
					"R1,12,Downtown Express",
				},
				"trips.txt": {
					"trip_id,route_id",
					"T1,R1",
				},
				"stops.txt": {
					"stop_id",
					"S9",
				},
				"stop_times.txt": {
					"trip_id,stop_id,stop_sequence,arrival_time,departure_time",
					"T1,S9,3,10:00:00,10:01:00",
				},
			})

			feed := gtfsrt.BuildFeed([]*model.Vehicle{{
				ID:            7,
				Lat:           48.1,
				Lon:           17.1,
				IsOnStop:      false,
				LastStopOrder: 3,
				LicenseNumber: "BA123",
				DelayMinutes:  2,
				Trip: model.TripRef{
					TripID:    "T1",
					LineID:    "R1",
					Direction: "there",
				},
			}}, schedule, buildTime)

			assert.Equal(t, &model.Feed{
				Version:   "2.0",
				Timestamp: buildTime,
				Entities: []*model.FeedEntity{{
					ID: "7",
					Vehicle: &model.VehiclePosition{
						VehicleID: "7",
						Label:     "BA123",
						Lat:       48.1,
						Lon:       17.1,
						Status:    model.VehicleInTransitTo,
						StopID:    "3",
						Timestamp: buildTime,
					},
					TripUpdate: &model.TripUpdate{
						TripID:         "T1",
						RouteID:        "R1",
						RouteShortName: "12",
						RouteLongName:  "Downtown Express",
						DirectionID:    1,
						StartDate:      "20240315",
						Delay:          120 * time.Second,
						StopTimeUpdates: []*model.StopTimeUpdate{{
							StopSequence:   3,
							StopID:         "S9",
							ArrivalIsSet:   true,
							ArrivalTime:    36120 * time.Second,
							ArrivalDelay:   120 * time.Second,
							DepartureIsSet: true,
							DepartureTime:  36180 * time.Second,
							DepartureDelay: 120 * time.Second,
						}},
					},
				}},
			}, feed)
		})
	}
}

func TestBuildFeedEmpty(t *testing.T) {
	schedule := testutil.BuildSchedule(t, "memory", map[string][]string{})

	for _, vehicles := range [][]*model.Vehicle{nil, {}} {
		feed := gtfsrt.BuildFeed(vehicles, schedule, buildTime)
		assert.Equal(t, "2.0", feed.Version)
		assert.Equal(t, buildTime, feed.Timestamp)
		assert.Equal(t, 0, len(feed.Entities))

		data, err := gtfsrt.SerializeFeed(feed)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestBuildFeedSkipsNilVehicles(t *testing.T) {
	schedule := testutil.BuildSchedule(t, "memory", map[string][]string{})

	feed := gtfsrt.BuildFeed([]*model.Vehicle{nil, vehicle(7, "t1", 0), nil}, schedule, buildTime)
	require.Equal(t, 1, len(feed.Entities))
	assert.Equal(t, "7", feed.Entities[0].ID)
}

func TestBuildFeedRouteResolution(t *testing.T) {
	schedule := testutil.BuildSchedule(t, "memory", map[string][]string{
		"routes.txt": {
			"route_id,route_short_name,route_long_name",
			"r1,1,Route One",
			"r2,2,Route Two",
		},
		"trips.txt": {
			"trip_id,route_id",
			"t1,r1",
			"t2,r2",
			"t3,r404",
		},
	})

	feed := gtfsrt.BuildFeed([]*model.Vehicle{
		vehicle(1, "t1", 0),
		vehicle(2, "t2", 0),
		vehicle(3, "t3", 0),
		vehicle(4, "t404", 0),
	}, schedule, buildTime)
	require.Equal(t, 4, len(feed.Entities))

	// Known trip and route: everything resolves from the
	// schedule, not from the vehicle's line.
	for i, expected := range []struct {
		routeID   string
		shortName string
		longName  string
	}{
		{"r1", "1", "Route One"},
		{"r2", "2", "Route Two"},
	} {
		tu := feed.Entities[i].TripUpdate
		assert.Equal(t, expected.routeID, tu.RouteID)
		assert.Equal(t, expected.shortName, tu.RouteShortName)
		assert.Equal(t, expected.longName, tu.RouteLongName)
	}

	// Known trip, unknown route
	tu := feed.Entities[2].TripUpdate
	assert.Equal(t, "t3", tu.TripID)
	assert.Equal(t, "r404", tu.RouteID)
	assert.Equal(t, "", tu.RouteShortName)
	assert.Equal(t, "", tu.RouteLongName)

	// Unknown trip
	tu = feed.Entities[3].TripUpdate
	assert.Equal(t, "t404", tu.TripID)
	assert.Equal(t, "", tu.RouteID)
	assert.Equal(t, "", tu.RouteShortName)
	assert.Equal(t, "", tu.RouteLongName)
	assert.Equal(t, 0, len(tu.StopTimeUpdates))
}

func TestBuildFeedDelay(t *testing.T) {
	schedule := testutil.BuildSchedule(t, "memory", map[string][]string{
		"routes.txt": {"route_id,route_short_name,route_long_name", "r,R,Route"},
		"trips.txt":  {"trip_id,route_id", "t,r"},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"t,08:15:30,08:16:00,s,1",
		},
	})

	for _, tc := range []struct {
		delayMinutes int
		delay        time.Duration
		arrival      time.Duration
		departure    time.Duration
	}{
		{0, 0, 29730 * time.Second, 29760 * time.Second},
		{2, 120 * time.Second, 29850 * time.Second, 29880 * time.Second},
		{-3, -180 * time.Second, 29550 * time.Second, 29580 * time.Second},
		{90, 5400 * time.Second, 35130 * time.Second, 35160 * time.Second},
	} {
		t.Run(fmt.Sprintf("%d minutes", tc.delayMinutes), func(t *testing.T) {
			feed := gtfsrt.BuildFeed([]*model.Vehicle{vehicle(1, "t", tc.delayMinutes)}, schedule, buildTime)
			require.Equal(t, 1, len(feed.Entities))

			tu := feed.Entities[0].TripUpdate
			assert.Equal(t, tc.delay, tu.Delay)
			assert.Equal(t, time.Duration(tc.delayMinutes*60)*time.Second, tu.Delay)

			require.Equal(t, 1, len(tu.StopTimeUpdates))
			stu := tu.StopTimeUpdates[0]
			assert.Equal(t, tc.arrival, stu.ArrivalTime)
			assert.Equal(t, tc.delay, stu.ArrivalDelay)
			assert.Equal(t, tc.departure, stu.DepartureTime)
			assert.Equal(t, tc.delay, stu.DepartureDelay)
		})
	}
}

func TestBuildFeedMissingStopTimes(t *testing.T) {
	schedule := testutil.BuildSchedule(t, "memory", map[string][]string{
		"routes.txt": {"route_id,route_short_name,route_long_name", "r,R,Route"},
		"trips.txt":  {"trip_id,route_id", "t,r"},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"t,,10:00:00,a,1",
			"t,10:10:00,,b,2",
			"t,,,c,3",
			"t,25:30:00,25:31:00,d,4",
		},
	})

	feed := gtfsrt.BuildFeed([]*model.Vehicle{vehicle(1, "t", 1)}, schedule, buildTime)
	require.Equal(t, 1, len(feed.Entities))
	delay := time.Minute

	assert.Equal(t, []*model.StopTimeUpdate{
		{
			StopSequence:   1,
			StopID:         "a",
			DepartureIsSet: true,
			DepartureTime:  10*time.Hour + delay,
			DepartureDelay: delay,
		},
		{
			StopSequence:   2,
			StopID:         "b",
			ArrivalIsSet:   true,
			ArrivalTime:    10*time.Hour + 10*time.Minute + delay,
			ArrivalDelay:   delay,
			DepartureDelay: delay,
		},
		{
			StopSequence:   3,
			StopID:         "c",
			DepartureDelay: delay,
		},
		{
			StopSequence:   4,
			StopID:         "d",
			ArrivalIsSet:   true,
			ArrivalTime:    25*time.Hour + 30*time.Minute + delay,
			ArrivalDelay:   delay,
			DepartureIsSet: true,
			DepartureTime:  25*time.Hour + 31*time.Minute + delay,
			DepartureDelay: delay,
		},
	}, feed.Entities[0].TripUpdate.StopTimeUpdates)
}

func TestBuildFeedStopTimeOrder(t *testing.T) {
	schedule := testutil.BuildSchedule(t, "memory", map[string][]string{
		"routes.txt": {"route_id,route_short_name,route_long_name", "r,R,Route"},
		"trips.txt":  {"trip_id,route_id", "t,r", "u,r"},
		"stop_times.txt": {
			"trip_id,arrival_time,departure_time,stop_id,stop_sequence",
			"t,10:20:00,10:20:00,c,3",
			"u,09:00:00,09:00:00,x,1",
			"t,10:00:00,10:00:00,a,1",
			"t,10:10:00,10:10:00,b,2",
		},
	})

	feed := gtfsrt.BuildFeed([]*model.Vehicle{vehicle(1, "t", 0)}, schedule, buildTime)
	stus := feed.Entities[0].TripUpdate.StopTimeUpdates
	require.Equal(t, 3, len(stus))
	assert.Equal(t, "c", stus[0].StopID)
	assert.Equal(t, "a", stus[1].StopID)
	assert.Equal(t, "b", stus[2].StopID)
}

func TestBuildFeedDirection(t *testing.T) {
	for _, tc := range []struct {
		direction string
		expected  uint32
	}{
		{"there", 1},
		{"back", 0},
		{"", 0},
		{"There", 0},
		{"there ", 0},
		{"unknown", 0},
	} {
		v := vehicle(1, "t", 0)
		v.Trip.Direction = tc.direction
		feed := gtfsrt.BuildFeed([]*model.Vehicle{v}, nil, buildTime)
		assert.Equal(t, tc.expected, feed.Entities[0].TripUpdate.DirectionID, "direction %q", tc.direction)
	}
}

func TestBuildFeedVehiclePosition(t *testing.T) {
	onStop := vehicle(11, "t", 0)
	onStop.IsOnStop = true
	onStop.LastStopOrder = 0
	onStop.LicenseNumber = "BA-456XY"

	moving := vehicle(12, "t", 0)
	moving.IsOnStop = false
	moving.LastStopOrder = 17
	moving.LicenseNumber = ""

	feed := gtfsrt.BuildFeed([]*model.Vehicle{onStop, moving}, nil, buildTime)
	require.Equal(t, 2, len(feed.Entities))

	assert.Equal(t, "11", feed.Entities[0].ID)
	assert.Equal(t, &model.VehiclePosition{
		VehicleID: "11",
		Label:     "BA-456XY",
		Lat:       48.1,
		Lon:       17.1,
		Status:    model.VehicleStoppedAt,
		StopID:    "0",
		Timestamp: buildTime,
	}, feed.Entities[0].Vehicle)

	assert.Equal(t, "12", feed.Entities[1].ID)
	assert.Equal(t, &model.VehiclePosition{
		VehicleID: "12",
		Lat:       48.1,
		Lon:       17.1,
		Status:    model.VehicleInTransitTo,
		StopID:    "17",
		Timestamp: buildTime,
	}, feed.Entities[1].Vehicle)
}

func TestBuildFeedCountPreserving(t *testing.T) {
	vehicles := []*model.Vehicle{}
	for i := 0; i < 50; i++ {
		vehicles = append(vehicles, vehicle(int64(1000+i), fmt.Sprintf("nosuchtrip%d", i), i-25))
	}

	for _, schedule := range []*gtfsrt.Schedule{
		nil,
		testutil.BuildSchedule(t, "memory", map[string][]string{}),
	} {
		feed := gtfsrt.BuildFeed(vehicles, schedule, buildTime)
		require.Equal(t, 50, len(feed.Entities))
		for i, e := range feed.Entities {
			assert.Equal(t, fmt.Sprintf("%d", 1000+i), e.ID)
			require.NotNil(t, e.Vehicle)
			require.NotNil(t, e.TripUpdate)
			assert.Equal(t, fmt.Sprintf("nosuchtrip%d", i), e.TripUpdate.TripID)
			assert.Equal(t, 0, len(e.TripUpdate.StopTimeUpdates))
		}
	}
}

func TestBuildFeedStartDate(t *testing.T) {
	bratislava, err := time.LoadLocation("Europe/Bratislava")
	require.NoError(t, err)

	// 23:30 UTC is already the next day in Bratislava
	now := time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC)

	feed := gtfsrt.BuildFeed([]*model.Vehicle{vehicle(1, "t", 0), vehicle(2, "u", 0)}, nil, now)
	assert.Equal(t, "20240315", feed.Entities[0].TripUpdate.StartDate)
	assert.Equal(t, "20240315", feed.Entities[1].TripUpdate.StartDate)

	feed = gtfsrt.BuildFeed([]*model.Vehicle{vehicle(1, "t", 0)}, nil, now.In(bratislava))
	assert.Equal(t, "20240316", feed.Entities[0].TripUpdate.StartDate)
}
