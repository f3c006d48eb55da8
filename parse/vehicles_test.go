package parse

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idsbk.dev/gtfsrt/model"
)

const validVehicle = `{
  "vehicleID": 7,
  "latitude": 48.1,
  "longitude": 17.1,
  "isOnStop": false,
  "lastStopOrder": 3,
  "licenseNumber": "BA123",
  "delayMinutes": 2,
  "timeTableTrip": {
    "tripID": "T1",
    "timeTableLine": {"lineID": "R1"},
    "ezTripDirection": "there"
  }
}`

func TestParseVehiclesEmpty(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{"nil", ""},
		{"whitespace", "  \n"},
		{"null", "null"},
		{"no vehicles key", `{"status": "ok"}`},
		{"null vehicles", `{"vehicles": null}`},
		{"empty vehicles", `{"vehicles": []}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			feed, err := ParseVehicles([]byte(tc.data))
			require.NoError(t, err)
			assert.Equal(t, 0, len(feed.Vehicles))
			assert.Equal(t, 0, feed.NumSkipped)
		})
	}
}

func TestParseVehiclesNotAnObject(t *testing.T) {
	for _, data := range []string{
		`[1, 2, 3]`,
		`"vehicles"`,
		`{"vehicles": {}}`,
		`{"vehicles": [`,
		`<html>Service Unavailable</html>`,
	} {
		_, err := ParseVehicles([]byte(data))
		assert.Error(t, err, data)
	}
}

func TestParseVehiclesValid(t *testing.T) {
	feed, err := ParseVehicles([]byte(`{"vehicles": [` + validVehicle + `]}`))
	require.NoError(t, err)
	assert.Equal(t, 0, feed.NumSkipped)
	assert.Equal(t, []*model.Vehicle{
		{
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
		},
	}, feed.Vehicles)
}

func TestParseVehiclesNumericIDs(t *testing.T) {
	feed, err := ParseVehicles([]byte(`{"vehicles": [{
  "vehicleID": 1234567890123,
  "latitude": 48.14862961464581,
  "longitude": 17.122590613001403,
  "isOnStop": true,
  "lastStopOrder": 0,
  "licenseNumber": null,
  "delayMinutes": -3,
  "timeTableTrip": {
    "tripID": 99887766,
    "timeTableLine": {"lineID": 39},
    "ezTripDirection": "back"
  }
}]}`))
	require.NoError(t, err)
	require.Equal(t, 1, len(feed.Vehicles))

	v := feed.Vehicles[0]
	assert.Equal(t, int64(1234567890123), v.ID)
	assert.Equal(t, true, v.IsOnStop)
	assert.Equal(t, 0, v.LastStopOrder)
	assert.Equal(t, "", v.LicenseNumber)
	assert.Equal(t, -3, v.DelayMinutes)
	assert.Equal(t, "99887766", v.Trip.TripID)
	assert.Equal(t, "39", v.Trip.LineID)
	assert.Equal(t, "back", v.Trip.Direction)
}

func TestParseVehiclesSkipsMalformed(t *testing.T) {
	for _, tc := range []struct {
		name  string
		entry string
	}{
		{"not an object", `42`},
		{"missing vehicleID", `{"latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 2, "timeTableTrip": {"tripID": "T1", "timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}`},
		{"string vehicleID", `{"vehicleID": "seven", "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 2, "timeTableTrip": {"tripID": "T1", "timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}`},
		{"missing latitude", `{"vehicleID": 7, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 2, "timeTableTrip": {"tripID": "T1", "timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}`},
		{"latitude out of range", `{"vehicleID": 7, "latitude": 148.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 2, "timeTableTrip": {"tripID": "T1", "timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}`},
		{"missing isOnStop", `{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "lastStopOrder": 3, "delayMinutes": 2, "timeTableTrip": {"tripID": "T1", "timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}`},
		{"missing lastStopOrder", `{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "delayMinutes": 2, "timeTableTrip": {"tripID": "T1", "timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}`},
		{"fractional delayMinutes", `{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 2.5, "timeTableTrip": {"tripID": "T1", "timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}`},
		{"delayMinutes too large", `{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 40000000, "timeTableTrip": {"tripID": "T1", "timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}`},
		{"delayMinutes too small", `{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": -40000000, "timeTableTrip": {"tripID": "T1", "timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}`},
		{"missing timeTableTrip", `{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 2}`},
		{"missing tripID", `{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 2, "timeTableTrip": {"timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}`},
		{"empty tripID", `{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 2, "timeTableTrip": {"tripID": "", "timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}`},
		{"boolean tripID", `{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 2, "timeTableTrip": {"tripID": true, "timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}`},
		{"missing timeTableLine", `{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 2, "timeTableTrip": {"tripID": "T1", "ezTripDirection": "there"}}`},
		{"missing lineID", `{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 2, "timeTableTrip": {"tripID": "T1", "timeTableLine": {}, "ezTripDirection": "there"}}`},
		{"missing direction", `{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 2, "timeTableTrip": {"tripID": "T1", "timeTableLine": {"lineID": "R1"}}}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			feed, err := ParseVehicles([]byte(`{"vehicles": [` + validVehicle + `,` + tc.entry + `,` + validVehicle + `]}`))
			require.NoError(t, err)
			assert.Equal(t, 2, len(feed.Vehicles))
			assert.Equal(t, 1, feed.NumSkipped)
			require.Equal(t, 1, len(feed.Errors))
			assert.Contains(t, feed.Errors[0].Error(), "vehicle 1")
		})
	}
}

func TestParseVehiclesEmptyDirectionIsValid(t *testing.T) {
	feed, err := ParseVehicles([]byte(`{"vehicles": [{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": 0, "timeTableTrip": {"tripID": "T1", "timeTableLine": {"lineID": "R1"}, "ezTripDirection": ""}}]}`))
	require.NoError(t, err)
	require.Equal(t, 1, len(feed.Vehicles))
	assert.Equal(t, "", feed.Vehicles[0].Trip.Direction)
	assert.Equal(t, 0, feed.Vehicles[0].DelayMinutes)
}

func TestParseVehiclesDelayBounds(t *testing.T) {
	for _, delay := range []int{35791394, -35791394} {
		feed, err := ParseVehicles([]byte(fmt.Sprintf(`{"vehicles": [{"vehicleID": 7, "latitude": 48.1, "longitude": 17.1, "isOnStop": false, "lastStopOrder": 3, "delayMinutes": %d, "timeTableTrip": {"tripID": "T1", "timeTableLine": {"lineID": "R1"}, "ezTripDirection": "there"}}]}`, delay)))
		require.NoError(t, err)
		require.Equal(t, 1, len(feed.Vehicles), "delay %d", delay)
		assert.Equal(t, delay, feed.Vehicles[0].DelayMinutes)
	}
}
