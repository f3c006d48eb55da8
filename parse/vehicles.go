package parse

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"idsbk.dev/gtfsrt/model"
)

var validate = validator.New()

// An identifier the live feed sends either as a JSON number or a
// JSON string.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = flexibleID(s)
		return nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("expected number or string, got %s", data)
	}
	*id = flexibleID(n.String())
	return nil
}

// Delay bounds keep delayMinutes*60 within the int32 delay fields of
// the realtime format.
type vehicleJSON struct {
	VehicleID     *int64    `json:"vehicleID" validate:"required"`
	Latitude      *float64  `json:"latitude" validate:"required,latitude"`
	Longitude     *float64  `json:"longitude" validate:"required,longitude"`
	IsOnStop      *bool     `json:"isOnStop" validate:"required"`
	LastStopOrder *int      `json:"lastStopOrder" validate:"required"`
	LicenseNumber *string   `json:"licenseNumber"`
	DelayMinutes  *int      `json:"delayMinutes" validate:"required,min=-35791394,max=35791394"`
	TimeTableTrip *tripJSON `json:"timeTableTrip" validate:"required"`
}

type tripJSON struct {
	TripID          *flexibleID `json:"tripID" validate:"required,min=1"`
	TimeTableLine   *lineJSON   `json:"timeTableLine" validate:"required"`
	EzTripDirection *string     `json:"ezTripDirection" validate:"required"`
}

type lineJSON struct {
	LineID *flexibleID `json:"lineID" validate:"required,min=1"`
}

type liveFeedJSON struct {
	Vehicles []json.RawMessage `json:"vehicles"`
}

// Vehicles from a single poll of the live feed.
type LiveFeed struct {
	Vehicles []*model.Vehicle

	// Entries that could not be decoded or failed validation,
	// and were left out of Vehicles.
	NumSkipped int
	Errors     []error
}

// Parses the live vehicle feed payload.
//
// An empty or null payload, or one lacking the vehicles key, yields
// an empty feed. A payload that isn't a JSON object is an error.
// Entries are decoded one at a time; a malformed entry is skipped
// and recorded in LiveFeed.Errors without affecting the rest.
func ParseVehicles(data []byte) (*LiveFeed, error) {
	feed := &LiveFeed{
		Vehicles: []*model.Vehicle{},
		Errors:   []error{},
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return feed, nil
	}

	raw := liveFeedJSON{}
	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling live feed: %w", err)
	}

	for i, entry := range raw.Vehicles {
		vehicle, err := parseVehicle(entry)
		if err != nil {
			feed.NumSkipped++
			feed.Errors = append(feed.Errors, fmt.Errorf("vehicle %d: %w", i, err))
			continue
		}
		feed.Vehicles = append(feed.Vehicles, vehicle)
	}

	return feed, nil
}

func parseVehicle(entry json.RawMessage) (*model.Vehicle, error) {
	v := vehicleJSON{}
	err := json.Unmarshal(entry, &v)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling: %w", err)
	}

	err = validate.Struct(v)
	if err != nil {
		return nil, fmt.Errorf("validating: %w", err)
	}

	vehicle := &model.Vehicle{
		ID:            *v.VehicleID,
		Lat:           *v.Latitude,
		Lon:           *v.Longitude,
		IsOnStop:      *v.IsOnStop,
		LastStopOrder: *v.LastStopOrder,
		DelayMinutes:  *v.DelayMinutes,
		Trip: model.TripRef{
			TripID:    string(*v.TimeTableTrip.TripID),
			LineID:    string(*v.TimeTableTrip.TimeTableLine.LineID),
			Direction: *v.TimeTableTrip.EzTripDirection,
		},
	}
	if v.LicenseNumber != nil {
		vehicle.LicenseNumber = *v.LicenseNumber
	}

	return vehicle, nil
}
