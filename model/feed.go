package model

import (
	"time"
)

// Direction values used by the live feed.
const (
	DirectionThere = "there"
	DirectionBack  = "back"
)

// A vehicle as reported by the live location feed.
type Vehicle struct {
	ID            int64
	Lat           float64
	Lon           float64
	IsOnStop      bool
	LastStopOrder int
	LicenseNumber string
	DelayMinutes  int
	Trip          TripRef
}

// Reference from a live vehicle to the trip it is serving.
type TripRef struct {
	TripID    string
	LineID    string
	Direction string
}

type VehicleStopStatus int

// Numbered as in the GTFS-Realtime schema.
const (
	VehicleIncomingAt VehicleStopStatus = iota
	VehicleStoppedAt
	VehicleInTransitTo
)

func (s VehicleStopStatus) String() string {
	switch s {
	case VehicleIncomingAt:
		return "INCOMING_AT"
	case VehicleStoppedAt:
		return "STOPPED_AT"
	case VehicleInTransitTo:
		return "IN_TRANSIT_TO"
	}
	return "UNKNOWN"
}

// A complete GTFS-Realtime feed, prior to encoding.
type Feed struct {
	Version   string
	Timestamp time.Time
	Entities  []*FeedEntity
}

type FeedEntity struct {
	ID         string
	Vehicle    *VehiclePosition
	TripUpdate *TripUpdate
}

type VehiclePosition struct {
	VehicleID string
	Label     string
	Lat       float64
	Lon       float64
	Status    VehicleStopStatus
	StopID    string
	Timestamp time.Time
}

// RouteShortName and RouteLongName have no counterpart in the
// GTFS-Realtime wire format. They are resolved for in-process
// consumers and dropped on encoding.
type TripUpdate struct {
	TripID          string
	RouteID         string
	RouteShortName  string
	RouteLongName   string
	DirectionID     uint32
	StartDate       string
	Delay           time.Duration
	StopTimeUpdates []*StopTimeUpdate
}

// Times are offsets from midnight of the service day, with delay
// already applied. The IsSet flags tell whether the scheduled time
// was known. DepartureDelay is always meaningful.
type StopTimeUpdate struct {
	StopSequence   uint32
	StopID         string
	ArrivalIsSet   bool
	ArrivalTime    time.Duration
	ArrivalDelay   time.Duration
	DepartureIsSet bool
	DepartureTime  time.Duration
	DepartureDelay time.Duration
}
