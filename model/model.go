package model

import (
	"strconv"
	"time"
)

// Holds all schedule types and constants.

type LocationType int

const (
	LocationTypeStop LocationType = iota
	LocationTypeStation
	LocationTypeEntranceExit
	LocationTypeGenericNode
	LocationTypeBoardingArea
)

type RouteType int

const (
	RouteTypeTram       RouteType = 0
	RouteTypeSubway     RouteType = 1
	RouteTypeRail       RouteType = 2
	RouteTypeBus        RouteType = 3
	RouteTypeFerry      RouteType = 4
	RouteTypeCable      RouteType = 5
	RouteTypeAerial     RouteType = 6
	RouteTypeFunicular  RouteType = 7
	RouteTypeTrolleybus RouteType = 11
	RouteTypeMonorail   RouteType = 12
)

type Stop struct {
	ID            string
	Code          string
	Name          string
	Desc          string
	Lat           float64
	Lon           float64
	LocationType  LocationType
	ParentStation string
	PlatformCode  string
}

type Trip struct {
	ID          string
	RouteID     string
	ServiceID   string
	Headsign    string
	ShortName   string
	DirectionID int8
}

type Route struct {
	ID        string
	AgencyID  string
	ShortName string
	LongName  string
	Desc      string
	Type      RouteType
	Color     string
	TextColor string
}

// A stop_times.txt record. Arrival and Departure hold "HHMMSS", or
// are blank when the source cell was empty.
type StopTime struct {
	TripID       string
	StopID       string
	Headsign     string
	StopSequence uint32
	Arrival      string
	Departure    string
}

func (st *StopTime) HasArrival() bool {
	return st.Arrival != ""
}

func (st *StopTime) HasDeparture() bool {
	return st.Departure != ""
}

// Offset from midnight of the service day. Hours past 23 are kept
// as is, so 25:10:00 yields 25h10m.
func (st *StopTime) ArrivalTime() time.Duration {
	return hhmmssDuration(st.Arrival)
}

func (st *StopTime) DepartureTime() time.Duration {
	return hhmmssDuration(st.Departure)
}

// Times are normalized to HHMMSS by parse, so anything else is
// treated as zero.
func hhmmssDuration(hhmmss string) time.Duration {
	if len(hhmmss) != 6 {
		return 0
	}
	h, _ := strconv.Atoi(hhmmss[0:2])
	m, _ := strconv.Atoi(hhmmss[2:4])
	s, _ := strconv.Atoi(hhmmss[4:6])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}
