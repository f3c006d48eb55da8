package parse

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"

	"idsbk.dev/gtfsrt/model"
	"idsbk.dev/gtfsrt/storage"
)

type RouteCSV struct {
	ID        string `csv:"route_id"`
	AgencyID  string `csv:"agency_id"`
	ShortName string `csv:"route_short_name"`
	LongName  string `csv:"route_long_name"`
	Desc      string `csv:"route_desc"`
	Type      string `csv:"route_type"`
	Color     string `csv:"route_color"`
	TextColor string `csv:"route_text_color"`
}

// Basic route types, plus the extended (hierarchical) ones.
func legalRouteType(t model.RouteType) bool {
	if t >= 0 && t <= 7 {
		return true
	}
	if t == 11 || t == 12 {
		return true
	}
	if t >= 100 && t <= 1799 {
		return true
	}
	return false
}

func validRouteColor(color string) bool {
	if len(color) != 6 {
		return false
	}
	if _, err := hex.DecodeString(color); err != nil {
		return false
	}
	return true
}

func ParseRoutes(writer storage.FeedWriter, data io.Reader) (int, error) {
	buf, err := readTable(data, "route_id", "route_short_name", "route_long_name")
	if err != nil {
		return 0, err
	}

	routeCsv := []*RouteCSV{}
	if err := gocsv.UnmarshalBytes(buf, &routeCsv); err != nil {
		return 0, fmt.Errorf("unmarshaling routes csv: %w", err)
	}

	routes := map[string]bool{}
	for i, r := range routeCsv {
		// ID is required
		if r.ID == "" {
			return 0, fmt.Errorf("empty route_id (row %d)", i+1)
		}
		if routes[r.ID] {
			return 0, fmt.Errorf("repeated route_id '%s'", r.ID)
		}
		routes[r.ID] = true

		routeType := model.RouteTypeBus
		if r.Type != "" {
			t, err := strconv.Atoi(r.Type)
			if err != nil {
				return 0, fmt.Errorf("route_id '%s' has invalid route_type: %w", r.ID, err)
			}
			routeType = model.RouteType(t)
			if !legalRouteType(routeType) {
				return 0, fmt.Errorf("route_id '%s' has invalid route_type: %d", r.ID, t)
			}
		}

		// GTFS reference defaults
		if r.Color == "" {
			r.Color = "FFFFFF"
		} else if !validRouteColor(r.Color) {
			return 0, fmt.Errorf("route_id '%s' has invalid route_color: %s", r.ID, r.Color)
		}
		if r.TextColor == "" {
			r.TextColor = "000000"
		} else if !validRouteColor(r.TextColor) {
			return 0, fmt.Errorf("route_id '%s' has invalid route_text_color: %s", r.ID, r.TextColor)
		}

		err = writer.WriteRoute(&model.Route{
			ID:        r.ID,
			AgencyID:  r.AgencyID,
			ShortName: r.ShortName,
			LongName:  r.LongName,
			Desc:      r.Desc,
			Type:      routeType,
			Color:     r.Color,
			TextColor: r.TextColor,
		})
		if err != nil {
			return 0, fmt.Errorf("writing route: %w", err)
		}
	}

	return len(routes), nil
}
