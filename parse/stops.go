package parse

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"idsbk.dev/gtfsrt/model"
	"idsbk.dev/gtfsrt/storage"
)

type StopCSV struct {
	ID            string  `csv:"stop_id"`
	Code          string  `csv:"stop_code"`
	Name          string  `csv:"stop_name"`
	Desc          string  `csv:"stop_desc"`
	Lat           float64 `csv:"stop_lat"`
	Lon           float64 `csv:"stop_lon"`
	LocationType  int8    `csv:"location_type"`
	ParentStation string  `csv:"parent_station"`
	PlatformCode  string  `csv:"platform_code"`
}

// Parses stops.txt. Only stop_id is required; the live feed never
// references stops directly, so coordinates and names are kept as
// given.
func ParseStops(writer storage.FeedWriter, data io.Reader) (int, error) {
	buf, err := readTable(data, "stop_id")
	if err != nil {
		return 0, err
	}

	stopCsv := []*StopCSV{}
	if err := gocsv.UnmarshalBytes(buf, &stopCsv); err != nil {
		return 0, fmt.Errorf("unmarshaling stops csv: %w", err)
	}

	stopIDs := map[string]bool{}
	for i, st := range stopCsv {
		if st.ID == "" {
			return 0, fmt.Errorf("empty stop_id (row %d)", i+1)
		}
		if stopIDs[st.ID] {
			return 0, fmt.Errorf("repeated stop_id '%s'", st.ID)
		}
		stopIDs[st.ID] = true

		if st.LocationType < 0 || st.LocationType > int8(model.LocationTypeBoardingArea) {
			return 0, fmt.Errorf("invalid location_type %d for stop_id '%s'", st.LocationType, st.ID)
		}

		err := writer.WriteStop(&model.Stop{
			ID:            st.ID,
			Code:          st.Code,
			Name:          st.Name,
			Desc:          st.Desc,
			Lat:           st.Lat,
			Lon:           st.Lon,
			LocationType:  model.LocationType(st.LocationType),
			ParentStation: st.ParentStation,
			PlatformCode:  st.PlatformCode,
		})
		if err != nil {
			return 0, fmt.Errorf("writing stop '%s': %w", st.ID, err)
		}
	}

	return len(stopIDs), nil
}
