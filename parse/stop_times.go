package parse

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"idsbk.dev/gtfsrt/model"
	"idsbk.dev/gtfsrt/storage"
)

type StopTimeCSV struct {
	TripID        string `csv:"trip_id"`
	StopID        string `csv:"stop_id"`
	StopSequence  string `csv:"stop_sequence"`
	ArrivalTime   string `csv:"arrival_time"`
	DepartureTime string `csv:"departure_time"`
	Headsign      string `csv:"stop_headsign"`
}

// Converts "H:MM:SS" or "HH:MM:SS" into "HHMMSS". Hours past 23 are
// legal, for service running past midnight. Blank input yields
// blank output.
func parseStopTimeTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}

	split := strings.Split(s, ":")
	if len(split) != 3 {
		return "", fmt.Errorf("found %d parts in '%s'", len(split), s)
	}

	hms := [3]int{}
	for i, str := range split {
		j, err := strconv.Atoi(str)
		if err != nil {
			return "", fmt.Errorf("non-integer in '%s' pos %d", s, i)
		}
		hms[i] = j
	}

	if hms[0] < 0 || hms[0] > 99 {
		return "", fmt.Errorf("invalid hour in '%s'", s)
	}

	if hms[1] < 0 || hms[1] > 59 {
		return "", fmt.Errorf("invalid minute in '%s'", s)
	}

	if hms[2] < 0 || hms[2] > 59 {
		return "", fmt.Errorf("invalid second in '%s'", s)
	}

	return fmt.Sprintf("%02d%02d%02d", hms[0], hms[1], hms[2]), nil
}

// Parses stop_times.txt. Records are written in file order, which
// is the order they're later joined in. References to unknown trips
// are kept: the builder only ever looks them up by trip_id.
func ParseStopTimes(writer storage.FeedWriter, data io.Reader) (int, error) {
	buf, err := readTable(data, "trip_id", "stop_id", "stop_sequence", "arrival_time", "departure_time")
	if err != nil {
		return 0, err
	}

	i := -1
	err = gocsv.UnmarshalToCallbackWithError(bytes.NewReader(buf), func(st *StopTimeCSV) error {
		i += 1
		if st.TripID == "" {
			return fmt.Errorf("missing trip_id (row %d)", i+1)
		}
		if st.StopID == "" {
			return fmt.Errorf("missing stop_id (row %d)", i+1)
		}

		stopSequence, err := strconv.ParseUint(strings.TrimSpace(st.StopSequence), 10, 32)
		if err != nil {
			return errors.Wrapf(err, "parsing stop_sequence (row %d)", i+1)
		}

		arrivalTime, err := parseStopTimeTime(st.ArrivalTime)
		if err != nil {
			return errors.Wrapf(err, "parsing arrival_time (row %d)", i+1)
		}

		departureTime, err := parseStopTimeTime(st.DepartureTime)
		if err != nil {
			return errors.Wrapf(err, "parsing departure_time (row %d)", i+1)
		}

		err = writer.WriteStopTime(&model.StopTime{
			TripID:       st.TripID,
			StopID:       st.StopID,
			Headsign:     st.Headsign,
			StopSequence: uint32(stopSequence),
			Arrival:      arrivalTime,
			Departure:    departureTime,
		})
		if err != nil {
			return errors.Wrapf(err, "writing stop_time (row %d)", i+1)
		}

		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "unmarshaling stop_times csv")
	}

	return i + 1, nil
}
