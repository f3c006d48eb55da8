package parse

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/spkg/bom"

	"idsbk.dev/gtfsrt/storage"
)

// The static files needed to join live vehicles with the schedule.
var RequiredFiles = []string{
	"stops.txt",
	"routes.txt",
	"trips.txt",
	"stop_times.txt",
}

var ErrMissingFile = errors.New("file missing from static feed")

// LoadError is returned when a static feed can't be loaded. File is
// blank when the problem isn't tied to a single file, e.g. a broken
// zip archive.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("loading static feed: %s", e.Err)
	}
	return fmt.Sprintf("loading %s: %s", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

var csvSetup sync.Once

// LazyCSVReader required (at least) to survive sloppy use of
// quotes. The BOM reader strips unicode BOMs if present.
func setupCSV() {
	csvSetup.Do(func() {
		gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
			return gocsv.LazyCSVReader(bom.NewReader(in))
		})
	})
}

// Reads all of data, and verifies that the header row holds all
// the given columns.
func readTable(data io.Reader, columns ...string) ([]byte, error) {
	setupCSV()

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("reading: %w", err)
	}

	header, err := gocsv.LazyCSVReader(bom.NewReader(bytes.NewReader(buf))).Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	present := map[string]bool{}
	for _, name := range header {
		present[strings.TrimSpace(name)] = true
	}

	missing := []string{}
	for _, column := range columns {
		if !present[column] {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required column(s): %s", strings.Join(missing, ", "))
	}

	return buf, nil
}

// Parses a zipped static GTFS feed into writer. The writer is
// closed on success.
func ParseStatic(writer storage.FeedWriter, buf []byte) (*storage.FeedMetadata, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("unzipping: %w", err)}
	}

	file := map[string]io.Reader{}
	opened := []io.Closer{}
	defer func() {
		for _, rc := range opened {
			rc.Close()
		}
	}()

	wanted := map[string]bool{}
	for _, name := range RequiredFiles {
		wanted[name] = true
	}

	for _, f := range r.File {
		// There should not be any subdirectories. But, some
		// agencies don't care.
		if f.FileInfo().IsDir() {
			continue
		}
		path := strings.Split(f.Name, "/")
		fName := path[len(path)-1]

		if !wanted[fName] {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, &LoadError{File: fName, Err: fmt.Errorf("opening %s: %w", f.Name, err)}
		}
		opened = append(opened, rc)

		file[fName] = rc
	}

	return ParseStaticFiles(writer, file)
}

// Parses the static GTFS tables in files, keyed by file name, into
// writer. The writer is closed on success.
func ParseStaticFiles(writer storage.FeedWriter, file map[string]io.Reader) (*storage.FeedMetadata, error) {
	for _, required := range RequiredFiles {
		if file[required] == nil {
			return nil, &LoadError{File: required, Err: ErrMissingFile}
		}
	}

	numStops, err := ParseStops(writer, file["stops.txt"])
	if err != nil {
		return nil, &LoadError{File: "stops.txt", Err: err}
	}

	numRoutes, err := ParseRoutes(writer, file["routes.txt"])
	if err != nil {
		return nil, &LoadError{File: "routes.txt", Err: err}
	}

	err = writer.BeginTrips()
	if err != nil {
		return nil, fmt.Errorf("beginning trips: %w", err)
	}
	numTrips, err := ParseTrips(writer, file["trips.txt"])
	if err != nil {
		return nil, &LoadError{File: "trips.txt", Err: err}
	}
	err = writer.EndTrips()
	if err != nil {
		return nil, fmt.Errorf("ending trips: %w", err)
	}

	err = writer.BeginStopTimes()
	if err != nil {
		return nil, fmt.Errorf("beginning stop_times: %w", err)
	}
	numStopTimes, err := ParseStopTimes(writer, file["stop_times.txt"])
	if err != nil {
		return nil, &LoadError{File: "stop_times.txt", Err: err}
	}
	err = writer.EndStopTimes()
	if err != nil {
		return nil, fmt.Errorf("ending stop_times: %w", err)
	}

	// All files parsed: close the writer.
	err = writer.Close()
	if err != nil {
		return nil, fmt.Errorf("closing feed writer: %w", err)
	}

	// And return a (partial) metadata holding some key
	// information about the feed.
	return &storage.FeedMetadata{
		NumStops:     numStops,
		NumRoutes:    numRoutes,
		NumTrips:     numTrips,
		NumStopTimes: numStopTimes,
	}, nil
}
