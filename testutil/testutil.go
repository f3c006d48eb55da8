package testutil

// Helpers and configuration for tests.

import (
	"archive/zip"
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"idsbk.dev/gtfsrt"
	"idsbk.dev/gtfsrt/parse"
	"idsbk.dev/gtfsrt/storage"
)

// Postgres backed tests only run when this environment variable
// holds a connection string.
const PostgresEnv = "GTFSRT_TEST_POSTGRES"

// Storage backends available in the current environment.
func Backends() []string {
	backends := []string{"memory", "sqlite"}
	if os.Getenv(PostgresEnv) != "" {
		backends = append(backends, "postgres")
	}
	return backends
}

func BuildStorage(t testing.TB, backend string) storage.Storage {
	var s storage.Storage
	var err error
	switch backend {
	case "memory":
		s = storage.NewMemoryStorage()
	case "sqlite":
		s, err = storage.NewSQLiteStorage()
		require.NoError(t, err)
	case "postgres":
		connStr := os.Getenv(PostgresEnv)
		if connStr == "" {
			t.Skipf("%s not set", PostgresEnv)
		}
		s, err = storage.NewPSQLStorage(connStr, true)
		require.NoError(t, err)
	}
	require.NotEqual(t, nil, s, "unknown backend %q", backend)

	return s
}

func LoadSchedule(t testing.TB, backend string, buf []byte) *gtfsrt.Schedule {
	s := BuildStorage(t, backend)

	// Parse buf into storage
	feedWriter, err := s.GetWriter("test")
	require.NoError(t, err)

	metadata, err := parse.ParseStatic(feedWriter, buf)
	require.NoError(t, err)

	// Create Schedule
	reader, err := s.GetReader("test")
	require.NoError(t, err)

	schedule, err := gtfsrt.NewSchedule(reader, metadata)
	require.NoError(t, err)

	return schedule
}

func BuildSchedule(
	t testing.TB,
	backend string,
	files map[string][]string,
) *gtfsrt.Schedule {

	// Fill in missing files with blank tables.
	if files["routes.txt"] == nil {
		files["routes.txt"] = []string{"route_id,route_short_name,route_long_name"}
	}
	if files["trips.txt"] == nil {
		files["trips.txt"] = []string{"trip_id,route_id"}
	}
	if files["stops.txt"] == nil {
		files["stops.txt"] = []string{"stop_id"}
	}
	if files["stop_times.txt"] == nil {
		files["stop_times.txt"] = []string{"trip_id,arrival_time,departure_time,stop_id,stop_sequence"}
	}

	buf := BuildZip(t, files)

	return LoadSchedule(t, backend, buf)
}

func BuildZip(
	t testing.TB,
	files map[string][]string,
) []byte {

	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)
	for filename, content := range files {
		f, err := w.Create(filename)
		require.NoError(t, err)
		_, err = f.Write([]byte(strings.Join(content, "\n")))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}
