package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"idsbk.dev/gtfsrt/downloader"
	"idsbk.dev/gtfsrt/model"
	"idsbk.dev/gtfsrt/parse"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file or URL>",
	Short: "Summarizes a serialized GTFS-Realtime feed",
	Args:  cobra.ExactArgs(1),
	RunE:  inspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func inspect(cmd *cobra.Command, args []string) error {
	data, err := downloader.NewFilesystem("").Get(
		context.Background(),
		args[0],
		nil,
		downloader.GetOptions{Timeout: 30 * time.Second},
	)
	if err != nil {
		return err
	}

	feed, err := parse.ParseFeed(data)
	if err != nil {
		return err
	}

	fmt.Printf("version %s, %s, %d entities\n", feed.Version, feed.Timestamp.Format(time.RFC3339), len(feed.Entities))

	for _, e := range feed.Entities {
		line := e.ID
		if v := e.Vehicle; v != nil {
			status := "in transit to"
			switch v.Status {
			case model.VehicleStoppedAt:
				status = "stopped at"
			case model.VehicleIncomingAt:
				status = "incoming at"
			}
			line += fmt.Sprintf(" %s (%.5f,%.5f) %s %s", v.Label, v.Lat, v.Lon, status, v.StopID)
		}
		if tu := e.TripUpdate; tu != nil {
			line += fmt.Sprintf(" trip=%s route=%s dir=%d delay=%s updates=%d", tu.TripID, tu.RouteID, tu.DirectionID, tu.Delay, len(tu.StopTimeUpdates))
		}
		fmt.Println(line)
	}

	return nil
}
