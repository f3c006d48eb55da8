package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var tripCmd = &cobra.Command{
	Use:   "trip <trip_id>",
	Short: "Prints the scheduled stops of a trip",
	Args:  cobra.ExactArgs(1),
	RunE:  trip,
}

func init() {
	rootCmd.AddCommand(tripCmd)
}

func trip(cmd *cobra.Command, args []string) error {
	tripID := args[0]

	_, manager, err := loadSchedule(context.Background())
	if err != nil {
		return err
	}
	schedule := manager.Schedule()

	t, found := schedule.Trip(tripID)
	if !found {
		return fmt.Errorf("no trip %s", tripID)
	}

	header := fmt.Sprintf("trip %s, route %s", t.ID, t.RouteID)
	if route, ok := schedule.Route(t.RouteID); ok {
		header += fmt.Sprintf(" (%s %s)", route.ShortName, route.LongName)
	}
	if t.Headsign != "" {
		header += " to " + t.Headsign
	}
	fmt.Println(header)

	for _, st := range schedule.StopTimes(tripID) {
		name := ""
		if stop, ok := schedule.Stop(st.StopID); ok {
			name = stop.Name
		}
		fmt.Printf("%4d %s %s %s %s\n", st.StopSequence, formatTime(st.Arrival), formatTime(st.Departure), st.StopID, name)
	}

	return nil
}
