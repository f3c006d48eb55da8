package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

var stopsCmd = &cobra.Command{
	Use:   "stops [lat lng] [limit]",
	Short: "Lists stops near a geographical location",
	Args:  cobra.RangeArgs(0, 3),
	RunE:  stops,
}

func init() {
	rootCmd.AddCommand(stopsCmd)
}

func stops(cmd *cobra.Command, args []string) error {
	var lat, lng float64
	var limit int
	var err error

	gotLocation := false
	if len(args) == 1 {
		return fmt.Errorf("missing lng")
	}
	if len(args) >= 2 {
		gotLocation = true
		lat, err = strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid lat: %w", err)
		}
		lng, err = strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid lng: %w", err)
		}
	}
	if len(args) == 3 {
		limit, err = strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid limit: %w", err)
		}
		if limit < 0 {
			return fmt.Errorf("limit must be >= 0")
		}
	}

	_, manager, err := loadSchedule(context.Background())
	if err != nil {
		return err
	}
	schedule := manager.Schedule()

	if gotLocation {
		for _, stop := range schedule.NearbyStops(lat, lng, limit) {
			fmt.Printf("%s: %s (%.5f,%.5f)\n", stop.ID, stop.Name, stop.Lat, stop.Lon)
		}
		return nil
	}

	all := schedule.Stops()
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Name < all[j].Name
	})
	for _, stop := range all {
		fmt.Printf("%s: %s\n", stop.ID, stop.Name)
	}

	return nil
}
