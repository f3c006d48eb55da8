package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"idsbk.dev/gtfsrt"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Builds the feed once and prints it",
	Long:  "Builds the feed once. Prints it as protobuf text, or writes the binary FeedMessage to --out.",
	Args:  cobra.NoArgs,
	RunE:  dump,
}

var dumpOut string

func init() {
	dumpCmd.Flags().StringVarP(&dumpOut, "out", "o", "", "Write the serialized feed to this file")
	rootCmd.AddCommand(dumpCmd)
}

func dump(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, manager, err := loadSchedule(ctx)
	if err != nil {
		return err
	}

	data, feed, err := manager.Feed(ctx, time.Now())
	if err != nil {
		return err
	}

	if dumpOut != "" {
		if err := os.WriteFile(dumpOut, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", dumpOut, err)
		}
		fmt.Printf("wrote %d entities (%d bytes) to %s\n", len(feed.Entities), len(data), dumpOut)
		return nil
	}

	text, err := gtfsrt.FormatFeed(feed)
	if err != nil {
		return err
	}
	fmt.Print(text)

	return nil
}
