package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/lureiq/internal/conditions"
)

var conditionsCmd = &cobra.Command{
	Use:   "conditions",
	Short: "Show the autofilled conditions for the configured location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := applyLocationFlags(cmd); err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap := env.Normalizer.Resolve(ctx)
		if asJSON {
			return writeJSON(os.Stdout, snap)
		}
		formatSnapshot(os.Stdout, snap)
		return nil
	},
}

func formatSnapshot(w io.Writer, snap conditions.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	c := snap.Conditions
	if c.Coordinates != nil {
		fmt.Fprintf(tw, "Location:\t%.4f, %.4f\n", c.Coordinates.Lat, c.Coordinates.Lon)
	} else {
		fmt.Fprintf(tw, "Location:\tunknown\n")
	}
	fmt.Fprintf(tw, "Time of day:\t%s\n", c.TimeOrDefault())
	fmt.Fprintf(tw, "Season:\t%s\n", c.SeasonOrDefault())
	fmt.Fprintf(tw, "Spawn phase:\t%s\n", c.SpawnOrDefault())
	if snap.ClarityGuess != nil {
		fmt.Fprintf(tw, "Clarity guess:\t%s\n", *snap.ClarityGuess)
	}
	if snap.PrecipMM != nil {
		fmt.Fprintf(tw, "Rain (12h):\t%.1f mm\n", *snap.PrecipMM)
	}
	if snap.WaterTempF != nil {
		fmt.Fprintf(tw, "Water temp:\t%.0f°F (est.)\n", *snap.WaterTempF)
	}
	if snap.Sunrise != nil && snap.Sunset != nil {
		fmt.Fprintf(tw, "Sun:\t%s - %s\n", snap.Sunrise.Format(time.Kitchen), snap.Sunset.Format(time.Kitchen))
	}
	fmt.Fprintf(tw, "Status:\t%s\n", snap.Status)
	tw.Flush() //nolint:errcheck
}

func init() {
	conditionsCmd.Flags().Bool("json", false, "print JSON instead of a table")
	addLocationFlags(conditionsCmd)
	rootCmd.AddCommand(conditionsCmd)
}
