package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lureiq/internal/conditions"
	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/internal/scorer"
	"github.com/sells-group/lureiq/internal/session"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend a lure for current conditions",
	Long: "Resolves time of day, season and spawn phase from the configured location, " +
		"takes clarity and cover from flags, scores the catalog and schedules a catch follow-up.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := applyLocationFlags(cmd); err != nil {
			return err
		}

		clarityFlag, _ := cmd.Flags().GetString("clarity")
		coverFlag, _ := cmd.Flags().GetString("cover")
		noFeedback, _ := cmd.Flags().GetBool("no-feedback")
		explain, _ := cmd.Flags().GetBool("explain")
		asJSON, _ := cmd.Flags().GetBool("json")

		cover, err := model.ParseCover(coverFlag)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap := env.Warm(ctx)
		fmt.Fprintln(os.Stderr, snap.Status)

		clarity, err := pickClarity(clarityFlag, snap.ClarityGuess)
		if err != nil {
			return err
		}

		scheduled := make(chan error, 1)
		opts := []session.Option{session.WithScoringDelay(scoringDelay())}
		if !noFeedback {
			opts = append(opts, session.WithOnScored(func(rec model.Recommendation) {
				_, err := env.Scheduler.Schedule(ctx, rec.ID, rec.Lure, feedbackDelay())
				scheduled <- err
			}))
		}
		sess := session.New(env.Engine, opts...)
		defer sess.Close()

		if err := sess.Prefill(snap.Conditions, snap.ClarityGuess); err != nil {
			return err
		}
		if err := sess.ConfirmClarity(clarity); err != nil {
			return err
		}
		if err := sess.ConfirmCover(cover); err != nil {
			return err
		}
		resCh, err := sess.Trigger()
		if err != nil {
			return err
		}

		var res session.Result
		select {
		case res = <-resCh:
		case <-ctx.Done():
			return ctx.Err()
		}
		if res.Err != nil {
			return res.Err
		}
		rec := *res.Recommendation

		if !noFeedback {
			if err := <-scheduled; err != nil {
				zap.L().Warn("could not schedule feedback prompt", zap.Error(err))
			} else {
				fmt.Fprintf(os.Stderr, "Feedback prompt scheduled in %s.\n", feedbackDelay())
			}
		}

		if asJSON {
			return writeJSON(os.Stdout, recommendOutput{Recommendation: rec, Snapshot: snap})
		}
		formatRecommendation(os.Stdout, rec, snap)

		if explain {
			ranking, err := env.Engine.Rank(rec.Conditions)
			if err != nil {
				return eris.Wrap(err, "rank lures")
			}
			fmt.Fprintln(os.Stdout)
			formatRanking(os.Stdout, ranking)
		}
		return nil
	},
}

type recommendOutput struct {
	Recommendation model.Recommendation `json:"recommendation"`
	Snapshot       conditions.Snapshot  `json:"snapshot"`
}

// pickClarity uses the explicit flag, falling back to the weather-based
// guess. With neither, the angler has to say.
func pickClarity(flag string, guess *model.Clarity) (model.Clarity, error) {
	if flag != "" {
		return model.ParseClarity(flag)
	}
	if guess != nil {
		return *guess, nil
	}
	return "", eris.New("--clarity is required when no clarity guess is available")
}

// applyLocationFlags overrides the configured location with --zip or
// --lat/--lon for this invocation.
func applyLocationFlags(cmd *cobra.Command) error {
	zip, _ := cmd.Flags().GetString("zip")
	if zip != "" {
		cfg.Location.Zip = zip
	}
	latSet := cmd.Flags().Changed("lat")
	lonSet := cmd.Flags().Changed("lon")
	if latSet != lonSet {
		return eris.New("--lat and --lon must be given together")
	}
	if latSet {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		cfg.Location.Lat, cfg.Location.Lon = &lat, &lon
	}
	return cfg.Validate()
}

func addLocationFlags(cmd *cobra.Command) {
	cmd.Flags().String("zip", "", "US ZIP code for the fishing spot")
	cmd.Flags().Float64("lat", 0, "latitude of the fishing spot")
	cmd.Flags().Float64("lon", 0, "longitude of the fishing spot")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatRecommendation(w io.Writer, rec model.Recommendation, snap conditions.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Lure:\t%s\n", rec.Lure)
	fmt.Fprintf(tw, "Color:\t%s\n", rec.Color)
	fmt.Fprintf(tw, "Retrieve:\t%s\n", rec.Retrieve)
	fmt.Fprintf(tw, "Depth:\t%s\n", rec.Depth)
	fmt.Fprintf(tw, "Conditions:\t%s\n", describeConditions(rec.Conditions))
	if snap.WaterTempF != nil {
		fmt.Fprintf(tw, "Water temp:\t%.0f°F (est.)\n", *snap.WaterTempF)
	}
	fmt.Fprintf(tw, "ID:\t%s\n", rec.ID)
	tw.Flush() //nolint:errcheck
}

func formatRanking(w io.Writer, ranking []scorer.LureScore) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tLURE\tSCORE")
	for i, ls := range ranking {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\n", i+1, ls.Lure, ls.Score)
	}
	tw.Flush() //nolint:errcheck
}

func describeConditions(c model.Conditions) string {
	clarity, cover := "?", "?"
	if c.Clarity != nil {
		clarity = string(*c.Clarity)
	}
	if c.Cover != nil {
		cover = string(*c.Cover)
	}
	return fmt.Sprintf("%s water, %s cover, %s, %s, spawn %s",
		clarity, cover, c.TimeOrDefault(), c.SeasonOrDefault(), c.SpawnOrDefault())
}

func init() {
	recommendCmd.Flags().String("clarity", "", "water clarity: clear, stained or muddy (default: weather-based guess)")
	recommendCmd.Flags().String("cover", "", "dominant cover: grass, wood, rock or open")
	_ = recommendCmd.MarkFlagRequired("cover")
	recommendCmd.Flags().Bool("no-feedback", false, "skip scheduling the catch follow-up")
	recommendCmd.Flags().Bool("explain", false, "print every lure's final score")
	recommendCmd.Flags().Bool("json", false, "print JSON instead of a table")
	addLocationFlags(recommendCmd)
	rootCmd.AddCommand(recommendCmd)
}
