package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lureiq/internal/feedback"
	"github.com/sells-group/lureiq/internal/model"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Manage catch follow-ups and the feedback queue",
	Long:  "Commands for answering, dismissing and uploading the \"did it work?\" follow-up that each recommendation schedules.",
}

// -- feedback status --

var feedbackStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the scheduled prompt and queued records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		formatStatus(os.Stdout, env.Scheduler.Pending(ctx), env.Queue.Len(ctx), time.Now())
		return nil
	},
}

func formatStatus(w io.Writer, p *model.ScheduledPrompt, queued int, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if p == nil {
		fmt.Fprintln(tw, "Prompt:\tnone scheduled")
	} else {
		fmt.Fprintf(tw, "Prompt:\tdid %s work?\n", p.LureName)
		fmt.Fprintf(tw, "Recommendation:\t%s\n", p.RecommendationID)
		if p.IsDue(now) {
			fmt.Fprintln(tw, "Due:\tnow")
		} else {
			fmt.Fprintf(tw, "Due:\tin %s\n", p.DueTime().Sub(now).Round(time.Second))
		}
	}
	fmt.Fprintf(tw, "Queued records:\t%d\n", queued)
	tw.Flush() //nolint:errcheck
}

// -- feedback submit --

var feedbackSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Record whether the scheduled recommendation produced a catch",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		outcome, err := outcomeFromFlags(cmd)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		task := env.Scheduler.Resolve(ctx, outcome)
		if err := task.Wait(ctx); err != nil {
			return eris.Wrap(err, "feedback submit")
		}
		if task.Record == nil {
			fmt.Fprintln(os.Stderr, "No prompt scheduled; nothing recorded.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "Recorded %s (uploaded %d, queued %d)\n",
			task.Record.ID, task.Uploaded, env.Queue.Len(ctx))
		return nil
	},
}

func addOutcomeFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("caught", false, "whether the recommended lure caught fish")
	cmd.Flags().Int("count", 0, "number of fish caught")
	cmd.Flags().String("notes", "", "free-form notes")
}

func outcomeFromFlags(cmd *cobra.Command) (model.Outcome, error) {
	if !cmd.Flags().Changed("caught") {
		return model.Outcome{}, eris.New("--caught is required (--caught or --caught=false)")
	}
	caught, _ := cmd.Flags().GetBool("caught")
	out := model.Outcome{Caught: caught}

	if cmd.Flags().Changed("count") {
		n, _ := cmd.Flags().GetInt("count")
		if n < 0 {
			return model.Outcome{}, eris.New("--count must be >= 0")
		}
		out.Count = &n
	}
	if cmd.Flags().Changed("notes") {
		notes, _ := cmd.Flags().GetString("notes")
		out.Notes = &notes
	}
	return out, nil
}

// -- feedback dismiss --

var feedbackDismissCmd = &cobra.Command{
	Use:   "dismiss",
	Short: "Drop the scheduled prompt without recording an outcome",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Scheduler.Dismiss(ctx); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Prompt dismissed.")
		return nil
	},
}

// -- feedback flush --

var feedbackFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Upload queued feedback records to the collector",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Uploader.Flush(ctx)
		if err != nil {
			return eris.Wrapf(err, "flush (%d records still queued)", env.Queue.Len(ctx))
		}
		fmt.Fprintf(os.Stdout, "Uploaded %d records.\n", n)
		return nil
	},
}

// -- feedback now --

var feedbackNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Make the scheduled prompt due immediately",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		p, err := env.Scheduler.ForcePromptNow(ctx)
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Fprintln(os.Stderr, "No prompt scheduled.")
			return nil
		}
		fmt.Fprintf(os.Stdout, "Did %s work? Answer with: lureiq feedback submit --caught[=false]\n", p.LureName)
		return nil
	},
}

// -- feedback watch --

var feedbackWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Wait in the foreground and announce the prompt when it comes due",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		due := make(chan model.ScheduledPrompt, 1)
		env, err := initEnv(ctx, feedback.WithOnDue(func(p model.ScheduledPrompt) {
			select {
			case due <- p:
			default:
			}
		}))
		if err != nil {
			return err
		}
		defer env.Close()

		task := env.Scheduler.Resume(ctx)
		if err := task.Wait(ctx); err == nil && task.Uploaded > 0 {
			fmt.Fprintf(os.Stderr, "Uploaded %d queued records.\n", task.Uploaded)
		}

		if env.Scheduler.State() == feedback.Idle {
			fmt.Fprintln(os.Stderr, "No prompt scheduled.")
			return nil
		}

		select {
		case p := <-due:
			fmt.Fprintf(os.Stdout, "Did %s work? Answer with: lureiq feedback submit --caught[=false]\n", p.LureName)
		case <-ctx.Done():
		}
		return nil
	},
}

// -- feedback export --

var feedbackExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print queued feedback records as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		days, _ := cmd.Flags().GetInt("since-days")
		if days < 0 {
			return eris.New("--since-days must be >= 0")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var records []model.FeedbackRecord
		if days == 0 {
			records = env.Queue.All(ctx)
		} else {
			records = env.Queue.Since(ctx, time.Duration(days)*24*time.Hour, time.Now())
		}
		if records == nil {
			records = []model.FeedbackRecord{}
		}
		return writeJSON(os.Stdout, records)
	},
}

func init() {
	addOutcomeFlags(feedbackSubmitCmd)

	feedbackExportCmd.Flags().Int("since-days", 0, "only records from the last N days (0 = all)")

	feedbackCmd.AddCommand(
		feedbackStatusCmd,
		feedbackSubmitCmd,
		feedbackDismissCmd,
		feedbackFlushCmd,
		feedbackNowCmd,
		feedbackWatchCmd,
		feedbackExportCmd,
	)
	rootCmd.AddCommand(feedbackCmd)
}
