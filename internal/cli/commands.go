package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/domain"
)

func runCmd(configPath *string) *cobra.Command {
	var (
		in     domain.RunInput
		send   bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the briefing once and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("send") {
				in.Send = &send
			}

			ctx := cmd.Context()
			application, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			record, runErr := application.RunOnce(ctx, domain.TriggerCLI, in)
			if runErr != nil {
				failure := apperr.Describe(runErr)
				if asJSON {
					_ = writeJSON(cmd.OutOrStdout(), map[string]any{"runId": record.ID, "failure": failure})
				}
				return fmt.Errorf("briefing failed at %s: %s", failure.Stage, failure.Reason)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), domain.DeliveryResult{Message: record.Message, DeliveredTo: record.DeliveredTo})
			}
			fmt.Fprintln(cmd.OutOrStdout(), record.Message)
			fmt.Fprintf(cmd.OutOrStdout(), "delivered to: %s\n", record.DeliveredTo)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Timezone, "tz", "", "IANA timezone (default USER_TZ, then system, then UTC)")
	cmd.Flags().StringVar(&in.City, "city", "", "City for the weather forecast")
	cmd.Flags().BoolVar(&send, "send", false, "Deliver the briefing instead of only printing it")
	cmd.Flags().StringVar(&in.Channel, "channel", "", "Delivery channel: telegram|console (or primary|fallback)")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")

	return cmd
}

func scheduleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the briefing on the configured cron until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Schedule(ctx)
		},
	}
}

func serveCmd(configPath *string) *cobra.Command {
	var (
		addr         string
		withSchedule bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Serve(ctx, addr, withSchedule)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default HTTP_ADDR or :8080)")
	cmd.Flags().BoolVar(&withSchedule, "schedule", false, "Also run the cron scheduler")

	return cmd
}

func historyCmd(configPath *string) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded briefing runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			application, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer application.Close()

			runs, err := application.History(ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")

	return cmd
}

func printRuns(w io.Writer, runs []domain.RunRecord) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tTRIGGER\tSTATUS\tDELIVERED\tSCORE\tDETAIL")
	for _, r := range runs {
		score := "-"
		if r.Score != nil {
			score = fmt.Sprintf("%.0f%%", *r.Score*100)
		}
		detail := r.FailedStage
		if r.ErrorReason != "" {
			detail = r.FailedStage + ": " + r.ErrorReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05Z07:00"), r.Trigger, r.Status, valueOr(r.DeliveredTo, "-"), score, valueOr(detail, "-"))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Execute runs the root command with a background context.
func Execute() error {
	return NewRootCommand().ExecuteContext(context.Background())
}
