package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nhle/phoenix-warmup/internal/model"
	"github.com/nhle/phoenix-warmup/internal/service"
)

func init() {
	var (
		limit int
		inbox string
	)
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent activity log rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				var (
					rows []model.LogEntry
					err  error
				)
				if inbox != "" {
					_, rows, err = svc.InboxDetail(ctx, inbox, limit)
				} else {
					rows, err = svc.RecentLogs(ctx, limit)
				}
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tTYPE\tINBOX\tRECIPIENT\tDETAILS")
				for i := len(rows) - 1; i >= 0; i-- {
					r := rows[i]
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						r.Timestamp.Format(model.TimestampLayout), r.Type, r.InboxEmail, r.Recipient, r.Details)
				}
				return w.Flush()
			})
		},
	}
	logsCmd.Flags().IntVarP(&limit, "lines", "n", 20, "number of rows to show")
	logsCmd.Flags().StringVarP(&inbox, "inbox", "i", "", "only rows for this inbox")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise today's activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				snap, err := svc.Snapshot(ctx)
				if err != nil {
					return err
				}
				quota, sent := 0, 0
				for _, in := range snap.Inboxes {
					if in.IsActive() {
						quota += in.DailyLimit
						sent += in.DailySent
					}
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Inboxes\t%d active of %d\n", snap.Active, len(snap.Inboxes))
				fmt.Fprintf(w, "Quota\t%d of %d sent\n", sent, quota)
				fmt.Fprintf(w, "Sent today\t%d\n", snap.Stats.Sent)
				fmt.Fprintf(w, "Replies today\t%d\n", snap.Stats.Replies)
				fmt.Fprintf(w, "Bounces today\t%d\n", snap.Stats.Bounces)
				fmt.Fprintf(w, "Errors today\t%d\n", snap.Stats.Errors)
				fmt.Fprintf(w, "Recipients\t%d active\n", snap.Recipients)
				return w.Flush()
			})
		},
	}

	var all bool
	resetCmd := &cobra.Command{
		Use:   "reset [email]",
		Short: "Zero today's send counters",
		Long: `Zero today's send counters for one inbox, or for every inbox with --all.
Stages and quota streaks are left alone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			if target == "" && !all {
				return errors.New("give an inbox email or --all")
			}
			return withService(cmd, func(ctx context.Context, svc *service.Service) error {
				if err := svc.ResetCounters(ctx, target); err != nil {
					return err
				}
				if target == "" {
					target = "all inboxes"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Counters reset for %s\n", target)
				return nil
			})
		},
	}
	resetCmd.Flags().BoolVar(&all, "all", false, "reset every inbox")

	rootCmd.AddCommand(logsCmd, statsCmd, resetCmd)
}
